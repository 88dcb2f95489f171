package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON_Plain(t *testing.T) {
	assert.Equal(t, `["a","b"]`, ExtractJSON(`["a","b"]`))
	assert.Equal(t, `{"k":1}`, ExtractJSON(`  {"k":1}  `))
}

func TestExtractJSON_Fenced(t *testing.T) {
	input := "```json\n[\"step one\", \"step two\"]\n```"
	assert.Equal(t, `["step one", "step two"]`, ExtractJSON(input))

	noLang := "```\n{\"answer\": 42}\n```"
	assert.Equal(t, `{"answer": 42}`, ExtractJSON(noLang))
}

func TestExtractJSON_EmbeddedInProse(t *testing.T) {
	input := `Sure! Here is the plan: ["research", "summarize"] — let me know.`
	assert.Equal(t, `["research", "summarize"]`, ExtractJSON(input))
}

func TestExtractJSON_NoJSONReturnsTrimmedInput(t *testing.T) {
	assert.Equal(t, "no structure here", ExtractJSON("  no structure here  "))
}
