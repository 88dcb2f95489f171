// Package jsonutil extracts JSON payloads from model output, which routinely
// arrives wrapped in markdown fences or surrounded by prose.
package jsonutil

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractJSON returns the first valid JSON value embedded in s. Markdown
// code fences are stripped first. When no valid JSON can be located the
// trimmed input is returned unchanged so callers can report the raw text in
// their parse errors.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = stripFences(s)
	}
	if gjson.Valid(s) {
		return s
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	end := strings.LastIndexAny(s, "}]")
	for end > start {
		candidate := strings.TrimSpace(s[start : end+1])
		if gjson.Valid(candidate) {
			return candidate
		}
		end = strings.LastIndexAny(s[:end], "}]")
	}

	return s
}

// stripFences removes a leading ``` line (with optional language tag) and a
// trailing ``` line.
func stripFences(s string) string {
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
