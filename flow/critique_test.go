package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flowmesh/core"
)

// reviewer plays critic and improver in one unit, like a single model
// operating under different instructions.
func reviewer(name string, verdicts []string) *funcUnit {
	i := 0
	return newFuncUnit(name, func(_ context.Context, req *core.Request) (*core.Response, error) {
		q := req.Arguments.Query
		if strings.Contains(q, "Critique the following draft") {
			v := verdicts[min(i, len(verdicts)-1)]
			i++
			return core.NewCompleted(v, req.Context), nil
		}
		return core.NewCompleted("improved draft", req.Context), nil
	})
}

func TestCritiqueFlow_AcceptOnFirstCritique(t *testing.T) {
	f := NewCritiqueFlow("polish", "drafter", "critic")
	r, root := newHarness(t, f,
		textUnit("drafter", "first draft"),
		reviewer("critic", []string{`{"verdict": "accept"}`}),
	)

	resp := r.Call(context.Background(), "", "polish", core.Arguments{Query: "write a poem"}, root)

	require.Equal(t, core.StateCompleted, resp.State)
	assert.Equal(t, "first draft", resp.Output)
}

func TestCritiqueFlow_ReviseThenAccept(t *testing.T) {
	f := NewCritiqueFlow("polish", "drafter", "critic")
	r, root := newHarness(t, f,
		textUnit("drafter", "rough draft"),
		reviewer("critic", []string{
			`{"verdict": "revise", "feedback": "needs more detail"}`,
			`{"verdict": "accept"}`,
		}),
	)

	resp := r.Call(context.Background(), "", "polish", core.Arguments{Query: "write a poem"}, root)

	require.Equal(t, core.StateCompleted, resp.State)
	assert.Equal(t, "improved draft", resp.Output)
}

func TestCritiqueFlow_BoundExhaustionKeepsLastDraft(t *testing.T) {
	f := NewCritiqueFlow("polish", "drafter", "critic", WithMaxIterations(2))
	r, root := newHarness(t, f,
		textUnit("drafter", "rough draft"),
		reviewer("critic", []string{`{"verdict": "revise", "feedback": "never satisfied"}`}),
	)

	resp := r.Call(context.Background(), "", "polish", core.Arguments{Query: "q"}, root)

	require.Equal(t, core.StateCompleted, resp.State, "running out of iterations is not a failure")
	assert.Equal(t, "improved draft", resp.Output)
}

func TestCritiqueFlow_DedicatedImprover(t *testing.T) {
	improved := false
	improver := newFuncUnit("improver", func(_ context.Context, req *core.Request) (*core.Response, error) {
		improved = true
		assert.Contains(t, req.Arguments.Query, "too terse")
		return core.NewCompleted("expanded draft", req.Context), nil
	})
	f := NewCritiqueFlow("polish", "drafter", "critic", WithImprover("improver"))
	r, root := newHarness(t, f,
		textUnit("drafter", "tiny draft"),
		reviewer("critic", []string{
			`{"verdict": "revise", "feedback": "too terse"}`,
			`{"verdict": "accept"}`,
		}),
		improver,
	)

	resp := r.Call(context.Background(), "", "polish", core.Arguments{Query: "q"}, root)

	require.Equal(t, core.StateCompleted, resp.State)
	assert.True(t, improved)
	assert.Equal(t, "expanded draft", resp.Output)
	assert.ElementsMatch(t, []string{"drafter", "critic", "improver"}, f.PermittedCallees())
}

func TestCritiqueFlow_DrafterFailureIsFatal(t *testing.T) {
	f := NewCritiqueFlow("polish", "drafter", "critic")
	r, root := newHarness(t, f,
		newFuncUnit("drafter", func(_ context.Context, _ *core.Request) (*core.Response, error) {
			return nil, errors.New("writer's block")
		}),
		reviewer("critic", []string{`{"verdict": "accept"}`}),
	)

	resp := r.Call(context.Background(), "", "polish", core.Arguments{}, root)

	assert.Equal(t, core.StateFailed, resp.State)
	assert.Equal(t, core.ErrNestedFailure, core.KindOf(resp.Err))
}

func TestDefaultClassifier(t *testing.T) {
	v := DefaultClassifier(`{"verdict": "accept"}`)
	assert.True(t, v.Accept)

	v = DefaultClassifier("```json\n{\"verdict\": \"revise\", \"feedback\": \"fix tone\"}\n```")
	assert.False(t, v.Accept)
	assert.Equal(t, "fix tone", v.Feedback)

	v = DefaultClassifier("ACCEPT: ship it")
	assert.True(t, v.Accept)

	v = DefaultClassifier("this draft is weak in several ways")
	assert.False(t, v.Accept)
	assert.Contains(t, v.Feedback, "weak")
}
