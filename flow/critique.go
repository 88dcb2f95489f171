package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/internal/jsonutil"
)

// Verdict is the classification of one critique round.
type Verdict struct {
	// Accept means the current draft is final.
	Accept bool
	// Feedback is handed to the improver when Accept is false.
	Feedback string
}

// Classifier turns raw critic output into a Verdict.
type Classifier func(critique string) Verdict

// CritiqueFlow is the Draft -> Critique -> (Improve -> Critique)* state
// machine. A drafter unit produces the initial answer, a critic unit judges
// it, and an improver unit (the critic itself by default) revises it until
// the critic accepts or the iteration bound is reached.
//
// Running out of iterations is a degraded-but-valid outcome: the flow
// completes with the last draft instead of failing.
type CritiqueFlow struct {
	core.BaseUnit
	drafter  string
	critic   string
	improver string
	maxIters int
	classify Classifier
}

// CritiqueOption customizes CritiqueFlow behavior.
type CritiqueOption func(*CritiqueFlow)

// WithImprover designates a dedicated improver unit. Defaults to the critic.
func WithImprover(name string) CritiqueOption {
	return func(f *CritiqueFlow) { f.improver = name }
}

// WithMaxIterations bounds the critique/improve rounds. Defaults to 3.
func WithMaxIterations(n int) CritiqueOption {
	return func(f *CritiqueFlow) { f.maxIters = n }
}

// WithClassifier replaces the default verdict classifier.
func WithClassifier(fn Classifier) CritiqueOption {
	return func(f *CritiqueFlow) { f.classify = fn }
}

// NewCritiqueFlow creates an iterative-critique flow around the given
// drafter and critic units.
func NewCritiqueFlow(name, drafter, critic string, opts ...CritiqueOption) *CritiqueFlow {
	f := &CritiqueFlow{
		BaseUnit: core.NewBaseUnit(name, core.KindFlow),
		drafter:  drafter,
		critic:   critic,
		maxIters: 3,
		classify: DefaultClassifier,
	}

	for _, o := range opts {
		o(f)
	}

	if f.improver == "" {
		f.improver = f.critic
	}

	permitted := []string{f.drafter, f.critic}
	if f.improver != f.critic {
		permitted = append(permitted, f.improver)
	}
	f.SetPermittedCallees(permitted...)

	return f
}

// Execute implements core.Unit.
func (f *CritiqueFlow) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	query := req.Arguments.Query

	resp := req.Call(ctx, f.drafter, req.Arguments)
	if resp.State != core.StateCompleted {
		return core.NewFailed(core.NewNestedError(f.Name(), resp.Err), req.Context), nil
	}
	draft := resp.Text()

	for i := 0; i < f.maxIters; i++ {
		critique := req.Call(ctx, f.critic, req.Arguments.WithQuery(critiquePrompt(query, draft)))
		if critique.State != core.StateCompleted {
			return core.NewFailed(core.NewNestedError(f.Name(), critique.Err), req.Context), nil
		}

		verdict := f.classify(critique.Text())
		if verdict.Accept {
			return core.NewCompleted(draft, req.Context), nil
		}

		improved := req.Call(ctx, f.improver, req.Arguments.WithQuery(improvePrompt(query, draft, verdict.Feedback)))
		if improved.State != core.StateCompleted {
			return core.NewFailed(core.NewNestedError(f.Name(), improved.Err), req.Context), nil
		}
		draft = improved.Text()
	}

	// Iteration bound exhausted: the last draft is the answer.
	return core.NewCompleted(draft, req.Context), nil
}

// DefaultClassifier expects {"verdict": "accept"|"revise", "feedback": ...}
// (a fenced code block is tolerated). A plain-text critique starting with
// ACCEPT also counts as acceptance; anything else is treated as a revision
// request with the whole critique as feedback.
func DefaultClassifier(critique string) Verdict {
	parsed := gjson.Parse(jsonutil.ExtractJSON(critique))

	if verdict := parsed.Get("verdict"); verdict.Exists() {
		accept := strings.EqualFold(verdict.String(), "accept")
		return Verdict{Accept: accept, Feedback: parsed.Get("feedback").String()}
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(critique)), "ACCEPT") {
		return Verdict{Accept: true}
	}

	return Verdict{Feedback: critique}
}

func critiquePrompt(query, draft string) string {
	return fmt.Sprintf(
		"Critique the following draft answer to the request.\n\nRequest: %s\n\nDraft:\n%s\n\n"+
			"Respond with {\"verdict\": \"accept\"} if the draft is good enough, or "+
			"{\"verdict\": \"revise\", \"feedback\": \"...\"} with concrete improvement feedback.",
		query, draft,
	)
}

func improvePrompt(query, draft, feedback string) string {
	return fmt.Sprintf(
		"Revise the draft answer using the critique feedback.\n\nRequest: %s\n\nDraft:\n%s\n\nFeedback:\n%s\n\n"+
			"Respond with the improved answer only.",
		query, draft, feedback,
	)
}
