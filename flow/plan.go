package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/internal/jsonutil"
)

// PlanExecuteFlow is the Planning -> Executing -> (Replanning <-> Executing)
// state machine. Planning produces an ordered step list, either fixed at
// construction or requested from a designated planner unit; Executing
// delegates each step in order to a designated executor unit, feeding it the
// history of completed steps; Replanning (when enabled) asks a designated
// replanner unit whether the collected results already answer the request or
// a revised step list is needed.
//
// The replan loop is bounded: exceeding the configured maximum number of
// replan rounds fails the flow with a rounds-exceeded error rather than
// looping forever. This bound is the flow's liveness guarantee.
type PlanExecuteFlow struct {
	core.BaseUnit
	executor   string
	planner    string
	replanner  string
	presetPlan []string
	maxRounds  int
}

// stepResult pairs an executed step with the executor's output.
type stepResult struct {
	Step   string
	Result string
}

// PlanExecuteOption customizes PlanExecuteFlow behavior.
type PlanExecuteOption func(*PlanExecuteFlow)

// WithPlanner designates the unit asked to produce the initial step list.
// Its output must parse as a JSON array of step descriptions (a fenced code
// block is tolerated); a parse failure is fatal for the flow.
func WithPlanner(name string) PlanExecuteOption {
	return func(f *PlanExecuteFlow) { f.planner = name }
}

// WithPresetPlan fixes the step list up front, skipping the planner.
func WithPresetPlan(steps ...string) PlanExecuteOption {
	return func(f *PlanExecuteFlow) { f.presetPlan = append([]string(nil), steps...) }
}

// WithReplanner enables replanning through the named unit after each
// exhausted step list.
func WithReplanner(name string) PlanExecuteOption {
	return func(f *PlanExecuteFlow) { f.replanner = name }
}

// WithMaxReplanRounds bounds the number of replan rounds. Defaults to 3.
func WithMaxReplanRounds(n int) PlanExecuteOption {
	return func(f *PlanExecuteFlow) { f.maxRounds = n }
}

// NewPlanExecuteFlow creates a plan-execute(-replan) flow around the given
// executor unit.
func NewPlanExecuteFlow(name, executor string, opts ...PlanExecuteOption) *PlanExecuteFlow {
	f := &PlanExecuteFlow{
		BaseUnit:  core.NewBaseUnit(name, core.KindFlow),
		executor:  executor,
		maxRounds: 3,
	}

	for _, o := range opts {
		o(f)
	}

	permitted := []string{executor}
	if f.planner != "" {
		permitted = append(permitted, f.planner)
	}
	if f.replanner != "" {
		permitted = append(permitted, f.replanner)
	}
	f.SetPermittedCallees(permitted...)

	return f
}

// Execute implements core.Unit.
func (f *PlanExecuteFlow) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	query := req.Arguments.Query

	steps, err := f.plan(ctx, req)
	if err != nil {
		return core.NewFailed(err, req.Context), nil
	}
	originalPlan := append([]string(nil), steps...)

	var history []stepResult
	replans := 0

	for {
		for _, step := range steps {
			task := buildStepTask(query, history, step)
			resp := req.Call(ctx, f.executor, req.Arguments.WithQuery(task))
			if resp.State != core.StateCompleted {
				return core.NewFailed(core.NewNestedError(f.Name(), resp.Err), req.Context), nil
			}
			history = append(history, stepResult{Step: step, Result: resp.Text()})
		}

		if f.replanner == "" {
			final := ""
			if len(history) > 0 {
				final = history[len(history)-1].Result
			}
			return core.NewCompleted(final, req.Context), nil
		}

		if replans >= f.maxRounds {
			return core.NewFailed(core.NewRoundsExceededError(f.Name(), f.maxRounds), req.Context), nil
		}

		answer, revised, err := f.replan(ctx, req, query, originalPlan, history)
		if err != nil {
			return core.NewFailed(err, req.Context), nil
		}
		if revised == nil {
			return core.NewCompleted(answer, req.Context), nil
		}

		// Unexecuted steps from the previous list are discarded in favor
		// of the revision.
		steps = revised
		replans++
	}
}

// plan produces the initial ordered step list.
func (f *PlanExecuteFlow) plan(ctx context.Context, req *core.Request) ([]string, error) {
	if len(f.presetPlan) > 0 {
		return append([]string(nil), f.presetPlan...), nil
	}
	if f.planner == "" {
		return nil, core.NewParseError(f.Name(), "no planner unit and no preset plan configured", false)
	}

	prompt := fmt.Sprintf(
		"Create a step-by-step plan for the following request. "+
			"Respond with a JSON array of step descriptions and nothing else.\n\nRequest: %s",
		req.Arguments.Query,
	)
	resp := req.Call(ctx, f.planner, req.Arguments.WithQuery(prompt))
	if resp.State != core.StateCompleted {
		return nil, core.NewNestedError(f.Name(), resp.Err)
	}

	steps, err := parseSteps(resp.Text())
	if err != nil {
		return nil, core.NewParseError(f.planner, err.Error(), false)
	}
	return steps, nil
}

// replan asks the replanner whether the request is answered. It returns the
// final answer, or a revised non-nil step list, or a fatal error.
func (f *PlanExecuteFlow) replan(
	ctx context.Context,
	req *core.Request,
	query string,
	plan []string,
	history []stepResult,
) (string, []string, error) {
	prompt := fmt.Sprintf(
		"Original request, current plan and execution history:\n%s\n\n"+
			"If the request is fully answered, respond with {\"answer\": \"...\"}. "+
			"Otherwise respond with {\"steps\": [...]} listing the remaining steps.",
		replanPayload(query, plan, history),
	)
	resp := req.Call(ctx, f.replanner, req.Arguments.WithQuery(prompt))
	if resp.State != core.StateCompleted {
		return "", nil, core.NewNestedError(f.Name(), resp.Err)
	}

	text := resp.Text()
	parsed := gjson.Parse(jsonutil.ExtractJSON(text))

	if answer := parsed.Get("answer"); answer.Exists() {
		return answer.String(), nil, nil
	}
	if steps := parsed.Get("steps"); steps.IsArray() {
		revised := resultToSteps(steps)
		if len(revised) == 0 {
			return "", nil, core.NewParseError(f.replanner, "replanner returned an empty step list", false)
		}
		return "", revised, nil
	}

	return "", nil, core.NewParseError(f.replanner, fmt.Sprintf("replanner output is neither an answer nor a step list: %s", text), false)
}

// replanPayload serializes the replanning input as a JSON document.
func replanPayload(query string, plan []string, history []stepResult) string {
	payload, _ := sjson.Set("", "query", query)
	payload, _ = sjson.Set(payload, "plan", plan)
	for i, h := range history {
		payload, _ = sjson.Set(payload, fmt.Sprintf("history.%d.step", i), h.Step)
		payload, _ = sjson.Set(payload, fmt.Sprintf("history.%d.result", i), h.Result)
	}
	return payload
}

// buildStepTask renders the executor task for one step: the full history of
// completed steps with their results, the current step, and the instruction
// that only the current step is to be performed.
func buildStepTask(query string, history []stepResult, step string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "We are executing a plan for the request: %s\n", query)
	if len(history) > 0 {
		b.WriteString("\nCompleted steps and their results:\n")
		for i, h := range history {
			fmt.Fprintf(&b, "%d. %s\n   Result: %s\n", i+1, h.Step, h.Result)
		}
	}
	fmt.Fprintf(&b, "\nCurrent step: %s\n", step)
	b.WriteString("Perform only the current step and nothing else.")
	return b.String()
}

// parseSteps interprets planner output as an ordered list of step
// descriptions. Both a bare JSON array and an object with a "steps" array
// are accepted.
func parseSteps(text string) ([]string, error) {
	parsed := gjson.Parse(jsonutil.ExtractJSON(text))

	candidate := parsed
	if !parsed.IsArray() {
		candidate = parsed.Get("steps")
	}
	if !candidate.IsArray() {
		return nil, fmt.Errorf("expected a JSON array of steps, got: %s", strings.TrimSpace(text))
	}

	steps := resultToSteps(candidate)
	if len(steps) == 0 {
		return nil, fmt.Errorf("plan contains no steps")
	}
	return steps, nil
}

func resultToSteps(arr gjson.Result) []string {
	var steps []string
	arr.ForEach(func(_, value gjson.Result) bool {
		s := strings.TrimSpace(value.String())
		if s != "" {
			steps = append(steps, s)
		}
		return true
	})
	return steps
}
