// Package agent contains model-driven units. A ChatAgent is the simplest
// one: it forwards the query to its model endpoint under fixed instructions
// and returns the generation verbatim. Flows compose agents; agents talk to
// models.
package agent

import (
	"context"
	"maps"

	"github.com/hupe1980/flowmesh/core"
)

// ChatOptions configure a ChatAgent.
type ChatOptions struct {
	// Description is the human-readable summary shown to coordinating
	// units.
	Description string

	// Instructions are passed to the model endpoint as system-level
	// guidance on every call.
	Instructions string

	// Stream requests incremental delivery from the model endpoint.
	Stream bool
}

// ChatAgent is a single-model conversational unit.
type ChatAgent struct {
	core.BaseUnit
	model string
	opts  ChatOptions
}

// NewChatAgent constructs a ChatAgent bound to one model endpoint. The
// endpoint is the agent's only permitted callee.
func NewChatAgent(name, model string, optFns ...func(o *ChatOptions)) *ChatAgent {
	opts := ChatOptions{
		Description: "A conversational agent",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ChatAgent{
		BaseUnit: core.NewBaseUnit(name, core.KindAgent),
		model:    model,
		opts:     opts,
	}
	a.SetDescription(opts.Description)
	a.SetPermittedCallees(model)
	return a
}

// WithInstructions sets the system-level guidance sent with every query.
func WithInstructions(instructions string) func(o *ChatOptions) {
	return func(o *ChatOptions) { o.Instructions = instructions }
}

// WithDescription overrides the default agent description.
func WithDescription(description string) func(o *ChatOptions) {
	return func(o *ChatOptions) { o.Description = description }
}

// WithStreaming requests incremental output from the model endpoint.
func WithStreaming() func(o *ChatOptions) {
	return func(o *ChatOptions) { o.Stream = true }
}

// Execute implements core.Unit by routing the query to the agent's model
// endpoint.
func (a *ChatAgent) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	extra := map[string]any{}
	maps.Copy(extra, req.Arguments.Extra)
	if a.opts.Instructions != "" {
		extra["instructions"] = a.opts.Instructions
	}
	if a.opts.Stream {
		extra["stream"] = true
	}

	args := req.Arguments
	args.Extra = extra

	return req.Call(ctx, a.model, args), nil
}
