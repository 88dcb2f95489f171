// Package tool implements the leaf-tool subsystem: native Go functions
// exposed as callable units with consistent error handling. Tools terminate
// the routing recursion; they issue no nested calls of their own.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/flowmesh/core"
)

// Handler is the native function behind a FunctionTool. It receives the
// call's Context (for group/global state access) and the arguments, and
// returns an arbitrary JSON-serializable result.
type Handler func(ctx context.Context, c *core.Context, args core.Arguments) (any, error)

// FunctionTool is a generic adapter that exposes a plain Go function as a
// FlowMesh unit.
//
// Concurrency: a FunctionTool has no internal mutable state after
// construction and is safe for concurrent use as long as the wrapped
// function is.
type FunctionTool struct {
	core.BaseUnit
	handler Handler
}

// NewFunctionTool constructs a FunctionTool from an explicit handler.
//
// Example:
//
//	sum := tool.NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  func(_ context.Context, _ *core.Context, args core.Arguments) (any, error) {
//	    a, _ := args.Extra["a"].(float64)
//	    b, _ := args.Extra["b"].(float64)
//	    return a + b, nil
//	  },
//	)
func NewFunctionTool(name, description string, handler Handler) *FunctionTool {
	t := &FunctionTool{
		BaseUnit: core.NewBaseUnit(name, core.KindTool),
		handler:  handler,
	}
	if description != "" {
		t.SetDescription(description)
	}
	return t
}

// Execute implements core.Unit by invoking the wrapped function. Handler
// errors are returned for the Router to classify.
func (t *FunctionTool) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	if t.handler == nil {
		return nil, fmt.Errorf("tool %q has no handler", t.Name())
	}

	out, err := t.handler(ctx, req.Context, req.Arguments)
	if err != nil {
		return nil, err
	}

	return core.NewCompleted(out, req.Context), nil
}
