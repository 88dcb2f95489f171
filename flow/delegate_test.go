package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/flowmesh/core"
)

func TestDelegateFlow_FixedCallee(t *testing.T) {
	f := NewDelegateFlow("pipeline", "worker")
	r, root := newHarness(t, f, newFuncUnit("worker", func(_ context.Context, req *core.Request) (*core.Response, error) {
		return core.NewCompleted("handled: "+req.Arguments.Query, req.Context), nil
	}))

	resp := r.Call(context.Background(), "", "pipeline", core.Arguments{Query: "job"}, root)

	assert.Equal(t, core.StateCompleted, resp.State)
	assert.Equal(t, "handled: job", resp.Output)
	assert.Equal(t, []string{"worker"}, f.PermittedCallees())
}

func TestDelegateFlow_SelectorRewritesCall(t *testing.T) {
	selector := func(_ context.Context, req *core.Request) (string, core.Arguments, error) {
		return "worker_b", req.Arguments.WithQuery("rewritten " + req.Arguments.Query), nil
	}
	f := NewDelegateFlow("switch", "", WithSelector(selector))
	r, root := newHarness(t, f,
		textUnit("worker_a", "from a"),
		newFuncUnit("worker_b", func(_ context.Context, req *core.Request) (*core.Response, error) {
			return core.NewCompleted(req.Arguments.Query, req.Context), nil
		}),
	)

	resp := r.Call(context.Background(), "", "switch", core.Arguments{Query: "task"}, root)

	assert.Equal(t, "rewritten task", resp.Output)
	assert.Empty(t, f.PermittedCallees(), "dynamic delegation stays unrestricted")
}

func TestDelegateFlow_SelectorError(t *testing.T) {
	f := NewDelegateFlow("switch", "", WithSelector(func(_ context.Context, _ *core.Request) (string, core.Arguments, error) {
		return "", core.Arguments{}, errors.New("cannot decide")
	}))
	r, root := newHarness(t, f)

	resp := r.Call(context.Background(), "", "switch", core.Arguments{}, root)

	assert.Equal(t, core.StateFailed, resp.State)
	assert.Contains(t, resp.Err.Error(), "cannot decide")
}

func TestDelegateFlow_NestedFailurePropagates(t *testing.T) {
	f := NewDelegateFlow("pipeline", "broken")
	r, root := newHarness(t, f, newFuncUnit("broken", func(_ context.Context, _ *core.Request) (*core.Response, error) {
		return nil, errors.New("nope")
	}))

	resp := r.Call(context.Background(), "", "pipeline", core.Arguments{}, root)

	assert.Equal(t, core.StateFailed, resp.State)
	assert.Equal(t, core.ErrNestedFailure, core.KindOf(resp.Err))
}

func TestDelegateFlow_MissingCallee(t *testing.T) {
	f := NewDelegateFlow("pipeline", "")
	r, root := newHarness(t, f)

	resp := r.Call(context.Background(), "", "pipeline", core.Arguments{}, root)

	assert.Equal(t, core.StateFailed, resp.State)
	assert.Contains(t, resp.Err.Error(), "no callee")
}
