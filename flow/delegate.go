package flow

import (
	"context"
	"fmt"

	"github.com/hupe1980/flowmesh/core"
)

// SelectFunc dynamically picks the callee and arguments for a delegation.
// It receives the incoming request and returns the nested call to issue.
type SelectFunc func(ctx context.Context, req *core.Request) (callee string, args core.Arguments, err error)

// DelegateFlow is a stateless pass-through: it issues exactly one nested
// call, either to a fixed designated callee or to whatever a caller-supplied
// selector picks, and returns that call's response verbatim.
//
// DelegateFlow is the building block for custom fixed pipelines that need no
// generic strategy. There are no retries; a nested error propagates as this
// flow's own failure.
type DelegateFlow struct {
	core.BaseUnit
	callee   string
	selector SelectFunc
}

// DelegateOption customizes DelegateFlow behavior.
type DelegateOption func(*DelegateFlow)

// WithSelector installs a dynamic callee/argument selector. A flow with a
// selector routes wherever the selector points, so its permitted-callee list
// stays unrestricted unless set explicitly.
func WithSelector(fn SelectFunc) DelegateOption {
	return func(f *DelegateFlow) { f.selector = fn }
}

// NewDelegateFlow creates a delegation flow around a fixed callee. Pass an
// empty callee together with WithSelector for fully dynamic routing.
func NewDelegateFlow(name, callee string, opts ...DelegateOption) *DelegateFlow {
	f := &DelegateFlow{
		BaseUnit: core.NewBaseUnit(name, core.KindFlow),
		callee:   callee,
	}

	for _, o := range opts {
		o(f)
	}

	if f.selector == nil && callee != "" {
		f.SetPermittedCallees(callee)
	}

	return f
}

// Execute implements core.Unit. The nested response, including its failure
// state, is handed back unchanged.
func (f *DelegateFlow) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	callee, args := f.callee, req.Arguments

	if f.selector != nil {
		var err error
		callee, args, err = f.selector(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("delegate flow %q selector: %w", f.Name(), err)
		}
	}
	if callee == "" {
		return nil, fmt.Errorf("delegate flow %q has no callee", f.Name())
	}

	return req.Call(ctx, callee, args), nil
}
