package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/flowmesh/core"
)

// FanOutFlow issues one nested call per permitted callee, simultaneously,
// with identical arguments, then waits for all of them before assembling the
// aggregate (a join barrier). Breadth over depth: per-branch latency does
// not compound, which suits consensus, redundancy and model-comparison
// setups.
//
// There is no cross-branch cancellation: one branch's failure or slowness
// never cancels its siblings. Under the default lenient policy a failing
// branch contributes its error text to the aggregate; strict mode fails the
// whole flow once every branch has finished.
type FanOutFlow struct {
	core.BaseUnit
	callees []string
	strict  bool
}

// FanOutOption customizes FanOutFlow behavior.
type FanOutOption func(*FanOutFlow)

// WithStrictFailures makes any single branch failure fail the whole flow.
// All branches are still awaited to completion first; work already started
// is never abandoned.
func WithStrictFailures() FanOutOption {
	return func(f *FanOutFlow) { f.strict = true }
}

// NewFanOutFlow creates a concurrent fan-out over the given callees. The
// callee list doubles as the flow's permitted-callee list.
func NewFanOutFlow(name string, callees []string, opts ...FanOutOption) *FanOutFlow {
	f := &FanOutFlow{
		BaseUnit: core.NewBaseUnit(name, core.KindFlow),
		callees:  append([]string(nil), callees...),
	}

	for _, o := range opts {
		o(f)
	}

	f.SetPermittedCallees(f.callees...)

	return f
}

// Execute implements core.Unit. Branch responses are aggregated in
// declaration order regardless of completion order, each prefixed with an
// explanation line naming the contributing callee.
func (f *FanOutFlow) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	if len(f.callees) == 0 {
		return nil, fmt.Errorf("fan-out flow %q has no callees", f.Name())
	}

	results := make([]*core.Response, len(f.callees))

	var wg sync.WaitGroup
	for i, callee := range f.callees {
		wg.Add(1)
		go func(i int, callee string) {
			defer wg.Done()
			results[i] = req.Call(ctx, callee, req.Arguments)
		}(i, callee)
	}
	wg.Wait()

	var firstErr error
	var b strings.Builder
	for i, resp := range results {
		text := resp.Text()
		if resp.State != core.StateCompleted {
			branchErr := resp.Err
			if branchErr == nil {
				// A unit may build a Failed response without an error value.
				branchErr = fmt.Errorf("callee %q failed: %s", f.callees[i], text)
			}
			if firstErr == nil {
				firstErr = branchErr
			}
			text = fmt.Sprintf("branch failed: %v", branchErr)
		}
		fmt.Fprintf(&b, "Response from %s:\n%s\n\n", f.callees[i], text)
	}

	if f.strict && firstErr != nil {
		return core.NewFailed(core.NewNestedError(f.Name(), firstErr), req.Context), nil
	}

	return core.NewCompleted(strings.TrimSpace(b.String()), req.Context), nil
}
