// Package router implements the single component allowed to cross unit
// boundaries. Given a caller, a callee name and a parent Context, it resolves
// the callee in the registry, enforces the caller's permitted-callee list,
// derives the child Context, invokes the unit, records the lineage edge and
// converts any unit-level failure into a classified Failed response.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/logging"
	"github.com/hupe1980/flowmesh/registry"
)

// Edge is the (caller, callee, timing, state) lineage record emitted for
// every routed call. It feeds tracing/logging collaborators and is not
// required for correctness.
type Edge struct {
	Caller string
	Callee string

	// RequestID is the callee hop's id; CallerRequestID is the parent
	// hop's, so edges link up into the call tree.
	RequestID       string
	CallerRequestID string

	TraceID  string
	GroupID  string
	Start    time.Time
	Duration time.Duration
	State    core.State
}

// Options configures a Router instance.
type Options struct {
	// CallTimeout bounds each single nested call. Zero disables the
	// deadline. A timeout is a local failure of that call only; it is
	// reported to the caller and never cancels unrelated calls.
	CallTimeout time.Duration

	// Recorder receives one Edge per routed call.
	Recorder func(Edge)

	// Logger receives per-call records. A logger implementing
	// logging.RoutedCallLogger gets structured routed-call events instead
	// of debug lines. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Router dispatches calls to named units.
type Router struct {
	registry *registry.Registry
	timeout  time.Duration
	recorder func(Edge)
	logger   logging.Logger
}

// New creates a Router over the given registry.
func New(reg *registry.Registry, optFns ...func(o *Options)) *Router {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Router{
		registry: reg,
		timeout:  opts.CallTimeout,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
}

// Call implements core.Router.
//
// The returned response is never nil and Call never panics past its own
// boundary: unit errors and panics are converted into Failed responses so a
// parent flow can decide whether a nested failure is fatal or recoverable.
func (r *Router) Call(ctx context.Context, caller, callee string, args core.Arguments, parent *core.Context) *core.Response {
	unit, ok := r.registry.Get(callee)
	if !ok {
		return r.finish(caller, callee, parent, parent, time.Now(), core.NewFailed(core.NewUnknownUnitError(callee), parent))
	}

	if err := r.checkPermission(caller, callee); err != nil {
		return r.finish(caller, callee, parent, parent, time.Now(), core.NewFailed(err, parent))
	}

	child := parent.DeriveChild(args)
	req := &core.Request{
		Caller:    caller,
		Callee:    callee,
		Arguments: args,
		Context:   child,
		Router:    r,
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := r.invoke(callCtx, unit, req)

	switch {
	case err != nil:
		resp = core.NewFailed(r.classify(callCtx, callee, err), child)
	case resp == nil:
		resp = core.NewFailed(core.NewNestedError(callee, fmt.Errorf("unit %q returned no response", callee)), child)
	case resp.Context == nil:
		resp.Context = child
	}

	return r.finish(caller, callee, parent, resp.Context, start, resp)
}

// invoke executes the unit, converting a panic into an error so no unit
// fault crosses the router boundary.
func (r *Router) invoke(ctx context.Context, unit core.Unit, req *core.Request) (resp *core.Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = nil
			err = fmt.Errorf("unit %q panicked: %v", req.Callee, rec)
		}
	}()
	return unit.Execute(ctx, req)
}

// checkPermission enforces the caller's permitted-callee list. Callers with
// an empty/unset list are unrestricted, as is the runtime entry point ("").
func (r *Router) checkPermission(caller, callee string) error {
	if caller == "" {
		return nil
	}
	callerUnit, ok := r.registry.Get(caller)
	if !ok {
		return nil
	}
	permitted := callerUnit.PermittedCallees()
	if len(permitted) == 0 {
		return nil
	}
	for _, name := range permitted {
		if name == callee {
			return nil
		}
	}
	return core.NewPermissionDeniedError(caller, callee)
}

// classify maps a raw unit error onto the taxonomy. Already-classified
// errors pass through; a deadline hit becomes a Timeout; everything else is
// wrapped as a NestedFailure preserving the cause.
func (r *Router) classify(ctx context.Context, callee string, err error) error {
	var classified *core.Error
	if errors.As(err, &classified) {
		return err
	}
	if r.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.NewTimeoutError(callee, r.timeout)
	}
	return core.NewNestedError(callee, err)
}

// finish records the lineage edge and returns the response.
func (r *Router) finish(caller, callee string, parent, c *core.Context, start time.Time, resp *core.Response) *core.Response {
	edge := Edge{
		Caller:   caller,
		Callee:   callee,
		Start:    start,
		Duration: time.Since(start),
		State:    resp.State,
	}
	if c != nil {
		edge.RequestID = c.RequestID
		edge.TraceID = c.TraceID
		edge.GroupID = c.GroupID
	}
	if parent != nil {
		edge.CallerRequestID = parent.RequestID
	}

	if r.recorder != nil {
		r.recorder(edge)
	}
	if rl, ok := r.logger.(logging.RoutedCallLogger); ok {
		rl.LogRoutedCall(caller, callee, edge.Duration, resp.State == core.StateCompleted, resp.Err)
	} else {
		r.logger.Debug("routed call",
			"caller", caller,
			"callee", callee,
			"state", resp.State.String(),
			"duration", edge.Duration,
		)
	}

	return resp
}
