package model

import (
	"context"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/flowmesh/core"
)

// EndpointOptions configure an Endpoint.
type EndpointOptions struct {
	// MaxInFlight bounds the number of generations running at once. Calls
	// beyond the bound queue on the semaphore rather than failing.
	MaxInFlight int64
}

// Endpoint exposes a Generator as a callable unit. It is the leaf every
// agent and flow ultimately routes text generation to.
//
// Concurrency: the semaphore admits at most MaxInFlight generations;
// waiting honors the caller's context.
type Endpoint struct {
	core.BaseUnit
	gen Generator
	sem *semaphore.Weighted
}

// NewEndpoint wraps a Generator as a registry unit.
func NewEndpoint(name string, gen Generator, optFns ...func(o *EndpointOptions)) *Endpoint {
	opts := EndpointOptions{
		MaxInFlight: 8,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := &Endpoint{
		BaseUnit: core.NewBaseUnit(name, core.KindModel),
		gen:      gen,
		sem:      semaphore.NewWeighted(opts.MaxInFlight),
	}
	info := gen.Info()
	e.SetDescription("Model endpoint backed by " + info.Provider + "/" + info.Name)
	return e
}

// WithMaxInFlight sets the concurrent generation bound.
func WithMaxInFlight(n int64) func(o *EndpointOptions) {
	return func(o *EndpointOptions) { o.MaxInFlight = n }
}

// Execute implements core.Unit. A true "stream" argument switches the
// response to incremental delivery; otherwise chunks are collected into a
// single output string. A streaming response reports a generator failure
// through State and Err once its stream is drained.
func (e *Endpoint) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	genReq := Request{Query: req.Arguments.Query}
	if inst, ok := req.Arguments.Extra["instructions"].(string); ok {
		genReq.Instructions = inst
	}
	if stream, ok := req.Arguments.Extra["stream"].(bool); ok {
		genReq.Stream = stream
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	chunks, errCh := e.gen.Generate(ctx, genReq)

	if genReq.Stream {
		out := make(chan string, 16)
		resp := &core.Response{
			State:   core.StateCompleted,
			Stream:  out,
			Context: req.Context,
		}
		// State and Err are finalized before the stream closes: a caller that
		// reassembles via Text sees a mid-stream generator failure instead of
		// a silently truncated completion.
		go func() {
			defer e.sem.Release(1)
			defer close(out)
			for chunk := range chunks {
				select {
				case <-ctx.Done():
					resp.State = core.StateCanceled
					resp.Err = ctx.Err()
					return
				case out <- chunk.Text:
				}
			}
			if err := <-errCh; err != nil {
				resp.State = core.StateFailed
				resp.Err = err
			}
		}()
		return resp, nil
	}

	defer e.sem.Release(1)

	var sb strings.Builder
	for chunk := range chunks {
		sb.WriteString(chunk.Text)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	return core.NewCompleted(sb.String(), req.Context), nil
}
