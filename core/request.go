package core

import (
	"context"
	"fmt"
	"strings"
)

// State is the terminal condition of a call.
type State int

const (
	// StateCompleted marks a successful call whose Output is valid.
	StateCompleted State = iota
	// StateFailed marks a call that ended with a classified error.
	StateFailed
	// StateCanceled marks a call abandoned through context cancellation.
	StateCanceled
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Router dispatches a call to a named unit on behalf of a caller. It is the
// only component allowed to cross unit boundaries: it resolves the callee,
// enforces the caller's permitted-callee list, derives the child Context and
// converts unit errors into Failed responses instead of letting them escape.
//
// An empty caller name is unrestricted and is used for top-level entry calls.
type Router interface {
	Call(ctx context.Context, caller, callee string, args Arguments, parent *Context) *Response
}

// Request pairs a callee unit name with arguments and the Context derived
// for this hop. The Router reference lets the executing unit issue nested
// calls under its own name without holding the registry itself.
type Request struct {
	// Caller is the name of the unit that issued this call ("" for the
	// runtime entry point).
	Caller string

	// Callee is the name of the unit executing this request.
	Callee string

	// Arguments is the input payload, also reachable via Context.Arguments.
	Arguments Arguments

	// Context is the identity/state envelope for this hop.
	Context *Context

	// Router issues nested calls on behalf of this unit.
	Router Router
}

// Call issues a nested call with the executing unit as the caller and this
// request's context as the parent.
func (r *Request) Call(ctx context.Context, callee string, args Arguments) *Response {
	return r.Router.Call(ctx, r.Callee, callee, args, r.Context)
}

// Response is the uniform result of any call. Exactly one of Output or
// Stream carries the payload; Err is set when State is not StateCompleted.
type Response struct {
	// State is the terminal condition of the call.
	State State

	// Output is the structured result, commonly text.
	Output any

	// Stream, when non-nil, delivers the output as a lazy, finite,
	// non-restartable sequence of text fragments. Callers needing the
	// whole text reassemble it (see Text). The producer finalizes State
	// and Err before closing the stream, so both are valid to inspect
	// once the stream is drained.
	Stream <-chan string

	// Context as observed at return. A callee may hand back a rewritten
	// context (e.g. a rewritten query) for the caller to inspect.
	Context *Context

	// Err carries the classified failure when State is StateFailed.
	Err error
}

// NewCompleted builds a successful response.
func NewCompleted(output any, c *Context) *Response {
	return &Response{State: StateCompleted, Output: output, Context: c}
}

// NewFailed builds a failed response carrying the classified error. The
// error text doubles as the output so failures surface as readable text at
// the entry point.
func NewFailed(err error, c *Context) *Response {
	return &Response{State: StateFailed, Output: err.Error(), Context: c, Err: err}
}

// Text renders the response payload as a string. A pending stream is drained
// and cached into Output first, so Text is safe to call more than once even
// though the stream itself is not restartable.
func (r *Response) Text() string {
	if r.Stream != nil {
		var b strings.Builder
		for fragment := range r.Stream {
			b.WriteString(fragment)
		}
		r.Output = b.String()
		r.Stream = nil
	}
	if r.Output == nil {
		return ""
	}
	if s, ok := r.Output.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", r.Output)
}
