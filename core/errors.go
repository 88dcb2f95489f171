package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failure for uniform downstream handling.
type ErrorKind string

const (
	// ErrUnknownUnit means routing targeted a name absent from the registry.
	ErrUnknownUnit ErrorKind = "unknown_unit"
	// ErrPermissionDenied means the callee is outside the caller's
	// non-empty permitted-callee list.
	ErrPermissionDenied ErrorKind = "permission_denied"
	// ErrParseFailure means a structured output could not be interpreted
	// into the expected shape. Retryable distinguishes ambiguous but
	// recoverable format errors from irrecoverable ones.
	ErrParseFailure ErrorKind = "parse_failure"
	// ErrRoundsExceeded means a plan/replan loop hit its liveness bound.
	ErrRoundsExceeded ErrorKind = "rounds_exceeded"
	// ErrNestedFailure wraps an error surfaced by a nested call.
	ErrNestedFailure ErrorKind = "nested_failure"
	// ErrTimeout means a single nested call exceeded its deadline.
	ErrTimeout ErrorKind = "timeout"
)

// Error is the classified failure type crossing unit boundaries.
type Error struct {
	Kind      ErrorKind `json:"kind"`
	Unit      string    `json:"unit,omitempty"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("%s in %s: %s", e.Kind, e.Unit, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the original cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Cause }

// NewUnknownUnitError reports a routing target absent from the registry.
func NewUnknownUnitError(callee string) *Error {
	return &Error{Kind: ErrUnknownUnit, Unit: callee, Message: fmt.Sprintf("no unit named %q is registered", callee)}
}

// NewPermissionDeniedError reports a callee outside the caller's permitted list.
func NewPermissionDeniedError(caller, callee string) *Error {
	return &Error{Kind: ErrPermissionDenied, Unit: caller, Message: fmt.Sprintf("unit %q is not permitted to call %q", caller, callee)}
}

// NewParseError reports an uninterpretable structured output.
func NewParseError(unit, message string, retryable bool) *Error {
	return &Error{Kind: ErrParseFailure, Unit: unit, Message: message, Retryable: retryable}
}

// NewRoundsExceededError reports a plan/replan loop hitting its bound.
func NewRoundsExceededError(unit string, rounds int) *Error {
	return &Error{Kind: ErrRoundsExceeded, Unit: unit, Message: fmt.Sprintf("max replan rounds exceeded (%d)", rounds)}
}

// NewNestedError wraps an error surfaced by a nested call, preserving the
// original via Unwrap so the innermost kind stays reachable.
func NewNestedError(unit string, cause error) *Error {
	return &Error{Kind: ErrNestedFailure, Unit: unit, Message: cause.Error(), Cause: cause}
}

// NewTimeoutError reports a nested call exceeding its deadline.
func NewTimeoutError(unit string, limit time.Duration) *Error {
	return &Error{Kind: ErrTimeout, Unit: unit, Message: fmt.Sprintf("call exceeded deadline of %s", limit)}
}

// KindOf returns the outermost classified kind of err, or "" when err is not
// a classified error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// RootKind returns the innermost classified kind of err, unwrapping nested
// failures so callers can branch on the original cause.
func RootKind(err error) ErrorKind {
	kind := ErrorKind("")
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		kind = e.Kind
		err = e.Cause
	}
	return kind
}
