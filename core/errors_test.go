package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestError_Formatting(t *testing.T) {
	err := NewUnknownUnitError("ghost")
	assert.Contains(t, err.Error(), "unknown_unit")
	assert.Contains(t, err.Error(), "ghost")

	denied := NewPermissionDeniedError("worker", "admin_tool")
	assert.Contains(t, denied.Error(), "permission_denied")
	assert.Contains(t, denied.Error(), "admin_tool")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrTimeout, KindOf(NewTimeoutError("slow_tool", time.Second)))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestNestedError_PreservesOriginalKind(t *testing.T) {
	inner := NewParseError("planner", "not a JSON array", false)
	outer := NewNestedError("plan_flow", inner)

	assert.Equal(t, ErrNestedFailure, KindOf(outer))
	assert.Equal(t, ErrParseFailure, RootKind(outer))

	var classified *Error
	assert.True(t, errors.As(outer.Unwrap(), &classified))
	assert.Equal(t, ErrParseFailure, classified.Kind)
}

func TestParseError_RetryableFlag(t *testing.T) {
	soft := NewParseError("critic", "ambiguous verdict", true)
	hard := NewParseError("planner", "no steps found", false)

	assert.True(t, soft.Retryable)
	assert.False(t, hard.Retryable)
}

func TestRoundsExceededError(t *testing.T) {
	err := NewRoundsExceededError("plan_flow", 1)
	assert.Equal(t, ErrRoundsExceeded, KindOf(err))
	assert.Contains(t, err.Error(), "max replan rounds exceeded (1)")
}
