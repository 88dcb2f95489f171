package core

import (
	"github.com/alphadose/haxmap"
	"github.com/google/uuid"
)

// Arguments is the per-hop input payload for a single call. It is immutable
// by convention: units derive new Arguments for nested calls instead of
// mutating the ones they received.
type Arguments struct {
	// Query is the primary textual input for this hop.
	Query string `json:"query"`

	// Attachments holds opaque file references travelling with the query.
	Attachments []string `json:"attachments,omitempty"`

	// Extra carries variant-specific options (e.g. "stream" for model
	// endpoints, structured arguments for remote tools).
	Extra map[string]any `json:"extra,omitempty"`
}

// WithQuery returns a copy of the arguments with the query replaced. The
// Attachments slice and Extra map are shared with the receiver.
func (a Arguments) WithQuery(q string) Arguments {
	a.Query = q
	return a
}

// Context is the identity and shared-state envelope threaded through every
// nested call.
//
// Identity fields (RequestID, TraceID, GroupID) are immutable once the
// context is constructed. The data bags have three distinct scopes:
//
//   - Arguments: owned by this hop alone, never inherited by children
//   - GroupData: shared by reference with every request in the same group,
//     including concurrent siblings
//   - GlobalData: shared by reference with every request in the runtime
//
// GroupData and GlobalData are concurrent maps; individual reads and writes
// are safe from any number of goroutines. Read-modify-write sequences give
// last-writer-wins semantics, which callers must treat as expected behavior
// rather than a defect.
type Context struct {
	// RequestID uniquely identifies this call. Fresh per hop.
	RequestID string

	// TraceID identifies the conversation this call belongs to.
	TraceID string

	// GroupID keys the shared GroupData store. Defaults to the trace id
	// when the caller did not supply one.
	GroupID string

	// GroupData is shared by identity across all requests with the same
	// group id.
	GroupData *haxmap.Map[string, any]

	// GlobalData is shared by identity across the whole runtime.
	GlobalData *haxmap.Map[string, any]

	// Arguments is the input payload for this hop only.
	Arguments Arguments
}

// NewContext constructs a root context. An empty requestID generates a fresh
// one; nil data maps are replaced with empty stores so accessors never have
// to nil-check.
func NewContext(requestID, traceID, groupID string, group, global *haxmap.Map[string, any], args Arguments) *Context {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if groupID == "" {
		groupID = traceID
	}
	if group == nil {
		group = haxmap.New[string, any]()
	}
	if global == nil {
		global = haxmap.New[string, any]()
	}
	return &Context{
		RequestID:  requestID,
		TraceID:    traceID,
		GroupID:    groupID,
		GroupData:  group,
		GlobalData: global,
		Arguments:  args,
	}
}

// DeriveChild creates the context for a nested call: fresh request id, the
// parent's trace and group identity, the same backing stores for group and
// global data, and the callee's own arguments.
func (c *Context) DeriveChild(args Arguments) *Context {
	return &Context{
		RequestID:  uuid.NewString(),
		TraceID:    c.TraceID,
		GroupID:    c.GroupID,
		GroupData:  c.GroupData,
		GlobalData: c.GlobalData,
		Arguments:  args,
	}
}

// GetGroup returns the group-scoped value for key and whether it was present.
func (c *Context) GetGroup(key string) (any, bool) {
	if c.GroupData == nil {
		return nil, false
	}
	return c.GroupData.Get(key)
}

// GetGroupOr returns the group-scoped value for key, or def when absent.
func (c *Context) GetGroupOr(key string, def any) any {
	if v, ok := c.GetGroup(key); ok {
		return v
	}
	return def
}

// SetGroup stores a group-scoped value, visible to every request sharing the
// group id.
func (c *Context) SetGroup(key string, value any) {
	if c.GroupData == nil {
		c.GroupData = haxmap.New[string, any]()
	}
	c.GroupData.Set(key, value)
}

// GetGlobal returns the runtime-scoped value for key and whether it was present.
func (c *Context) GetGlobal(key string) (any, bool) {
	if c.GlobalData == nil {
		return nil, false
	}
	return c.GlobalData.Get(key)
}

// GetGlobalOr returns the runtime-scoped value for key, or def when absent.
func (c *Context) GetGlobalOr(key string, def any) any {
	if v, ok := c.GetGlobal(key); ok {
		return v
	}
	return def
}

// SetGlobal stores a runtime-scoped value, visible to every request in the
// runtime's lifetime.
func (c *Context) SetGlobal(key string, value any) {
	if c.GlobalData == nil {
		c.GlobalData = haxmap.New[string, any]()
	}
	c.GlobalData.Set(key, value)
}
