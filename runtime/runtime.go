// Package runtime is the top-level entry point of a FlowMesh deployment. A
// Runtime owns the unit registry, the router, the process-wide global state
// and the group store, and turns external payloads into root routed calls.
package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/google/uuid"

	"github.com/hupe1980/flowmesh/attachment"
	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/logging"
	"github.com/hupe1980/flowmesh/registry"
	"github.com/hupe1980/flowmesh/router"
	"github.com/hupe1980/flowmesh/store"
)

// Options configure a Runtime.
type Options struct {
	// Master names the unit that receives payloads carrying no explicit
	// callee.
	Master string

	// CallTimeout bounds every routed call. Zero means no limit.
	CallTimeout time.Duration

	// Recorder receives one lineage edge per routed call.
	Recorder func(router.Edge)

	// Logger receives runtime and router diagnostics. Defaults to a
	// no-op logger.
	Logger logging.Logger
}

// Payload is one external request handed to the runtime.
type Payload struct {
	// Query is the natural-language task.
	Query string

	// Attachments are references resolvable through the attachment store.
	Attachments []string

	// AttachmentData carries inline attachment bytes to persist under the
	// payload's group before execution. Keys become attachment references.
	AttachmentData map[string][]byte

	// Callee overrides the master unit as the entry target.
	Callee string

	// GroupID places the trace in an explicit group. Takes precedence
	// over FromTraceID.
	GroupID string

	// FromTraceID continues the group of an earlier trace. Unknown ids
	// start a fresh group.
	FromTraceID string

	// RequestID is an external correlation id. Empty means the runtime
	// assigns one.
	RequestID string

	// Extra carries structured arguments for the entry unit.
	Extra map[string]any
}

// Runtime wires registry, router and shared state into a callable system.
type Runtime struct {
	registry    *registry.Registry
	router      *router.Router
	global      *haxmap.Map[string, any]
	groups      *store.GroupStore
	attachments *attachment.InMemoryStore
	master      string
	logger      logging.Logger
}

// New builds a Runtime over an already populated registry.
func New(reg *registry.Registry, optFns ...func(o *Options)) *Runtime {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	r := router.New(reg, func(o *router.Options) {
		o.CallTimeout = opts.CallTimeout
		o.Recorder = opts.Recorder
		o.Logger = opts.Logger
	})

	return &Runtime{
		registry:    reg,
		router:      r,
		global:      haxmap.New[string, any](),
		groups:      store.NewGroupStore(),
		attachments: attachment.NewInMemoryStore(),
		master:      opts.Master,
		logger:      opts.Logger,
	}
}

// WithMaster names the default entry unit.
func WithMaster(name string) func(o *Options) {
	return func(o *Options) { o.Master = name }
}

// WithCallTimeout bounds every routed call.
func WithCallTimeout(d time.Duration) func(o *Options) {
	return func(o *Options) { o.CallTimeout = d }
}

// WithRecorder installs a lineage edge recorder.
func WithRecorder(rec func(router.Edge)) func(o *Options) {
	return func(o *Options) { o.Recorder = rec }
}

// WithLogger installs a logger for runtime and router diagnostics.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Chat executes one payload to completion and returns the final response.
// Every invocation starts a fresh trace; group membership follows the
// payload's GroupID, then FromTraceID, then defaults to a group of its own.
func (rt *Runtime) Chat(ctx context.Context, payload Payload) *core.Response {
	callee := payload.Callee
	if callee == "" {
		callee = rt.master
	}
	if callee == "" {
		err := fmt.Errorf("runtime: payload names no callee and no master unit is configured")
		return core.NewFailed(err, nil)
	}

	traceID := uuid.New().String()
	groupID := rt.resolveGroup(traceID, payload)
	rt.groups.BindTrace(traceID, groupID)

	for id, data := range payload.AttachmentData {
		if err := rt.attachments.Save(groupID, id, data); err != nil {
			return core.NewFailed(fmt.Errorf("runtime: saving attachment %q: %w", id, err), nil)
		}
	}

	args := core.Arguments{
		Query:       payload.Query,
		Attachments: attachmentRefs(payload),
		Extra:       payload.Extra,
	}
	root := core.NewContext(payload.RequestID, traceID, groupID, rt.groups.Group(groupID), rt.global, args)

	rt.logger.Info("runtime: handling payload",
		"callee", callee, "trace_id", traceID, "group_id", groupID, "request_id", root.RequestID)

	return rt.router.Call(ctx, "", callee, args, root)
}

// resolveGroup picks the group a new trace runs under.
func (rt *Runtime) resolveGroup(traceID string, payload Payload) string {
	if payload.GroupID != "" {
		return payload.GroupID
	}
	if payload.FromTraceID != "" {
		if g, ok := rt.groups.GroupForTrace(payload.FromTraceID); ok {
			return g
		}
		rt.logger.Warn("runtime: unknown continuation trace, starting fresh group",
			"from_trace_id", payload.FromTraceID)
	}
	return traceID
}

func attachmentRefs(payload Payload) []string {
	refs := append([]string(nil), payload.Attachments...)
	for id := range payload.AttachmentData {
		refs = append(refs, id)
	}
	return refs
}

// GlobalData returns a snapshot of the process-wide shared state.
func (rt *Runtime) GlobalData() map[string]any {
	snapshot := make(map[string]any)
	rt.global.ForEach(func(k string, v any) bool {
		snapshot[k] = v
		return true
	})
	return snapshot
}

// Attachments exposes the attachment store for units that resolve
// references to bytes.
func (rt *Runtime) Attachments() *attachment.InMemoryStore { return rt.attachments }

// Registry exposes the unit registry, e.g. for introspection endpoints.
func (rt *Runtime) Registry() *registry.Registry { return rt.registry }

// Close tears down the registry's units and sources.
func (rt *Runtime) Close(ctx context.Context) error {
	return rt.registry.Close(ctx)
}
