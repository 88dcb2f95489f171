// Package flowmesh provides a high-level façade over the unit registry,
// router and runtime, enabling rapid construction of multi-agent execution
// systems. Most applications interact with this package by:
//  1. Creating a FlowMesh via New() (optionally naming a master unit)
//  2. Registering tools, model endpoints, agents and flows (or expanding
//     MCP bundles)
//  3. Submitting payloads via Chat()
//
// The façade delegates routing to router.Router and session plumbing to
// runtime.Runtime while keeping setup and usage ergonomics concise. All
// defaults are safe for local development and testing; production
// deployments typically supply a structured logger and a call timeout.
package flowmesh

import (
	"context"
	"time"

	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/logging"
	"github.com/hupe1980/flowmesh/registry"
	"github.com/hupe1980/flowmesh/router"
	"github.com/hupe1980/flowmesh/runtime"
)

// Options configures the FlowMesh instance.
type Options struct {
	// Master names the unit that receives payloads carrying no explicit
	// callee.
	Master string

	// CallTimeout bounds every routed call. Zero means no limit.
	CallTimeout time.Duration

	// Recorder receives one lineage edge per routed call.
	Recorder func(router.Edge)

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// FlowMesh is the high-level façade aggregating the registry and runtime.
type FlowMesh struct {
	opts     Options
	registry *registry.Registry
	runtime  *runtime.Runtime
}

// New creates a new FlowMesh instance with optional overrides.
func New(optFns ...func(o *Options)) *FlowMesh {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	reg := registry.New()
	rt := runtime.New(reg, func(o *runtime.Options) {
		o.Master = opts.Master
		o.CallTimeout = opts.CallTimeout
		o.Recorder = opts.Recorder
		o.Logger = opts.Logger
	})

	return &FlowMesh{opts: opts, registry: reg, runtime: rt}
}

// Register adds units to the registry. Names must be unique across the
// whole unit space.
func (m *FlowMesh) Register(units ...core.Unit) error {
	return m.registry.RegisterAll(units...)
}

// Expand registers every unit produced by a composite source, such as an
// MCP bundle.
func (m *FlowMesh) Expand(ctx context.Context, src registry.Source) error {
	return m.registry.Expand(ctx, src)
}

// Chat executes one payload to completion and returns the final response.
func (m *FlowMesh) Chat(ctx context.Context, payload runtime.Payload) *core.Response {
	return m.runtime.Chat(ctx, payload)
}

// GlobalData returns a snapshot of the process-wide shared state.
func (m *FlowMesh) GlobalData() map[string]any {
	return m.runtime.GlobalData()
}

// Runtime exposes the underlying runtime for advanced wiring, such as
// attachment access.
func (m *FlowMesh) Runtime() *runtime.Runtime { return m.runtime }

// Close tears down registered units and sources.
func (m *FlowMesh) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}
