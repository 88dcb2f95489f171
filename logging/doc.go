// Package logging provides a minimal logging interface and adapters for FlowMesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the router, flows and runtime use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - MeshLogger with trace/request/unit contextual helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(nil)
//	rt := runtime.New(reg, func(o *runtime.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
