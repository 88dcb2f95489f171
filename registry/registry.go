// Package registry maintains the mapping from unique unit name to callable
// unit instance. It is built once at startup from a declarative list,
// validates name uniqueness before any request can be served, and expands
// composite declarations (sources) such as remote tool bundles into the
// individual named units they contribute.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/flowmesh/core"
)

// Source is a composite declaration that expands into multiple named units
// at registry build time, e.g. a remote tool bundle contributing one unit
// per remote capability.
type Source interface {
	// Name identifies the source itself (for logs and errors).
	Name() string

	// Units connects to whatever backs the source and returns the units
	// it contributes, in a stable order.
	Units(ctx context.Context) ([]core.Unit, error)
}

// Closer is implemented by units and sources that hold external resources
// (subprocesses, network sessions) needing teardown at shutdown.
type Closer interface {
	Close(ctx context.Context) error
}

// Registry owns every unit for its whole process lifetime. Units hold no
// ownership over each other, only name references, so forward references in
// permitted-callee lists are legal: names are resolved at call time.
type Registry struct {
	mu      sync.RWMutex
	units   map[string]core.Unit
	order   []string
	sources []Source
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{units: map[string]core.Unit{}}
}

// Register adds a single unit. A duplicate or empty name is a configuration
// error; it is reported immediately so misconfiguration surfaces before any
// request is served.
func (r *Registry) Register(u core.Unit) error {
	if u == nil {
		return errors.New("registry: cannot register nil unit")
	}
	name := u.Name()
	if name == "" {
		return errors.New("registry: unit has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.units[name]; exists {
		return fmt.Errorf("registry: duplicate unit name %q", name)
	}
	r.units[name] = u
	r.order = append(r.order, name)

	return nil
}

// RegisterAll adds units in order, stopping at the first configuration error.
func (r *Registry) RegisterAll(units ...core.Unit) error {
	for _, u := range units {
		if err := r.Register(u); err != nil {
			return err
		}
	}
	return nil
}

// Expand eagerly resolves a composite declaration and registers every unit
// it contributes. The source is retained so Close can tear it down.
func (r *Registry) Expand(ctx context.Context, src Source) error {
	units, err := src.Units(ctx)
	if err != nil {
		return fmt.Errorf("registry: expanding source %q: %w", src.Name(), err)
	}
	if err := r.RegisterAll(units...); err != nil {
		return err
	}

	r.mu.Lock()
	r.sources = append(r.sources, src)
	r.mu.Unlock()

	return nil
}

// Get resolves a unit by name.
func (r *Registry) Get(name string) (core.Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[name]
	return u, ok
}

// Names returns all registered unit names in declaration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports the number of registered units.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}

// Close tears down every unit and source holding external resources. All
// closers are attempted; errors are joined.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.RLock()
	closers := make([]Closer, 0, len(r.order)+len(r.sources))
	for _, name := range r.order {
		if c, ok := r.units[name].(Closer); ok {
			closers = append(closers, c)
		}
	}
	for _, src := range r.sources {
		if c, ok := src.(Closer); ok {
			closers = append(closers, c)
		}
	}
	r.mu.RUnlock()

	var errs []error
	for _, c := range closers {
		if err := c.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
