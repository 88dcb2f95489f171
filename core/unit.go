package core

import (
	"context"
	"fmt"
	"sync"
)

// Kind categorizes a unit implementation. The set is closed: every callable
// participant in the orchestration graph is one of these four variants.
type Kind string

const (
	// KindTool is a leaf capability executing native code.
	KindTool Kind = "tool"
	// KindModel is a proxy for a model endpoint.
	KindModel Kind = "model"
	// KindAgent is a model-backed reasoning unit.
	KindAgent Kind = "agent"
	// KindFlow is a fixed orchestration strategy over other units.
	KindFlow Kind = "flow"
)

// Unit is the common contract every callable thing implements: accept a
// Context-bearing request, produce a Context-bearing response, and declare
// which other unit names it may route to.
//
// Execute returns an error for failures the unit could not classify itself;
// the Router converts it into a Failed response so errors never propagate
// past a unit boundary as raw faults. Units that classify their own failures
// return a Failed response and a nil error.
type Unit interface {
	// Name returns the unique identifier used for routing.
	Name() string

	// Description returns a human-readable summary of the unit's purpose.
	Description() string

	// Kind returns the capability variant tag.
	Kind() Kind

	// PermittedCallees lists the unit names this unit may route to. An
	// empty list means unrestricted, used for top-level master units.
	PermittedCallees() []string

	// Execute processes one request.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// BaseUnit bundles the identity and permission bookkeeping shared by all
// unit variants. Embed it and supply an Execute method to satisfy Unit.
// All exported methods are goroutine-safe.
type BaseUnit struct {
	name string
	kind Kind

	mu          sync.RWMutex
	description string
	permitted   []string
}

// NewBaseUnit constructs a BaseUnit with a generated description
// (customizable via SetDescription).
func NewBaseUnit(name string, kind Kind) BaseUnit {
	return BaseUnit{
		name:        name,
		kind:        kind,
		description: fmt.Sprintf("%s unit %s", kind, name),
	}
}

// Name returns the unique unit name.
func (b *BaseUnit) Name() string { return b.name }

// Kind returns the capability variant tag.
func (b *BaseUnit) Kind() Kind { return b.kind }

// Description returns the unit's description.
func (b *BaseUnit) Description() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.description
}

// SetDescription updates the unit's description.
func (b *BaseUnit) SetDescription(desc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.description = desc
}

// PermittedCallees returns a copy of the permitted-callee list.
func (b *BaseUnit) PermittedCallees() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.permitted))
	copy(out, b.permitted)
	return out
}

// SetPermittedCallees replaces the permitted-callee list. Callees may be
// forward references: names are resolved at call time, not here.
func (b *BaseUnit) SetPermittedCallees(names ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.permitted = append([]string(nil), names...)
}

// Permit appends names to the permitted-callee list.
func (b *BaseUnit) Permit(names ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.permitted = append(b.permitted, names...)
}
