// Package store houses the group-scoped shared state backing conversational
// continuity. The runtime binds every trace to a group; traces in the same
// group see one shared key/value map, so later requests can build on state
// written by earlier ones.
//
// Add durable backends (Redis, Postgres, etc.) in sub-packages without
// changing any calling code; only the wiring layer decides which
// implementation to instantiate.
package store

import (
	"sync"

	"github.com/alphadose/haxmap"
)

// GroupStore keeps per-group shared maps and the trace-to-group binding. It
// is safe for concurrent use; the group maps themselves are lock-free.
type GroupStore struct {
	mu     sync.RWMutex
	groups map[string]*haxmap.Map[string, any]
	traces map[string]string // trace id -> group id
}

// NewGroupStore constructs an empty in-memory group store.
func NewGroupStore() *GroupStore {
	return &GroupStore{
		groups: make(map[string]*haxmap.Map[string, any]),
		traces: make(map[string]string),
	}
}

// Group returns the shared map for the given group, creating it lazily. All
// callers for the same id receive the identical map instance.
func (s *GroupStore) Group(groupID string) *haxmap.Map[string, any] {
	s.mu.RLock()
	g, ok := s.groups[groupID]
	s.mu.RUnlock()
	if ok {
		return g
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[groupID]; ok {
		return g
	}
	g = haxmap.New[string, any]()
	s.groups[groupID] = g
	return g
}

// BindTrace records which group a trace executed under.
func (s *GroupStore) BindTrace(traceID, groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[traceID] = groupID
}

// GroupForTrace returns the group id a trace was bound to, if any.
func (s *GroupStore) GroupForTrace(traceID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.traces[traceID]
	return g, ok
}

// Len reports the number of live groups.
func (s *GroupStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups)
}
