// Package attachment contains storage for request attachments. Attachments
// arrive as references on the entry payload; units resolve them through the
// store when they need the underlying bytes.
//
// The in-memory implementation here suits tests and single-process use.
// Durable backends (object stores, databases) can be added in sub-packages
// without touching calling code.
package attachment

import (
	"fmt"
	"sync"
)

// ErrNotFound is returned when an attachment for the given group / id pair
// does not exist in the underlying store.
var ErrNotFound = fmt.Errorf("attachment not found")

// InMemoryStore keeps all attachments in a nested map guarded by an RWMutex.
// Data is copied on save and retrieval to avoid accidental external mutation
// of internal buffers.
//
// Layout: groupID -> attachmentID -> raw bytes
type InMemoryStore struct {
	mu          sync.RWMutex
	attachments map[string]map[string][]byte
}

// NewInMemoryStore returns an empty in-memory attachment store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{attachments: make(map[string]map[string][]byte)}
}

// Save stores (or overwrites) the attachment bytes for the given group and
// id. The input slice is copied before storage.
func (s *InMemoryStore) Save(groupID, attachmentID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.attachments[groupID]; !exists {
		s.attachments[groupID] = make(map[string][]byte)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.attachments[groupID][attachmentID] = cp
	return nil
}

// Get returns a copy of the stored attachment bytes or ErrNotFound.
func (s *InMemoryStore) Get(groupID, attachmentID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.attachments[groupID]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := m[attachmentID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// List returns the attachment ids stored for the group. The slice is a
// snapshot and safe for caller mutation.
func (s *InMemoryStore) List(groupID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.attachments[groupID]
	if !ok {
		return []string{}, nil
	}
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return ids, nil
}

// Delete removes the attachment if present or returns ErrNotFound.
func (s *InMemoryStore) Delete(groupID, attachmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.attachments[groupID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m[attachmentID]; !ok {
		return ErrNotFound
	}
	delete(m, attachmentID)
	return nil
}
