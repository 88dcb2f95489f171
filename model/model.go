// Package model defines the generation contract FlowMesh units use to talk
// to language model providers, plus the Endpoint unit that exposes a
// provider behind the uniform routing surface with bounded concurrency.
package model

import (
	"context"
	"fmt"
	"sync"
)

// Request captures the normalized model input produced by agents and flows.
type Request struct {
	Instructions string `json:"instructions,omitempty"` // System-level guidance
	Query        string `json:"query"`                  // The user-facing prompt
	Stream       bool   `json:"stream,omitempty"`
}

// Chunk is a (partial or final) piece of generated text.
type Chunk struct {
	Text string `json:"text"`
}

// Info contains metadata about a generator implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Generator is the minimal interface an Endpoint needs to drive generation.
// Implementations emit chunks on the first channel and at most one error on
// the second; both channels close when generation ends.
type Generator interface {
	Generate(ctx context.Context, req Request) (<-chan Chunk, <-chan error)

	// Info returns information about the generator implementation.
	Info() Info
}

// MockGenerator is a lightweight in-memory Generator useful for tests and
// examples. Canned responses are matched on the exact query; a scripted
// queue takes precedence when non-empty. Safe for concurrent use, so one
// mock can back every branch of a fan-out.
type MockGenerator struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	scripted  []string
}

// NewMockGenerator constructs a MockGenerator.
func NewMockGenerator(name string) *MockGenerator {
	return &MockGenerator{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a query.
func (m *MockGenerator) AddResponse(query, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[query] = response
}

// Script appends responses that are consumed in order regardless of the
// query. Useful for multi-turn flow tests.
func (m *MockGenerator) Script(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted = append(m.scripted, responses...)
}

// next pops the scripted queue or resolves the canned completion for a query.
func (m *MockGenerator) next(query string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case len(m.scripted) > 0:
		full := m.scripted[0]
		m.scripted = m.scripted[1:]
		return full
	case m.responses[query] != "":
		return m.responses[query]
	default:
		return fmt.Sprintf("Mock response to: %s", query)
	}
}

// Generate implements Generator; emits optional streaming rune chunks then
// closes.
func (m *MockGenerator) Generate(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 16)
	errCh := make(chan error, 1)

	full := m.next(req.Query)

	go func() {
		defer close(out)
		defer close(errCh)
		if !req.Stream {
			out <- Chunk{Text: full}
			return
		}
		for _, r := range full {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- Chunk{Text: string(r)}:
			}
		}
	}()

	return out, errCh
}

// Info implements Generator.
func (m *MockGenerator) Info() Info { return m.info }
