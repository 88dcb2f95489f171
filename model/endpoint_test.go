package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flowmesh/core"
)

func endpointRequest(args core.Arguments) *core.Request {
	c := core.NewContext("", "trace-1", "", nil, nil, args)
	return &core.Request{Callee: "llm", Arguments: args, Context: c}
}

func TestEndpoint_Execute(t *testing.T) {
	gen := NewMockGenerator("test-model")
	gen.AddResponse("hello", "hi there")
	e := NewEndpoint("llm", gen)

	resp, err := e.Execute(context.Background(), endpointRequest(core.Arguments{Query: "hello"}))

	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, resp.State)
	assert.Equal(t, "hi there", resp.Output)
	assert.Equal(t, core.KindModel, e.Kind())
}

func TestEndpoint_Streaming(t *testing.T) {
	gen := NewMockGenerator("test-model")
	gen.AddResponse("hello", "streamed")
	e := NewEndpoint("llm", gen)

	resp, err := e.Execute(context.Background(), endpointRequest(core.Arguments{
		Query: "hello",
		Extra: map[string]any{"stream": true},
	}))

	require.NoError(t, err)
	require.NotNil(t, resp.Stream)
	assert.Equal(t, "streamed", resp.Text())
	// Text caches the drained stream.
	assert.Equal(t, "streamed", resp.Text())
}

// brokenGenerator emits one chunk, then fails the generation.
type brokenGenerator struct{}

func (brokenGenerator) Generate(context.Context, Request) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 1)
	errCh := make(chan error, 1)
	out <- Chunk{Text: "partial "}
	errCh <- errors.New("provider connection reset")
	close(out)
	close(errCh)
	return out, errCh
}

func (brokenGenerator) Info() Info { return Info{Name: "broken", Provider: "mock"} }

func TestEndpoint_StreamingFailureSurfacesAfterDrain(t *testing.T) {
	e := NewEndpoint("llm", brokenGenerator{})

	resp, err := e.Execute(context.Background(), endpointRequest(core.Arguments{
		Query: "hello",
		Extra: map[string]any{"stream": true},
	}))

	require.NoError(t, err)
	assert.Equal(t, "partial ", resp.Text())
	assert.Equal(t, core.StateFailed, resp.State, "truncated stream must not look completed")
	assert.EqualError(t, resp.Err, "provider connection reset")
}

func TestEndpoint_NonStreamingFailure(t *testing.T) {
	e := NewEndpoint("llm", brokenGenerator{})

	_, err := e.Execute(context.Background(), endpointRequest(core.Arguments{Query: "hello"}))

	assert.EqualError(t, err, "provider connection reset")
}

// slowGenerator blocks every generation until released, counting how many
// run at once.
type slowGenerator struct {
	release chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
}

func (g *slowGenerator) Generate(ctx context.Context, _ Request) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		n := g.active.Add(1)
		for {
			p := g.peak.Load()
			if n <= p || g.peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-g.release
		g.active.Add(-1)
		out <- Chunk{Text: "done"}
	}()
	return out, errCh
}

func (g *slowGenerator) Info() Info { return Info{Name: "slow", Provider: "mock"} }

func TestEndpoint_MaxInFlight(t *testing.T) {
	gen := &slowGenerator{release: make(chan struct{})}
	e := NewEndpoint("llm", gen, WithMaxInFlight(2))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Execute(context.Background(), endpointRequest(core.Arguments{Query: "q"}))
			assert.NoError(t, err)
		}()
	}

	// Give the queued calls a moment to pile up against the semaphore.
	time.Sleep(50 * time.Millisecond)
	close(gen.release)
	wg.Wait()

	assert.LessOrEqual(t, gen.peak.Load(), int32(2))
}

func TestEndpoint_AcquireHonorsContext(t *testing.T) {
	gen := &slowGenerator{release: make(chan struct{})}
	defer close(gen.release)
	e := NewEndpoint("llm", gen, WithMaxInFlight(1))

	// Occupy the only slot.
	go func() {
		_, _ = e.Execute(context.Background(), endpointRequest(core.Arguments{Query: "first"}))
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.Execute(ctx, endpointRequest(core.Arguments{Query: "second"}))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMockGenerator_Script(t *testing.T) {
	gen := NewMockGenerator("scripted")
	gen.Script("one", "two")

	collect := func() string {
		chunks, errCh := gen.Generate(context.Background(), Request{Query: "x"})
		var s string
		for c := range chunks {
			s += c.Text
		}
		require.NoError(t, <-errCh)
		return s
	}

	assert.Equal(t, "one", collect())
	assert.Equal(t, "two", collect())
	assert.Equal(t, "Mock response to: x", collect())
}

func TestMockGenerator_ScriptConcurrentConsumers(t *testing.T) {
	const n = 8
	gen := NewMockGenerator("scripted")
	for i := 0; i < n; i++ {
		gen.Script(fmt.Sprintf("resp-%d", i))
	}

	var mu sync.Mutex
	seen := make(map[string]int)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chunks, errCh := gen.Generate(context.Background(), Request{Query: "x"})
			var s string
			for c := range chunks {
				s += c.Text
			}
			assert.NoError(t, <-errCh)
			mu.Lock()
			seen[s]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n, "each scripted response consumed exactly once")
}
