package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/registry"
	"github.com/hupe1980/flowmesh/router"
	"github.com/hupe1980/flowmesh/tool"
)

func newRuntime(t *testing.T, master string, units ...core.Unit) *Runtime {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.RegisterAll(units...))
	return New(reg, WithMaster(master))
}

// echoTool answers with the query and remembers its context for assertions.
func echoTool(name string, last **core.Context) core.Unit {
	return tool.NewFunctionTool(name, "", func(_ context.Context, c *core.Context, args core.Arguments) (any, error) {
		if last != nil {
			*last = c
		}
		return "echo: " + args.Query, nil
	})
}

func TestRuntime_ChatRoutesToMaster(t *testing.T) {
	var seen *core.Context
	rt := newRuntime(t, "echo", echoTool("echo", &seen))

	resp := rt.Chat(context.Background(), Payload{Query: "hello"})

	require.Equal(t, core.StateCompleted, resp.State)
	assert.Equal(t, "echo: hello", resp.Output)
	require.NotNil(t, seen)
	assert.NotEmpty(t, seen.TraceID)
	assert.Equal(t, seen.TraceID, seen.GroupID, "ungrouped traces form a group of their own")
}

func TestRuntime_ExplicitCalleeOverridesMaster(t *testing.T) {
	rt := newRuntime(t, "echo", echoTool("echo", nil), echoTool("other", nil))

	resp := rt.Chat(context.Background(), Payload{Query: "q", Callee: "other"})

	require.Equal(t, core.StateCompleted, resp.State)
}

func TestRuntime_NoCalleeNoMaster(t *testing.T) {
	reg := registry.New()
	rt := New(reg)

	resp := rt.Chat(context.Background(), Payload{Query: "q"})

	assert.Equal(t, core.StateFailed, resp.State)
}

func TestRuntime_RequestIDPassthrough(t *testing.T) {
	var edges []router.Edge
	reg := registry.New()
	require.NoError(t, reg.Register(echoTool("echo", nil)))
	rt := New(reg,
		WithMaster("echo"),
		WithRecorder(func(e router.Edge) { edges = append(edges, e) }),
	)

	resp := rt.Chat(context.Background(), Payload{Query: "q", RequestID: "req-42"})

	require.Equal(t, core.StateCompleted, resp.State)
	require.Len(t, edges, 1)
	assert.Equal(t, "req-42", edges[0].CallerRequestID, "external correlation id tags the root hop")
	assert.NotEqual(t, "req-42", edges[0].RequestID, "the entry call still runs in its own hop")
}

func TestRuntime_TraceContinuationInheritsGroup(t *testing.T) {
	recall := tool.NewFunctionTool("memory", "", func(_ context.Context, c *core.Context, args core.Arguments) (any, error) {
		if args.Query == "remember" {
			c.SetGroup("fact", "the sky is blue")
			return "stored", nil
		}
		return c.GetGroupOr("fact", "nothing"), nil
	})
	rt := newRuntime(t, "memory", recall)

	first := rt.Chat(context.Background(), Payload{Query: "remember"})
	require.Equal(t, core.StateCompleted, first.State)
	firstTrace := first.Context.TraceID

	second := rt.Chat(context.Background(), Payload{Query: "recall", FromTraceID: firstTrace})
	require.Equal(t, core.StateCompleted, second.State)
	assert.Equal(t, "the sky is blue", second.Output)
	assert.NotEqual(t, firstTrace, second.Context.TraceID, "continuation still gets a fresh trace")

	// A trace nobody has seen starts a fresh, empty group.
	fresh := rt.Chat(context.Background(), Payload{Query: "recall", FromTraceID: "never-seen"})
	require.Equal(t, core.StateCompleted, fresh.State)
	assert.Equal(t, "nothing", fresh.Output)
}

func TestRuntime_ExplicitGroupWinsOverContinuation(t *testing.T) {
	var seen *core.Context
	rt := newRuntime(t, "echo", echoTool("echo", &seen))

	first := rt.Chat(context.Background(), Payload{Query: "q"})
	require.Equal(t, core.StateCompleted, first.State)

	_ = rt.Chat(context.Background(), Payload{
		Query:       "q",
		GroupID:     "explicit-group",
		FromTraceID: first.Context.TraceID,
	})
	require.NotNil(t, seen)
	assert.Equal(t, "explicit-group", seen.GroupID)
}

func TestRuntime_GlobalDataInspection(t *testing.T) {
	counter := tool.NewFunctionTool("counter", "", func(_ context.Context, c *core.Context, _ core.Arguments) (any, error) {
		n, _ := c.GetGlobalOr("calls", 0).(int)
		c.SetGlobal("calls", n+1)
		return n + 1, nil
	})
	rt := newRuntime(t, "counter", counter)

	_ = rt.Chat(context.Background(), Payload{Query: "a"})
	_ = rt.Chat(context.Background(), Payload{Query: "b", GroupID: "other"})

	assert.Equal(t, 2, rt.GlobalData()["calls"], "global state spans groups")
}

func TestRuntime_FailureSurfacesAsText(t *testing.T) {
	failing := tool.NewFunctionTool("broken", "", func(_ context.Context, _ *core.Context, _ core.Arguments) (any, error) {
		return nil, errors.New("backend unavailable")
	})
	rt := newRuntime(t, "broken", failing)

	resp := rt.Chat(context.Background(), Payload{Query: "q"})

	assert.Equal(t, core.StateFailed, resp.State)
	assert.Contains(t, resp.Text(), "backend unavailable")
	assert.Equal(t, core.ErrNestedFailure, core.KindOf(resp.Err))
}

func TestRuntime_InlineAttachmentsStored(t *testing.T) {
	reader := tool.NewFunctionTool("reader", "", func(_ context.Context, _ *core.Context, args core.Arguments) (any, error) {
		return args.Attachments, nil
	})
	rt := newRuntime(t, "reader", reader)

	resp := rt.Chat(context.Background(), Payload{
		Query:          "summarize",
		GroupID:        "g-1",
		AttachmentData: map[string][]byte{"notes.txt": []byte("raw bytes")},
	})

	require.Equal(t, core.StateCompleted, resp.State)
	assert.Contains(t, resp.Output, "notes.txt")

	data, err := rt.Attachments().Get("g-1", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("raw bytes"), data)
}
