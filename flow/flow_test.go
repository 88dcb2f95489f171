package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/registry"
	"github.com/hupe1980/flowmesh/router"
)

// funcUnit adapts a plain function into a core.Unit for flow tests.
type funcUnit struct {
	core.BaseUnit
	fn func(ctx context.Context, req *core.Request) (*core.Response, error)
}

func newFuncUnit(name string, fn func(ctx context.Context, req *core.Request) (*core.Response, error)) *funcUnit {
	return &funcUnit{BaseUnit: core.NewBaseUnit(name, core.KindTool), fn: fn}
}

func (u *funcUnit) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	return u.fn(ctx, req)
}

// textUnit returns a fixed text for every call.
func textUnit(name, text string) *funcUnit {
	return newFuncUnit(name, func(_ context.Context, req *core.Request) (*core.Response, error) {
		return core.NewCompleted(text, req.Context), nil
	})
}

// newHarness wires the given units into a registry/router pair and returns
// the router plus a fresh root context.
func newHarness(t *testing.T, units ...core.Unit) (*router.Router, *core.Context) {
	t.Helper()

	reg := registry.New()
	require.NoError(t, reg.RegisterAll(units...))

	return router.New(reg), core.NewContext("", "trace-test", "group-test", nil, nil, core.Arguments{})
}
