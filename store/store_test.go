package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupStore_SameGroupSharesMap(t *testing.T) {
	s := NewGroupStore()

	g1 := s.Group("g-1")
	g1.Set("language", "French")

	g2 := s.Group("g-1")
	v, ok := g2.Get("language")
	require.True(t, ok)
	assert.Equal(t, "French", v)

	other := s.Group("g-2")
	_, ok = other.Get("language")
	assert.False(t, ok, "groups are isolated")
	assert.Equal(t, 2, s.Len())
}

func TestGroupStore_TraceBinding(t *testing.T) {
	s := NewGroupStore()

	_, ok := s.GroupForTrace("t-1")
	assert.False(t, ok)

	s.BindTrace("t-1", "g-1")
	g, ok := s.GroupForTrace("t-1")
	require.True(t, ok)
	assert.Equal(t, "g-1", g)
}
