package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetMissing(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_SetOverwriteDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", "first"))
	require.NoError(t, m.Set(ctx, "k", "second"))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScoped(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ns := Scoped(m, "notifications:lastSeen")

	require.NoError(t, ns.Set(ctx, "teacher", "a"))
	require.NoError(t, ns.Set(ctx, "guest", "b"))
	require.NoError(t, m.Set(ctx, "other", "c"))

	raw, err := m.Get(ctx, "notifications:lastSeen:teacher")
	require.NoError(t, err)
	assert.Equal(t, "a", raw)
	assert.Equal(t, "notifications:lastSeen:student", ns.Key("student"))

	names, err := ns.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"guest", "teacher"}, names)

	require.NoError(t, ns.Delete(ctx, "guest"))
	_, err = ns.Get(ctx, "guest")
	assert.ErrorIs(t, err, ErrNotFound)
}
