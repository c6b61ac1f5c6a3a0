package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/noticeboard/internal/kv"
	"github.com/nhle/noticeboard/internal/store"
	"github.com/nhle/noticeboard/tests/testutil"
)

func TestSQLiteStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	require.NoError(t, s.Set(ctx, "notifications:lastSeen:teacher", "2026-01-02T03:04:05Z"))

	got, err := s.Get(ctx, "notifications:lastSeen:teacher")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02T03:04:05Z", got)
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestSQLiteStore_SetOverwrite(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	require.NoError(t, s.Set(ctx, "key", "first"))
	require.NoError(t, s.Set(ctx, "key", "second"))

	got, err := s.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestSQLiteStore_DeleteAndListKeys(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	require.NoError(t, s.Set(ctx, "b", "1"))
	require.NoError(t, s.Set(ctx, "a", "2"))
	require.NoError(t, s.Set(ctx, "c", "3"))
	require.NoError(t, s.Delete(ctx, "c"))
	require.NoError(t, s.Delete(ctx, "never-existed"))

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "state.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "notifications:lastSeen:student", "v1"))
	require.NoError(t, s.Close())

	reopened, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Get(ctx, "notifications:lastSeen:student")
	require.NoError(t, err)
	assert.Equal(t, "v1", got)
}
