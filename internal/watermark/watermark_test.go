package watermark

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/noticeboard/internal/kv"
	"github.com/nhle/noticeboard/internal/model"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

type failingKV struct{ kv.KV }

func (failingKV) Get(context.Context, string) (string, error) {
	return "", errors.New("disk on fire")
}

func (failingKV) Set(context.Context, string, string) error {
	return errors.New("disk on fire")
}

func TestGet_DefaultsToEpoch(t *testing.T) {
	s := New(kv.NewMemory())
	assert.True(t, s.Get(context.Background(), model.RoleTeacher).Equal(Epoch))
}

func TestGet_UnparsableIsEpoch(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	require.NoError(t, mem.Set(ctx, "notifications:lastSeen:student", "yesterday-ish"))

	s := New(mem)
	assert.True(t, s.Get(ctx, model.RoleStudent).Equal(Epoch))
}

func TestGet_BackendErrorIsEpoch(t *testing.T) {
	s := New(failingKV{})
	assert.True(t, s.Get(context.Background(), model.RoleStudent).Equal(Epoch))
}

func TestKey_UsesGuestForEmptyRole(t *testing.T) {
	s := New(kv.NewMemory())
	assert.Equal(t, "notifications:lastSeen:guest", s.Key(""))
	assert.Equal(t, "notifications:lastSeen:admin", s.Key(model.RoleAdmin))
}

func TestMarkSeenNow_PersistsISOTimestamp(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)}
	s := New(mem, WithClock(clock.Now))

	got, err := s.MarkSeenNow(ctx, model.RoleTeacher)
	require.NoError(t, err)
	assert.True(t, got.Equal(clock.t))

	raw, err := mem.Get(ctx, "notifications:lastSeen:teacher")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T09:30:00Z", raw)
	assert.True(t, s.Get(ctx, model.RoleTeacher).Equal(clock.t))
}

func TestMarkSeenNow_IsPerRole(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory())

	_, err := s.MarkSeenNow(ctx, model.RoleTeacher)
	require.NoError(t, err)

	assert.True(t, s.Get(ctx, model.RoleStudent).Equal(Epoch))
	assert.False(t, s.Get(ctx, model.RoleTeacher).Equal(Epoch))
}

func TestMarkSeenNow_NeverDecreases(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{}
	s := New(kv.NewMemory(), WithClock(clock.Now))

	offsets := []time.Duration{0, time.Hour, -30 * time.Minute, 2 * time.Hour, -24 * time.Hour, 2 * time.Hour}
	prev := s.Get(ctx, model.RoleStudent)
	for _, off := range offsets {
		clock.t = base.Add(off)
		_, err := s.MarkSeenNow(ctx, model.RoleStudent)
		require.NoError(t, err)

		cur := s.Get(ctx, model.RoleStudent)
		assert.False(t, cur.Before(prev), "watermark moved from %s back to %s", prev, cur)
		prev = cur
	}
	assert.True(t, prev.Equal(base.Add(2*time.Hour)))
}

func TestMarkSeenNow_WriteErrorReturned(t *testing.T) {
	s := New(failingKV{})
	_, err := s.MarkSeenNow(context.Background(), model.RoleStudent)
	assert.Error(t, err)
}

func TestUnreadCount(t *testing.T) {
	ctx := context.Background()
	mark := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: mark}
	s := New(kv.NewMemory(), WithClock(clock.Now))

	items := []model.Notification{
		{ID: "newer", CreatedAt: mark.Add(time.Second)},
		{ID: "equal", CreatedAt: mark},
		{ID: "older", CreatedAt: mark.Add(-time.Hour)},
		{ID: "unparsed"},
	}

	assert.Equal(t, 3, s.UnreadCount(ctx, items, model.RoleTeacher), "everything after epoch is unread")

	_, err := s.MarkSeenNow(ctx, model.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, 1, s.UnreadCount(ctx, items, model.RoleTeacher))
	assert.Equal(t, 0, s.UnreadCount(ctx, nil, model.RoleTeacher))
}

func TestLookup_SeparatesUnsetFromReadFailure(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	require.NoError(t, mem.Set(ctx, "notifications:lastSeen:student", "yesterday-ish"))

	ts, err := New(mem).Lookup(ctx, model.RoleTeacher)
	require.NoError(t, err)
	assert.True(t, ts.Equal(Epoch))

	ts, err = New(mem).Lookup(ctx, model.RoleStudent)
	require.NoError(t, err)
	assert.True(t, ts.Equal(Epoch))

	_, err = New(failingKV{}).Lookup(ctx, model.RoleStudent)
	assert.ErrorContains(t, err, "disk on fire")
}

func TestUnread_ReturnsReadFailure(t *testing.T) {
	items := []model.Notification{{ID: "1", CreatedAt: time.Now()}}

	_, err := New(failingKV{}).Unread(context.Background(), items, model.RoleStudent)
	assert.Error(t, err)

	n, err := New(kv.NewMemory()).Unread(context.Background(), items, model.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
