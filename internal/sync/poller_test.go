package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/noticeboard/internal/gateway"
	"github.com/nhle/noticeboard/internal/kv"
	"github.com/nhle/noticeboard/internal/model"
	"github.com/nhle/noticeboard/internal/toast"
	"github.com/nhle/noticeboard/internal/watermark"
	"github.com/nhle/noticeboard/tests/testutil"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type stubLister struct {
	mu    gosync.Mutex
	items []model.Notification
	err   error
	calls int
}

func (s *stubLister) set(items []model.Notification, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items, s.err = items, err
}

func (s *stubLister) List(context.Context) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.Notification, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *stubLister) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type listerFunc func(ctx context.Context) ([]model.Notification, error)

func (f listerFunc) List(ctx context.Context) ([]model.Notification, error) { return f(ctx) }

type harness struct {
	poller *Poller
	marks  *watermark.Store
	toasts *toast.Scheduler
}

func newHarness(t *testing.T, lister Lister, toastDelay time.Duration, now func() time.Time) *harness {
	t.Helper()
	return newHarnessWith(t, lister, kv.NewMemory(), time.Hour, toastDelay, now)
}

func newHarnessWith(t *testing.T, lister Lister, store kv.KV, interval, toastDelay time.Duration, now func() time.Time) *harness {
	t.Helper()
	if now == nil {
		now = time.Now
	}
	marks := watermark.New(store, watermark.WithClock(now))
	toasts := toast.New(toastDelay)
	p := New(lister, marks, toasts, Options{
		Interval:    interval,
		RetainLimit: 50,
		Logger:      zerolog.Nop(),
		Now:         now,
	})
	t.Cleanup(func() {
		p.Stop()
		toasts.Dismiss()
	})
	return &harness{poller: p, marks: marks, toasts: toasts}
}

func session(role model.Role) model.Session {
	return model.Session{Role: role, HasToken: true}
}

func notice(id string, aud model.Audience, created time.Time) model.Notification {
	return model.Notification{ID: id, Title: "Notice " + id, Audience: aud, CreatedAt: created}
}

func ids(items []model.Notification) []string {
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.ID)
	}
	return out
}

func waitFetched(t *testing.T, p *Poller) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		s := p.Snapshot()
		return !s.Loading && !s.LastFetched.IsZero()
	}, waitFor, tick)
	return p.Snapshot()
}

func TestPoller_EmptyList(t *testing.T) {
	h := newHarness(t, &stubLister{}, time.Hour, nil)

	h.poller.Start(session(model.RoleTeacher))
	snap := waitFetched(t, h.poller)

	assert.Equal(t, StatePolling, snap.State)
	assert.Empty(t, snap.Items)
	assert.Zero(t, snap.UnreadCount)
	assert.Nil(t, snap.ActiveToast)
	assert.Empty(t, snap.Error)
}

func TestPoller_StudentScopingAndToast(t *testing.T) {
	lister := &stubLister{items: []model.Notification{
		notice("n1", "all", base.Add(time.Hour)),
		notice("n2", "teacher", base.Add(time.Hour)),
		notice("n3", "student", base.Add(-time.Hour)),
	}}
	h := newHarness(t, lister, time.Hour, func() time.Time { return base })

	_, err := h.marks.MarkSeenNow(context.Background(), model.RoleStudent)
	require.NoError(t, err)

	h.poller.Start(session(model.RoleStudent))
	snap := waitFetched(t, h.poller)

	assert.Equal(t, []string{"n1", "n3"}, ids(snap.Items))
	assert.Equal(t, 1, snap.UnreadCount)
	require.NotNil(t, snap.ActiveToast)
	assert.Equal(t, "n1", snap.ActiveToast.ID)
	assert.Equal(t, model.RoleStudent, snap.Role)
}

func TestPoller_NoToastWhenNothingUnread(t *testing.T) {
	lister := &stubLister{items: []model.Notification{
		notice("old", "all", base.Add(-time.Hour)),
	}}
	h := newHarness(t, lister, time.Hour, func() time.Time { return base })

	_, err := h.marks.MarkSeenNow(context.Background(), model.RoleTeacher)
	require.NoError(t, err)

	h.poller.Start(session(model.RoleTeacher))
	snap := waitFetched(t, h.poller)

	assert.Len(t, snap.Items, 1)
	assert.Zero(t, snap.UnreadCount)
	assert.Nil(t, snap.ActiveToast)
}

func TestPoller_MarkAllAsReadThenRefetch(t *testing.T) {
	now := base
	var clockMu gosync.Mutex
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return now
	}

	lister := &stubLister{items: []model.Notification{
		notice("a", "all", base.Add(-2*time.Minute)),
		notice("b", "admin", base.Add(-time.Minute)),
	}}
	h := newHarness(t, lister, time.Hour, clock)

	h.poller.Start(session(model.RoleAdmin))
	snap := waitFetched(t, h.poller)
	require.Equal(t, 2, snap.UnreadCount)
	require.NotNil(t, snap.ActiveToast)

	require.NoError(t, h.poller.MarkAllAsRead(context.Background()))
	snap = h.poller.Snapshot()
	assert.Zero(t, snap.UnreadCount)
	assert.Nil(t, snap.ActiveToast)
	assert.Equal(t, []string{"a", "b"}, ids(snap.Items), "list is unchanged")

	clockMu.Lock()
	now = base.Add(time.Minute)
	clockMu.Unlock()

	require.NoError(t, h.poller.Refresh(context.Background()))
	snap = h.poller.Snapshot()
	assert.Zero(t, snap.UnreadCount)
	assert.Nil(t, snap.ActiveToast)
}

func TestPoller_MarkAllAsReadIsIdempotent(t *testing.T) {
	lister := &stubLister{items: []model.Notification{notice("a", "all", time.Now().Add(-time.Minute))}}
	h := newHarness(t, lister, time.Hour, nil)

	h.poller.Start(session(model.RoleStudent))
	waitFetched(t, h.poller)

	require.NoError(t, h.poller.MarkAllAsRead(context.Background()))
	first := h.marks.Get(context.Background(), model.RoleStudent)
	require.NoError(t, h.poller.MarkAllAsRead(context.Background()))

	assert.Zero(t, h.poller.Snapshot().UnreadCount)
	assert.False(t, h.marks.Get(context.Background(), model.RoleStudent).Before(first))
}

func TestPoller_FailureKeepsPreviousItems(t *testing.T) {
	lister := &stubLister{items: []model.Notification{notice("a", "all", base)}}
	h := newHarness(t, lister, time.Hour, nil)

	h.poller.Start(session(model.RoleTeacher))
	before := waitFetched(t, h.poller)
	require.Len(t, before.Items, 1)

	lister.set(nil, &gateway.StatusError{StatusCode: 503, Method: "GET", Path: "/notifications"})
	err := h.poller.Refresh(context.Background())
	require.Error(t, err)

	snap := h.poller.Snapshot()
	assert.Equal(t, ids(before.Items), ids(snap.Items))
	assert.Equal(t, before.UnreadCount, snap.UnreadCount)
	assert.False(t, snap.Loading)
	assert.Contains(t, snap.Error, "503")

	lister.set([]model.Notification{notice("a", "all", base)}, nil)
	require.NoError(t, h.poller.Refresh(context.Background()))
	assert.Empty(t, h.poller.Snapshot().Error, "error clears on the next successful fetch")
}

func TestPoller_AuthFailureIsReported(t *testing.T) {
	lister := &stubLister{err: &gateway.AuthError{Message: "token expired"}}
	h := newHarness(t, lister, time.Hour, nil)

	h.poller.Start(session(model.RoleTeacher))
	require.Eventually(t, func() bool { return h.poller.Snapshot().Error != "" }, waitFor, tick)

	snap := h.poller.Snapshot()
	assert.Contains(t, snap.Error, "Sign in again")
	assert.Equal(t, StatePolling, snap.State, "auth failures do not stop polling")
}

func TestPoller_StopDiscardsInFlightResult(t *testing.T) {
	entered := make(chan struct{})
	lister := listerFunc(func(ctx context.Context) ([]model.Notification, error) {
		close(entered)
		<-ctx.Done()
		// The response still arrives after the session ended.
		return []model.Notification{notice("late", "all", time.Now())}, nil
	})
	h := newHarness(t, lister, time.Hour, nil)

	h.poller.Start(session(model.RoleTeacher))
	<-entered
	require.True(t, h.poller.Snapshot().Loading)

	h.poller.Stop()

	snap := h.poller.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Items)
	assert.Zero(t, snap.UnreadCount)
	assert.Nil(t, snap.ActiveToast)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Role)
}

func TestPoller_SupersededFetchIsDiscarded(t *testing.T) {
	var mu gosync.Mutex
	call := 0
	slowGate := make(chan struct{})
	slowEntered := make(chan struct{})

	lister := listerFunc(func(ctx context.Context) ([]model.Notification, error) {
		mu.Lock()
		call++
		n := call
		mu.Unlock()

		switch n {
		case 1:
			return []model.Notification{notice("first", "all", base)}, nil
		case 2:
			close(slowEntered)
			<-slowGate
			return []model.Notification{notice("stale", "all", base)}, nil
		default:
			return []model.Notification{notice("fresh", "all", base)}, nil
		}
	})
	h := newHarness(t, lister, time.Hour, nil)

	h.poller.Start(session(model.RoleTeacher))
	waitFetched(t, h.poller)

	slowDone := make(chan error, 1)
	go func() { slowDone <- h.poller.Refresh(context.Background()) }()
	<-slowEntered

	require.NoError(t, h.poller.Refresh(context.Background()))
	assert.Equal(t, []string{"fresh"}, ids(h.poller.Snapshot().Items))

	close(slowGate)
	require.NoError(t, <-slowDone)

	snap := h.poller.Snapshot()
	assert.Equal(t, []string{"fresh"}, ids(snap.Items))
	assert.False(t, snap.Loading)
}

func TestPoller_RoleSwitchResets(t *testing.T) {
	lister := &stubLister{items: []model.Notification{
		notice("t", "teacher", base),
		notice("s", "student", base),
	}}
	h := newHarness(t, lister, time.Hour, nil)

	h.poller.Start(session(model.RoleTeacher))
	snap := waitFetched(t, h.poller)
	require.Equal(t, []string{"t"}, ids(snap.Items))

	h.poller.Start(session(model.RoleStudent))
	require.Eventually(t, func() bool {
		s := h.poller.Snapshot()
		return s.Role == model.RoleStudent && !s.LastFetched.IsZero() && !s.Loading
	}, waitFor, tick)
	assert.Equal(t, []string{"s"}, ids(h.poller.Snapshot().Items))
	assert.Equal(t, 2, lister.callCount())
}

func TestPoller_SameRoleStartIsNoop(t *testing.T) {
	lister := &stubLister{}
	h := newHarness(t, lister, time.Hour, nil)

	h.poller.Start(session(model.RoleTeacher))
	waitFetched(t, h.poller)
	h.poller.Start(model.Session{Role: model.RoleTeacher, HasToken: true, UserName: "Ms Rao"})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, lister.callCount())
}

func TestPoller_UnauthenticatedStartStops(t *testing.T) {
	lister := &stubLister{items: []model.Notification{notice("a", "all", base)}}
	h := newHarness(t, lister, time.Hour, nil)

	h.poller.Start(session(model.RoleTeacher))
	waitFetched(t, h.poller)

	h.poller.Start(model.Session{Role: model.RoleTeacher})
	snap := h.poller.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Items)
}

func TestPoller_RefreshWhileIdle(t *testing.T) {
	h := newHarness(t, &stubLister{}, time.Hour, nil)
	assert.ErrorIs(t, h.poller.Refresh(context.Background()), ErrIdle)
}

func TestPoller_RetainLimitAppliesToDisplayOnly(t *testing.T) {
	items := make([]model.Notification, 0, 60)
	for i := 0; i < 60; i++ {
		items = append(items, notice(fmt.Sprintf("n%02d", i), "all", base.Add(-time.Duration(i)*time.Minute)))
	}
	h := newHarness(t, &stubLister{items: items}, time.Hour, nil)

	h.poller.Start(session(model.RoleStudent))
	snap := waitFetched(t, h.poller)

	assert.Len(t, snap.Items, 50)
	assert.Equal(t, "n00", snap.Items[0].ID)
	assert.Equal(t, 60, snap.UnreadCount)
}

func TestPoller_DismissToast(t *testing.T) {
	lister := &stubLister{items: []model.Notification{notice("a", "all", time.Now())}}
	h := newHarness(t, lister, time.Hour, nil)

	h.poller.Start(session(model.RoleStudent))
	snap := waitFetched(t, h.poller)
	require.NotNil(t, snap.ActiveToast)

	h.poller.DismissToast()
	h.poller.DismissToast()
	snap = h.poller.Snapshot()
	assert.Nil(t, snap.ActiveToast)
	assert.Equal(t, 1, snap.UnreadCount, "dismissing does not mark read")
}

func TestPoller_ToastExpiryIsPublished(t *testing.T) {
	lister := &stubLister{items: []model.Notification{notice("a", "all", time.Now())}}
	h := newHarness(t, lister, 30*time.Millisecond, nil)

	updates, cancel := h.poller.Subscribe()
	defer cancel()

	h.poller.Start(session(model.RoleStudent))

	sawToast := false
	deadline := time.After(waitFor)
	for {
		select {
		case snap := <-updates:
			if snap.ActiveToast != nil {
				sawToast = true
			}
			if sawToast && snap.ActiveToast == nil {
				assert.Equal(t, 1, snap.UnreadCount)
				return
			}
		case <-deadline:
			t.Fatal("toast expiry was not published")
		}
	}
}

func TestPoller_SubscribeDeliversLatest(t *testing.T) {
	h := newHarness(t, &stubLister{}, time.Hour, nil)

	updates, cancel := h.poller.Subscribe()
	initial := <-updates
	assert.Equal(t, StateIdle, initial.State)

	h.poller.Start(session(model.RoleTeacher))
	waitFetched(t, h.poller)

	latest := <-updates
	assert.Equal(t, h.poller.Snapshot().Version, latest.Version)
	assert.Greater(t, latest.Version, initial.Version)

	cancel()
	cancel()
	_, open := <-updates
	assert.False(t, open)
}

func TestPoller_RunFollowsSessions(t *testing.T) {
	lister := &stubLister{items: []model.Notification{notice("a", "all", base)}}
	h := newHarness(t, lister, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sessions := make(chan model.Session)
	done := make(chan struct{})
	go func() {
		h.poller.Run(ctx, sessions)
		close(done)
	}()

	sessions <- session(model.RoleTeacher)
	waitFetched(t, h.poller)

	sessions <- model.Session{}
	require.Eventually(t, func() bool { return h.poller.Snapshot().State == StateIdle }, waitFor, tick)

	sessions <- session(model.RoleStudent)
	require.Eventually(t, func() bool { return h.poller.Snapshot().Role == model.RoleStudent }, waitFor, tick)

	cancel()
	<-done
	assert.Equal(t, StateIdle, h.poller.Snapshot().State)
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth", &gateway.AuthError{Message: "x"}, "Sign in again"},
		{"timeout", fmt.Errorf("list: %w", context.DeadlineExceeded), "Timed out"},
		{"status", &gateway.StatusError{StatusCode: 500}, "HTTP 500"},
		{"other", errors.New("connection refused"), "connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, describeError(tt.err), tt.want)
		})
	}
}

// flakyKV fails reads while failing is set.
type flakyKV struct {
	kv.KV
	failing atomic.Bool
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, error) {
	if f.failing.Load() {
		return "", errors.New("database is locked")
	}
	return f.KV.Get(ctx, key)
}

func TestPoller_CancelledRefreshKeepsReadState(t *testing.T) {
	var (
		hookMu gosync.Mutex
		hook   context.CancelFunc
	)
	lister := listerFunc(func(context.Context) ([]model.Notification, error) {
		hookMu.Lock()
		if hook != nil {
			hook()
		}
		hookMu.Unlock()
		return []model.Notification{notice("n1", "all", base.Add(-time.Hour))}, nil
	})

	h := newHarnessWith(t, lister, testutil.NewTestStore(t), time.Hour, time.Hour, func() time.Time { return base })
	_, err := h.marks.MarkSeenNow(context.Background(), model.RoleStudent)
	require.NoError(t, err)

	h.poller.Start(session(model.RoleStudent))
	snap := waitFetched(t, h.poller)
	require.Zero(t, snap.UnreadCount)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hookMu.Lock()
	hook = cancel
	hookMu.Unlock()

	require.NoError(t, h.poller.Refresh(ctx))

	snap = h.poller.Snapshot()
	assert.Zero(t, snap.UnreadCount)
	assert.Nil(t, snap.ActiveToast)
	assert.Equal(t, []string{"n1"}, ids(snap.Items))
}

func TestPoller_WatermarkReadFailureKeepsUnreadAndToast(t *testing.T) {
	lister := &stubLister{items: []model.Notification{notice("n1", "all", base.Add(time.Hour))}}
	store := &flakyKV{KV: kv.NewMemory()}
	h := newHarnessWith(t, lister, store, time.Hour, time.Hour, func() time.Time { return base })

	h.poller.Start(session(model.RoleStudent))
	snap := waitFetched(t, h.poller)
	require.Equal(t, 1, snap.UnreadCount)
	require.NotNil(t, snap.ActiveToast)

	lister.set([]model.Notification{
		notice("n2", "all", base.Add(2*time.Hour)),
		notice("n1", "all", base.Add(time.Hour)),
	}, nil)
	store.failing.Store(true)
	require.NoError(t, h.poller.Refresh(context.Background()))

	snap = h.poller.Snapshot()
	assert.Equal(t, []string{"n2", "n1"}, ids(snap.Items))
	assert.Equal(t, 1, snap.UnreadCount)
	require.NotNil(t, snap.ActiveToast)
	assert.Equal(t, "n1", snap.ActiveToast.ID)
	assert.Empty(t, snap.Error)
}

func TestPoller_TickerKeepsPollingThroughFailures(t *testing.T) {
	var calls atomic.Int32
	lister := listerFunc(func(context.Context) ([]model.Notification, error) {
		n := calls.Add(1)
		if n%2 == 0 {
			return nil, &gateway.StatusError{StatusCode: 503, Method: "GET", Path: "/api/notifications"}
		}
		return []model.Notification{notice(fmt.Sprintf("n%d", n), "all", base)}, nil
	})

	h := newHarnessWith(t, lister, kv.NewMemory(), 20*time.Millisecond, time.Hour, nil)
	h.poller.Start(session(model.RoleTeacher))

	var sawError, sawRecovery, staleOnError = false, false, true
	require.Eventually(t, func() bool {
		snap := h.poller.Snapshot()
		switch {
		case snap.Error != "":
			sawError = true
			if len(snap.Items) != 1 {
				staleOnError = false
			}
		case sawError && !snap.Loading && len(snap.Items) == 1:
			sawRecovery = true
		}
		return calls.Load() >= 5 && sawError && sawRecovery
	}, waitFor, tick)

	assert.True(t, staleOnError, "items must survive a failed poll")
	assert.Equal(t, StatePolling, h.poller.Snapshot().State)
}
