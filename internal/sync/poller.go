package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/noticeboard/internal/audience"
	"github.com/nhle/noticeboard/internal/gateway"
	"github.com/nhle/noticeboard/internal/model"
	"github.com/nhle/noticeboard/internal/toast"
	"github.com/nhle/noticeboard/internal/watermark"
)

// State is the lifecycle state of the poller.
type State int

const (
	StateIdle State = iota
	StatePolling
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	default:
		return "idle"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FetchTimeout is the maximum time allowed for a single fetch operation.
const FetchTimeout = 30 * time.Second

// DefaultInterval is used when Options.Interval is not positive.
const DefaultInterval = 60 * time.Second

// DefaultRetainLimit is the number of scoped items kept for display.
const DefaultRetainLimit = 50

// ErrIdle is returned by Refresh when no session is being polled.
var ErrIdle = errors.New("notification poller is idle")

// Lister fetches the full, unfiltered notification list.
type Lister interface {
	List(ctx context.Context) ([]model.Notification, error)
}

// Snapshot is an immutable view of the notification state handed to
// subscribers. Items is a copy and may be retained.
type Snapshot struct {
	// Version increases with every published snapshot.
	Version uint64 `json:"version"`

	State       State                `json:"state"`
	Role        model.Role           `json:"role"`
	Items       []model.Notification `json:"items"`
	UnreadCount int                  `json:"unreadCount"`
	ActiveToast *model.Notification  `json:"activeToast,omitempty"`
	Loading     bool                 `json:"loading"`
	Error       string               `json:"error,omitempty"`
	LastFetched time.Time            `json:"lastFetched"`
}

// Options configures a Poller.
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	RetainLimit  int
	Logger       zerolog.Logger
	Now          func() time.Time
}

// Poller keeps the scoped notification list, unread count and toast
// current for the signed-in role. It polls while a session is active and
// discards any fetch result that belongs to an earlier session.
type Poller struct {
	lister Lister
	marks  *watermark.Store
	toasts *toast.Scheduler
	opts   Options
	log    zerolog.Logger

	// lifeMu serialises Start and Stop.
	lifeMu gosync.Mutex

	mu          gosync.Mutex
	session     model.Session
	state       State
	epoch       uint64
	nextSeq     uint64
	appliedSeq  uint64
	inFlight    int
	items       []model.Notification
	unread      int
	errMsg      string
	lastFetched time.Time
	version     uint64
	cancel      context.CancelFunc
	loopDone    chan struct{}
	subs        map[int]chan Snapshot
	nextSub     int
}

// New creates an idle Poller.
func New(lister Lister, marks *watermark.Store, toasts *toast.Scheduler, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = FetchTimeout
	}
	if opts.RetainLimit <= 0 {
		opts.RetainLimit = DefaultRetainLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	p := &Poller{
		lister: lister,
		marks:  marks,
		toasts: toasts,
		opts:   opts,
		log:    opts.Logger,
		subs:   make(map[int]chan Snapshot),
	}
	toasts.OnExpire(p.publish)
	return p
}

// Start begins polling for s. An unauthenticated session stops polling
// instead. Starting again with the same role only refreshes the session;
// a different role resets all state first.
func (p *Poller) Start(s model.Session) {
	if !s.Authenticated() {
		p.Stop()
		return
	}

	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	p.mu.Lock()
	if p.state == StatePolling && p.session.Role == s.Role {
		p.session = s
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.state = StatePolling
	p.session = s
	p.epoch++
	epoch := p.epoch
	p.cancel = cancel
	p.loopDone = done
	p.publishLocked()
	p.mu.Unlock()

	p.log.Info().Str("role", string(s.Role)).Dur("interval", p.opts.Interval).Msg("notification polling started")

	go p.loop(ctx, epoch, done)
}

// Stop halts polling and clears all session-derived state. It blocks
// until the polling goroutine has exited.
func (p *Poller) Stop() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	p.mu.Lock()
	wasPolling := p.state == StatePolling
	cancel, done := p.cancel, p.loopDone
	p.cancel, p.loopDone = nil, nil

	p.state = StateIdle
	p.session = model.Session{}
	p.epoch++
	p.appliedSeq = p.nextSeq
	p.inFlight = 0
	p.items = nil
	p.unread = 0
	p.errMsg = ""
	p.lastFetched = time.Time{}
	p.toasts.Dismiss()
	if wasPolling {
		p.publishLocked()
	}
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if wasPolling {
		p.log.Info().Msg("notification polling stopped")
	}
}

// Refresh fetches immediately and waits for the result to be applied.
// The scheduled cadence is not reset.
func (p *Poller) Refresh(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StatePolling {
		p.mu.Unlock()
		return ErrIdle
	}
	epoch := p.epoch
	p.mu.Unlock()

	return p.fetch(ctx, epoch)
}

// MarkAllAsRead advances the current role's watermark, zeroes the unread
// count and dismisses the toast. The displayed list is unchanged. When
// the watermark cannot be saved the in-memory state is still cleared and
// the error is returned; the next fetch recomputes the count.
func (p *Poller) MarkAllAsRead(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	role := p.session.Role
	_, err := p.marks.MarkSeenNow(ctx, role)
	if err != nil {
		p.log.Warn().Err(err).Str("role", model.RoleKey(role)).Msg("mark all as read")
	}

	p.unread = 0
	p.toasts.Dismiss()
	p.publishLocked()
	return err
}

// DismissToast hides the active toast, if any.
func (p *Poller) DismissToast() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.toasts.Active() == nil {
		return
	}
	p.toasts.Dismiss()
	p.publishLocked()
}

// Snapshot returns the current state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe returns a channel that always holds the latest snapshot.
// Slow readers skip intermediate snapshots. The current snapshot is
// delivered immediately. Call the returned func to unsubscribe; it
// closes the channel.
func (p *Poller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	ch <- p.snapshotLocked()
	p.mu.Unlock()

	var once gosync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			close(ch)
			p.mu.Unlock()
		})
	}
}

// Run follows a stream of sessions, starting and stopping polling as the
// viewer signs in, switches role or signs out. It returns when ctx is
// cancelled or sessions is closed, leaving the poller idle.
func (p *Poller) Run(ctx context.Context, sessions <-chan model.Session) {
	defer p.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-sessions:
			if !ok {
				return
			}
			p.Start(s)
		}
	}
}

// loop runs the polling cadence for one session epoch.
func (p *Poller) loop(ctx context.Context, epoch uint64, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	// Do an initial fetch immediately
	_ = p.fetch(ctx, epoch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.fetch(ctx, epoch)
		}
	}
}

// fetch performs one list request and applies the result if it still
// belongs to epoch and no newer fetch has already been applied.
func (p *Poller) fetch(ctx context.Context, epoch uint64) error {
	p.mu.Lock()
	if p.epoch != epoch {
		p.mu.Unlock()
		return nil
	}
	p.nextSeq++
	seq := p.nextSeq
	p.inFlight++
	p.errMsg = ""
	role := p.session.Role
	p.publishLocked()
	p.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
	raw, err := p.lister.List(fetchCtx)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.epoch != epoch {
		p.log.Debug().Uint64("seq", seq).Msg("discarding fetch result from previous session")
		return nil
	}
	p.inFlight--

	if seq < p.appliedSeq {
		p.log.Debug().Uint64("seq", seq).Uint64("applied", p.appliedSeq).Msg("discarding superseded fetch result")
		p.publishLocked()
		return nil
	}
	p.appliedSeq = seq

	if err != nil {
		p.errMsg = describeError(err)
		p.log.Warn().Err(err).Str("role", string(role)).Msg("fetching notifications")
		p.publishLocked()
		return err
	}

	scoped := audience.Filter(raw, role)
	p.items = retain(scoped, p.opts.RetainLimit)
	p.lastFetched = p.opts.Now()

	// Read the watermark even if ctx ended after the list arrived.
	unread, err := p.marks.Unread(context.WithoutCancel(ctx), scoped, role)
	if err != nil {
		p.log.Warn().Err(err).Str("role", string(role)).Msg("reading watermark; keeping previous unread count")
		unread = p.unread
	} else {
		p.unread = unread
		if len(scoped) > 0 && unread > 0 {
			p.toasts.Show(scoped[0])
		} else {
			p.toasts.Dismiss()
		}
	}

	p.log.Debug().
		Int("total", len(raw)).
		Int("scoped", len(scoped)).
		Int("unread", unread).
		Msg("notifications refreshed")

	p.publishLocked()
	return nil
}

// publish is the toast expiry hook.
func (p *Poller) publish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.publishLocked()
}

// publishLocked delivers a fresh snapshot to every subscriber, replacing
// any snapshot they have not read yet. Caller must hold p.mu.
func (p *Poller) publishLocked() {
	p.version++
	if len(p.subs) == 0 {
		return
	}

	snap := p.snapshotLocked()
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (p *Poller) snapshotLocked() Snapshot {
	items := make([]model.Notification, len(p.items))
	copy(items, p.items)

	return Snapshot{
		Version:     p.version,
		State:       p.state,
		Role:        p.session.Role,
		Items:       items,
		UnreadCount: p.unread,
		ActiveToast: p.toasts.Active(),
		Loading:     p.inFlight > 0,
		Error:       p.errMsg,
		LastFetched: p.lastFetched,
	}
}

func retain(items []model.Notification, limit int) []model.Notification {
	n := len(items)
	if n > limit {
		n = limit
	}
	out := make([]model.Notification, n)
	copy(out, items[:n])
	return out
}

// describeError turns a fetch failure into the message shown to the user.
func describeError(err error) string {
	switch {
	case gateway.IsAuthError(err):
		return "Session expired or not authorised. Sign in again to load notifications."
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out loading notifications."
	default:
		if code := gateway.StatusCode(err); code != 0 {
			return fmt.Sprintf("Could not load notifications (HTTP %d).", code)
		}
		return fmt.Sprintf("Could not load notifications: %v", err)
	}
}
