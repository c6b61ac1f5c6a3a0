// Package toast holds the single transient notice shown for new
// announcements and dismisses it after a fixed delay.
package toast

import (
	"sync"
	"time"

	"github.com/nhle/noticeboard/internal/model"
)

// DefaultDelay is how long a toast stays up before auto-dismissing.
const DefaultDelay = 5 * time.Second

// Scheduler keeps at most one active toast with one dismissal timer.
// Showing a new toast replaces the current one and restarts the timer;
// there is no queue.
type Scheduler struct {
	delay time.Duration

	mu       sync.Mutex
	active   *model.Notification
	timer    *time.Timer
	gen      uint64
	onExpire func()
}

// New creates a Scheduler. A non-positive delay uses DefaultDelay.
func New(delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{delay: delay}
}

// OnExpire registers fn to be called after the timer dismisses a toast.
// Explicit Show and Dismiss calls do not trigger it; their callers already
// know the state changed. fn runs without the scheduler lock held.
func (s *Scheduler) OnExpire(fn func()) {
	s.mu.Lock()
	s.onExpire = fn
	s.mu.Unlock()
}

// Show makes n the active toast and (re)arms the dismissal timer.
func (s *Scheduler) Show(n model.Notification) {
	s.mu.Lock()
	s.stopTimerLocked()
	s.gen++
	gen := s.gen
	toast := n
	s.active = &toast
	s.timer = time.AfterFunc(s.delay, func() { s.expire(gen) })
	s.mu.Unlock()
}

// Dismiss clears the active toast. It is a no-op when nothing is shown.
func (s *Scheduler) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return
	}
	s.stopTimerLocked()
	s.gen++
	s.active = nil
}

// Active returns a copy of the current toast, or nil.
func (s *Scheduler) Active() *model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyOf(s.active)
}

// expire is the timer callback. A timer that fired after being replaced
// or cancelled carries an old generation and is ignored.
func (s *Scheduler) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.active == nil {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.active = nil
	s.timer = nil
	fn := s.onExpire
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func copyOf(n *model.Notification) *model.Notification {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}
