// Package watermark tracks, per role, the point in time up to which the
// viewer has seen every notification.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/noticeboard/internal/kv"
	"github.com/nhle/noticeboard/internal/model"
)

// Namespace is the key prefix for stored watermarks. Full keys look like
// "notifications:lastSeen:teacher".
const Namespace = "notifications:lastSeen"

// Epoch is the watermark of a role that has never marked anything read.
var Epoch = time.Unix(0, 0).UTC()

// Store reads and advances per-role watermarks held in a KV store.
type Store struct {
	ns  *kv.Namespace
	now func() time.Time
	log zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock used by MarkSeenNow.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for swallowed read errors.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New creates a watermark store over the given KV backend.
func New(store kv.KV, opts ...Option) *Store {
	s := &Store{
		ns:  kv.Scoped(store, Namespace),
		now: time.Now,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the storage key for role's watermark.
func (s *Store) Key(role model.Role) string {
	return s.ns.Key(model.RoleKey(role))
}

// Get returns role's watermark. Missing, unreadable, or corrupt values
// all read as Epoch.
func (s *Store) Get(ctx context.Context, role model.Role) time.Time {
	ts, err := s.Lookup(ctx, role)
	if err != nil {
		s.log.Debug().Err(err).Str("role", model.RoleKey(role)).Msg("watermark read failed")
		return Epoch
	}
	return ts
}

// Lookup is Get for callers that must not mistake a failed read for an
// unset watermark. A missing or corrupt value is Epoch with a nil error;
// any other backend failure is returned.
func (s *Store) Lookup(ctx context.Context, role model.Role) (time.Time, error) {
	raw, err := s.ns.Get(ctx, model.RoleKey(role))
	if errors.Is(err, kv.ErrNotFound) {
		return Epoch, nil
	}
	if err != nil {
		return Epoch, fmt.Errorf("reading watermark for %s: %w", model.RoleKey(role), err)
	}

	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		s.log.Debug().Err(err).Str("role", model.RoleKey(role)).Msg("discarding unparsable watermark")
		return Epoch, nil
	}
	return ts, nil
}

// MarkSeenNow advances role's watermark to the current time and returns
// the stored value. The watermark never moves backwards: if the clock
// reads earlier than the stored value, the stored value is kept.
func (s *Store) MarkSeenNow(ctx context.Context, role model.Role) (time.Time, error) {
	now := s.now().UTC()
	if prev := s.Get(ctx, role); prev.After(now) {
		return prev, nil
	}

	if err := s.ns.Set(ctx, model.RoleKey(role), now.Format(time.RFC3339Nano)); err != nil {
		return time.Time{}, fmt.Errorf("saving watermark for %s: %w", model.RoleKey(role), err)
	}
	return now, nil
}

// UnreadCount counts items created strictly after role's watermark.
func (s *Store) UnreadCount(ctx context.Context, items []model.Notification, role model.Role) int {
	return CountAfter(items, s.Get(ctx, role))
}

// Unread is UnreadCount with the watermark read error surfaced.
func (s *Store) Unread(ctx context.Context, items []model.Notification, role model.Role) (int, error) {
	mark, err := s.Lookup(ctx, role)
	if err != nil {
		return 0, err
	}
	return CountAfter(items, mark), nil
}

// CountAfter counts items created strictly after mark.
func CountAfter(items []model.Notification, mark time.Time) int {
	count := 0
	for _, n := range items {
		if n.CreatedAt.After(mark) {
			count++
		}
	}
	return count
}
