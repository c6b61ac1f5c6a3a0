// Package kv defines the durable client-side key-value storage used for
// per-role read state.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned (possibly wrapped) by Get when a key is absent.
var ErrNotFound = errors.New("kv: key not found")

// KV is a persistent string key-value store. Implementations must be safe
// for concurrent use; concurrent writers to the same key are
// last-write-wins.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
}
