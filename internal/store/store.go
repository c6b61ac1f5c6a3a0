package store

import (
	"github.com/nhle/noticeboard/internal/kv"
)

// Store is the durable local state backing the notification core.
// Today that is only the per-role read watermarks, held as plain
// key-value rows.
type Store interface {
	kv.KV
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
