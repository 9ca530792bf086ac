package storage

import (
	"context"
	"time"
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "memory": process-local map, lost on restart (tests, local runs)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store owns the durable subscriber set. Implementations must be safe for
// concurrent use; Add and Remove are idempotent.
type Store interface {
	// Add inserts a subscriber; it is a no-op if already present.
	Add(ctx context.Context, userID int64) error
	// Remove deletes a subscriber; it is a no-op if absent.
	Remove(ctx context.Context, userID int64) error
	// List returns a snapshot of current subscribers. The snapshot can go
	// stale immediately; callers must tolerate concurrent removals.
	List(ctx context.Context) ([]int64, error)
	Close() error
}
