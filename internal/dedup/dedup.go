// Package dedup guards against processing a multi-part post more than once.
//
// Telegram delivers each part of a media group as its own channel-post
// update, all sharing one group id and arriving within seconds of each
// other. The guard is time-windowed and entry-capped so a long-running
// process never accumulates unbounded state.
package dedup

import (
	"sync"
	"time"
)

const (
	defaultWindow     = 5 * time.Minute
	defaultMaxEntries = 2048
)

type Guard struct {
	mu   sync.Mutex
	seen map[string]time.Time // group id -> suppress until

	window time.Duration
	max    int

	now func() time.Time // test hook
}

// New creates a guard. window <= 0 and max <= 0 select the defaults.
func New(window time.Duration, max int) *Guard {
	if window <= 0 {
		window = defaultWindow
	}
	if max <= 0 {
		max = defaultMaxEntries
	}
	return &Guard{
		seen:   make(map[string]time.Time),
		window: window,
		max:    max,
		now:    time.Now,
	}
}

// ShouldProcess reports whether a post with the given group id should be
// handled. It returns true on the first sighting of a non-empty group id
// within the window, false for every repeat. An empty group id always
// returns true: a post without a group id is an independent post.
//
// The check-and-mark is atomic, so two parts of the same group racing
// through the ingestion path cannot both observe "not yet processed".
func (g *Guard) ShouldProcess(groupID string) bool {
	if groupID == "" {
		return true
	}
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if until, ok := g.seen[groupID]; ok && now.Before(until) {
		return false
	}
	g.evictLocked(now)
	g.seen[groupID] = now.Add(g.window)
	return true
}

// evictLocked drops expired entries, then enforces the cap by dropping the
// entries closest to expiry.
func (g *Guard) evictLocked(now time.Time) {
	for k, until := range g.seen {
		if !now.Before(until) {
			delete(g.seen, k)
		}
	}
	for len(g.seen) >= g.max {
		var oldestKey string
		var oldest time.Time
		for k, until := range g.seen {
			if oldestKey == "" || until.Before(oldest) {
				oldestKey = k
				oldest = until
			}
		}
		delete(g.seen, oldestKey)
	}
}

// Len reports the current number of tracked group ids.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
