package storage

import (
	"context"
	"sync"
)

// Memory is a map-backed Store. It satisfies the same idempotency contract
// as the sqlite driver but loses state on restart.
type Memory struct {
	mu  sync.Mutex
	ids map[int64]struct{}

	// FailAdd/FailRemove/FailList inject errors for tests exercising the
	// store-failure path. Nil means never fail.
	FailAdd    func(userID int64) error
	FailRemove func(userID int64) error
	FailList   func() error
}

func NewMemory() *Memory {
	return &Memory{ids: map[int64]struct{}{}}
}

func (m *Memory) Add(ctx context.Context, userID int64) error {
	if m.FailAdd != nil {
		if err := m.FailAdd(userID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.ids[userID] = struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(ctx context.Context, userID int64) error {
	if m.FailRemove != nil {
		if err := m.FailRemove(userID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	delete(m.ids, userID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(ctx context.Context) ([]int64, error) {
	if m.FailList != nil {
		if err := m.FailList(); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

// Has reports presence without going through a List snapshot.
func (m *Memory) Has(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ids[userID]
	return ok
}

// Len reports the current subscriber count.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids)
}
