package quota

import (
	"context"
	"sync"
	"time"
)

// CounterStore persists window counters. Reserve must be atomic with respect
// to concurrent callers for the same limiter.
type CounterStore interface {
	Reserve(ctx context.Context, limiter string, windows []Window, now time.Time) (Reservation, error)
	Load(ctx context.Context, limiter string) (map[string]WindowState, error)
}

// MemoryStore is a process-local CounterStore.
type MemoryStore struct {
	counters map[string]map[string]WindowState
	mu       sync.Mutex
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]map[string]WindowState),
	}
}

// Reserve implements CounterStore.
func (m *MemoryStore) Reserve(_ context.Context, limiter string, windows []Window, now time.Time) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.counters[limiter]
	res := Apply(windows, current, now)
	if !res.Allowed {
		return res, nil
	}

	if current == nil {
		current = make(map[string]WindowState, len(windows))
		m.counters[limiter] = current
	}
	for _, st := range res.States {
		current[st.Name] = st
	}

	return res, nil
}

// Load implements CounterStore.
func (m *MemoryStore) Load(_ context.Context, limiter string) (map[string]WindowState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]WindowState, len(m.counters[limiter]))
	for name, st := range m.counters[limiter] {
		out[name] = st
	}
	return out, nil
}
