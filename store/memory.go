package store

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count     int64
	expiresAt time.Time
}

// sweepEvery is how many increments pass between full sweeps of expired
// counters.
const sweepEvery = 1024

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store implementation.
// It is safe for concurrent use. Counters are local to the process and lost
// on restart, so it only enforces a global limit for single-instance
// deployments.
//
// Expired counters are swept every few increments, so keys of past buckets
// do not accumulate. Prune sweeps on demand.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
	ops      int
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// IncrementAndPeek atomically adds one to currentKey, refreshes its expiry and
// reads previousKey.
func (m *MemoryStore) IncrementAndPeek(ctx context.Context, currentKey, previousKey string, ttl time.Duration) (int64, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, Unavailable("increment", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.ops++
	if m.ops >= sweepEvery {
		m.ops = 0
		m.sweep(now)
	}

	c := m.live(currentKey, now)
	if c == nil {
		c = &counter{}
		m.counters[currentKey] = c
	}
	c.count++
	c.expiresAt = now.Add(ttl)

	var previous int64
	if p := m.live(previousKey, now); p != nil {
		previous = p.count
	}
	return c.count, previous, nil
}

// Peek reads both counters without modifying them.
func (m *MemoryStore) Peek(ctx context.Context, currentKey, previousKey string) (int64, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, Unavailable("peek", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var current, previous int64
	if c := m.live(currentKey, now); c != nil {
		current = c.count
	}
	if p := m.live(previousKey, now); p != nil {
		previous = p.count
	}
	return current, previous, nil
}

// live returns the counter for key, evicting it first if it has expired.
// Callers must hold m.mu.
func (m *MemoryStore) live(key string, now time.Time) *counter {
	c, ok := m.counters[key]
	if !ok {
		return nil
	}
	if !now.Before(c.expiresAt) {
		delete(m.counters, key)
		return nil
	}
	return c
}

// sweep deletes every expired counter and reports how many it removed.
// Callers must hold m.mu.
func (m *MemoryStore) sweep(now time.Time) int64 {
	var n int64
	for key, c := range m.counters {
		if !now.Before(c.expiresAt) {
			delete(m.counters, key)
			n++
		}
	}
	return n
}

// Prune deletes all expired counters and returns how many were removed.
func (m *MemoryStore) Prune(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, Unavailable("prune", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweep(m.now()), nil
}

// Len reports how many unexpired counters the store holds.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for key := range m.counters {
		if m.live(key, now) != nil {
			n++
		}
	}
	return n
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
