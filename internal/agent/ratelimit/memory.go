package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps windows in process memory. Each window is sorted oldest first.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string][]time.Time)}
}

func prune(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(ts) && now.Sub(ts[i]) >= window {
		i++
	}
	return ts[i:]
}

func (m *MemoryStore) Peek(_ context.Context, key string, now time.Time, window time.Duration) (WindowState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := prune(m.windows[key], now, window)
	m.store(key, ts)
	return state(ts, false), nil
}

func (m *MemoryStore) Add(_ context.Context, key string, now time.Time, window time.Duration, limit int) (WindowState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := prune(m.windows[key], now, window)
	added := false
	if len(ts) < limit {
		ts = insertSorted(ts, now)
		added = true
	}
	m.store(key, ts)
	return state(ts, added), nil
}

// insertSorted places now after every timestamp not later than it. Callers read
// the clock before taking the lock, so a concurrent Add may carry an earlier time.
func insertSorted(ts []time.Time, now time.Time) []time.Time {
	i := sort.Search(len(ts), func(i int) bool { return ts[i].After(now) })
	ts = append(ts, time.Time{})
	copy(ts[i+1:], ts[i:])
	ts[i] = now
	return ts
}

func (m *MemoryStore) Sweep(_ context.Context, now time.Time, maxWindow time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, ts := range m.windows {
		if len(ts) == 0 || now.Sub(ts[len(ts)-1]) >= maxWindow {
			delete(m.windows, key)
			removed++
		}
	}
	return removed, nil
}

// Len is the number of tracked windows.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func (m *MemoryStore) store(key string, ts []time.Time) {
	if len(ts) == 0 {
		delete(m.windows, key)
		return
	}
	m.windows[key] = ts
}

func state(ts []time.Time, added bool) WindowState {
	s := WindowState{Count: len(ts), Added: added}
	if len(ts) > 0 {
		s.Oldest = ts[0]
	}
	return s
}
