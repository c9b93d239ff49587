package cache

import (
	"context"
	"sync"
	"time"

	"finance-agent/internal/models"
)

// MemoryStore keeps entries in process with an entity index for invalidation.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]models.CacheEntry
	byEntity map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]models.CacheEntry),
		byEntity: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Get(_ context.Context, fingerprint string) (*models.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[fingerprint]
	if !ok {
		return nil, nil
	}
	entry.Hits++
	s.entries[fingerprint] = entry
	return &entry, nil
}

func (s *MemoryStore) Set(_ context.Context, entry models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[entry.Fingerprint]; ok {
		s.unindex(old)
	}
	s.entries[entry.Fingerprint] = entry
	for _, ticker := range entry.Entities {
		set, ok := s.byEntity[ticker]
		if !ok {
			set = make(map[string]struct{})
			s.byEntity[ticker] = set
		}
		set[entry.Fingerprint] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) InvalidateEntity(_ context.Context, ticker string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for fp := range s.byEntity[ticker] {
		if entry, ok := s.entries[fp]; ok {
			s.unindex(entry)
			delete(s.entries, fp)
			n++
		}
	}
	delete(s.byEntity, ticker)
	return n, nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for fp, entry := range s.entries {
		if entry.Expired(now) {
			s.unindex(entry)
			delete(s.entries, fp)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Len(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.entries)), nil
}

// unindex must be called with mu held.
func (s *MemoryStore) unindex(entry models.CacheEntry) {
	for _, ticker := range entry.Entities {
		set := s.byEntity[ticker]
		delete(set, entry.Fingerprint)
		if len(set) == 0 {
			delete(s.byEntity, ticker)
		}
	}
}
