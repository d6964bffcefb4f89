package cache

import (
	"context"
	"sync"
	"time"
)

type memItem struct {
	v       []byte
	stored  time.Time
	expires time.Time
	noexp   bool
}

// MemoryStore is a bounded in-process cache. When full, the oldest entry is
// evicted to make room.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]memItem
	maxSize int
	now     func() time.Time
}

func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{
		items:   map[string]memItem{},
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.expired(it, s.now()) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return clone(it.v), true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = ctx
	now := s.now()
	it := memItem{v: clone(value), stored: now}
	if ttl <= 0 {
		it.noexp = true
	} else {
		it.expires = now.Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; !exists && s.maxSize > 0 && len(s.items) >= s.maxSize {
		s.evictOldestLocked()
	}
	s.items[key] = it
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Cleanup removes expired entries and returns how many were dropped.
func (s *MemoryStore) Cleanup() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, it := range s.items {
		if s.expired(it, now) {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

// RunCleaner calls Cleanup every interval until ctx is done.
func (s *MemoryStore) RunCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

func (s *MemoryStore) expired(it memItem, now time.Time) bool {
	return !it.noexp && !it.expires.IsZero() && now.After(it.expires)
}

func (s *MemoryStore) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	for k, v := range s.items {
		if oldestTime.IsZero() || v.stored.Before(oldestTime) {
			oldestKey = k
			oldestTime = v.stored
		}
	}
	delete(s.items, oldestKey)
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
