package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/ports"
)

type entry struct {
	value  []byte
	expiry time.Time // Zero for values without a ttl
}

// MemoryStore is an in-memory implementation of the KVStore interface
type MemoryStore struct {
	items map[string]entry
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.KVStore {
	return &MemoryStore{
		items: make(map[string]entry),
	}
}

// Set stores a copy of value under key
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiry = time.Now().Add(ttl)
		expiry := e.expiry

		// Start a cleanup goroutine
		go func() {
			time.Sleep(ttl)

			s.mu.Lock()
			defer s.mu.Unlock()

			// Only delete if the entry hasn't been rewritten since
			if stored, exists := s.items[key]; exists && stored.expiry.Equal(expiry) {
				delete(s.items, key)
			}
		}()
	}
	s.items[key] = e

	return nil
}

// Get returns the value stored under key
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.items[key]
	if !exists {
		return nil, core.ErrNotFound
	}

	// The cleanup goroutine may not have run yet
	if !e.expiry.IsZero() && time.Now().After(e.expiry) {
		return nil, core.ErrNotFound
	}

	return append([]byte(nil), e.value...), nil
}

// Delete removes keys
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.items, key)
	}
	return nil
}
