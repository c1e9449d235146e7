package store

import (
	"context"
	"sort"
	"sync"

	"github.com/AnandSundar/go-fincache"
)

// MemoryStore is an in-memory implementation of fincache.Storage
type MemoryStore struct {
	mu     sync.RWMutex
	caches map[string]map[string]*fincache.CachedResponse
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		caches: make(map[string]map[string]*fincache.CachedResponse),
	}
}

// Match retrieves a cached response
func (s *MemoryStore) Match(_ context.Context, cache, key string) (*fincache.CachedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	response, exists := s.caches[cache][key]
	if !exists {
		return nil, fincache.ErrNotFound
	}

	return response, nil
}

// Put stores a response, creating the cache on first use
func (s *MemoryStore) Put(_ context.Context, cache, key string, response *fincache.CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, exists := s.caches[cache]
	if !exists {
		entries = make(map[string]*fincache.CachedResponse)
		s.caches[cache] = entries
	}
	entries[key] = response

	return nil
}

// Keys lists the keys of one cache in sorted order
func (s *MemoryStore) Keys(_ context.Context, cache string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.caches[cache]))
	for key := range s.caches[cache] {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys, nil
}

// Names lists every cache in sorted order
func (s *MemoryStore) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.caches))
	for name := range s.caches {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// Drop deletes a cache
func (s *MemoryStore) Drop(_ context.Context, cache string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.caches, cache)

	return nil
}
