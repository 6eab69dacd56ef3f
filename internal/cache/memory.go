package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is a bounded in-process cache. Entries expire after the
// default TTL; per-call TTLs are not honoured by the underlying LRU.
type MemoryStore struct {
	lru *expirable.LRU[string, []byte]

	mu       sync.Mutex
	counters map[string]int64
}

// NewMemoryStore returns a cache holding at most size entries.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		lru:      expirable.NewLRU[string, []byte](size, nil, ttl),
		counters: make(map[string]int64),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if key == "" {
		return errors.New("cache key is required")
	}
	s.lru.Add(key, append([]byte(nil), value...))
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.lru.Remove(key)
	}
	return nil
}

func (s *MemoryStore) Counter(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[key], nil
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	if key == "" {
		return 0, errors.New("cache key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}
