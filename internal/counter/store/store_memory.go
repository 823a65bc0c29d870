package store

import (
	"context"
	"maps"
	"sync"

	"foodvote/internal/counter"
)

// InMemoryStore implements counter.Store with a mutex-guarded map. Holding the
// lock across a batch gives the same all-or-nothing visibility as the Redis
// scripts.
type InMemoryStore struct {
	mu     sync.RWMutex
	counts map[string]int64
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{counts: make(map[string]int64)}
}

func (s *InMemoryStore) Initialize(_ context.Context, keys []string) (map[string]int64, error) {
	out := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if _, ok := s.counts[k]; !ok {
			s.counts[k] = 0
		}
		out[k] = s.counts[k]
	}
	return out, nil
}

func (s *InMemoryStore) ApplyDeltas(_ context.Context, deltas []counter.Delta) (int, error) {
	if len(deltas) == 0 {
		return 0, nil
	}
	if err := counter.Validate(deltas); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := 0
	for _, d := range deltas {
		if s.counts[d.Key]+d.Direction < 0 {
			continue
		}
		s.counts[d.Key] += d.Direction
		applied++
	}
	return applied, nil
}

func (s *InMemoryStore) Get(_ context.Context, keys []string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(keys))
	for _, k := range keys {
		if v, ok := s.counts[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *InMemoryStore) All(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.counts), nil
}
