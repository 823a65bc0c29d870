package source

import (
	"context"
	"sync"
)

// Memory holds a snapshot in process memory. Used in tests and for local runs
// without a distribution point.
type Memory struct {
	mu      sync.RWMutex
	data    []byte
	fetches int
	err     error
}

// NewMemory returns a store holding data; nil data behaves like a missing
// snapshot.
func NewMemory(data []byte) *Memory {
	return &Memory{data: data}
}

func (m *Memory) Describe() string {
	return "memory"
}

func (m *Memory) Fetch(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.err != nil {
		return nil, fetchErr(m, m.err)
	}
	if m.data == nil {
		return nil, notFound(m)
	}
	return append([]byte(nil), m.data...), nil
}

func (m *Memory) Publish(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

// FailWith makes subsequent fetches fail with err until cleared with nil.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Fetches reports how many times Fetch was called.
func (m *Memory) Fetches() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetches
}
