package local

import (
	"context"
	"sync"
)

// Memory keeps values in process memory. Used for tests and for running
// without any writable device storage.
type Memory struct {
	mu       sync.RWMutex
	values   map[string]string
	used     int64
	maxBytes int64
}

// NewMemory creates a store holding at most maxBytes of keys and values.
// A non-positive maxBytes disables the limit.
func NewMemory(maxBytes int64) *Memory {
	return &Memory{
		values:   make(map[string]string),
		maxBytes: maxBytes,
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[key]
	if !ok {
		return "", notFound(key)
	}
	return value, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used
	if old, ok := m.values[key]; ok {
		used -= entrySize(key, old)
	}
	used += entrySize(key, value)

	if m.maxBytes > 0 && used > m.maxBytes {
		return ErrQuotaExceeded
	}

	m.values[key] = value
	m.used = used
	return nil
}

func (m *Memory) Close() error { return nil }
