package storage

import (
	"context"
	"fmt"
	"sync"
)

// Memory is a process-local store. A non-zero quota caps the total size of
// keys plus values in bytes; writes beyond it fail with ErrQuotaExceeded.
type Memory struct {
	mu         sync.RWMutex
	data       map[string]string
	quotaBytes int
	used       int
}

// NewMemory creates an empty in-memory store
func NewMemory(quotaBytes int) *Memory {
	return &Memory{
		data:       make(map[string]string),
		quotaBytes: quotaBytes,
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used + len(value)
	if old, ok := m.data[key]; ok {
		used -= len(old)
	} else {
		used += len(key)
	}

	if m.quotaBytes > 0 && used > m.quotaBytes {
		return fmt.Errorf("set %q (%d of %d bytes): %w", key, used, m.quotaBytes, ErrQuotaExceeded)
	}

	m.data[key] = value
	m.used = used
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.data[key]; ok {
		m.used -= len(key) + len(old)
		delete(m.data, key)
	}
	return nil
}

func (m *Memory) Health(context.Context) error {
	return nil
}
