// Package store provides durable key-value backends for cached audio and the
// last-used credential. Every backend implements core.Store.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Static errors.
var (
	ErrQuotaExceeded  = errors.New("store quota exceeded")
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrStoreClosed    = errors.New("store is closed")
)

// MemoryStore is a process-local store with an optional quota on the total
// size of keys and values, in bytes.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	quota  int
	used   int
	closed bool
}

// NewMemoryStore creates an empty store. A quota of zero means unlimited.
func NewMemoryStore(quotaBytes int) *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
		quota:  quotaBytes,
	}
}

// Get returns the value for key.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, ErrStoreClosed
	}

	value, found := m.values[key]

	return value, found, nil
}

// Set stores value under key, replacing any previous value.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	used := m.used + len(key) + len(value)
	if previous, found := m.values[key]; found {
		used -= len(key) + len(previous)
	}

	if m.quota > 0 && used > m.quota {
		return fmt.Errorf("%w: writing %q needs %d of %d bytes", ErrQuotaExceeded, key, used, m.quota)
	}

	m.values[key] = value
	m.used = used

	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.values)
}

// Close releases the store; later calls fail with ErrStoreClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}
