package storage

import (
	"errors"
	"sort"
	"sync"
)

// MaxBlobBytes caps a single stored value, mirroring the browser's
// per-origin storage budget.
const MaxBlobBytes = 1 << 20

var (
	ErrNotFound      = errors.New("key not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrUnavailable   = errors.New("storage is not available")
)

// MemoryStore is an in-process key-value store. A positive quota limits the
// total bytes of all values.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]string
	quota int
	used  int
}

func NewMemoryStore(quota int) *MemoryStore {
	return &MemoryStore{
		data:  make(map[string]string),
		quota: quota,
	}
}

func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(key, value string) error {
	if len(value) > MaxBlobBytes {
		return ErrQuotaExceeded
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used - len(m.data[key]) + len(value)
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}
	m.data[key] = value
	m.used = used
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.used -= len(m.data[key])
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
