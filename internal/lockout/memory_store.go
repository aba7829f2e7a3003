package lockout

import (
	"context"
	"sync"
	"time"
)

// memoryEntry is a single stored value with its absolute expiry.
type memoryEntry struct {
	value    []byte
	expireAt time.Time
}

func (e *memoryEntry) isExpired(now time.Time) bool {
	return now.After(e.expireAt)
}

// MemoryStore is a thread-safe in-memory Store used when REDIS_URL is
// unset. It bounds the number of stored records by evicting the
// oldest-inserted key (reads and overwrites do not refresh a key's
// position) so a sustained attack from many distinct IPs cannot grow
// memory unbounded.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	order   []string
	maxSize int
}

// NewMemoryStore creates an in-memory store holding at most maxSize live
// records.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		order:   make([]string, 0),
		maxSize: maxSize,
	}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, found := m.entries[key]
	if !found {
		return nil, false, nil
	}
	if entry.isExpired(time.Now()) {
		m.deleteLocked(key)
		return nil, false, nil
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	entry := &memoryEntry{value: stored, expireAt: time.Now().Add(ttl)}

	if _, exists := m.entries[key]; exists {
		m.entries[key] = entry
		return nil
	}

	for len(m.entries) >= m.maxSize && len(m.order) > 0 {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}

	m.entries[key] = entry
	m.order = append(m.order, key)
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(key)
	return nil
}

// deleteLocked removes key from both the entry map and the eviction
// order slice. Caller must hold m.mu.
func (m *MemoryStore) deleteLocked(key string) {
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Size returns the current number of live records, for diagnostics.
func (m *MemoryStore) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Ping always succeeds: an in-process map has no connectivity to lose.
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}
