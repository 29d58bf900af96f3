package storage

import (
	"context"
	"sync"
	"time"

	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/ports"
)

// MemoryKV is a process-local KVStore honoring TTLs.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

var _ ports.KVStore = (*MemoryKV)(nil)

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, ports.ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil, ports.ErrNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

func (m *MemoryKV) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]domain.Lock
	now   func() time.Time
}

var _ ports.Locker = (*MemoryLocker)(nil)

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]domain.Lock), now: time.Now}
}

func (m *MemoryLocker) TryLock(_ context.Context, key string, lock domain.Lock, _ time.Duration) (bool, domain.Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.locks[key]; ok && held.Live(m.now()) {
		return false, held, nil
	}
	m.locks[key] = lock
	return true, lock, nil
}

func (m *MemoryLocker) Unlock(_ context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.locks[key]; ok && held.Owner == owner {
		delete(m.locks, key)
	}
	return nil
}

// MemoryBlobs is a process-local BlobStore.
type MemoryBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string
}

var _ ports.BlobStore = (*MemoryBlobs)(nil)

func NewMemoryBlobs(baseURL string) *MemoryBlobs {
	return &MemoryBlobs{objects: make(map[string][]byte), baseURL: baseURL}
}

func (m *MemoryBlobs) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBlobs) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryBlobs) Head(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return 0, ports.ErrNotFound
	}
	return int64(len(data)), nil
}

func (m *MemoryBlobs) PublicURL(key string) string {
	return publicURL(m.baseURL, key)
}

// Keys lists stored object keys.
func (m *MemoryBlobs) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
