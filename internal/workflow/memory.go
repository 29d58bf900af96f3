package workflow

import (
	"context"
	"sync"
)

// MemoryStore keeps checkpoints in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]map[string]Checkpoint
}

var _ CheckpointStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]map[string]Checkpoint{}}
}

func (m *MemoryStore) Load(_ context.Context, runKey, stage string) (Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.items[runKey][stage]
	return cp, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, cp Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[cp.RunKey] == nil {
		m.items[cp.RunKey] = map[string]Checkpoint{}
	}
	cp.Payload = append([]byte(nil), cp.Payload...)
	m.items[cp.RunKey][cp.Stage] = cp
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, runKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, runKey)
	return nil
}
