package seen

import (
	"context"
	"sync"
)

// Store remembers message identifiers that were already delivered.
type Store interface {
	// MarkNew records id and reports whether it was seen for the first time.
	MarkNew(ctx context.Context, id string) (bool, error)
	// Forget drops id so a later MarkNew reports it as new again.
	Forget(ctx context.Context, id string) error
}

// Memory is a Store scoped to the lifetime of the value.
type Memory struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{ids: make(map[string]struct{})}
}

func (m *Memory) MarkNew(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[id]; ok {
		return false, nil
	}
	m.ids[id] = struct{}{}
	return true, nil
}

func (m *Memory) Forget(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ids, id)
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids)
}
