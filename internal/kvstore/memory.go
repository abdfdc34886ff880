package kvstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store, mostly useful in tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, namespace string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, found := m.data[namespace]
	if !found {
		return nil, false, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, namespace string, value []byte) error {
	buf := make([]byte, len(value))
	copy(buf, value)
	m.mu.Lock()
	m.data[namespace] = buf
	m.mu.Unlock()
	return nil
}

// Namespaces lists the namespaces currently stored.
func (m *Memory) Namespaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	return out
}
