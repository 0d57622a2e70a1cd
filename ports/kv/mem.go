package kv

import (
	"context"
	"slices"
	"sync"
)

type MemStore struct {
	mu   sync.RWMutex
	data map[string][][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{data: map[string][][]byte{}}
}

func (m *MemStore) AppendToList(_ context.Context, key string, value []byte) error {
	if key == "" {
		return ErrKeyRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append(m.data[key], slices.Clone(value))
	return nil
}

func (m *MemStore) ReadList(_ context.Context, key string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.data[key]
	out := make([][]byte, len(list))
	for i, v := range list {
		out[i] = slices.Clone(v)
	}
	return out, nil
}

func (m *MemStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.data)
	return nil
}

var _ Store = (*MemStore)(nil)
