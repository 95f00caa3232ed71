package fixstore

import (
	"context"
	"sync"
)

// Memory is an in-process store, used by tests and for ad-hoc fix sets.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemory copies docs into a new store.
func NewMemory(docs map[string][]byte) *Memory {
	m := &Memory{docs: make(map[string][]byte, len(docs))}
	for k, v := range docs {
		m.docs[k] = append([]byte(nil), v...)
	}
	return m
}

// Put stores doc under key.
func (m *Memory) Put(key string, doc []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = append([]byte(nil), doc...)
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), doc...), nil
}

func (m *Memory) Close() error { return nil }
