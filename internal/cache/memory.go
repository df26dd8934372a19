package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// Memory — in-process хранилище.
//
// При maxEntries > 0 вытесняет давно неиспользованные записи (LRU),
// иначе растёт без ограничений до Clear. map[string]any и []any
// копируются при записи и чтении: изменение результата узла в одном
// run не меняет запись кэша для следующих.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]any

	lru *lru.Cache
}

// NewMemory создаёт in-memory хранилище.
func NewMemory(maxEntries int) (*Memory, error) {
	if maxEntries <= 0 {
		return &Memory{entries: make(map[string]any)}, nil
	}

	c, err := lru.New(maxEntries)
	if err != nil {
		return nil, err
	}
	return &Memory{lru: c}, nil
}

// Get реализует Store.
func (m *Memory) Get(_ context.Context, key string) (any, bool, error) {
	if m.lru != nil {
		v, ok := m.lru.Get(key)
		return cloneValue(v), ok, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return cloneValue(v), ok, nil
}

// Set реализует Store.
func (m *Memory) Set(_ context.Context, key string, value any) error {
	value = cloneValue(value)
	if m.lru != nil {
		m.lru.Add(key, value)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

// Clear реализует Store.
func (m *Memory) Clear(_ context.Context) error {
	if m.lru != nil {
		m.lru.Purge()
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]any)
	return nil
}

// Len реализует Store.
func (m *Memory) Len(_ context.Context) (int, error) {
	if m.lru != nil {
		return m.lru.Len(), nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// cloneValue копирует вложенные map[string]any и []any.
// Остальные значения возвращаются как есть.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
