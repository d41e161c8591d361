package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory cross-thread store for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]Item // namespace string -> key -> item
	closed bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]Item),
	}
}

// Put implements Store.
func (m *MemoryStore) Put(ctx context.Context, ns Namespace, key string, value any) error {
	data, err := encodeValue(ns, key, value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	nsKey := ns.String()
	if m.data[nsKey] == nil {
		m.data[nsKey] = make(map[string]Item)
	}

	now := time.Now().UTC()
	created := now
	if existing, ok := m.data[nsKey][key]; ok {
		created = existing.CreatedAt
	}

	m.data[nsKey][key] = Item{
		Namespace: append(Namespace(nil), ns...),
		Key:       key,
		Value:     data,
		CreatedAt: created,
		UpdatedAt: now,
	}

	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, ns Namespace, key string) (*Item, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	items, ok := m.data[ns.String()]
	if !ok {
		return nil, ErrNotFound
	}

	item, ok := items[key]
	if !ok {
		return nil, ErrNotFound
	}

	copied := item
	copied.Value = append([]byte(nil), item.Value...)
	return &copied, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, ns Namespace, key string) error {
	if err := ns.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if items, ok := m.data[ns.String()]; ok {
		delete(items, key)
	}
	return nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context, ns Namespace, prefix string) ([]Item, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	items, ok := m.data[ns.String()]
	if !ok {
		return nil, nil
	}

	result := make([]Item, 0, len(items))
	for key, item := range items {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		copied := item
		copied.Value = append([]byte(nil), item.Value...)
		result = append(result, copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}
