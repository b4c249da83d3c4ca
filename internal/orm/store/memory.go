package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore implements an in-memory document store
type MemoryStore struct {
	data sync.Map
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func memoryKey(class, id string) string {
	return class + "\x00" + id
}

// Get retrieves a document
func (m *MemoryStore) Get(ctx context.Context, class, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, ok := m.data.Load(memoryKey(class, id))
	if !ok {
		return nil, NotFound(class, id)
	}

	doc := value.([]byte)
	return append([]byte(nil), doc...), nil
}

// Put creates or replaces a document
func (m *MemoryStore) Put(ctx context.Context, class, id string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.data.Store(memoryKey(class, id), append([]byte(nil), doc...))
	return nil
}

// Delete removes a document
func (m *MemoryStore) Delete(ctx context.Context, class, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.data.Delete(memoryKey(class, id))
	return nil
}

// Exists checks if a document is stored
func (m *MemoryStore) Exists(ctx context.Context, class, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, ok := m.data.Load(memoryKey(class, id))
	return ok, nil
}

// List returns the identifiers stored for class
func (m *MemoryStore) List(ctx context.Context, class string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := class + "\x00"
	var ids []string
	m.data.Range(func(key, _ interface{}) bool {
		if k := key.(string); strings.HasPrefix(k, prefix) {
			ids = append(ids, strings.TrimPrefix(k, prefix))
		}
		return true
	})
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op for the memory store
func (m *MemoryStore) Close() error {
	return nil
}
