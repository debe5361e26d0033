package ledger

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store] for tests and dry runs.
// The zero value is ready to use.
type MemStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]int64
}

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{namespaces: make(map[string]map[string]int64)}
}

// Published implements [Store.Published].
func (s *MemStore) Published(_ context.Context, namespace string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := maps.Clone(s.namespaces[namespace])
	if out == nil {
		out = make(map[string]int64)
	}
	return out, nil
}

// Publish implements [Store.Publish].
func (s *MemStore) Publish(_ context.Context, namespace string, ids map[string]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.namespaces == nil {
		s.namespaces = make(map[string]map[string]int64)
	}
	published := s.namespaces[namespace]
	owner := make(map[int64]string, len(published))
	for k, id := range published {
		owner[id] = k
	}

	for key, id := range ids {
		if old, ok := published[key]; ok && old != id {
			return fmt.Errorf("%w: %s key %q is %d, not %d", ErrReassigned, namespace, key, old, id)
		}
		if k, ok := owner[id]; ok && k != key {
			return fmt.Errorf("%w: %s id %d belongs to %q, not %q", ErrReassigned, namespace, id, k, key)
		}
	}

	if published == nil {
		published = make(map[string]int64, len(ids))
		s.namespaces[namespace] = published
	}
	maps.Copy(published, ids)
	return nil
}
