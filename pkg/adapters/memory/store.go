package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/wayfarer/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.SessionSnapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.SessionSnapshot),
	}
}

// Get returns a copy of the snapshot so callers can't mutate the store through it.
func (s *Store) Get(ctx context.Context, key string) (*domain.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[key]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return snap.Clone(), nil
}

// Merge applies the patch under the write lock, so concurrent merges never lose fields.
func (s *Store) Merge(ctx context.Context, key string, patch domain.SessionPatch) (*domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.data[key]
	if !ok {
		snap = domain.NewSessionSnapshot()
	} else {
		snap = snap.Clone()
	}
	snap.Apply(patch)
	s.data[key] = snap
	return snap.Clone(), nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List returns session keys in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
