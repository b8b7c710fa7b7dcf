// Package memory provides an in-process storage.KVStore.
package memory

import (
	"context"
	"sync"

	"github.com/aevon-lab/indexer-metrics-collector/internal/core/storage"
)

// Store keeps values in a map. State is lost when the process exits.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		values: make(map[string][]byte),
	}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

var _ storage.KVStore = (*Store)(nil)
