// Package memory contains an in-memory blob store for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/matchpulse/feedgate/internal/blob"
)

// Store keeps artifacts in a map.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New returns an empty memory Store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Put stores a copy of data under path.
func (s *Store) Put(_ context.Context, path string, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[path] = cp
	return fmt.Sprintf("mem://%s", path), nil
}

// Get returns the stored bytes or blob.ErrNotExist.
func (s *Store) Get(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, blob.ErrNotExist
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Len reports how many objects are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
