// Package store contains the shared in-memory variable map.
// It is safe for concurrent use by the host and the network goroutine.
package store

import (
	"sync"

	"github.com/ASHISH26940/sharedvars/internal/variant"
)

// Store maps variable names to values under a single lock.
// Every method holds the lock for its whole duration and never performs I/O.
type Store struct {
	mu   sync.RWMutex
	data map[string]variant.Variant
}

// NewStore initializes and returns a new empty Store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]variant.Variant),
	}
}

// Add inserts or overwrites the value stored under key.
func (s *Store) Add(key string, v variant.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = v
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(key string) (variant.Variant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Remove deletes key and returns the value it held. An absent key is not an error.
func (s *Store) Remove(key string) (variant.Variant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if ok {
		delete(s.data, key)
	}
	return v, ok
}

// Len returns the number of stored variables.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
