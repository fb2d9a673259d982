package store

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryStore is a thread-safe in-memory implementation of
// ObjectStore. Used in tests and embedded setups that have no bucket.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// Call counters let tests assert how much work a run performed.
	PutCalls    int
	GetCalls    int
	ExistsCalls int
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		objects: make(map[string][]byte),
	}
}

// Exists implements ObjectStore
func (s *InMemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ExistsCalls++
	_, ok := s.objects[key]
	return ok, nil
}

// Put implements ObjectStore
func (s *InMemoryStore) Put(ctx context.Context, key string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.PutCalls++
	stored := make([]byte, len(body))
	copy(stored, body)
	s.objects[key] = stored
	return nil
}

// Get implements ObjectStore
func (s *InMemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.GetCalls++
	body, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

// Len returns the number of stored objects
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
