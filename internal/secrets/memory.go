package secrets

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
	writes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Write(ctx context.Context, name, value string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	location := "mem://" + name
	s.values[location] = value
	s.writes++
	return location, nil
}

func (s *MemoryStore) Locate(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	location := "mem://" + name
	if _, ok := s.values[location]; !ok {
		return "", fmt.Errorf("no secret named %s", name)
	}
	return location, nil
}

func (s *MemoryStore) Read(ctx context.Context, location string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[location]
	if !ok {
		return "", fmt.Errorf("no secret at %s", location)
	}
	return value, nil
}

// Writes returns the number of store writes performed. Test helper for the
// write-once guarantee.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
