package otp

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process; for tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Update runs fn under the store lock.
func (s *MemoryStore) Update(ctx context.Context, phone string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *Record
	if rec, ok := s.records[phone]; ok {
		current = &rec
	}
	change, err := fn(current)
	switch change.Op {
	case Put:
		s.records[phone] = change.Record
	case Delete:
		delete(s.records, phone)
	}
	return err
}
