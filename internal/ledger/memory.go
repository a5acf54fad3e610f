package ledger

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore implements Store with in-memory storage. It is the
// default backend for local development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	ledgers   map[string][]Record
	revisions map[string]uint64
}

// NewMemoryStore creates a new in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ledgers:   make(map[string][]Record),
		revisions: make(map[string]uint64),
	}
}

// Append adds one record to the end of the user's ledger.
func (s *MemoryStore) Append(_ context.Context, userID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[userID] = append(s.ledgers[userID], rec)
	s.revisions[userID]++
	return nil
}

// List returns every record for the user in insertion order.
func (s *MemoryStore) List(_ context.Context, userID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs, ok := s.ledgers[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Record, len(recs))
	copy(out, recs)
	return out, nil
}

// Revision returns a marker that changes on every append.
func (s *MemoryStore) Revision(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.ledgers[userID]; !ok {
		return "", ErrNotFound
	}
	return fmt.Sprintf("mem-%d", s.revisions[userID]), nil
}
