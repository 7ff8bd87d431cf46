package storage

import (
	"context"
	"sync"

	"github.com/aristath/lottoscan/internal/analysis"
)

// MemoryStore keeps records in process memory. Records are cloned on the way
// in and out so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*analysis.Record
	saves   int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*analysis.Record)}
}

// Load returns a copy of the record stored under key, or nil.
func (s *MemoryStore) Load(_ context.Context, key string) (*analysis.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return r.Clone(), nil
}

// Save stores a copy of record under key.
func (s *MemoryStore) Save(_ context.Context, key string, record *analysis.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = record.Clone()
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Name implements Store.
func (s *MemoryStore) Name() string { return "memory" }

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
