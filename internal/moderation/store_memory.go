package moderation

import (
	"context"
	"sort"
	"sync"
)

// MemoryProtectedStore is the in-memory protected-record store.
type MemoryProtectedStore struct {
	mu      sync.RWMutex
	records map[string]ProtectedRecord
}

func NewMemoryProtectedStore() *MemoryProtectedStore {
	return &MemoryProtectedStore{records: make(map[string]ProtectedRecord)}
}

func (s *MemoryProtectedStore) IsProtected(_ context.Context, value string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[value]
	return ok, nil
}

// Put inserts the record unless the value is already protected. Returns false
// when an existing record won.
func (s *MemoryProtectedStore) Put(_ context.Context, rec ProtectedRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.Value]; ok {
		return false, nil
	}
	s.records[rec.Value] = rec
	return true, nil
}

// Remove deletes the record and reports whether one existed.
func (s *MemoryProtectedStore) Remove(_ context.Context, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[value]; !ok {
		return false, nil
	}
	delete(s.records, value)
	return true, nil
}

func (s *MemoryProtectedStore) List(_ context.Context) ([]ProtectedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ProtectedRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProtectedAt.After(out[j].ProtectedAt) })
	return out, nil
}

func (s *MemoryProtectedStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}
