package reportstore

import (
	"context"
	"fmt"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]StoredReport
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]StoredReport),
	}
}

func (s *MemoryStore) Put(_ context.Context, r StoredReport) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	id, err := normalizeID(r.ID)
	if err != nil {
		return err
	}
	r.ID = id
	r = cloneReport(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = r
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (StoredReport, error) {
	if s == nil {
		return StoredReport{}, fmt.Errorf("store is nil")
	}
	id, err := normalizeID(id)
	if err != nil {
		return StoredReport{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[id]
	if !ok {
		return StoredReport{}, ErrNotFound
	}
	return cloneReport(r), nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return sortNewestFirst(ids), nil
}
