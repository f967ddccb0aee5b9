package store

import (
	"context"
	"sort"
	"sync"

	"procverify/internal/history"
)

type InMemoryStore struct {
	mu        sync.RWMutex
	records   []history.Record
	byProcess map[string][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byProcess: make(map[string][]int)}
}

func (s *InMemoryStore) Append(_ context.Context, r history.Record) error {
	r.PolicyIDs = append([]string(nil), r.PolicyIDs...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byProcess[r.ProcessNumber] = append(s.byProcess[r.ProcessNumber], len(s.records))
	s.records = append(s.records, r)
	return nil
}

func (s *InMemoryStore) ListByProcess(_ context.Context, processNumber string) ([]history.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.byProcess[processNumber]
	out := make([]history.Record, 0, len(idx))
	for _, i := range idx {
		out = append(out, copyRecord(s.records[i]))
	}
	sortByTime(out)
	return out, nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]history.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]history.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, copyRecord(r))
	}
	sortByTime(out)
	return out, nil
}

// Clear drops every record. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.byProcess = make(map[string][]int)
}

func copyRecord(r history.Record) history.Record {
	r.PolicyIDs = append([]string(nil), r.PolicyIDs...)
	return r
}

func sortByTime(rs []history.Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].RecordedAt.Before(rs[j].RecordedAt)
	})
}
