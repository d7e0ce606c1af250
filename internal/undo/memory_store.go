package undo

import (
	"context"
	"sort"
	"sync"

	"github.com/backmassage/retempo/internal/collection"
)

// MemoryStore implements Store using a map keyed by entry id (thread-safe).
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*Entry
}

// NewMemoryStore creates an in-memory undo store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, data: make(map[int64]*Entry)}
}

func (s *MemoryStore) Append(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID
	s.nextID++
	clone := *e
	s.data[e.ID] = &clone
	return nil
}

func (s *MemoryStore) ForRecord(_ context.Context, id collection.RecordID) ([]Entry, error) {
	return s.filter(func(e *Entry) bool { return e.RecordID == id }), nil
}

func (s *MemoryStore) ForRun(_ context.Context, runID string) ([]Entry, error) {
	return s.filter(func(e *Entry) bool { return e.RunID == runID }), nil
}

func (s *MemoryStore) All(_ context.Context) ([]Entry, error) {
	return s.filter(func(*Entry) bool { return true }), nil
}

func (s *MemoryStore) filter(keep func(*Entry) bool) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.data {
		if keep(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.data = make(map[int64]*Entry)
	s.mu.Unlock()
	return nil
}
