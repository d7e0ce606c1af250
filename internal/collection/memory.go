package collection

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store.
type Memory struct {
	mu     sync.RWMutex
	next   RecordID
	fields map[RecordID][]string
	tags   map[RecordID]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		next:   1,
		fields: make(map[RecordID][]string),
		tags:   make(map[RecordID]string),
	}
}

// Add inserts a record with the given fields and returns its id.
func (m *Memory) Add(fields ...string) RecordID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.fields[id] = append([]string(nil), fields...)
	return id
}

// Tag sets the space-separated tag list of id.
func (m *Memory) Tag(id RecordID, tags string) {
	m.mu.Lock()
	m.tags[id] = tags
	m.mu.Unlock()
}

// Snapshot returns a copy of the record's fields.
func (m *Memory) Snapshot(id RecordID) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.fields[id]...)
}

func (m *Memory) Fields(_ context.Context, id RecordID) ([]FieldID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.fields[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	return fieldIDs(len(f)), nil
}

func (m *Memory) FieldText(_ context.Context, id RecordID, field FieldID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.fields[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	if int(field) < 0 || int(field) >= len(f) {
		return "", fmt.Errorf("%w: record %d field %d", ErrFieldNotFound, id, field)
	}
	return f[field], nil
}

func (m *Memory) SetFieldText(_ context.Context, id RecordID, field FieldID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fields[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	if int(field) < 0 || int(field) >= len(f) {
		return fmt.Errorf("%w: record %d field %d", ErrFieldNotFound, id, field)
	}
	f[field] = text
	return nil
}

func (m *Memory) Select(_ context.Context, sel Selection) ([]RecordID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(sel.IDs) > 0 {
		var out []RecordID
		for _, id := range dedupe(sel.IDs) {
			if _, ok := m.fields[id]; ok {
				out = append(out, id)
			}
		}
		return out, nil
	}
	if !sel.All && sel.Tag == "" {
		return nil, nil
	}
	var out []RecordID
	for id := range m.fields {
		if sel.Tag == "" || hasTag(m.tags[id], sel.Tag) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
