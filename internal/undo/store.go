// Package undo records every reference rewrite made by a batch so it can be
// reverted exactly. The log is append-only: every committed rewrite gets its
// own entry, even when a reference is rewritten to a name it held before.
// Media files are never deleted by a revert.
package undo

import (
	"context"
	"time"

	"github.com/backmassage/retempo/internal/collection"
	"github.com/backmassage/retempo/internal/persistence/sqlite"
)

// Entry is one rewrite: in RecordID/FieldID, references to Original were
// replaced by references to New.
type Entry struct {
	ID        int64               `json:"id"`
	RunID     string              `json:"run_id"`
	RecordID  collection.RecordID `json:"record_id"`
	FieldID   collection.FieldID  `json:"field_id"`
	Original  string              `json:"original"`
	New       string              `json:"new"`
	Speed     float64             `json:"speed"`
	CreatedAt time.Time           `json:"created_at"`
}

// Store persists entries. Append always adds a new entry and sets e.ID.
// Listings are ordered oldest first.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	ForRecord(ctx context.Context, id collection.RecordID) ([]Entry, error)
	ForRun(ctx context.Context, runID string) ([]Entry, error)
	All(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, id int64) error
	Close() error
}

// NewStore opens the SQLite log at path; "" or ":memory:" returns a
// MemoryStore.
func NewStore(path string) (Store, error) {
	if path == "" || path == sqlite.Memory {
		return NewMemoryStore(), nil
	}
	return NewSqliteStore(path)
}
