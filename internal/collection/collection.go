// Package collection is the record store adapter. Records are notes with
// ordered text fields; the batch coordinator reads and rewrites single
// fields through the [Store] contract.
//
// Two implementations exist: [SQLite], which works on an Anki-style
// collection database (table "notes", fields joined by 0x1f), and [Memory]
// for tests and dry runs.
package collection

import (
	"context"
	"errors"
	"strings"
)

// RecordID identifies a record (an Anki note id).
type RecordID int64

// FieldID is the zero-based index of a field within a record.
type FieldID int

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrFieldNotFound  = errors.New("field not found")
)

// fieldSep joins fields in the persisted flds column.
const fieldSep = "\x1f"

// Selection picks records. IDs, when non-empty, are used in the given order
// (duplicates and unknown ids dropped). Otherwise All or Tag select in
// ascending id order.
type Selection struct {
	IDs []RecordID
	All bool
	Tag string
}

// Store is the record store contract.
type Store interface {
	Fields(ctx context.Context, id RecordID) ([]FieldID, error)
	FieldText(ctx context.Context, id RecordID, field FieldID) (string, error)
	SetFieldText(ctx context.Context, id RecordID, field FieldID, text string) error
	Select(ctx context.Context, sel Selection) ([]RecordID, error)
}

func fieldIDs(n int) []FieldID {
	ids := make([]FieldID, n)
	for i := range ids {
		ids[i] = FieldID(i)
	}
	return ids
}

func splitFields(flds string) []string {
	return strings.Split(flds, fieldSep)
}

func joinFields(fields []string) string {
	return strings.Join(fields, fieldSep)
}

// hasTag matches Anki's space-separated tag list case-insensitively.
func hasTag(tags, tag string) bool {
	for _, t := range strings.Fields(tags) {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func dedupe(ids []RecordID) []RecordID {
	seen := make(map[RecordID]bool, len(ids))
	out := make([]RecordID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
