package undo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/backmassage/retempo/internal/collection"
	"github.com/backmassage/retempo/internal/logging"
	"github.com/backmassage/retempo/internal/markup"
	"github.com/backmassage/retempo/internal/naming"
)

// RecordStore is the part of the record store a revert writes through.
type RecordStore interface {
	FieldText(ctx context.Context, id collection.RecordID, field collection.FieldID) (string, error)
	SetFieldText(ctx context.Context, id collection.RecordID, field collection.FieldID, text string) error
}

// RevertOutcome summarizes one record's revert. Stale entries no longer
// matched any marker (the field was edited since) and were dropped.
// Blocked entries were superseded by a later run and kept.
type RevertOutcome struct {
	RecordID collection.RecordID  `json:"record_id"`
	Reverted int                  `json:"reverted"`
	Stale    int                  `json:"stale"`
	Blocked  int                  `json:"blocked,omitempty"`
	Fields   []collection.FieldID `json:"fields,omitempty"`
}

// Log is the undo log used by the batch coordinator and the undo command.
type Log struct {
	store   Store
	records RecordStore
	logger  *logging.Logger

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewLog wraps store. records may be nil when the log is only appended to
// or listed; Revert needs it.
func NewLog(store Store, records RecordStore, logger *logging.Logger) *Log {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Log{store: store, records: records, logger: logger, now: time.Now}
}

// stamp returns a strictly increasing timestamp so entries appended in one
// process keep their order even on coarse clocks.
func (l *Log) stamp() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.now()
	if !t.After(l.last) {
		t = l.last.Add(time.Nanosecond)
	}
	l.last = t
	return t
}

// Append records e. Speed is normalized and CreatedAt stamped; the stored
// entry (with its id) is returned.
func (l *Log) Append(ctx context.Context, e Entry) (Entry, error) {
	e.Speed = naming.NormalizeSpeed(e.Speed)
	e.CreatedAt = l.stamp()
	if err := l.store.Append(ctx, &e); err != nil {
		return Entry{}, fmt.Errorf("undo: append record %d: %w", e.RecordID, err)
	}
	return e, nil
}

// EntriesFor lists the entries of one record, oldest first.
func (l *Log) EntriesFor(ctx context.Context, id collection.RecordID) ([]Entry, error) {
	return l.store.ForRecord(ctx, id)
}

// ForRun lists the entries written by one batch run, oldest first.
func (l *Log) ForRun(ctx context.Context, runID string) ([]Entry, error) {
	return l.store.ForRun(ctx, runID)
}

// All lists every entry, oldest first.
func (l *Log) All(ctx context.Context) ([]Entry, error) {
	return l.store.All(ctx)
}

// Processed reports whether filename in (id, field) is already the result
// of a rewrite at speed, or is an untouched original that a rewrite at
// speed consumed before (the reference was pasted back).
func (l *Log) Processed(ctx context.Context, id collection.RecordID, field collection.FieldID, filename string, speed float64) (bool, error) {
	entries, err := l.store.ForRecord(ctx, id)
	if err != nil {
		return false, err
	}
	produced := false
	for _, e := range entries {
		if e.FieldID == field && e.New == filename {
			produced = true
			if naming.SameSpeed(e.Speed, speed) {
				return true, nil
			}
		}
	}
	if produced {
		return false, nil
	}
	for _, e := range entries {
		if e.FieldID == field && e.Original == filename && naming.SameSpeed(e.Speed, speed) {
			return true, nil
		}
	}
	return false, nil
}

// Origin follows rewrites of (id, field) backwards from filename to the
// file that was referenced before any of them. Each step only looks at
// entries older than the one just followed, so a chain that toggles
// between speeds still ends at the root. A filename never produced by a
// rewrite is its own origin.
func (l *Log) Origin(ctx context.Context, id collection.RecordID, field collection.FieldID, filename string) (string, error) {
	entries, err := l.store.ForRecord(ctx, id)
	if err != nil {
		return "", err
	}
	cur := filename
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.FieldID == field && e.New == cur {
			cur = e.Original
		}
	}
	return cur, nil
}

// Revert undoes every rewrite recorded for id, newest first: each entry's
// New marker is turned back into its Original marker, the field is
// committed and the entry deleted. A record without entries is a no-op.
func (l *Log) Revert(ctx context.Context, id collection.RecordID) (RevertOutcome, error) {
	entries, err := l.store.ForRecord(ctx, id)
	if err != nil {
		return RevertOutcome{RecordID: id}, err
	}
	return l.revert(ctx, id, entries, nil)
}

// RevertRun undoes the rewrites of one batch run. Entries whose output was
// rewritten again by a later run are kept and counted as blocked.
func (l *Log) RevertRun(ctx context.Context, runID string) ([]RevertOutcome, error) {
	runEntries, err := l.store.ForRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	var (
		order    []collection.RecordID
		byRecord = make(map[collection.RecordID][]Entry)
	)
	for _, e := range runEntries {
		if _, ok := byRecord[e.RecordID]; !ok {
			order = append(order, e.RecordID)
		}
		byRecord[e.RecordID] = append(byRecord[e.RecordID], e)
	}

	outcomes := make([]RevertOutcome, 0, len(order))
	for _, id := range order {
		all, err := l.store.ForRecord(ctx, id)
		if err != nil {
			return outcomes, err
		}
		out, err := l.revert(ctx, id, byRecord[id], all)
		outcomes = append(outcomes, out)
		if err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// revert applies entries newest first. When history is non-nil, an entry
// whose New was consumed by a later entry outside the set is blocked.
func (l *Log) revert(ctx context.Context, id collection.RecordID, entries, history []Entry) (RevertOutcome, error) {
	out := RevertOutcome{RecordID: id}
	if len(entries) == 0 {
		return out, nil
	}
	if l.records == nil {
		return out, errors.New("undo: revert needs a record store")
	}

	inSet := make(map[int64]bool, len(entries))
	for _, e := range entries {
		inSet[e.ID] = true
	}
	touched := make(map[collection.FieldID]bool)

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if supersededBy(e, history, inSet) {
			out.Blocked++
			continue
		}

		text, err := l.records.FieldText(ctx, id, e.FieldID)
		switch {
		case errors.Is(err, collection.ErrFieldNotFound):
			text = ""
		case err != nil:
			return out, fmt.Errorf("undo: read record %d field %d: %w", id, e.FieldID, err)
		}

		restored, n := markup.Replace(text, e.New, e.Original)
		if n > 0 {
			if err := l.records.SetFieldText(ctx, id, e.FieldID, restored); err != nil {
				return out, fmt.Errorf("undo: write record %d field %d: %w", id, e.FieldID, err)
			}
			out.Reverted++
			if !touched[e.FieldID] {
				touched[e.FieldID] = true
				out.Fields = append(out.Fields, e.FieldID)
			}
		} else {
			out.Stale++
			l.logger.Debug("undo entry %d: [sound:%s] no longer in record %d field %d", e.ID, e.New, id, e.FieldID)
		}

		if err := l.store.Delete(ctx, e.ID); err != nil {
			return out, fmt.Errorf("undo: delete entry %d: %w", e.ID, err)
		}
	}
	return out, nil
}

func supersededBy(e Entry, history []Entry, inSet map[int64]bool) bool {
	for _, c := range history {
		if !inSet[c.ID] && c.FieldID == e.FieldID && c.Original == e.New && c.CreatedAt.After(e.CreatedAt) {
			return true
		}
	}
	return false
}
