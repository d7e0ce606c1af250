package collection

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/retempo/internal/persistence/sqlite"
)

// notesSchema mirrors the columns of Anki's notes table. It is only
// created when missing, so an existing collection is used as-is.
const notesSchema = `
CREATE TABLE IF NOT EXISTS notes (
	id    INTEGER PRIMARY KEY,
	guid  TEXT NOT NULL,
	mid   INTEGER NOT NULL,
	mod   INTEGER NOT NULL,
	usn   INTEGER NOT NULL,
	tags  TEXT NOT NULL,
	flds  TEXT NOT NULL,
	sfld  INTEGER NOT NULL,
	csum  INTEGER NOT NULL,
	flags INTEGER NOT NULL,
	data  TEXT NOT NULL
);`

// SQLite is a Store over a collection database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the collection at path.
func Open(path string) (*SQLite, error) {
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(notesSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("collection: ensure schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) fields(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, id RecordID) ([]string, error) {
	var flds string
	err := q.QueryRowContext(ctx, `SELECT flds FROM notes WHERE id = ?`, int64(id)).Scan(&flds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("collection: read record %d: %w", id, err)
	}
	return splitFields(flds), nil
}

// Fields lists the field ids of record id.
func (s *SQLite) Fields(ctx context.Context, id RecordID) ([]FieldID, error) {
	f, err := s.fields(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return fieldIDs(len(f)), nil
}

// FieldText returns the text of one field.
func (s *SQLite) FieldText(ctx context.Context, id RecordID, field FieldID) (string, error) {
	f, err := s.fields(ctx, s.db, id)
	if err != nil {
		return "", err
	}
	if int(field) < 0 || int(field) >= len(f) {
		return "", fmt.Errorf("%w: record %d field %d", ErrFieldNotFound, id, field)
	}
	return f[field], nil
}

// SetFieldText replaces one field inside a transaction and marks the note
// modified (mod = now, usn = -1) so the host application syncs it.
func (s *SQLite) SetFieldText(ctx context.Context, id RecordID, field FieldID, text string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("collection: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	f, err := s.fields(ctx, tx, id)
	if err != nil {
		return err
	}
	if int(field) < 0 || int(field) >= len(f) {
		return fmt.Errorf("%w: record %d field %d", ErrFieldNotFound, id, field)
	}
	f[field] = text

	sfld, csum := sortField(f[0])
	_, err = tx.ExecContext(ctx,
		`UPDATE notes SET flds = ?, sfld = ?, csum = ?, mod = ?, usn = -1 WHERE id = ?`,
		joinFields(f), sfld, csum, s.now().Unix(), int64(id))
	if err != nil {
		return fmt.Errorf("collection: update record %d: %w", id, err)
	}
	return tx.Commit()
}

// Select resolves a selection to record ids.
func (s *SQLite) Select(ctx context.Context, sel Selection) ([]RecordID, error) {
	if len(sel.IDs) > 0 {
		var out []RecordID
		for _, id := range dedupe(sel.IDs) {
			var n int
			err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE id = ?`, int64(id)).Scan(&n)
			if err != nil {
				return nil, fmt.Errorf("collection: select: %w", err)
			}
			if n > 0 {
				out = append(out, id)
			}
		}
		return out, nil
	}
	if !sel.All && sel.Tag == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, tags FROM notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("collection: select: %w", err)
	}
	defer rows.Close()

	var out []RecordID
	for rows.Next() {
		var (
			id   int64
			tags string
		)
		if err := rows.Scan(&id, &tags); err != nil {
			return nil, fmt.Errorf("collection: scan: %w", err)
		}
		if sel.Tag == "" || hasTag(tags, sel.Tag) {
			out = append(out, RecordID(id))
		}
	}
	return out, rows.Err()
}

// Add inserts a record and returns its id. Ids follow Anki's convention of
// millisecond timestamps, bumped when taken.
func (s *SQLite) Add(ctx context.Context, fields []string, tags ...string) (RecordID, error) {
	if len(fields) == 0 {
		return 0, fmt.Errorf("collection: record needs at least one field")
	}
	id := s.now().UnixMilli()
	var maxID sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM notes`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("collection: next id: %w", err)
	}
	if maxID.Valid && maxID.Int64 >= id {
		id = maxID.Int64 + 1
	}

	tagList := ""
	if len(tags) > 0 {
		tagList = " " + strings.Join(tags, " ") + " "
	}
	sfld, csum := sortField(fields[0])
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data)
		 VALUES (?, ?, 0, ?, -1, ?, ?, ?, ?, 0, '')`,
		id, uuid.NewString(), s.now().Unix(), tagList, joinFields(fields), sfld, csum)
	if err != nil {
		return 0, fmt.Errorf("collection: insert: %w", err)
	}
	return RecordID(id), nil
}

var (
	htmlTag   = regexp.MustCompile(`<[^>]*>`)
	soundTags = regexp.MustCompile(`\[sound:[^\]]+\]`)
)

// sortField derives the sort field and checksum columns from the first
// field: markup stripped, checksum from the leading 32 bits of its SHA-1.
func sortField(first string) (string, int64) {
	plain := strings.TrimSpace(soundTags.ReplaceAllString(htmlTag.ReplaceAllString(first, ""), ""))
	sum := sha1.Sum([]byte(plain))
	return plain, int64(binary.BigEndian.Uint32(sum[:4]))
}
