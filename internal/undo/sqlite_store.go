package undo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/backmassage/retempo/internal/collection"
	"github.com/backmassage/retempo/internal/persistence/sqlite"
)

// migrations[i] moves the schema from version i to i+1. Version 2 drops the
// unique key so every committed rewrite keeps its own row.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS undo_entries (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT NOT NULL,
		record_id  INTEGER NOT NULL,
		field_id   INTEGER NOT NULL,
		original   TEXT NOT NULL,
		new        TEXT NOT NULL,
		speed      REAL NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (record_id, field_id, original, speed)
	);
	CREATE INDEX IF NOT EXISTS idx_undo_record ON undo_entries(record_id);
	CREATE INDEX IF NOT EXISTS idx_undo_run ON undo_entries(run_id);
	`,
	`
	CREATE TABLE undo_entries_v2 (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT NOT NULL,
		record_id  INTEGER NOT NULL,
		field_id   INTEGER NOT NULL,
		original   TEXT NOT NULL,
		new        TEXT NOT NULL,
		speed      REAL NOT NULL,
		created_at INTEGER NOT NULL
	);
	INSERT INTO undo_entries_v2 (id, run_id, record_id, field_id, original, new, speed, created_at)
		SELECT id, run_id, record_id, field_id, original, new, speed, created_at FROM undo_entries;
	DROP TABLE undo_entries;
	ALTER TABLE undo_entries_v2 RENAME TO undo_entries;
	CREATE INDEX idx_undo_record ON undo_entries(record_id, field_id);
	CREATE INDEX idx_undo_run ON undo_entries(run_id);
	`,
}

var schemaVersion = len(migrations)

// SqliteStore implements Store using SQLite.
type SqliteStore struct {
	DB *sql.DB
}

// NewSqliteStore opens (and migrates) the undo log at dbPath.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{DB: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("undo store: migration failed: %w", err)
	}
	return s, nil
}

func (s *SqliteStore) migrate() error {
	current, err := sqlite.UserVersion(s.DB)
	if err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for v := current; v < schemaVersion; v++ {
		if _, err := tx.Exec(migrations[v]); err != nil {
			return fmt.Errorf("schema v%d: %w", v+1, err)
		}
	}
	if err := sqlite.SetUserVersion(tx, schemaVersion); err != nil {
		return err
	}
	return tx.Commit()
}

// Append inserts e as a new row; repeated rewrites of the same reference
// each keep their own entry.
func (s *SqliteStore) Append(ctx context.Context, e *Entry) error {
	query := `
	INSERT INTO undo_entries (run_id, record_id, field_id, original, new, speed, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	RETURNING id
	`
	return s.DB.QueryRowContext(ctx, query,
		e.RunID, int64(e.RecordID), int(e.FieldID), e.Original, e.New, e.Speed, e.CreatedAt.UnixNano(),
	).Scan(&e.ID)
}

const selectEntries = `SELECT id, run_id, record_id, field_id, original, new, speed, created_at FROM undo_entries`

func (s *SqliteStore) ForRecord(ctx context.Context, id collection.RecordID) ([]Entry, error) {
	return s.query(ctx, selectEntries+` WHERE record_id = ? ORDER BY created_at, id`, int64(id))
}

func (s *SqliteStore) ForRun(ctx context.Context, runID string) ([]Entry, error) {
	return s.query(ctx, selectEntries+` WHERE run_id = ? ORDER BY created_at, id`, runID)
}

func (s *SqliteStore) All(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, selectEntries+` ORDER BY created_at, id`)
}

func (s *SqliteStore) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			recordID  int64
			fieldID   int
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.RunID, &recordID, &fieldID, &e.Original, &e.New, &e.Speed, &createdAt); err != nil {
			return nil, err
		}
		e.RecordID = collection.RecordID(recordID)
		e.FieldID = collection.FieldID(fieldID)
		e.CreatedAt = time.Unix(0, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SqliteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.DB.ExecContext(ctx, "DELETE FROM undo_entries WHERE id = ?", id)
	return err
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}
