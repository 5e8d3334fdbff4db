package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const journalSchema = `
CREATE TABLE IF NOT EXISTS refresh_log (
	id           TEXT PRIMARY KEY,
	bucket       TEXT NOT NULL,
	fingerprint  TEXT,
	trigger_type TEXT NOT NULL,
	decision     TEXT NOT NULL,
	reason       TEXT,
	attempts     INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL
);
`

const journalIndex = `
CREATE INDEX IF NOT EXISTS idx_refresh_log_created ON refresh_log(created_at);
`
// #endregion schema

// #region journal
// Journal records every refresh decision in SQLite so a session can be audited later.
type Journal struct {
	db *sql.DB
	// closer is set only when the journal opened its own database.
	closer func() error
}

// NewJournal creates the refresh_log table if needed and returns a journal.
func NewJournal(db *sql.DB) (*Journal, error) {
	if _, err := db.Exec(journalSchema); err != nil {
		return nil, fmt.Errorf("migrate refresh_log: %w", err)
	}
	if _, err := db.Exec(journalIndex); err != nil {
		return nil, fmt.Errorf("index refresh_log: %w", err)
	}
	return &Journal{db: db}, nil
}

// OpenJournal opens a journal in its own SQLite file. Used when the insight
// cache lives outside SQLite.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	j, err := NewJournal(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	j.closer = db.Close
	return j, nil
}

// Close releases the database if OpenJournal created it.
func (j *Journal) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer()
}
// #endregion journal

// #region record
// Record writes one decision. ID and CreatedAt are filled in when empty.
func (j *Journal) Record(ctx context.Context, entry JournalEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO refresh_log (id, bucket, fingerprint, trigger_type, decision, reason, attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Bucket,
		nullIfEmpty(entry.Fingerprint),
		entry.Trigger,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.Attempts,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}
// #endregion record

// #region recent
// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, bucket, fingerprint, trigger_type, decision, reason, attempts, created_at
		 FROM refresh_log ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var fp, reason sql.NullString
		var created string
		if err := rows.Scan(&e.ID, &e.Bucket, &fp, &e.Trigger, &e.Decision, &reason, &e.Attempts, &created); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Fingerprint = fp.String
		e.Reason = reason.String
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
// #endregion recent

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
