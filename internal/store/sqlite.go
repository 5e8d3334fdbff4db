package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/aura-plan/internal/fingerprint"
	"github.com/danielpatrickdp/aura-plan/internal/horizon"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS insight_cache (
	bucket       TEXT PRIMARY KEY,
	vision       TEXT NOT NULL,
	suggestion   TEXT NOT NULL,
	prompt       TEXT NOT NULL,
	fingerprint  TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct
// SQLiteStore persists insight entries in SQLite, one row per bucket.
type SQLiteStore struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewSQLiteStore opens a SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows one writer; a single pooled connection serializes access.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStoreWithDB wraps an already-migrated database handle.
func NewSQLiteStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. the refresh journal).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}
// #endregion close

// #region get
// Get reads the entry for b.
func (s *SQLiteStore) Get(ctx context.Context, b horizon.Bucket) (Entry, bool, error) {
	var e Entry
	var fp, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT vision, suggestion, prompt, fingerprint, updated_at
		 FROM insight_cache WHERE bucket = ?`, string(b),
	).Scan(&e.Insight.Vision, &e.Insight.Suggestion, &e.Insight.Prompt, &fp, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get entry %s: %w", b, err)
	}
	e.Fingerprint = fingerprint.Value(fp)
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return Entry{}, false, fmt.Errorf("parse updated_at %s: %w", b, err)
	}
	return e, true, nil
}
// #endregion get

// #region put
// Put upserts the entry for b. The single statement replaces the whole row.
func (s *SQLiteStore) Put(ctx context.Context, b horizon.Bucket, e Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO insight_cache (bucket, vision, suggestion, prompt, fingerprint, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(bucket) DO UPDATE SET
			vision = excluded.vision,
			suggestion = excluded.suggestion,
			prompt = excluded.prompt,
			fingerprint = excluded.fingerprint,
			updated_at = excluded.updated_at`,
		string(b), e.Insight.Vision, e.Insight.Suggestion, e.Insight.Prompt,
		string(e.Fingerprint), e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put entry %s: %w", b, err)
	}
	return nil
}
// #endregion put

// #region list
// List returns every cached entry.
func (s *SQLiteStore) List(ctx context.Context) (map[horizon.Bucket]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bucket, vision, suggestion, prompt, fingerprint, updated_at FROM insight_cache`,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	out := make(map[horizon.Bucket]Entry)
	for rows.Next() {
		var e Entry
		var bucket, fp, updated string
		if err := rows.Scan(&bucket, &e.Insight.Vision, &e.Insight.Suggestion, &e.Insight.Prompt, &fp, &updated); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Fingerprint = fingerprint.Value(fp)
		if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return nil, fmt.Errorf("parse updated_at %s: %w", bucket, err)
		}
		out[horizon.Bucket(bucket)] = e
	}
	return out, rows.Err()
}
// #endregion list
