package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA temp_store = MEMORY;

CREATE TABLE IF NOT EXISTS extraction_cache (
    content_hash TEXT PRIMARY KEY,
    source_url   TEXT NOT NULL,
    valid        INTEGER NOT NULL,
    payload      BLOB,
    created_at   TIMESTAMP NOT NULL,
    updated_at   TIMESTAMP NOT NULL,
    version      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_source_url ON extraction_cache(source_url);
`

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the cache database at the given path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Get returns the entry for a content hash, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, contentHash string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT content_hash, source_url, valid, payload, created_at, updated_at, version
		FROM extraction_cache WHERE content_hash = ?`, contentHash)

	var e Entry
	var valid int
	if err := row.Scan(&e.ContentHash, &e.SourceURL, &valid, &e.Payload, &e.CreatedAt, &e.UpdatedAt, &e.Version); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cache get failed: %w", err)
	}
	e.Valid = valid != 0
	return &e, nil
}

// Upsert writes an entry, fully replacing any prior entry for the hash.
// CreatedAt of the original row is preserved on replacement.
func (s *SQLiteStore) Upsert(ctx context.Context, entry *Entry) error {
	now := time.Now().UTC()
	valid := 0
	if entry.Valid {
		valid = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extraction_cache (content_hash, source_url, valid, payload, created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			source_url = excluded.source_url,
			valid      = excluded.valid,
			payload    = excluded.payload,
			updated_at = excluded.updated_at,
			version    = excluded.version`,
		entry.ContentHash, entry.SourceURL, valid, entry.Payload, now, now, entry.Version)
	if err != nil {
		return fmt.Errorf("cache upsert failed: %w", err)
	}
	return nil
}

// Count returns the number of cached entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM extraction_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache count failed: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
