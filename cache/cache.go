// Package cache persists fetched assessment records in SQLite so reruns of
// a batch skip addresses already resolved. Records are stored as JSON under
// the normalized address key.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MugiZer/roleval/dbopen"
	"github.com/MugiZer/roleval/extract"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	key        TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Store is a key-to-record cache backed by one SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already-open database, used by tests with
// dbopen.OpenMemory. The schema must already be applied.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema returns the cache table definition for callers that open the
// database themselves.
func Schema() string { return schema }

func (s *Store) Close() error { return s.db.Close() }

// Get returns the cached record for key. ok is false on a miss.
func (s *Store) Get(ctx context.Context, key string) (extract.Record, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM records WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	rec := extract.NewRecord()
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		// A corrupt row is treated as a miss so the scraper refetches
		// and overwrites it.
		return nil, false, nil
	}
	return rec, true, nil
}

// Set stores rec under key, replacing any previous entry.
func (s *Store) Set(ctx context.Context, key string, rec extract.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	_, err = dbopen.Exec(ctx, s.db,
		`REPLACE INTO records (key, data, updated_at) VALUES (?, ?, ?)`,
		key, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Delete removes the entry for key if present.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := dbopen.Exec(ctx, s.db, `DELETE FROM records WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

// Len returns the number of cached records.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: count: %w", err)
	}
	return n, nil
}
