package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DiskCache is the optional sqlite-backed layer of the feature store. It
// holds the raw GeoJSON bytes of previously fetched sources so a process
// restart skips the download; parsed collections are never persisted.
type DiskCache struct {
	db  *sql.DB
	ttl time.Duration
}

// ErrCacheMiss is returned when a source has no fresh disk entry.
var ErrCacheMiss = errors.New("disk cache miss")

// OpenDiskCache opens (creating if needed) the cache database at path.
// ttl bounds entry freshness; ttl <= 0 means entries never expire.
func OpenDiskCache(path string, ttl time.Duration) (*DiskCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS sources (
			name TEXT PRIMARY KEY,
			fetched_at INTEGER NOT NULL,
			body BLOB NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DiskCache{db: db, ttl: ttl}, nil
}

// Get returns the cached raw bytes for a source, or ErrCacheMiss when the
// entry is absent or stale.
func (c *DiskCache) Get(name string) ([]byte, time.Time, error) {
	var (
		body      []byte
		fetchedAt int64
	)
	err := c.db.QueryRow(
		"SELECT body, fetched_at FROM sources WHERE name = ?", name,
	).Scan(&body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrCacheMiss
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query cache: %w", err)
	}

	at := time.Unix(fetchedAt, 0)
	if c.ttl > 0 && time.Since(at) > c.ttl {
		return nil, time.Time{}, ErrCacheMiss
	}
	return body, at, nil
}

// Put upserts the raw bytes for a source.
func (c *DiskCache) Put(name string, body []byte, fetchedAt time.Time) error {
	_, err := c.db.Exec(`
		INSERT INTO sources (name, fetched_at, body) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET fetched_at = excluded.fetched_at, body = excluded.body
	`, name, fetchedAt.Unix(), body)
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *DiskCache) Close() error {
	return c.db.Close()
}
