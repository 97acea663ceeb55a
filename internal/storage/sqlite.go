package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/claude/fitdash/internal/models"
)

// SQLiteStore is the default file-backed cache.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the cache database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS cache_entries (
		key         TEXT PRIMARY KEY,
		payload     TEXT NOT NULL,
		fetched_at  TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key models.CacheKey) (models.CacheEntry, error) {
	k := key.String()
	var payload, fetchedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM cache_entries WHERE key = ?`, k,
	).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CacheEntry{}, ErrNotFound
	}
	if err != nil {
		return models.CacheEntry{}, fmt.Errorf("reading cache entry %s: %w", k, err)
	}

	if err := checkPayload(k, []byte(payload)); err != nil {
		return models.CacheEntry{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return models.CacheEntry{}, &CorruptEntryError{Key: k, Err: err}
	}
	return models.CacheEntry{Key: key, Payload: json.RawMessage(payload), FetchedAt: ts}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key models.CacheKey, payload json.RawMessage) (time.Time, error) {
	if err := validatePut(payload); err != nil {
		return time.Time{}, err
	}
	at := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (key, payload, fetched_at) VALUES (?, ?, ?)`,
		key.String(), string(payload), at.Format(time.RFC3339Nano),
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return at, nil
}

func (s *SQLiteStore) Has(ctx context.Context, key models.CacheKey) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries WHERE key = ?`, key.String(),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]EntryInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, payload, fetched_at FROM cache_entries ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing cache entries: %w", err)
	}
	defer rows.Close()

	var out []EntryInfo
	for rows.Next() {
		var k, payload, fetchedAt string
		if err := rows.Scan(&k, &payload, &fetchedAt); err != nil {
			return nil, err
		}
		info := EntryInfo{Key: k, Size: len(payload)}
		if ts, err := time.Parse(time.RFC3339Nano, fetchedAt); err == nil {
			info.FetchedAt = ts
		} else {
			info.Corrupt = err.Error()
		}
		if err := checkPayload(k, []byte(payload)); err != nil {
			info.Corrupt = err.Error()
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Close closes the cache database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
