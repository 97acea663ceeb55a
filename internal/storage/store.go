// Package storage is the durable cache of raw provider payloads, one entry
// per cache key. Entries never expire; they are only replaced by Put.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/fitdash/internal/config"
	"github.com/claude/fitdash/internal/models"
)

// ErrNotFound is returned by Get when no entry exists for the key.
var ErrNotFound = errors.New("cache entry not found")

// CorruptEntryError reports a stored entry that cannot be decoded. It affects
// that key only.
type CorruptEntryError struct {
	Key string
	Err error
}

func (e *CorruptEntryError) Error() string {
	return fmt.Sprintf("corrupt cache entry %s: %v", e.Key, e.Err)
}

func (e *CorruptEntryError) Unwrap() error { return e.Err }

// Store persists cache entries.
type Store interface {
	// Get returns the entry for key, ErrNotFound, or a *CorruptEntryError.
	Get(ctx context.Context, key models.CacheKey) (models.CacheEntry, error)
	// Put replaces the entry for key with payload, stamped with the current
	// time. It returns the stamp exactly as Get will report it.
	Put(ctx context.Context, key models.CacheKey, payload json.RawMessage) (time.Time, error)
	Has(ctx context.Context, key models.CacheKey) (bool, error)
	// List describes every stored entry, including corrupt ones.
	List(ctx context.Context) ([]EntryInfo, error)
	Close() error
}

// EntryInfo describes one stored entry for inspection.
type EntryInfo struct {
	Key       string    `json:"key"`
	FetchedAt time.Time `json:"fetched_at"`
	Size      int       `json:"size"`
	Corrupt   string    `json:"corrupt,omitempty"`
}

// Open selects and opens the configured backend.
func Open(ctx context.Context, cfg config.CacheConfig, log *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		log.Info("cache backend", "backend", cfg.Backend, "path", cfg.SQLitePath)
		return OpenSQLite(cfg.SQLitePath)
	case config.BackendPostgres:
		dsn := cfg.Database.DSN()
		if err := RunMigrations(dsn); err != nil {
			return nil, err
		}
		log.Info("cache backend", "backend", cfg.Backend, "host", cfg.Database.Host, "database", cfg.Database.Name)
		return NewPostgres(ctx, dsn)
	case config.BackendRedis:
		log.Info("cache backend", "backend", cfg.Backend, "addr", cfg.Redis.Addr)
		return NewRedis(ctx, cfg.Redis)
	case config.BackendMemory:
		log.Warn("cache backend is in-memory; entries are lost on restart")
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

// entryRecord is the JSON form of an entry for backends that store a single
// value per key.
type entryRecord struct {
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetched_at"`
}

func encodeRecord(payload json.RawMessage, fetchedAt time.Time) ([]byte, error) {
	return json.Marshal(entryRecord{Payload: payload, FetchedAt: fetchedAt})
}

func decodeRecord(key string, data []byte) (entryRecord, error) {
	var rec entryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return entryRecord{}, &CorruptEntryError{Key: key, Err: err}
	}
	if len(rec.Payload) == 0 {
		return entryRecord{}, &CorruptEntryError{Key: key, Err: errors.New("missing payload")}
	}
	return rec, nil
}

// checkPayload validates a payload read back from a column.
func checkPayload(key string, payload []byte) error {
	if !json.Valid(payload) {
		return &CorruptEntryError{Key: key, Err: errors.New("payload is not valid JSON")}
	}
	return nil
}

func validatePut(payload json.RawMessage) error {
	if !json.Valid(payload) {
		return errors.New("refusing to cache a payload that is not valid JSON")
	}
	return nil
}

func clonePayload(p json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), p...)
}

// now is truncated to the coarsest backend precision (Postgres timestamptz).
func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
