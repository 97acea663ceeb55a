package storage

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claude/fitdash/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore wraps a pgxpool.Pool holding the cache_entries table.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresStore{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *PostgresStore) Close() error {
	db.Pool.Close()
	return nil
}

// RunMigrations applies all pending embedded migrations.
func RunMigrations(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (db *PostgresStore) Get(ctx context.Context, key models.CacheKey) (models.CacheEntry, error) {
	k := key.String()
	var payload string
	var fetchedAt time.Time
	err := db.Pool.QueryRow(ctx,
		`SELECT payload, fetched_at FROM cache_entries WHERE key = $1`, k,
	).Scan(&payload, &fetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.CacheEntry{}, ErrNotFound
	}
	if err != nil {
		return models.CacheEntry{}, fmt.Errorf("reading cache entry %s: %w", k, err)
	}
	if err := checkPayload(k, []byte(payload)); err != nil {
		return models.CacheEntry{}, err
	}
	return models.CacheEntry{Key: key, Payload: json.RawMessage(payload), FetchedAt: fetchedAt.UTC()}, nil
}

func (db *PostgresStore) Put(ctx context.Context, key models.CacheKey, payload json.RawMessage) (time.Time, error) {
	if err := validatePut(payload); err != nil {
		return time.Time{}, err
	}
	at := now()
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO cache_entries (key, kind, granularity, range_start, range_end, payload, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, fetched_at = EXCLUDED.fetched_at`,
		key.String(), key.Kind.String(), key.Granularity.String(),
		key.Range.Start, key.Range.End, string(payload), at,
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return at, nil
}

func (db *PostgresStore) Has(ctx context.Context, key models.CacheKey) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM cache_entries WHERE key = $1)`, key.String(),
	).Scan(&exists)
	return exists, err
}

func (db *PostgresStore) List(ctx context.Context) ([]EntryInfo, error) {
	rows, err := db.Pool.Query(ctx, `SELECT key, payload, fetched_at FROM cache_entries ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing cache entries: %w", err)
	}
	defer rows.Close()

	var out []EntryInfo
	for rows.Next() {
		var k, payload string
		var fetchedAt time.Time
		if err := rows.Scan(&k, &payload, &fetchedAt); err != nil {
			return nil, err
		}
		info := EntryInfo{Key: k, FetchedAt: fetchedAt.UTC(), Size: len(payload)}
		if err := checkPayload(k, []byte(payload)); err != nil {
			info.Corrupt = err.Error()
		}
		out = append(out, info)
	}
	return out, rows.Err()
}
