package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/claude/fitdash/internal/config"
	"github.com/claude/fitdash/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testKey(t *testing.T, kind models.MetricKind, g models.Granularity, start, end string) models.CacheKey {
	t.Helper()
	s, err := models.ParseDate(start)
	if err != nil {
		t.Fatal(err)
	}
	e, err := models.ParseDate(end)
	if err != nil {
		t.Fatal(err)
	}
	return models.CacheKey{Kind: kind, Granularity: g, Range: models.NewWeeklyRange(s, e)}
}

// exerciseStore runs the behaviour every backend must share: absent keys,
// put/get round trip, whole-entry overwrite and listing.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	daily := testKey(t, models.Sleep, models.Daily, "2026-10-17", "2026-10-17")
	weekly := testKey(t, models.Sleep, models.Weekly, "2026-10-12", "2026-10-17")

	if _, err := s.Get(ctx, daily); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store: err = %v, want ErrNotFound", err)
	}
	if ok, err := s.Has(ctx, daily); err != nil || ok {
		t.Fatalf("Has on empty store = %v, %v", ok, err)
	}

	before := time.Now().UTC().Add(-time.Second)
	stamped, err := s.Put(ctx, daily, json.RawMessage(`{"sleep":[1]}`))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	e, err := s.Get(ctx, daily)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(e.Payload) != `{"sleep":[1]}` {
		t.Errorf("payload = %s", e.Payload)
	}
	if e.Key != daily {
		t.Errorf("key = %v, want %v", e.Key, daily)
	}
	if e.FetchedAt.Before(before) {
		t.Errorf("FetchedAt = %v, want after %v", e.FetchedAt, before)
	}
	if !e.FetchedAt.Equal(stamped) {
		t.Errorf("FetchedAt = %v, want the stamp Put returned (%v)", e.FetchedAt, stamped)
	}
	if ok, _ := s.Has(ctx, daily); !ok {
		t.Error("Has after Put = false")
	}
	if ok, _ := s.Has(ctx, weekly); ok {
		t.Error("weekly key should still be absent")
	}

	if _, err := s.Put(ctx, daily, json.RawMessage(`{"sleep":[2]}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	e, _ = s.Get(ctx, daily)
	if string(e.Payload) != `{"sleep":[2]}` {
		t.Errorf("payload after overwrite = %s", e.Payload)
	}

	if _, err := s.Put(ctx, weekly, json.RawMessage(`{"sleep":[]}`)); err != nil {
		t.Fatalf("Put weekly: %v", err)
	}
	infos, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("List len = %d, want 2", len(infos))
	}
	if infos[0].Key != daily.String() || infos[1].Key != weekly.String() {
		t.Errorf("List keys = %q, %q", infos[0].Key, infos[1].Key)
	}
	if infos[0].Size != len(`{"sleep":[2]}`) {
		t.Errorf("List size = %d", infos[0].Size)
	}

	if _, err := s.Put(ctx, weekly, json.RawMessage(`{broken`)); err == nil {
		t.Error("Put of invalid JSON should fail")
	}
}

// TestMemoryStore runs the shared behaviour against the in-memory backend.
func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

// TestMemoryStore_ReturnsCopies verifies callers cannot mutate stored payloads.
func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	key := testKey(t, models.HeartRate, models.Daily, "2026-10-17", "2026-10-17")
	payload := json.RawMessage(`{"a":1}`)
	_, _ = s.Put(ctx, key, payload)
	payload[2] = 'b'

	e, _ := s.Get(ctx, key)
	e.Payload[2] = 'c'
	again, _ := s.Get(ctx, key)
	if string(again.Payload) != `{"a":1}` {
		t.Errorf("stored payload mutated: %s", again.Payload)
	}
}

// TestSQLiteStore runs the shared behaviour against a file in a temp dir.
func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

// TestSQLiteStore_SurvivesReopen verifies entries persist across process
// restarts, modelled as closing and reopening the file.
func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()
	key := testKey(t, models.Activity, models.Daily, "2026-10-17", "2026-10-17")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put(ctx, key, json.RawMessage(`{"summary":{}}`)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	e, err := s2.Get(ctx, key)
	if err != nil || string(e.Payload) != `{"summary":{}}` {
		t.Errorf("after reopen: %s, %v", e.Payload, err)
	}
}

// TestSQLiteStore_CorruptEntryIsolated verifies that one undecodable row
// yields CorruptEntryError for its key only.
func TestSQLiteStore_CorruptEntryIsolated(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	good := testKey(t, models.Sleep, models.Daily, "2026-10-17", "2026-10-17")
	bad := testKey(t, models.HeartRate, models.Daily, "2026-10-17", "2026-10-17")
	if _, err := s.Put(ctx, good, json.RawMessage(`{"sleep":[]}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.Exec(`INSERT INTO cache_entries (key, payload, fetched_at) VALUES (?, ?, ?)`,
		bad.String(), `{"activities-heart":[`, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		t.Fatal(err)
	}

	var ce *CorruptEntryError
	if _, err := s.Get(ctx, bad); !errors.As(err, &ce) || ce.Key != bad.String() {
		t.Errorf("Get(bad): err = %v, want CorruptEntryError", err)
	}
	if _, err := s.Get(ctx, good); err != nil {
		t.Errorf("Get(good): %v", err)
	}

	infos, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	corrupt := 0
	for _, info := range infos {
		if info.Corrupt != "" {
			corrupt++
		}
	}
	if len(infos) != 2 || corrupt != 1 {
		t.Errorf("List = %+v, want 2 entries with 1 corrupt", infos)
	}
}

// TestOpen_Memory verifies backend selection.
func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), config.CacheConfig{Backend: config.BackendMemory}, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Open(memory) = %T", s)
	}
	if _, err := Open(context.Background(), config.CacheConfig{Backend: "etcd"}, testLogger()); err == nil {
		t.Error("Open(etcd): expected error")
	}
}

// TestRedisStore runs the shared behaviour against an in-process Redis.
func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	prefix := "fitdash-test:"
	s, err := NewRedis(ctx, config.RedisConfig{Addr: mr.Addr(), Prefix: prefix})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)

	bad := testKey(t, models.Activity, models.Weekly, "2026-10-12", "2026-10-17")
	if err := mr.Set(prefix+bad.String(), "not json"); err != nil {
		t.Fatal(err)
	}
	var ce *CorruptEntryError
	if _, err := s.Get(ctx, bad); !errors.As(err, &ce) {
		t.Errorf("Get(corrupt): err = %v, want CorruptEntryError", err)
	}
	if ttl := mr.TTL(prefix + bad.String()); ttl != 0 {
		t.Errorf("TTL = %v, want no expiry", ttl)
	}

	// Keys outside the prefix are not listed.
	mr.Set("other:key", "x")
	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, e := range entries {
		if e.Key == "other:key" {
			t.Errorf("List returned foreign key %q", e.Key)
		}
	}
}

// TestNewRedis_Unreachable verifies the constructor pings the server.
func TestNewRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := NewRedis(context.Background(), config.RedisConfig{Addr: addr}); err == nil {
		t.Error("NewRedis: expected error for closed server")
	}
}

// TestPostgresStore runs the shared behaviour against a live database when
// FITDASH_TEST_POSTGRES_DSN is set. The cache table is emptied first.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("FITDASH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FITDASH_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	if err := RunMigrations(dsn); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	s, err := NewPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer s.Close()
	if _, err := s.Pool.Exec(ctx, `TRUNCATE cache_entries`); err != nil {
		t.Fatal(err)
	}
	exerciseStore(t, s)
}
