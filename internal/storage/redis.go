package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/claude/fitdash/internal/config"
	"github.com/claude/fitdash/internal/models"
)

// RedisStore keeps one string value per entry under prefix+key, without TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedis connects to the configured server and pings it.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis %s: %w", cfg.Addr, err)
	}
	return NewRedisWithClient(client, cfg.Prefix), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) Get(ctx context.Context, key models.CacheKey) (models.CacheEntry, error) {
	k := key.String()
	val, err := r.client.Get(ctx, r.prefix+k).Result()
	if err != nil {
		if err == redis.Nil {
			return models.CacheEntry{}, ErrNotFound
		}
		return models.CacheEntry{}, fmt.Errorf("reading cache entry %s: %w", k, err)
	}
	rec, err := decodeRecord(k, []byte(val))
	if err != nil {
		return models.CacheEntry{}, err
	}
	return models.CacheEntry{Key: key, Payload: rec.Payload, FetchedAt: rec.FetchedAt}, nil
}

func (r *RedisStore) Put(ctx context.Context, key models.CacheKey, payload json.RawMessage) (time.Time, error) {
	if err := validatePut(payload); err != nil {
		return time.Time{}, err
	}
	at := now()
	data, err := encodeRecord(payload, at)
	if err != nil {
		return time.Time{}, err
	}
	if err := r.client.Set(ctx, r.prefix+key.String(), data, 0).Err(); err != nil {
		return time.Time{}, fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return at, nil
}

func (r *RedisStore) Has(ctx context.Context, key models.CacheKey) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+key.String()).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisStore) List(ctx context.Context) ([]EntryInfo, error) {
	var keys []string
	var cursor uint64
	for {
		k, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 200).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning cache keys: %w", err)
		}
		keys = append(keys, k...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(keys)

	out := make([]EntryInfo, 0, len(keys))
	for _, full := range keys {
		k := strings.TrimPrefix(full, r.prefix)
		val, err := r.client.Get(ctx, full).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		info := EntryInfo{Key: k, Size: len(val)}
		if rec, err := decodeRecord(k, []byte(val)); err != nil {
			info.Corrupt = err.Error()
		} else {
			info.FetchedAt = rec.FetchedAt
			info.Size = len(rec.Payload)
		}
		out = append(out, info)
	}
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
