package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/claude/fitdash/internal/models"
)

// MemoryStore keeps entries in process memory. Used for tests and for
// running without any persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
}

var _ Store = (*MemoryStore)(nil)

func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]models.CacheEntry)}
}

func (m *MemoryStore) Get(_ context.Context, key models.CacheKey) (models.CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key.String()]
	if !ok {
		return models.CacheEntry{}, ErrNotFound
	}
	e.Payload = clonePayload(e.Payload)
	return e, nil
}

func (m *MemoryStore) Put(_ context.Context, key models.CacheKey, payload json.RawMessage) (time.Time, error) {
	if err := validatePut(payload); err != nil {
		return time.Time{}, err
	}
	at := now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key.String()] = models.CacheEntry{Key: key, Payload: clonePayload(payload), FetchedAt: at}
	return at, nil
}

func (m *MemoryStore) Has(_ context.Context, key models.CacheKey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key.String()]
	return ok, nil
}

func (m *MemoryStore) List(_ context.Context) ([]EntryInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EntryInfo, 0, len(m.entries))
	for k, e := range m.entries {
		out = append(out, EntryInfo{Key: k, FetchedAt: e.FetchedAt, Size: len(e.Payload)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
