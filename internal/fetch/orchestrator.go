// Package fetch resolves raw payloads from the cache or the provider and is
// the only writer of the cache.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/claude/fitdash/internal/models"
	"github.com/claude/fitdash/internal/storage"
)

// ErrSuperseded is returned when a newer request for the same cache key was
// issued while this one was in flight. Its result is neither cached nor
// returned.
var ErrSuperseded = errors.New("superseded by a newer request for the same key")

// Provider is the subset of the provider client the orchestrator needs.
type Provider interface {
	FetchMetric(ctx context.Context, kind models.MetricKind, g models.Granularity, r models.DateRange) (json.RawMessage, error)
	FetchActivitySeries(ctx context.Context, resource string, r models.DateRange) (json.RawMessage, error)
}

// Request names one view to resolve.
type Request struct {
	Kind         models.MetricKind
	Granularity  models.Granularity
	Range        models.DateRange
	ForceRefresh bool
}

// Key returns the cache key of the request.
func (r Request) Key() models.CacheKey {
	return models.CacheKey{Kind: r.Kind, Granularity: r.Granularity, Range: r.Range}
}

// Result is a resolved raw payload.
type Result struct {
	Key       models.CacheKey
	Payload   json.RawMessage
	FetchedAt time.Time
	FromCache bool
}

// Outcome is the settled result of one request in a batch.
type Outcome struct {
	Result Result
	Err    error
}

// SyncReport describes one forced refresh.
type SyncReport struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   map[models.MetricKind]Outcome
}

// Failed counts the outcomes that ended in an error.
func (r SyncReport) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Options tunes the orchestrator.
type Options struct {
	// ProviderTimeout bounds each network resolve, including every
	// sub-request of a composite view. Zero means no extra bound.
	ProviderTimeout time.Duration
}

// Orchestrator coordinates the cache store and the provider.
type Orchestrator struct {
	store    storage.Store
	provider Provider
	opts     Options
	log      *slog.Logger

	mu   sync.Mutex
	keys map[string]*keyState
}

// keyState tracks the network resolves of one cache key. gen and inflight
// are guarded by Orchestrator.mu; write serializes the check-and-put of
// results for this key only.
type keyState struct {
	gen      uint64
	inflight int
	write    sync.Mutex
}

// New creates an Orchestrator.
func New(store storage.Store, provider Provider, opts Options, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		provider: provider,
		opts:     opts,
		log:      log,
		keys:     make(map[string]*keyState),
	}
}

// Store returns the underlying cache store.
func (o *Orchestrator) Store() storage.Store { return o.store }

// Resolve returns the cached payload for the request's key unless
// ForceRefresh is set or the entry is absent or corrupt, in which case the
// provider is called and a successful result is written to the cache. Errors
// leave the cache untouched.
func (o *Orchestrator) Resolve(ctx context.Context, req Request) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}
	key := req.Key()
	k := key.String()

	if !req.ForceRefresh {
		entry, err := o.store.Get(ctx, key)
		var corrupt *storage.CorruptEntryError
		switch {
		case err == nil:
			cacheHits.WithLabelValues(req.Kind.String()).Inc()
			o.log.Debug("cache hit", "key", k, "fetched_at", entry.FetchedAt)
			return Result{Key: key, Payload: entry.Payload, FetchedAt: entry.FetchedAt, FromCache: true}, nil
		case errors.Is(err, storage.ErrNotFound):
		case errors.As(err, &corrupt):
			o.log.Warn("corrupt cache entry, refetching", "key", k, "error", err)
		default:
			return Result{}, fmt.Errorf("reading cache: %w", err)
		}
		cacheMisses.WithLabelValues(req.Kind.String()).Inc()
	}

	st, gen := o.acquire(k)
	defer o.release(k, st)
	o.log.Info("fetching from provider", "key", k, "force", req.ForceRefresh, "generation", gen)

	fetchCtx := ctx
	if o.opts.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, o.opts.ProviderTimeout)
		defer cancel()
	}

	payload, fetchErr := o.fetch(fetchCtx, req)

	st.write.Lock()
	defer st.write.Unlock()

	if current := o.generation(st); current != gen {
		supersededTotal.Inc()
		o.log.Warn("discarding superseded result", "key", k, "generation", gen, "current", current)
		return Result{}, ErrSuperseded
	}
	if fetchErr != nil {
		fetchErrors.WithLabelValues(req.Kind.String(), errorKind(fetchErr)).Inc()
		o.log.Error("provider fetch failed", "key", k, "error", fetchErr)
		return Result{}, fetchErr
	}

	fetchedAt, err := o.store.Put(ctx, key, payload)
	if err != nil {
		fetchErrors.WithLabelValues(req.Kind.String(), "store").Inc()
		return Result{}, fmt.Errorf("writing cache: %w", err)
	}
	return Result{Key: key, Payload: payload, FetchedAt: fetchedAt}, nil
}

// ResolveAll resolves every request concurrently. One failure never prevents
// the others from resolving; each kind reports its own outcome. Requests
// should name distinct kinds; for duplicates the last one's outcome is kept.
func (o *Orchestrator) ResolveAll(ctx context.Context, reqs []Request, force bool) map[models.MetricKind]Outcome {
	outcomes := make([]Outcome, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		if force {
			req.ForceRefresh = true
		}
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			res, err := o.Resolve(ctx, req)
			outcomes[i] = Outcome{Result: res, Err: err}
		}(i, req)
	}
	wg.Wait()

	out := make(map[models.MetricKind]Outcome, len(reqs))
	for i, req := range reqs {
		out[req.Kind] = outcomes[i]
	}
	return out
}

// Sync force-refreshes every request, overwriting cached entries.
func (o *Orchestrator) Sync(ctx context.Context, reqs []Request) SyncReport {
	report := SyncReport{ID: uuid.New(), StartedAt: time.Now().UTC()}
	o.log.Info("sync started", "sync_id", report.ID, "requests", len(reqs))

	report.Outcomes = o.ResolveAll(ctx, reqs, true)
	report.FinishedAt = time.Now().UTC()

	o.log.Info("sync finished", "sync_id", report.ID,
		"failed", report.Failed(), "duration", report.FinishedAt.Sub(report.StartedAt))
	return report
}

// acquire starts a network resolve of key and returns its generation.
func (o *Orchestrator) acquire(key string) (*keyState, uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.keys[key]
	if !ok {
		st = &keyState{}
		o.keys[key] = st
	}
	st.gen++
	st.inflight++
	return st, st.gen
}

// release forgets the key once no resolve of it is in flight.
func (o *Orchestrator) release(key string, st *keyState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st.inflight--
	if st.inflight == 0 {
		delete(o.keys, key)
	}
}

func (o *Orchestrator) generation(st *keyState) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return st.gen
}

func (o *Orchestrator) fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	if req.Kind == models.Activity && req.Granularity == models.Weekly {
		return o.fetchActivitySeries(ctx, req.Range)
	}
	return o.provider.FetchMetric(ctx, req.Kind, req.Granularity, req.Range)
}

// fetchActivitySeries fetches every activity sub-resource concurrently and
// assembles them into one bundle. The first failure cancels the rest and
// fails the whole fetch.
func (o *Orchestrator) fetchActivitySeries(ctx context.Context, r models.DateRange) (json.RawMessage, error) {
	bodies := make([]json.RawMessage, len(models.ActivityResources))
	g, gctx := errgroup.WithContext(ctx)
	for i, res := range models.ActivityResources {
		i, res := i, res
		g.Go(func() error {
			body, err := o.provider.FetchActivitySeries(gctx, res, r)
			if err != nil {
				return fmt.Errorf("activity %s: %w", res, err)
			}
			bodies[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var bundle models.ActivitySeriesBundle
	for i, res := range models.ActivityResources {
		bundle.Set(res, bodies[i])
	}
	return json.Marshal(bundle)
}

func validate(req Request) error {
	if !req.Kind.Valid() {
		return fmt.Errorf("invalid metric kind %d", int(req.Kind))
	}
	if !req.Granularity.Valid() {
		return fmt.Errorf("invalid granularity %d", int(req.Granularity))
	}
	return req.Range.Validate(req.Granularity)
}
