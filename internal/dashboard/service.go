// Package dashboard joins the fetch orchestrator and the derivation engine.
// It is the boundary every presentation surface (REST, MCP, CLI) talks to.
package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/claude/fitdash/internal/derive"
	"github.com/claude/fitdash/internal/fetch"
	"github.com/claude/fitdash/internal/models"
	"github.com/claude/fitdash/internal/storage"
)

// View is one derived view together with where its payload came from.
type View struct {
	Kind        models.MetricKind  `json:"metric"`
	Granularity models.Granularity `json:"granularity"`
	Range       models.DateRange   `json:"range"`
	FetchedAt   time.Time          `json:"fetched_at"`
	FromCache   bool               `json:"from_cache"`
	Data        any                `json:"data"`
}

// MetricResult is the per-metric slot of a dashboard. Exactly one of View
// and Error is set.
type MetricResult struct {
	View  *View  `json:"view,omitempty"`
	Error string `json:"error,omitempty"`
}

// Dashboard holds every metric for one granularity and range.
type Dashboard struct {
	Granularity models.Granularity                 `json:"granularity"`
	Range       models.DateRange                   `json:"range"`
	Metrics     map[models.MetricKind]MetricResult `json:"metrics"`
}

// SyncStatus is the outcome of one metric in a sync.
type SyncStatus struct {
	OK        bool      `json:"ok"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// SyncResult summarizes a forced refresh.
type SyncResult struct {
	ID          string                           `json:"id"`
	Granularity models.Granularity               `json:"granularity"`
	Range       models.DateRange                 `json:"range"`
	StartedAt   time.Time                        `json:"started_at"`
	FinishedAt  time.Time                        `json:"finished_at"`
	Metrics     map[models.MetricKind]SyncStatus `json:"metrics"`
	Failed      int                              `json:"failed"`
}

// RawPayload is an undecoded provider payload as stored in the cache.
type RawPayload struct {
	Key       string          `json:"key"`
	FetchedAt time.Time       `json:"fetched_at"`
	FromCache bool            `json:"from_cache"`
	Payload   json.RawMessage `json:"payload"`
}

// Service serves derived views.
type Service struct {
	orch *fetch.Orchestrator
	opts derive.Options
	log  *slog.Logger
	now  func() time.Time
}

// NewService creates a Service.
func NewService(orch *fetch.Orchestrator, opts derive.Options, log *slog.Logger) *Service {
	return &Service{orch: orch, opts: opts, log: log, now: time.Now}
}

// Now returns the service clock, used to default request ranges.
func (s *Service) Now() time.Time { return s.now() }

// View resolves one payload and derives its view. Provider and derivation
// errors are returned unchanged so callers can classify them.
func (s *Service) View(ctx context.Context, kind models.MetricKind, g models.Granularity, r models.DateRange, force bool) (*View, error) {
	res, err := s.orch.Resolve(ctx, fetch.Request{Kind: kind, Granularity: g, Range: r, ForceRefresh: force})
	if err != nil {
		return nil, err
	}
	return s.derive(kind, g, r, res)
}

// Dashboard resolves every metric concurrently. A failed metric carries its
// error and no view; the others are unaffected.
func (s *Service) Dashboard(ctx context.Context, g models.Granularity, r models.DateRange, force bool) (*Dashboard, error) {
	if err := r.Validate(g); err != nil {
		return nil, err
	}
	outcomes := s.orch.ResolveAll(ctx, requests(models.AllMetricKinds, g, r), force)

	d := &Dashboard{Granularity: g, Range: r, Metrics: make(map[models.MetricKind]MetricResult, len(outcomes))}
	for kind, out := range outcomes {
		if out.Err != nil {
			d.Metrics[kind] = MetricResult{Error: out.Err.Error()}
			continue
		}
		v, err := s.derive(kind, g, r, out.Result)
		if err != nil {
			s.log.Warn("derivation failed", "metric", kind, "error", err)
			d.Metrics[kind] = MetricResult{Error: err.Error()}
			continue
		}
		d.Metrics[kind] = MetricResult{View: v}
	}
	return d, nil
}

// Sync force-refreshes the given metrics, or all of them when kinds is empty.
func (s *Service) Sync(ctx context.Context, g models.Granularity, r models.DateRange, kinds ...models.MetricKind) (*SyncResult, error) {
	if err := r.Validate(g); err != nil {
		return nil, err
	}
	if len(kinds) == 0 {
		kinds = models.AllMetricKinds
	}
	report := s.orch.Sync(ctx, requests(kinds, g, r))

	out := &SyncResult{
		ID:          report.ID.String(),
		Granularity: g,
		Range:       r,
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
		Metrics:     make(map[models.MetricKind]SyncStatus, len(report.Outcomes)),
		Failed:      report.Failed(),
	}
	for kind, o := range report.Outcomes {
		if o.Err != nil {
			out.Metrics[kind] = SyncStatus{Error: o.Err.Error()}
			continue
		}
		out.Metrics[kind] = SyncStatus{OK: true, FetchedAt: o.Result.FetchedAt}
	}
	return out, nil
}

// Raw resolves one payload without deriving it.
func (s *Service) Raw(ctx context.Context, kind models.MetricKind, g models.Granularity, r models.DateRange, force bool) (*RawPayload, error) {
	res, err := s.orch.Resolve(ctx, fetch.Request{Kind: kind, Granularity: g, Range: r, ForceRefresh: force})
	if err != nil {
		return nil, err
	}
	return &RawPayload{Key: res.Key.String(), FetchedAt: res.FetchedAt, FromCache: res.FromCache, Payload: res.Payload}, nil
}

// Entries lists the cache contents.
func (s *Service) Entries(ctx context.Context) ([]storage.EntryInfo, error) {
	return s.orch.Store().List(ctx)
}

func (s *Service) derive(kind models.MetricKind, g models.Granularity, r models.DateRange, res fetch.Result) (*View, error) {
	data, err := derive.Derive(kind, g, res.Payload, s.opts)
	if err != nil {
		return nil, err
	}
	return &View{
		Kind:        kind,
		Granularity: g,
		Range:       r,
		FetchedAt:   res.FetchedAt,
		FromCache:   res.FromCache,
		Data:        data,
	}, nil
}

func requests(kinds []models.MetricKind, g models.Granularity, r models.DateRange) []fetch.Request {
	reqs := make([]fetch.Request, 0, len(kinds))
	for _, k := range kinds {
		reqs = append(reqs, fetch.Request{Kind: k, Granularity: g, Range: r})
	}
	return reqs
}
