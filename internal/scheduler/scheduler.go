// Package scheduler runs the optional periodic sync. With no interval
// configured nothing is scheduled and the cache only changes on explicit
// requests.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/claude/fitdash/internal/config"
	"github.com/claude/fitdash/internal/dashboard"
	"github.com/claude/fitdash/internal/models"
)

// Syncer is the part of the dashboard service the scheduler drives.
type Syncer interface {
	Sync(ctx context.Context, g models.Granularity, r models.DateRange, kinds ...models.MetricKind) (*dashboard.SyncResult, error)
	Now() time.Time
}

// Scheduler periodically force-refreshes today's and this week's views.
type Scheduler struct {
	scheduler     *gocron.Scheduler
	syncer        Syncer
	granularities []models.Granularity
	interval      time.Duration
	timeout       time.Duration
	log           *slog.Logger
}

// New creates a Scheduler from the sync config.
func New(cfg config.SyncConfig, syncer Syncer, log *slog.Logger) (*Scheduler, error) {
	grans := make([]models.Granularity, 0, len(cfg.Granularities))
	for _, name := range cfg.Granularities {
		g, err := models.ParseGranularity(name)
		if err != nil {
			return nil, fmt.Errorf("sync granularities: %w", err)
		}
		grans = append(grans, g)
	}
	return &Scheduler{
		scheduler:     gocron.NewScheduler(time.UTC),
		syncer:        syncer,
		granularities: grans,
		interval:      cfg.Interval,
		timeout:       cfg.Timeout,
		log:           log,
	}, nil
}

// Enabled reports whether a periodic job will be scheduled.
func (s *Scheduler) Enabled() bool {
	return s.interval > 0 && len(s.granularities) > 0
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens one interval after Start.
func (s *Scheduler) Start() error {
	if !s.Enabled() {
		s.log.Info("scheduler: periodic sync disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().WaitForSchedule().Do(func() {
		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling sync job: %w", err)
	}

	s.scheduler.StartAsync()
	s.log.Info("scheduler: periodic sync started", "interval", s.interval, "granularities", s.granularities)
	return nil
}

// RunOnce syncs every configured granularity for its current range: today
// for daily and the week to date for weekly. It returns the number of
// metrics that failed.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	now := s.syncer.Now()
	failed := 0
	for _, g := range s.granularities {
		r := models.NewDailyRange(now)
		if g == models.Weekly {
			r = models.WeekToDate(now)
		}

		res, err := s.syncer.Sync(ctx, g, r)
		if err != nil {
			s.log.Error("scheduler: sync failed", "granularity", g, "range", r, "error", err)
			failed += len(models.AllMetricKinds)
			continue
		}
		for kind, st := range res.Metrics {
			if !st.OK {
				s.log.Warn("scheduler: metric sync failed", "sync_id", res.ID, "metric", kind, "error", st.Error)
			}
		}
		failed += res.Failed
	}
	return failed
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
