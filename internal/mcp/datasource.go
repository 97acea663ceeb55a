package mcp

import (
	"context"
	"time"

	"github.com/claude/fitdash/internal/dashboard"
	"github.com/claude/fitdash/internal/models"
)

// DataSource abstracts the view layer for MCP tools. Both *dashboard.Service
// (local) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	View(ctx context.Context, kind models.MetricKind, g models.Granularity, r models.DateRange, force bool) (*dashboard.View, error)
	Dashboard(ctx context.Context, g models.Granularity, r models.DateRange, force bool) (*dashboard.Dashboard, error)
	Sync(ctx context.Context, g models.Granularity, r models.DateRange, kinds ...models.MetricKind) (*dashboard.SyncResult, error)
	Now() time.Time
}

// Compile-time check: *dashboard.Service satisfies DataSource.
var _ DataSource = (*dashboard.Service)(nil)
