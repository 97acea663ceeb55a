package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/fitdash/internal/models"
)

func (h *handlers) today(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return h.dashboardResource(ctx, req.Params.URI, models.Daily, models.NewDailyRange(h.ds.Now()))
}

func (h *handlers) weekToDate(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return h.dashboardResource(ctx, req.Params.URI, models.Weekly, models.WeekToDate(h.ds.Now()))
}

func (h *handlers) dashboardResource(ctx context.Context, uri string, g models.Granularity, r models.DateRange) ([]mcp.ResourceContents, error) {
	d, err := h.ds.Dashboard(ctx, g, r, false)
	if err != nil {
		h.log.Error("mcp resource", "uri", uri, "error", err)
		return nil, err
	}

	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
