package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/fitdash/internal/models"
)

// rangeArgs reads granularity/date/start/end from a tool call. Daily ranges
// default to today and weekly ranges to the week to date.
func (h *handlers) rangeArgs(req mcp.CallToolRequest) (models.Granularity, models.DateRange, error) {
	g, err := models.ParseGranularity(req.GetString("granularity", "daily"))
	if err != nil {
		return 0, models.DateRange{}, err
	}
	r, err := models.RangeFor(g, req.GetString("date", ""), req.GetString("start", ""), req.GetString("end", ""), h.ds.Now())
	if err != nil {
		return 0, models.DateRange{}, err
	}
	return g, r, nil
}

func rangeOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("granularity", mcp.Description("daily (one day, intraday detail) or weekly (a day-by-day range). Defaults to daily."), mcp.Enum("daily", "weekly")),
		mcp.WithString("date", mcp.Description("Day for daily views (YYYY-MM-DD). Defaults to today.")),
		mcp.WithString("start", mcp.Description("First day for weekly views (YYYY-MM-DD). Defaults to this week's Monday.")),
		mcp.WithString("end", mcp.Description("Last day for weekly views (YYYY-MM-DD). Defaults to today.")),
	}
}

func viewTool(name, description string) mcp.Tool {
	opts := append([]mcp.ToolOption{mcp.WithDescription(description)}, rangeOptions()...)
	opts = append(opts, mcp.WithBoolean("refresh", mcp.Description("Bypass the cache and fetch from Fitbit. Defaults to false.")))
	return mcp.NewTool(name, opts...)
}

// --- Tool definitions ---

var toolGetHeartRate = viewTool("get_heart_rate",
	"Heart rate view. Daily: down-sampled intraday line, heart rate zones, resting heart rate, zone-weighted average and min/max/mean bpm. Weekly: per-day weighted average and resting heart rate.")

var toolGetSleep = viewTool("get_sleep",
	"Sleep view. Daily: main sleep timeline grouped by stage (wake, rem, light, deep) with minutes per stage and efficiency. Weekly: one row per night with stage minutes and efficiency.")

var toolGetActivity = viewTool("get_activity",
	"Activity view. Daily: steps, calories, distance in meters, active minutes and floors. Weekly: per-day steps, calories and distance with totals and averages.")

var toolGetDashboard = viewTool("get_dashboard",
	"All three views (heart rate, sleep, activity) for one day or range. A metric that fails to load reports its error while the others are still returned.")

var toolSyncMetrics = mcp.NewTool("sync_metrics",
	append([]mcp.ToolOption{
		mcp.WithDescription("Force a fresh fetch from Fitbit for the given range, overwriting cached data. Uses provider rate limit quota."),
		mcp.WithString("metrics", mcp.Description("Comma-separated subset of heart_rate, sleep, activity. Defaults to all.")),
	}, rangeOptions()...)...,
)

// --- Tool handlers ---

func (h *handlers) getHeartRate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.view(ctx, models.HeartRate, req)
}

func (h *handlers) getSleep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.view(ctx, models.Sleep, req)
}

func (h *handlers) getActivity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.view(ctx, models.Activity, req)
}

func (h *handlers) view(ctx context.Context, kind models.MetricKind, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, r, err := h.rangeArgs(req)
	if err != nil {
		return mcp.NewToolResultError("invalid range: " + err.Error()), nil
	}

	v, err := h.ds.View(ctx, kind, g, r, req.GetBool("refresh", false))
	if err != nil {
		h.log.Error("mcp view", "metric", kind, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getDashboard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, r, err := h.rangeArgs(req)
	if err != nil {
		return mcp.NewToolResultError("invalid range: " + err.Error()), nil
	}

	d, err := h.ds.Dashboard(ctx, g, r, req.GetBool("refresh", false))
	if err != nil {
		h.log.Error("mcp get_dashboard", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(d)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) syncMetrics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, r, err := h.rangeArgs(req)
	if err != nil {
		return mcp.NewToolResultError("invalid range: " + err.Error()), nil
	}
	kinds, err := parseKinds(req.GetString("metrics", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := h.ds.Sync(ctx, g, r, kinds...)
	if err != nil {
		h.log.Error("mcp sync_metrics", "error", err)
		return mcp.NewToolResultError("sync failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(res)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func parseKinds(s string) ([]models.MetricKind, error) {
	var kinds []models.MetricKind
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := models.ParseMetricKind(part)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
