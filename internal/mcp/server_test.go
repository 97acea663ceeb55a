package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/fitdash/internal/dashboard"
	"github.com/claude/fitdash/internal/models"
)

// fakeSource records the arguments it was called with.
type fakeSource struct {
	now       time.Time
	lastKind  models.MetricKind
	lastG     models.Granularity
	lastRange models.DateRange
	lastForce bool
	lastKinds []models.MetricKind
	err       error
}

func (f *fakeSource) Now() time.Time { return f.now }

func (f *fakeSource) View(_ context.Context, kind models.MetricKind, g models.Granularity, r models.DateRange, force bool) (*dashboard.View, error) {
	f.lastKind, f.lastG, f.lastRange, f.lastForce = kind, g, r, force
	if f.err != nil {
		return nil, f.err
	}
	return &dashboard.View{Kind: kind, Granularity: g, Range: r, Data: map[string]int{"steps": 42}}, nil
}

func (f *fakeSource) Dashboard(_ context.Context, g models.Granularity, r models.DateRange, force bool) (*dashboard.Dashboard, error) {
	f.lastG, f.lastRange, f.lastForce = g, r, force
	return &dashboard.Dashboard{Granularity: g, Range: r, Metrics: map[models.MetricKind]dashboard.MetricResult{
		models.Sleep: {Error: "provider unavailable"},
	}}, nil
}

func (f *fakeSource) Sync(_ context.Context, g models.Granularity, r models.DateRange, kinds ...models.MetricKind) (*dashboard.SyncResult, error) {
	f.lastG, f.lastRange, f.lastKinds = g, r, kinds
	return &dashboard.SyncResult{ID: "run-1", Granularity: g, Range: r}, nil
}

func newHandlers(src *fakeSource) *handlers {
	return &handlers{ds: src, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func callReq(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

// saturday is 2026-10-17, a Saturday.
var saturday = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

// TestNew verifies the server builds with every tool and resource registered.
func TestNew(t *testing.T) {
	s := New(&fakeSource{now: saturday}, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if s == nil {
		t.Fatal("New returned nil")
	}
}

// TestViewTools_Defaults verifies view tools default to today's daily view
// and route to the right metric.
func TestViewTools_Defaults(t *testing.T) {
	src := &fakeSource{now: saturday}
	h := newHandlers(src)

	tests := []struct {
		name string
		call func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		want models.MetricKind
	}{
		{"heart", h.getHeartRate, models.HeartRate},
		{"sleep", h.getSleep, models.Sleep},
		{"activity", h.getActivity, models.Activity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.call(context.Background(), callReq(nil))
			if err != nil {
				t.Fatal(err)
			}
			if res.IsError {
				t.Fatalf("tool error: %s", resultText(t, res))
			}
			if src.lastKind != tt.want || src.lastG != models.Daily {
				t.Errorf("called with %s/%s", src.lastKind, src.lastG)
			}
			if src.lastRange.String() != "2026-10-17:2026-10-17" {
				t.Errorf("range = %s", src.lastRange)
			}
			if !strings.Contains(resultText(t, res), `"steps":42`) {
				t.Errorf("result = %s", resultText(t, res))
			}
		})
	}
}

// TestViewTools_WeeklyRefresh verifies weekly arguments and the refresh flag
// are passed through.
func TestViewTools_WeeklyRefresh(t *testing.T) {
	src := &fakeSource{now: saturday}
	h := newHandlers(src)

	res, err := h.getSleep(context.Background(), callReq(map[string]any{
		"granularity": "weekly",
		"start":       "2026-10-05",
		"end":         "2026-10-11",
		"refresh":     true,
	}))
	if err != nil || res.IsError {
		t.Fatalf("getSleep: %v %+v", err, res)
	}
	if src.lastG != models.Weekly || src.lastRange.String() != "2026-10-05:2026-10-11" || !src.lastForce {
		t.Errorf("called with %s %s force=%v", src.lastG, src.lastRange, src.lastForce)
	}
}

// TestViewTools_Errors verifies bad arguments and data source failures are
// reported as tool errors rather than protocol errors.
func TestViewTools_Errors(t *testing.T) {
	src := &fakeSource{now: saturday}
	h := newHandlers(src)

	res, err := h.getActivity(context.Background(), callReq(map[string]any{"date": "yesterday"}))
	if err != nil || !res.IsError {
		t.Errorf("bad date: err=%v isError=%v", err, res.IsError)
	}

	src.err = errors.New("provider returned 429")
	res, err = h.getActivity(context.Background(), callReq(nil))
	if err != nil || !res.IsError {
		t.Errorf("source error: err=%v isError=%v", err, res.IsError)
	}
	if !strings.Contains(resultText(t, res), "429") {
		t.Errorf("error text = %s", resultText(t, res))
	}
}

// TestGetDashboard verifies per-metric errors reach the caller.
func TestGetDashboard(t *testing.T) {
	h := newHandlers(&fakeSource{now: saturday})
	res, err := h.getDashboard(context.Background(), callReq(nil))
	if err != nil || res.IsError {
		t.Fatalf("getDashboard: %v", err)
	}
	if !strings.Contains(resultText(t, res), "provider unavailable") {
		t.Errorf("result = %s", resultText(t, res))
	}
}

// TestSyncMetrics verifies the metric subset is parsed and an unknown name
// is rejected.
func TestSyncMetrics(t *testing.T) {
	src := &fakeSource{now: saturday}
	h := newHandlers(src)

	res, err := h.syncMetrics(context.Background(), callReq(map[string]any{"metrics": "sleep, heart"}))
	if err != nil || res.IsError {
		t.Fatalf("syncMetrics: %v", err)
	}
	if len(src.lastKinds) != 2 || src.lastKinds[0] != models.Sleep || src.lastKinds[1] != models.HeartRate {
		t.Errorf("kinds = %v", src.lastKinds)
	}

	res, _ = h.syncMetrics(context.Background(), callReq(map[string]any{"metrics": "steps"}))
	if !res.IsError {
		t.Error("unknown metric should be a tool error")
	}
}

// TestResources verifies today and week-to-date resources read the
// dashboard for the right range.
func TestResources(t *testing.T) {
	src := &fakeSource{now: saturday}
	h := newHandlers(src)

	var req mcp.ReadResourceRequest
	req.Params.URI = "fitdash://today"
	contents, err := h.today(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	var d dashboard.Dashboard
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Range.String() != "2026-10-17:2026-10-17" || d.Metrics[models.Sleep].Error == "" {
		t.Errorf("today = %s", text)
	}

	req.Params.URI = "fitdash://week"
	if _, err := h.weekToDate(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if src.lastG != models.Weekly || src.lastRange.String() != "2026-10-12:2026-10-17" {
		t.Errorf("week = %s %s", src.lastG, src.lastRange)
	}
}

// TestParseKinds verifies aliases, blanks and the empty default.
func TestParseKinds(t *testing.T) {
	kinds, err := parseKinds("")
	if err != nil || kinds != nil {
		t.Errorf("empty = %v, %v", kinds, err)
	}
	kinds, err = parseKinds("activities,,heart_rate")
	if err != nil || len(kinds) != 2 || kinds[0] != models.Activity {
		t.Errorf("parsed = %v, %v", kinds, err)
	}
}
