package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("fitdash", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("fitdash serves Fitbit heart rate, sleep and activity views for a day or a date range. Views are served from a local cache; pass refresh=true or call sync_metrics to fetch fresh data from Fitbit."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetHeartRate, Handler: h.getHeartRate},
		server.ServerTool{Tool: toolGetSleep, Handler: h.getSleep},
		server.ServerTool{Tool: toolGetActivity, Handler: h.getActivity},
		server.ServerTool{Tool: toolGetDashboard, Handler: h.getDashboard},
		server.ServerTool{Tool: toolSyncMetrics, Handler: h.syncMetrics},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resToday, Handler: h.today},
		server.ServerResource{Resource: resWeek, Handler: h.weekToDate},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resToday = mcp.NewResource(
	"fitdash://today",
	"Today",
	mcp.WithResourceDescription("Today's heart rate, sleep and activity views. Metrics that fail to load carry an error instead of a view."),
	mcp.WithMIMEType("application/json"),
)

var resWeek = mcp.NewResource(
	"fitdash://week",
	"Week to Date",
	mcp.WithResourceDescription("Weekly heart rate, sleep and activity views from Monday through today"),
	mcp.WithMIMEType("application/json"),
)
