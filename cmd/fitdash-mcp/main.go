package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/fitdash/internal/config"
	"github.com/claude/fitdash/internal/dashboard"
	"github.com/claude/fitdash/internal/mcp"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (local mode: own cache and Fitbit credentials)")
	serverURL := flag.String("server", "", "fitdash server URL (remote mode, e.g. http://fitdash.tail1234.ts.net)")
	apiKey := flag.String("api-key", os.Getenv("FITDASH_AUTH_API_KEY"), "API key for sync_metrics in remote mode")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("fitdash-mcp", Version)
		return
	}

	// stdout carries the MCP protocol, so logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds mcp.DataSource
	switch {
	case *serverURL != "":
		ds = mcp.NewHTTPClient(*serverURL, *apiKey)
		log.Info("fitdash-mcp remote mode", "server", *serverURL)
	case *configPath != "":
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		log = cfg.Log.NewLogger(os.Stderr)
		svc, store, err := dashboard.Open(context.Background(), cfg, log)
		if err != nil {
			log.Error("startup failed", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		ds = svc
		log.Info("fitdash-mcp local mode", "cache_backend", cfg.Cache.Backend)
	default:
		fmt.Fprintf(os.Stderr, "Usage: fitdash-mcp -server <URL> [-api-key KEY] | -config <config.yaml>\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	s := mcp.New(ds, Version, log)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
