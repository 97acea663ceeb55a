package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/claude/fitdash/internal/config"
	"github.com/claude/fitdash/internal/dashboard"
	"github.com/claude/fitdash/internal/models"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	granularity := flag.String("granularity", "daily", "daily or weekly")
	date := flag.String("date", "", "day to sync for daily (YYYY-MM-DD, default today)")
	start := flag.String("start", "", "first day for weekly (YYYY-MM-DD, default this Monday)")
	end := flag.String("end", "", "last day for weekly (YYYY-MM-DD, default today)")
	metrics := flag.String("metrics", "", "comma-separated subset of heart_rate,sleep,activity (default all)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("fitdash-sync", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := cfg.Log.NewLogger(os.Stderr)

	g, err := models.ParseGranularity(*granularity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	var kinds []models.MetricKind
	for _, name := range strings.Split(*metrics, ",") {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		k, err := models.ParseMetricKind(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		kinds = append(kinds, k)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Sync.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Sync.Timeout)
		defer cancel()
	}

	svc, store, err := dashboard.Open(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	r, err := models.RangeFor(g, *date, *start, *end, svc.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	res, err := svc.Sync(ctx, g, r, kinds...)
	if err != nil {
		log.Error("sync failed", "error", err)
		os.Exit(1)
	}

	printResult(res)
	if res.Failed > 0 {
		store.Close()
		os.Exit(1)
	}
}

func printResult(res *dashboard.SyncResult) {
	fmt.Println()
	fmt.Println("=== Sync Summary ===")
	fmt.Printf("  Sync ID:      %s\n", res.ID)
	fmt.Printf("  Granularity:  %s\n", res.Granularity)
	fmt.Printf("  Range:        %s\n", res.Range)
	fmt.Printf("  Duration:     %s\n", res.FinishedAt.Sub(res.StartedAt).Round(1e6))
	fmt.Println()
	for _, kind := range models.AllMetricKinds {
		st, ok := res.Metrics[kind]
		if !ok {
			continue
		}
		if st.OK {
			fmt.Printf("  %-12s ok      fetched %s\n", kind, st.FetchedAt.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Printf("  %-12s FAILED  %s\n", kind, st.Error)
		}
	}
	fmt.Println()
}
