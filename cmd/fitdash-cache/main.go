package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/claude/fitdash/internal/config"
	"github.com/claude/fitdash/internal/models"
	"github.com/claude/fitdash/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: fitdash-cache [-config config.yaml] <command>\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  dump        list every cached entry\n")
	fmt.Fprintf(os.Stderr, "  show <key>  print the raw payload for a key (kind:granularity:start:end)\n\n")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	version := flag.Bool("version", false, "print version and exit")
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Println("fitdash-cache", Version)
		return
	}
	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := cfg.Log.NewLogger(os.Stderr)

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.Cache, log)
	if err != nil {
		log.Error("failed to open cache", "error", err)
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "dump":
		err = dump(ctx, store)
	case "show":
		if flag.NArg() != 2 {
			usage()
			store.Close()
			os.Exit(1)
		}
		err = show(ctx, store, flag.Arg(1), log)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", flag.Arg(0))
		usage()
		store.Close()
		os.Exit(1)
	}
	store.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func dump(ctx context.Context, store storage.Store) error {
	entries, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing entries: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tFETCHED AT\tSIZE\tSTATUS")
	corrupt := 0
	for _, e := range entries {
		status := "ok"
		fetched := e.FetchedAt.Format("2006-01-02 15:04:05")
		if e.Corrupt != "" {
			status = "corrupt: " + e.Corrupt
			corrupt++
		}
		if e.FetchedAt.IsZero() {
			fetched = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.Key, fetched, e.Size, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d entries, %d corrupt\n", len(entries), corrupt)
	return nil
}

func show(ctx context.Context, store storage.Store, raw string, log *slog.Logger) error {
	key, err := models.ParseCacheKey(raw)
	if err != nil {
		return err
	}
	entry, err := store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no entry for %s", key)
	}
	if err != nil {
		return err
	}
	log.Debug("cache entry", "key", key.String(), "fetched_at", entry.FetchedAt, "size", len(entry.Payload))

	var buf bytes.Buffer
	if err := json.Indent(&buf, entry.Payload, "", "  "); err != nil {
		return fmt.Errorf("formatting payload: %w", err)
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(os.Stdout)
	return err
}
