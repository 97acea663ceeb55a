package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claude/fitdash/internal/config"
	"github.com/claude/fitdash/internal/derive"
	"github.com/claude/fitdash/internal/fetch"
	"github.com/claude/fitdash/internal/fitbit"
	"github.com/claude/fitdash/internal/storage"
)

// Open wires the configured cache store, provider client and orchestrator
// into a Service. The caller closes the returned store.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Service, storage.Store, error) {
	store, err := storage.Open(ctx, cfg.Cache, log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening cache: %w", err)
	}

	client, err := fitbit.New(ctx, cfg.Provider, log)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("creating provider client: %w", err)
	}

	orch := fetch.New(store, client, fetch.Options{ProviderTimeout: cfg.Provider.Timeout}, log)
	return NewService(orch, derive.Options{IntradayPoints: cfg.Derive.IntradayPoints}, log), store, nil
}
