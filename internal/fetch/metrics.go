package fetch

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/claude/fitdash/internal/fitbit"
)

var (
	cacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitdash",
		Name:      "cache_hits_total",
		Help:      "Resolves served from the cache.",
	}, []string{"metric"})

	cacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitdash",
		Name:      "cache_misses_total",
		Help:      "Resolves that found no usable cache entry.",
	}, []string{"metric"})

	fetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitdash",
		Name:      "fetch_errors_total",
		Help:      "Failed resolves by metric and error kind.",
	}, []string{"metric", "kind"})

	supersededTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitdash",
		Name:      "superseded_total",
		Help:      "Results discarded because a newer request for the same key was issued.",
	})
)

// Collectors returns the orchestrator's metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{cacheHits, cacheMisses, fetchErrors, supersededTotal}
}

func errorKind(err error) string {
	var ne *fitbit.NetworkError
	var pe *fitbit.ProviderError
	switch {
	case errors.As(err, &ne):
		return "network"
	case errors.As(err, &pe):
		return "provider"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "network"
	default:
		return "other"
	}
}
