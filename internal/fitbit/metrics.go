package fitbit

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	inFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitdash",
		Subsystem: "provider",
		Name:      "in_flight_requests",
		Help:      "A gauge of in-flight requests to the provider API.",
	})

	requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fitdash",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "A counter for requests to the provider API.",
		},
		[]string{"code", "method"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fitdash",
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "A histogram of provider request latencies.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{},
	)

	rateLimitRemaining = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitdash",
		Subsystem: "provider",
		Name:      "rate_limit_remaining",
		Help:      "Remaining requests in the current provider rate-limit window, as reported by the API.",
	})

	rateLimitResetSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitdash",
		Subsystem: "provider",
		Name:      "rate_limit_reset_seconds",
		Help:      "Seconds until the provider rate-limit window resets, as reported by the API.",
	})

	retriesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitdash",
		Subsystem: "provider",
		Name:      "retries_total",
		Help:      "Retried provider requests.",
	})
)

// Collectors returns the provider client's metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		inFlightGauge, requestCounter, requestDuration,
		rateLimitRemaining, rateLimitResetSeconds, retriesCounter,
	}
}

// Rate-limit headers sent by the provider on every response.
const (
	headerRateLimitRemaining = "Fitbit-Rate-Limit-Remaining"
	headerRateLimitReset     = "Fitbit-Rate-Limit-Reset"
)

// instrumentTransport wraps next with the promhttp client instrumentation.
func instrumentTransport(next http.RoundTripper) http.RoundTripper {
	return promhttp.InstrumentRoundTripperInFlight(
		inFlightGauge,
		promhttp.InstrumentRoundTripperCounter(
			requestCounter,
			promhttp.InstrumentRoundTripperDuration(
				requestDuration,
				instrumentRateLimitHeaders(next),
			),
		),
	)
}

func instrumentRateLimitHeaders(next http.RoundTripper) promhttp.RoundTripperFunc {
	return promhttp.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		resp, err := next.RoundTrip(r)
		if err != nil || resp == nil {
			return resp, err
		}
		if v, perr := strconv.Atoi(resp.Header.Get(headerRateLimitRemaining)); perr == nil {
			rateLimitRemaining.Set(float64(v))
		}
		if v, perr := strconv.Atoi(resp.Header.Get(headerRateLimitReset)); perr == nil {
			rateLimitResetSeconds.Set(float64(v))
		}
		return resp, err
	})
}
