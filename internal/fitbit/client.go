// Package fitbit is the provider client: authenticated, rate-limited requests
// against the Fitbit Web API returning raw JSON bodies.
package fitbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	fitbitoauth "golang.org/x/oauth2/fitbit"

	"github.com/claude/fitdash/internal/config"
	"github.com/claude/fitdash/internal/models"
)

// Scopes requested when the OAuth flow is used.
var Scopes = []string{"activity", "heartrate", "sleep"}

// Options tunes retries and the circuit breaker.
type Options struct {
	BaseURL         string
	MaxRetries      int
	BackoffInitial  time.Duration
	BackoffMax      time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client issues requests to the provider API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	opts       Options
	breaker    *gobreaker.CircuitBreaker
	log        *slog.Logger
}

// New builds a Client from config: token source, rate limiter, metrics and timeout.
func New(ctx context.Context, cfg config.ProviderConfig, log *slog.Logger) (*Client, error) {
	src, err := tokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &oauth2.Transport{
			Source: src,
			Base:   Transport(http.DefaultTransport, cfg.RateLimitPerHour, cfg.RateBurst),
		},
	}
	return NewClient(httpClient, Options{
		BaseURL:         cfg.BaseURL,
		MaxRetries:      cfg.MaxRetries,
		BackoffInitial:  cfg.BackoffInitial,
		BackoffMax:      cfg.BackoffMax,
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
	}, log), nil
}

func tokenSource(ctx context.Context, cfg config.ProviderConfig) (oauth2.TokenSource, error) {
	if !cfg.OAuth.Enabled() {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"}), nil
	}

	cache, err := NewJSONFileTokenCache(cfg.OAuth.TokenFile)
	if err != nil {
		return nil, err
	}
	tok, err := cache.Token()
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	oc := &oauth2.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		Endpoint:     fitbitoauth.Endpoint,
		Scopes:       Scopes,
	}
	return &persistingTokenSource{
		src:   oc.TokenSource(ctx, tok),
		cache: cache,
		last:  tok.AccessToken,
	}, nil
}

// NewClient wraps an already-configured HTTP client.
func NewClient(httpClient *http.Client, opts Options, log *slog.Logger) *Client {
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = 500 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "fitbit",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		opts:       opts,
		breaker:    cb,
		log:        log,
	}
}

// MetricPath returns the API path of a non-composite view.
func MetricPath(kind models.MetricKind, g models.Granularity, r models.DateRange) (string, error) {
	start := r.Start.Format(models.DateLayout)
	end := r.End.Format(models.DateLayout)
	switch {
	case kind == models.HeartRate && g == models.Daily:
		return "/1/user/-/activities/heart/date/" + start + "/1d/1min.json", nil
	case kind == models.HeartRate && g == models.Weekly:
		return "/1/user/-/activities/heart/date/" + start + "/" + end + ".json", nil
	case kind == models.Sleep && g == models.Daily:
		return "/1.2/user/-/sleep/date/" + start + ".json", nil
	case kind == models.Sleep && g == models.Weekly:
		return "/1.2/user/-/sleep/date/" + start + "/" + end + ".json", nil
	case kind == models.Activity && g == models.Daily:
		return "/1/user/-/activities/date/" + start + ".json", nil
	case kind == models.Activity && g == models.Weekly:
		return "", errCompositeMetric
	}
	return "", fmt.Errorf("unsupported view %s/%s", kind, g)
}

// SeriesPath returns the API path of one activity time series.
func SeriesPath(resource string, r models.DateRange) string {
	return "/1/user/-/activities/" + resource + "/date/" + r.Start.Format(models.DateLayout) + "/" + r.End.Format(models.DateLayout) + ".json"
}

// FetchMetric fetches the raw body of a non-composite view. Weekly activity
// is assembled by the caller from FetchActivitySeries.
func (c *Client) FetchMetric(ctx context.Context, kind models.MetricKind, g models.Granularity, r models.DateRange) (json.RawMessage, error) {
	path, err := MetricPath(kind, g, r)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, path)
}

// FetchActivitySeries fetches one activity sub-resource over r.
func (c *Client) FetchActivitySeries(ctx context.Context, resource string, r models.DateRange) (json.RawMessage, error) {
	return c.get(ctx, SeriesPath(resource, r))
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	var attempt int
	for {
		body, err := c.attempt(ctx, path)
		if err == nil {
			c.log.Debug("provider request", "path", path, "bytes", len(body), "attempt", attempt+1)
			return body, nil
		}
		if !IsRetryable(err) || attempt >= c.opts.MaxRetries {
			return nil, err
		}

		delay := c.opts.BackoffInitial * time.Duration(math.Pow(2, float64(attempt)))
		if c.opts.BackoffMax > 0 && delay > c.opts.BackoffMax {
			delay = c.opts.BackoffMax
		}
		c.log.Info("retrying provider request", "path", path, "attempt", attempt+1, "delay", delay, "error", err)
		retriesCounter.Inc()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &NetworkError{Op: "GET " + path, Err: ctx.Err()}
		case <-timer.C:
		}
		attempt++
	}
}

// attempt runs one request through the breaker. Only failures that say
// something about provider health (network, 429, 5xx) count against it; other
// provider errors and local rate-limit refusals pass through as results.
func (c *Client) attempt(ctx context.Context, path string) (json.RawMessage, error) {
	type outcome struct {
		body json.RawMessage
		err  error
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		body, err := c.do(ctx, path)
		if err != nil && IsRetryable(err) {
			return nil, err
		}
		return outcome{body: body, err: err}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &NetworkError{Op: "GET " + path, Err: fmt.Errorf("%w: %v", errCircuitOpen, err)}
		}
		return nil, err
	}
	o := res.(outcome)
	return o.body, o.err
}

func (c *Client) do(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("fitbit: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "GET " + path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "read " + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Status: resp.StatusCode, Message: errorMessage(body), Path: path}
	}
	if !json.Valid(body) {
		return nil, &ProviderError{Status: resp.StatusCode, Message: "response body is not valid JSON", Path: path}
	}
	return json.RawMessage(body), nil
}

// errorMessage extracts the first message of a provider error body
// ({"errors":[{"errorType":"...","message":"..."}]}), else the raw text.
func errorMessage(body []byte) string {
	var env struct {
		Errors []struct {
			ErrorType string `json:"errorType"`
			Message   string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Errors) > 0 {
		e := env.Errors[0]
		if e.ErrorType != "" {
			return e.ErrorType + ": " + e.Message
		}
		return e.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}
