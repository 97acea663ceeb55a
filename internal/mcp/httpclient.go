package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/fitdash/internal/dashboard"
	"github.com/claude/fitdash/internal/models"
)

// HTTPClient implements DataSource by calling the fitdash REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the cache and provider credentials live on the server (reached over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey is
// sent on sync requests and may be empty.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Now returns the local clock used to default tool ranges. Requests always
// carry explicit dates.
func (c *HTTPClient) Now() time.Time { return time.Now() }

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpclient: encode body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	// 207 is a sync where some metrics failed; the body still describes every metric.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusMultiStatus {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func rangeParams(g models.Granularity, r models.DateRange, force bool) url.Values {
	v := url.Values{}
	v.Set("granularity", g.String())
	if g == models.Daily {
		v.Set("date", r.Start.Format(models.DateLayout))
	} else {
		v.Set("start", r.Start.Format(models.DateLayout))
		v.Set("end", r.End.Format(models.DateLayout))
	}
	if force {
		v.Set("refresh", "true")
	}
	return v
}

func (c *HTTPClient) View(ctx context.Context, kind models.MetricKind, g models.Granularity, r models.DateRange, force bool) (*dashboard.View, error) {
	var v dashboard.View
	if err := c.do(ctx, http.MethodGet, "/api/v1/views/"+kind.String(), rangeParams(g, r, force), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *HTTPClient) Dashboard(ctx context.Context, g models.Granularity, r models.DateRange, force bool) (*dashboard.Dashboard, error) {
	var d dashboard.Dashboard
	if err := c.do(ctx, http.MethodGet, "/api/v1/dashboard", rangeParams(g, r, force), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *HTTPClient) Sync(ctx context.Context, g models.Granularity, r models.DateRange, kinds ...models.MetricKind) (*dashboard.SyncResult, error) {
	body := map[string]any{"granularity": g.String()}
	if g == models.Daily {
		body["date"] = r.Start.Format(models.DateLayout)
	} else {
		body["start"] = r.Start.Format(models.DateLayout)
		body["end"] = r.End.Format(models.DateLayout)
	}
	if len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = k.String()
		}
		body["metrics"] = names
	}

	var res dashboard.SyncResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/sync", nil, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
