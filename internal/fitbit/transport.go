package fitbit

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// newLimiter spreads perHour requests evenly over an hour with the given burst.
// A non-positive perHour disables limiting.
func newLimiter(perHour, burst int) *rate.Limiter {
	if perHour <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), burst)
}

// rateLimitingTransport blocks each request until the limiter admits it. A
// request the limiter refuses never reaches the provider and fails with
// errRateLimited.
type rateLimitingTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("%w: %v", errRateLimited, err)
	}
	return t.next.RoundTrip(req)
}

// headerTransport sets the headers every provider request carries.
type headerTransport struct {
	next http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Accept", "application/json")
	r.Header.Set("Accept-Language", "en_US")
	return t.next.RoundTrip(r)
}

// Transport builds the request pipeline below authentication:
// headers, rate limiting, metrics, then base.
func Transport(base http.RoundTripper, perHour, burst int) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &headerTransport{
		next: &rateLimitingTransport{
			next:    instrumentTransport(base),
			limiter: newLimiter(perHour, burst),
		},
	}
}
