package fitbit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ProviderError is a non-2xx response, or a 2xx response whose body is not JSON.
type ProviderError struct {
	Status  int
	Message string
	Path    string
}

func (e *ProviderError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("fitbit: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("fitbit: %s returned %d: %s", e.Path, e.Status, e.Message)
}

// NetworkError is a transport failure: connection errors, timeouts and an
// open circuit breaker all land here.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fitbit: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline or client timeout.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// IsRetryable reports whether err is worth another attempt: network failures
// other than caller cancellation, an open circuit or the local rate limit,
// and 429 and 5xx responses.
func IsRetryable(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return !errors.Is(ne.Err, context.Canceled) &&
			!errors.Is(ne.Err, errCircuitOpen) &&
			!errors.Is(ne.Err, errRateLimited)
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Status == http.StatusTooManyRequests || pe.Status >= 500
	}
	return false
}

var (
	errCircuitOpen     = errors.New("circuit breaker open")
	errRateLimited     = errors.New("local rate limit reached")
	errCompositeMetric = errors.New("weekly activity is fetched per resource")
)
