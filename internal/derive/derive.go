// Package derive turns raw provider payloads into presentation-ready views.
// Every function here is pure: no I/O, no shared state, and the input payload
// is never modified.
package derive

import (
	"encoding/json"
	"fmt"

	"github.com/claude/fitdash/internal/models"
)

// DefaultIntradayPoints is the target point count for down-sampled intraday series.
const DefaultIntradayPoints = 80

// Options tunes derivations that have a presentation parameter.
type Options struct {
	IntradayPoints int
}

func (o Options) intradayPoints() int {
	if o.IntradayPoints <= 0 {
		return DefaultIntradayPoints
	}
	return o.IntradayPoints
}

// MalformedPayloadError reports a payload that is not JSON or whose top-level
// shape does not match the metric. Missing optional fields never produce it.
type MalformedPayloadError struct {
	Kind   string
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload: %s", e.Kind, e.Reason)
}

// ViewKey selects a derivation.
type ViewKey struct {
	Kind        models.MetricKind
	Granularity models.Granularity
}

// Func derives one view from one raw payload.
type Func func(payload json.RawMessage, opts Options) (any, error)

var derivations = map[ViewKey]Func{
	{models.HeartRate, models.Daily}:  func(p json.RawMessage, o Options) (any, error) { return HeartRateDaily(p, o) },
	{models.HeartRate, models.Weekly}: func(p json.RawMessage, _ Options) (any, error) { return HeartRateWeekly(p) },
	{models.Sleep, models.Daily}:      func(p json.RawMessage, _ Options) (any, error) { return SleepDaily(p) },
	{models.Sleep, models.Weekly}:     func(p json.RawMessage, _ Options) (any, error) { return SleepWeekly(p) },
	{models.Activity, models.Daily}:   func(p json.RawMessage, _ Options) (any, error) { return ActivityDaily(p) },
	{models.Activity, models.Weekly}:  func(p json.RawMessage, _ Options) (any, error) { return ActivityWeekly(p) },
}

// Derive dispatches to the derivation registered for (kind, g).
func Derive(kind models.MetricKind, g models.Granularity, payload json.RawMessage, opts Options) (any, error) {
	fn, ok := derivations[ViewKey{kind, g}]
	if !ok {
		return nil, fmt.Errorf("no derivation for %s/%s", kind, g)
	}
	return fn(payload, opts)
}

func decode(kind string, payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return &MalformedPayloadError{Kind: kind, Reason: "empty payload"}
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return &MalformedPayloadError{Kind: kind, Reason: err.Error()}
	}
	return nil
}

func ptr(v float64) *float64 { return &v }

// sumPresent adds the non-nil values; nil when none are present.
func sumPresent(vals ...*float64) *float64 {
	var total float64
	found := false
	for _, v := range vals {
		if v != nil {
			total += *v
			found = true
		}
	}
	if !found {
		return nil
	}
	return &total
}

func copyPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr(*v)
}
