package models

import (
	"fmt"
	"strings"
)

// MetricKind identifies one of the provider resources shown on the dashboard.
type MetricKind int

const (
	HeartRate MetricKind = iota
	Sleep
	Activity
)

// AllMetricKinds lists every metric kind in display order.
var AllMetricKinds = []MetricKind{HeartRate, Sleep, Activity}

func (k MetricKind) String() string {
	switch k {
	case HeartRate:
		return "heart_rate"
	case Sleep:
		return "sleep"
	case Activity:
		return "activity"
	default:
		return fmt.Sprintf("metric(%d)", int(k))
	}
}

// Valid reports whether k is one of the known metric kinds.
func (k MetricKind) Valid() bool {
	return k >= HeartRate && k <= Activity
}

// MarshalText implements encoding.TextMarshaler so MetricKind can be used as a JSON map key.
func (k MetricKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid metric kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *MetricKind) UnmarshalText(b []byte) error {
	parsed, err := ParseMetricKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseMetricKind accepts the canonical names plus a few aliases used by the
// dashboard routes ("heart", "heartrate", "activities").
func ParseMetricKind(s string) (MetricKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heart_rate", "heartrate", "heart":
		return HeartRate, nil
	case "sleep":
		return Sleep, nil
	case "activity", "activities":
		return Activity, nil
	}
	return 0, fmt.Errorf("unknown metric kind %q", s)
}

// Granularity selects between a single-day view and a date-range view.
type Granularity int

const (
	Daily Granularity = iota
	Weekly
)

func (g Granularity) String() string {
	switch g {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	default:
		return fmt.Sprintf("granularity(%d)", int(g))
	}
}

// Valid reports whether g is Daily or Weekly.
func (g Granularity) Valid() bool {
	return g == Daily || g == Weekly
}

// MarshalText implements encoding.TextMarshaler.
func (g Granularity) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("invalid granularity %d", int(g))
	}
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Granularity) UnmarshalText(b []byte) error {
	parsed, err := ParseGranularity(string(b))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// ParseGranularity accepts "daily"/"today"/"day" and "weekly"/"week".
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "today", "day":
		return Daily, nil
	case "weekly", "week":
		return Weekly, nil
	}
	return 0, fmt.Errorf("unknown granularity %q", s)
}
