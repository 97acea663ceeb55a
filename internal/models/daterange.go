package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the provider's calendar date format.
const DateLayout = "2006-01-02"

// NormalizeDate returns the calendar date of t at 00:00:00 UTC.
// The wall-clock date in t's own location is kept.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a normalized date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time // inclusive, midnight UTC
	End   time.Time // inclusive, midnight UTC
}

// NewDailyRange returns the single-day range for d.
func NewDailyRange(d time.Time) DateRange {
	d = NormalizeDate(d)
	return DateRange{Start: d, End: d}
}

// NewWeeklyRange returns the range [start, end] with both ends normalized.
func NewWeeklyRange(start, end time.Time) DateRange {
	return DateRange{Start: NormalizeDate(start), End: NormalizeDate(end)}
}

// WeekToDate returns the range from Monday of now's week through now.
func WeekToDate(now time.Time) DateRange {
	today := NormalizeDate(now)
	offset := (int(today.Weekday()) + 6) % 7 // Monday = 0
	return DateRange{Start: today.AddDate(0, 0, -offset), End: today}
}

// MaxRangeDays is the longest range the provider serves in one request (the
// sleep log by date range caps at 100 days).
const MaxRangeDays = 100

// Days returns the number of calendar days in the range.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Validate checks the range is ordered, spans exactly one day for Daily and
// at most MaxRangeDays otherwise.
func (r DateRange) Validate(g Granularity) error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("date range is incomplete")
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("date range end %s is before start %s", r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	if g == Daily && !r.Start.Equal(r.End) {
		return fmt.Errorf("daily range must start and end on the same date")
	}
	if n := r.Days(); n > MaxRangeDays {
		return fmt.Errorf("date range spans %d days, at most %d allowed", n, MaxRangeDays)
	}
	return nil
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ":" + r.End.Format(DateLayout)
}

type dateRangeJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarshalJSON renders the range as {"start":"YYYY-MM-DD","end":"YYYY-MM-DD"}.
func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateRangeJSON{Start: r.Start.Format(DateLayout), End: r.End.Format(DateLayout)})
}

// UnmarshalJSON parses the form produced by MarshalJSON.
func (r *DateRange) UnmarshalJSON(b []byte) error {
	var raw dateRangeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	start, err := ParseDate(raw.Start)
	if err != nil {
		return err
	}
	end, err := ParseDate(raw.End)
	if err != nil {
		return err
	}
	*r = DateRange{Start: start, End: end}
	return nil
}

// CacheKey identifies one cache slot.
type CacheKey struct {
	Kind        MetricKind
	Granularity Granularity
	Range       DateRange
}

// String renders the key as kind:granularity:start:end, e.g.
// "sleep:weekly:2026-10-12:2026-10-17".
func (k CacheKey) String() string {
	return k.Kind.String() + ":" + k.Granularity.String() + ":" + k.Range.String()
}

// ParseCacheKey is the inverse of CacheKey.String.
func ParseCacheKey(s string) (CacheKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return CacheKey{}, fmt.Errorf("malformed cache key %q", s)
	}
	kind, err := ParseMetricKind(parts[0])
	if err != nil {
		return CacheKey{}, err
	}
	g, err := ParseGranularity(parts[1])
	if err != nil {
		return CacheKey{}, err
	}
	start, err := ParseDate(parts[2])
	if err != nil {
		return CacheKey{}, err
	}
	end, err := ParseDate(parts[3])
	if err != nil {
		return CacheKey{}, err
	}
	return CacheKey{Kind: kind, Granularity: g, Range: DateRange{Start: start, End: end}}, nil
}

// CacheEntry is one persisted provider payload.
type CacheEntry struct {
	Key       CacheKey
	Payload   json.RawMessage
	FetchedAt time.Time
}

// RangeFor builds the range a caller asked for. Daily uses date, defaulting
// to today. Weekly uses start/end, defaulting to the week to date.
func RangeFor(g Granularity, date, start, end string, now time.Time) (DateRange, error) {
	switch g {
	case Daily:
		if date == "" {
			date = start
		}
		if date == "" {
			return NewDailyRange(now), nil
		}
		d, err := ParseDate(date)
		if err != nil {
			return DateRange{}, err
		}
		return NewDailyRange(d), nil
	case Weekly:
		if start == "" && end == "" {
			return WeekToDate(now), nil
		}
		if start == "" || end == "" {
			return DateRange{}, fmt.Errorf("weekly range needs both start and end")
		}
		s, err := ParseDate(start)
		if err != nil {
			return DateRange{}, err
		}
		e, err := ParseDate(end)
		if err != nil {
			return DateRange{}, err
		}
		r := NewWeeklyRange(s, e)
		return r, r.Validate(g)
	}
	return DateRange{}, fmt.Errorf("unknown granularity %d", int(g))
}
