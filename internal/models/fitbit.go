package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Provider payload shapes. Only fields read by the derivation layer are
// declared; everything else in the provider JSON is ignored on decode but
// preserved in the cached raw payload.

// HeartRateResponse is the body of the heart-rate time series endpoints.
//
//	{
//	  "activities-heart": [{"dateTime": "2026-10-17", "value": {...}}],
//	  "activities-heart-intraday": {"dataset": [{"time": "13:08:00", "value": 122}]}
//	}
type HeartRateResponse struct {
	Activities []HeartActivity        `json:"activities-heart"`
	Intraday   *HeartActivityIntraday `json:"activities-heart-intraday,omitempty"`
}

// HeartActivity is one day of heart-rate summary.
type HeartActivity struct {
	DateTime string          `json:"dateTime"`
	Value    HeartDaySummary `json:"value"`
}

// HeartDaySummary carries zones and the optional resting heart rate.
type HeartDaySummary struct {
	CustomHeartRateZones []HeartRateZone `json:"customHeartRateZones"`
	HeartRateZones       []HeartRateZone `json:"heartRateZones"`
	RestingHeartRate     *float64        `json:"restingHeartRate,omitempty"`
}

// UnmarshalJSON accepts both the object form and the legacy string form
// ("value": "99.58") some endpoints return for a single day.
func (s *HeartDaySummary) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, `"`) || trimmed == "null" {
		*s = HeartDaySummary{}
		return nil
	}
	type plain HeartDaySummary
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*s = HeartDaySummary(p)
	return nil
}

// HeartRateZone is one provider-defined heart-rate zone.
type HeartRateZone struct {
	Name        string   `json:"name"`
	Min         float64  `json:"min"`
	Max         float64  `json:"max"`
	Minutes     float64  `json:"minutes"`
	CaloriesOut *float64 `json:"caloriesOut,omitempty"`
}

// HeartActivityIntraday holds the intraday samples for a single day.
type HeartActivityIntraday struct {
	Dataset         []HeartSample `json:"dataset"`
	DatasetInterval int           `json:"datasetInterval"`
	DatasetType     string        `json:"datasetType"`
}

// HeartSample is one intraday reading.
type HeartSample struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// SleepResponse is the body of the sleep log endpoints.
type SleepResponse struct {
	Sleep   []SleepRecord `json:"sleep"`
	Summary *SleepSummary `json:"summary,omitempty"`
}

// SleepRecord is one sleep log.
type SleepRecord struct {
	DateOfSleep   string       `json:"dateOfSleep"`
	StartTime     string       `json:"startTime"`
	EndTime       string       `json:"endTime"`
	IsMainSleep   bool         `json:"isMainSleep"`
	Efficiency    *float64     `json:"efficiency,omitempty"`
	MinutesAsleep *float64     `json:"minutesAsleep,omitempty"`
	Levels        *SleepLevels `json:"levels,omitempty"`
}

// SleepLevels holds the stage segments and per-stage summary.
type SleepLevels struct {
	Data    []SleepSegment                `json:"data"`
	Summary map[string]SleepStageSummary `json:"summary"`
}

// SleepSegment is one contiguous stage interval.
type SleepSegment struct {
	DateTime string  `json:"dateTime"`
	Level    string  `json:"level"`
	Seconds  float64 `json:"seconds"`
}

// SleepStageSummary is the provider's per-stage total.
type SleepStageSummary struct {
	Count   *float64 `json:"count,omitempty"`
	Minutes *float64 `json:"minutes,omitempty"`
}

// SleepSummary is the top-level sleep summary for the requested date(s).
type SleepSummary struct {
	TotalMinutesAsleep *float64 `json:"totalMinutesAsleep,omitempty"`
	TotalSleepRecords  *float64 `json:"totalSleepRecords,omitempty"`
	TotalTimeInBed     *float64 `json:"totalTimeInBed,omitempty"`
}

// ActivityDayResponse is the body of the daily activity summary endpoint.
type ActivityDayResponse struct {
	Summary *ActivitySummary `json:"summary,omitempty"`
}

// ActivitySummary carries the daily totals.
type ActivitySummary struct {
	Steps               *float64           `json:"steps,omitempty"`
	CaloriesOut         *float64           `json:"caloriesOut,omitempty"`
	Floors              *float64           `json:"floors,omitempty"`
	VeryActiveMinutes   *float64           `json:"veryActiveMinutes,omitempty"`
	FairlyActiveMinutes *float64           `json:"fairlyActiveMinutes,omitempty"`
	Distances           []ActivityDistance `json:"distances"`
}

// ActivityDistance is one entry of the per-activity distance list; the entry
// with activity "total" is the day's total, in kilometres.
type ActivityDistance struct {
	Activity string  `json:"activity"`
	Distance float64 `json:"distance"`
}

// Activity time-series resource paths requested for a weekly view.
const (
	ResourceSteps            = "steps"
	ResourceDistance         = "distance"
	ResourceCalories         = "calories"
	ResourceActivityCalories = "activityCalories"
)

// ActivityResources lists the sub-resources of a weekly activity view.
var ActivityResources = []string{ResourceSteps, ResourceDistance, ResourceCalories, ResourceActivityCalories}

// SeriesPoint is one entry of an activity time series. The provider encodes
// values as strings.
type SeriesPoint struct {
	DateTime string `json:"dateTime"`
	Value    string `json:"value"`
}

// Float parses the point's value. ok is false when the value is empty or not numeric.
func (p SeriesPoint) Float() (v float64, ok bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(p.Value), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ActivitySeriesBundle is the composite payload cached for a weekly activity
// view: one raw provider body per sub-resource.
type ActivitySeriesBundle struct {
	Steps            json.RawMessage `json:"steps,omitempty"`
	Distance         json.RawMessage `json:"distance,omitempty"`
	Calories         json.RawMessage `json:"calories,omitempty"`
	ActivityCalories json.RawMessage `json:"activityCalories,omitempty"`
}

// Set stores body under the named resource. Unknown resources are ignored.
func (b *ActivitySeriesBundle) Set(resource string, body json.RawMessage) {
	switch resource {
	case ResourceSteps:
		b.Steps = body
	case ResourceDistance:
		b.Distance = body
	case ResourceCalories:
		b.Calories = body
	case ResourceActivityCalories:
		b.ActivityCalories = body
	}
}

// Series decodes one resource body into its points. The provider wraps the
// list as {"activities-<resource>": [...]}. A missing body yields nil.
func (b ActivitySeriesBundle) Series(resource string) ([]SeriesPoint, error) {
	var body json.RawMessage
	switch resource {
	case ResourceSteps:
		body = b.Steps
	case ResourceDistance:
		body = b.Distance
	case ResourceCalories:
		body = b.Calories
	case ResourceActivityCalories:
		body = b.ActivityCalories
	}
	if len(body) == 0 {
		return nil, nil
	}
	var wrapped map[string][]SeriesPoint
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return wrapped["activities-"+resource], nil
}
