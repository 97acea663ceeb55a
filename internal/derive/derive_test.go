package derive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/claude/fitdash/internal/models"
)

const heartDailyPayload = `{
  "activities-heart": [{
    "dateTime": "2026-10-17",
    "value": {
      "restingHeartRate": 58,
      "heartRateZones": [
        {"name": "Out of Range", "min": 30, "max": 60, "minutes": 0, "caloriesOut": 0},
        {"name": "Fat Burn", "min": 60, "max": 80, "minutes": 30, "caloriesOut": 120.5},
        {"name": "Cardio", "min": 80, "max": 100, "minutes": 10, "caloriesOut": 80}
      ]
    }
  }],
  "activities-heart-intraday": {
    "dataset": [
      {"time": "00:00:00", "value": 60},
      {"time": "00:01:00", "value": 64},
      {"time": "00:02:00", "value": 71}
    ],
    "datasetInterval": 1,
    "datasetType": "minute"
  }
}`

const sleepPayload = `{
  "sleep": [
    {
      "dateOfSleep": "2026-10-17",
      "isMainSleep": false,
      "startTime": "2026-10-17T14:00:00.000",
      "endTime": "2026-10-17T14:30:00.000",
      "minutesAsleep": 25,
      "levels": {"data": [], "summary": {}}
    },
    {
      "dateOfSleep": "2026-10-17",
      "isMainSleep": true,
      "startTime": "2026-10-16T23:00:00.000",
      "endTime": "2026-10-17T07:00:00.000",
      "efficiency": 91,
      "minutesAsleep": 430,
      "levels": {
        "data": [
          {"dateTime": "2026-10-16T23:00:00.000", "level": "wake", "seconds": 600},
          {"dateTime": "2026-10-16T23:10:00.000", "level": "light", "seconds": 2400},
          {"dateTime": "2026-10-17T00:00:00.000", "level": "deep", "seconds": 1800},
          {"dateTime": "2026-10-17T00:30:00.000", "level": "unknown", "seconds": 60},
          {"dateTime": "2026-10-17T06:00:00.000", "level": "rem", "seconds": 3600}
        ],
        "summary": {
          "deep": {"count": 1, "minutes": 30},
          "light": {"count": 1, "minutes": 40},
          "rem": {"count": 1, "minutes": 60}
        }
      }
    }
  ],
  "summary": {"totalMinutesAsleep": 455}
}`

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// TestDownsample_Bound verifies the sampling bound and order for the
// documented example and a few uneven lengths.
func TestDownsample_Bound(t *testing.T) {
	cases := []struct {
		n, target, want int
	}{
		{480, 80, 80},
		{100, 80, 50},
		{80, 80, 80},
		{10, 80, 10},
		{0, 80, 0},
		{7, 0, 7},
	}
	for _, tc := range cases {
		in := make([]int, tc.n)
		for i := range in {
			in[i] = i
		}
		out := Downsample(in, tc.target)
		if len(out) != tc.want {
			t.Errorf("Downsample(n=%d, P=%d): len = %d, want %d", tc.n, tc.target, len(out), tc.want)
			continue
		}
		if tc.n > 0 && out[0] != 0 {
			t.Errorf("Downsample(n=%d): first sample dropped", tc.n)
		}
		for i := 1; i < len(out); i++ {
			if out[i] <= out[i-1] {
				t.Fatalf("Downsample(n=%d): order not preserved at %d", tc.n, i)
			}
		}
	}
}

// TestDownsample_EverySixth checks the exact indices kept for N=480, P=80.
func TestDownsample_EverySixth(t *testing.T) {
	in := make([]int, 480)
	for i := range in {
		in[i] = i
	}
	out := Downsample(in, 80)
	for i, v := range out {
		if v != i*6 {
			t.Fatalf("out[%d] = %d, want %d", i, v, i*6)
		}
	}
}

// TestWeightedAverage verifies the zone midpoint weighting and that zero
// total minutes yields nil rather than 0.
func TestWeightedAverage(t *testing.T) {
	zones := []models.HeartRateZone{
		{Min: 60, Max: 80, Minutes: 30},
		{Min: 80, Max: 100, Minutes: 10},
	}
	got := WeightedAverage(zones)
	if got == nil || !approx(*got, 75) {
		t.Fatalf("WeightedAverage = %v, want 75", got)
	}

	if got := WeightedAverage([]models.HeartRateZone{{Min: 60, Max: 80, Minutes: 0}}); got != nil {
		t.Errorf("zero minutes: got %v, want nil", *got)
	}
	if got := WeightedAverage(nil); got != nil {
		t.Errorf("no zones: got %v, want nil", *got)
	}
}

// TestHeartRateDaily verifies points, zones and summary statistics.
func TestHeartRateDaily(t *testing.T) {
	view, err := HeartRateDaily(json.RawMessage(heartDailyPayload), Options{})
	if err != nil {
		t.Fatalf("HeartRateDaily: %v", err)
	}
	if view.Date != "2026-10-17" {
		t.Errorf("Date = %q", view.Date)
	}
	if len(view.Points) != 3 || view.Points[2].Time != "00:02" || view.Points[2].BPM != 71 {
		t.Errorf("Points = %+v", view.Points)
	}
	if len(view.Zones) != 3 || view.Zones[1].Midpoint != 70 {
		t.Errorf("Zones = %+v", view.Zones)
	}
	s := view.Summary
	if s.RestingHeartRate == nil || *s.RestingHeartRate != 58 {
		t.Errorf("RestingHeartRate = %v", s.RestingHeartRate)
	}
	if s.WeightedAverage == nil || !approx(*s.WeightedAverage, 75) {
		t.Errorf("WeightedAverage = %v", s.WeightedAverage)
	}
	if s.ZoneCalories == nil || !approx(*s.ZoneCalories, 200.5) {
		t.Errorf("ZoneCalories = %v", s.ZoneCalories)
	}
	if *s.MinBPM != 60 || *s.MaxBPM != 71 || !approx(*s.MeanBPM, 65) || s.SampleCount != 3 {
		t.Errorf("stats = min %v max %v mean %v n %d", *s.MinBPM, *s.MaxBPM, *s.MeanBPM, s.SampleCount)
	}
}

// TestHeartRateDaily_MissingOptional verifies that a payload with no zones,
// resting rate or intraday data degrades to empty sequences and nil values.
func TestHeartRateDaily_MissingOptional(t *testing.T) {
	view, err := HeartRateDaily(json.RawMessage(`{"activities-heart":[{"dateTime":"2026-10-17","value":{}}]}`), Options{})
	if err != nil {
		t.Fatalf("HeartRateDaily: %v", err)
	}
	if view.Points == nil || len(view.Points) != 0 {
		t.Errorf("Points = %v, want empty non-nil", view.Points)
	}
	s := view.Summary
	if s.RestingHeartRate != nil || s.WeightedAverage != nil || s.MinBPM != nil || s.ZoneCalories != nil {
		t.Errorf("expected nil summary values, got %+v", s)
	}

	b, _ := json.Marshal(view)
	if !strings.Contains(string(b), `"weighted_average":null`) {
		t.Errorf("absent average should render as null: %s", b)
	}
}

// TestHeartRateDaily_DownsamplesLongSeries builds a 480-sample day and checks
// the configured target applies.
func TestHeartRateDaily_DownsamplesLongSeries(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`{"activities-heart":[],"activities-heart-intraday":{"dataset":[`)
	for i := 0; i < 480; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"time":"%02d:%02d:00","value":%d}`, i/60, i%60, 60+i%40)
	}
	sb.WriteString(`]}}`)

	view, err := HeartRateDaily(json.RawMessage(sb.String()), Options{IntradayPoints: 80})
	if err != nil {
		t.Fatalf("HeartRateDaily: %v", err)
	}
	if len(view.Points) != 80 {
		t.Errorf("len(Points) = %d, want 80", len(view.Points))
	}
	if view.Points[1].Time != "00:06" {
		t.Errorf("Points[1].Time = %q, want 00:06", view.Points[1].Time)
	}
	if view.Summary.SampleCount != 480 {
		t.Errorf("SampleCount = %d", view.Summary.SampleCount)
	}
}

// TestHeartRateWeekly verifies per-day averages and the latest resting rate.
func TestHeartRateWeekly(t *testing.T) {
	payload := `{"activities-heart":[
		{"dateTime":"2026-10-12","value":{"restingHeartRate":60,"heartRateZones":[{"min":60,"max":80,"minutes":30},{"min":80,"max":100,"minutes":10}]}},
		{"dateTime":"2026-10-13","value":{"heartRateZones":[{"min":60,"max":80,"minutes":0}]}},
		{"dateTime":"2026-10-14","value":{"restingHeartRate":57,"heartRateZones":[{"min":60,"max":80,"minutes":20}]}}
	]}`
	view, err := HeartRateWeekly(json.RawMessage(payload))
	if err != nil {
		t.Fatalf("HeartRateWeekly: %v", err)
	}
	if len(view.Days) != 3 {
		t.Fatalf("len(Days) = %d", len(view.Days))
	}
	if view.Days[1].WeightedAverage != nil || view.Days[1].RestingHeartRate != nil {
		t.Errorf("day 2 should have nil values: %+v", view.Days[1])
	}
	if *view.Summary.LatestRestingHeartRate != 57 {
		t.Errorf("LatestRestingHeartRate = %v", *view.Summary.LatestRestingHeartRate)
	}
	if !approx(*view.Summary.AverageWeighted, (75.0+70.0)/2) {
		t.Errorf("AverageWeighted = %v", *view.Summary.AverageWeighted)
	}
}

// TestTimeline_SegmentPercentages verifies the documented 8h window example.
func TestTimeline_SegmentPercentages(t *testing.T) {
	start, _ := parseSleepTime("2026-10-16T23:00:00.000")
	rows := Timeline(start, 28800, []models.SleepSegment{
		{DateTime: "2026-10-17T00:00:00.000", Level: "deep", Seconds: 1800},
	})
	deep := rows[models.SleepStageIndex(models.SleepStageDeep)]
	if len(deep.Segments) != 1 {
		t.Fatalf("deep segments = %d", len(deep.Segments))
	}
	seg := deep.Segments[0]
	if !approx(seg.LeftPercent, 12.5) || !approx(seg.WidthPercent, 6.25) {
		t.Errorf("left=%v width=%v, want 12.5 and 6.25", seg.LeftPercent, seg.WidthPercent)
	}
}

// TestSleepDaily verifies main-record selection, row order, unknown-level
// skipping and that every segment stays within the window.
func TestSleepDaily(t *testing.T) {
	view, err := SleepDaily(json.RawMessage(sleepPayload))
	if err != nil {
		t.Fatalf("SleepDaily: %v", err)
	}
	if view.WindowStart != "2026-10-16T23:00:00.000" {
		t.Errorf("main sleep not selected: WindowStart = %q", view.WindowStart)
	}
	if view.TotalHours != 8 {
		t.Errorf("TotalHours = %v", view.TotalHours)
	}
	wantOrder := []string{"wake", "rem", "light", "deep"}
	total := 0
	for i, row := range view.Rows {
		if row.Stage != wantOrder[i] {
			t.Errorf("Rows[%d].Stage = %q, want %q", i, row.Stage, wantOrder[i])
		}
		for _, seg := range row.Segments {
			total++
			if seg.LeftPercent < 0 || seg.LeftPercent+seg.WidthPercent > 100.0001 {
				t.Errorf("segment out of bounds: %+v", seg)
			}
		}
	}
	if total != 4 {
		t.Errorf("segments = %d, want 4 (unknown level skipped)", total)
	}
	if *view.Summary.Efficiency != 91 || *view.Summary.DeepMinutes != 30 {
		t.Errorf("Summary = %+v", view.Summary)
	}
	if view.Summary.WakeMinutes != nil {
		t.Errorf("WakeMinutes = %v, want nil when not reported", *view.Summary.WakeMinutes)
	}
}

// TestSleepDaily_ClassicLog verifies that a classic-type log (asleep,
// restless, awake) draws nothing on the stage timeline.
func TestSleepDaily_ClassicLog(t *testing.T) {
	payload := `{"sleep":[{"dateOfSleep":"2026-10-17","isMainSleep":true,"type":"classic",
		"startTime":"2026-10-16T23:00:00.000","endTime":"2026-10-17T07:00:00.000",
		"levels":{"data":[
			{"dateTime":"2026-10-16T23:00:00.000","level":"awake","seconds":600},
			{"dateTime":"2026-10-16T23:10:00.000","level":"asleep","seconds":20000},
			{"dateTime":"2026-10-17T04:43:20.000","level":"restless","seconds":300}
		]}}]}`
	view, err := SleepDaily(json.RawMessage(payload))
	if err != nil {
		t.Fatalf("SleepDaily: %v", err)
	}
	if len(view.Rows) != 4 {
		t.Fatalf("Rows = %d, want 4", len(view.Rows))
	}
	for _, row := range view.Rows {
		if len(row.Segments) != 0 {
			t.Errorf("row %s: %d segments, want 0", row.Stage, len(row.Segments))
		}
	}
	if view.TotalHours != 8 {
		t.Errorf("TotalHours = %v, want 8", view.TotalHours)
	}
}

// TestSleepDaily_FirstRecordFallback verifies that without a main-sleep flag
// the first record is used.
func TestSleepDaily_FirstRecordFallback(t *testing.T) {
	payload := `{"sleep":[
		{"dateOfSleep":"2026-10-17","startTime":"2026-10-17T01:00:00.000","endTime":"2026-10-17T02:00:00.000"},
		{"dateOfSleep":"2026-10-17","startTime":"2026-10-17T03:00:00.000","endTime":"2026-10-17T05:00:00.000"}
	]}`
	view, err := SleepDaily(json.RawMessage(payload))
	if err != nil {
		t.Fatalf("SleepDaily: %v", err)
	}
	if view.TotalHours != 1 {
		t.Errorf("TotalHours = %v, want 1 (first record)", view.TotalHours)
	}
}

// TestSleepDaily_Empty verifies that no records yields an empty view.
func TestSleepDaily_Empty(t *testing.T) {
	view, err := SleepDaily(json.RawMessage(`{"sleep":[],"summary":{}}`))
	if err != nil {
		t.Fatalf("SleepDaily: %v", err)
	}
	if len(view.Rows) != 0 || view.Date != "" || view.Summary.MinutesAsleep != nil {
		t.Errorf("expected empty view, got %+v", view)
	}
}

// TestSleepWeekly verifies one row per date, oldest first, with the main
// record winning on a shared date.
func TestSleepWeekly(t *testing.T) {
	payload := `{"sleep":[
		{"dateOfSleep":"2026-10-14","isMainSleep":true,"efficiency":90,"minutesAsleep":400,"levels":{"summary":{"deep":{"minutes":60},"wake":{"minutes":30}}}},
		{"dateOfSleep":"2026-10-13","isMainSleep":false,"minutesAsleep":20},
		{"dateOfSleep":"2026-10-13","isMainSleep":true,"efficiency":80,"minutesAsleep":380}
	],"summary":{"totalMinutesAsleep":800}}`
	view, err := SleepWeekly(json.RawMessage(payload))
	if err != nil {
		t.Fatalf("SleepWeekly: %v", err)
	}
	if len(view.Days) != 2 || view.Days[0].Date != "2026-10-13" {
		t.Fatalf("Days = %+v", view.Days)
	}
	if *view.Days[0].TotalMinutes != 380 {
		t.Errorf("main record not chosen: %v", *view.Days[0].TotalMinutes)
	}
	if *view.Days[1].DeepMinutes != 60 || view.Days[1].REMMinutes != nil {
		t.Errorf("Days[1] = %+v", view.Days[1])
	}
	if *view.Summary.TotalMinutesAsleep != 800 || !approx(*view.Summary.AverageEfficiency, 85) {
		t.Errorf("Summary = %+v", view.Summary)
	}
}

// TestActivityDaily verifies unit conversion and active-minute summing.
func TestActivityDaily(t *testing.T) {
	payload := `{"summary":{"steps":9000,"caloriesOut":2300,"floors":12,"veryActiveMinutes":20,"fairlyActiveMinutes":15,
		"distances":[{"activity":"tracker","distance":6.1},{"activity":"total","distance":6.5}]}}`
	view, err := ActivityDaily(json.RawMessage(payload))
	if err != nil {
		t.Fatalf("ActivityDaily: %v", err)
	}
	if *view.Steps != 9000 || *view.CaloriesOut != 2300 || *view.Floors != 12 {
		t.Errorf("view = %+v", view)
	}
	if !approx(*view.DistanceMeters, 6500) {
		t.Errorf("DistanceMeters = %v", *view.DistanceMeters)
	}
	if *view.ActiveMinutes != 35 {
		t.Errorf("ActiveMinutes = %v", *view.ActiveMinutes)
	}
}

// TestActivityDaily_NoPlaceholders verifies missing fields stay nil.
func TestActivityDaily_NoPlaceholders(t *testing.T) {
	view, err := ActivityDaily(json.RawMessage(`{"summary":{"steps":10}}`))
	if err != nil {
		t.Fatalf("ActivityDaily: %v", err)
	}
	if view.CaloriesOut != nil || view.DistanceMeters != nil || view.ActiveMinutes != nil || view.Floors != nil {
		t.Errorf("expected nil fields, got %+v", view)
	}
}

// TestMergeSeries_Defaulting verifies the documented shorter-series example.
func TestMergeSeries_Defaulting(t *testing.T) {
	steps := []models.SeriesPoint{{DateTime: "2026-10-12", Value: "10"}, {DateTime: "2026-10-13", Value: "20"}}
	calories := []models.SeriesPoint{{DateTime: "2026-10-12", Value: "5"}}

	days := MergeSeries(steps, calories, nil, nil)
	if len(days) != 2 {
		t.Fatalf("len = %d, want 2", len(days))
	}
	if days[0].Steps != 10 || days[0].Calories != 5 {
		t.Errorf("days[0] = %+v", days[0])
	}
	if days[1].Steps != 20 || days[1].Calories != 0 || days[1].Date != "2026-10-13" {
		t.Errorf("days[1] = %+v", days[1])
	}
}

// TestMergeSeries_LongestDrives verifies that a longer non-first series
// extends the result and supplies the date.
func TestMergeSeries_LongestDrives(t *testing.T) {
	steps := []models.SeriesPoint{{DateTime: "2026-10-12", Value: "10"}}
	distance := []models.SeriesPoint{{DateTime: "2026-10-12", Value: "1.5"}, {DateTime: "2026-10-13", Value: "2"}}

	days := MergeSeries(steps, nil, distance, nil)
	if len(days) != 2 || days[1].Date != "2026-10-13" || days[1].Steps != 0 || days[1].DistanceMeters != 2000 {
		t.Errorf("days = %+v", days)
	}
}

// TestActivityWeekly verifies the composite bundle is unwrapped and summed.
func TestActivityWeekly(t *testing.T) {
	payload := `{
		"steps": {"activities-steps":[{"dateTime":"2026-10-12","value":"1000"},{"dateTime":"2026-10-13","value":"3000"}]},
		"calories": {"activities-calories":[{"dateTime":"2026-10-12","value":"2000"},{"dateTime":"2026-10-13","value":"2200"}]},
		"distance": {"activities-distance":[{"dateTime":"2026-10-12","value":"0.8"}]}
	}`
	view, err := ActivityWeekly(json.RawMessage(payload))
	if err != nil {
		t.Fatalf("ActivityWeekly: %v", err)
	}
	if view.Summary.Days != 2 || view.Summary.TotalSteps != 4000 || view.Summary.AverageSteps != 2000 {
		t.Errorf("Summary = %+v", view.Summary)
	}
	if !approx(view.Days[0].DistanceMeters, 800) || view.Days[1].DistanceMeters != 0 {
		t.Errorf("Days = %+v", view.Days)
	}
}

// TestDerive_Malformed verifies non-JSON and wrong-shape payloads produce a
// MalformedPayloadError.
func TestDerive_Malformed(t *testing.T) {
	cases := []struct {
		kind    models.MetricKind
		g       models.Granularity
		payload string
	}{
		{models.HeartRate, models.Daily, `not json`},
		{models.Sleep, models.Daily, `{"sleep": "nope"}`},
		{models.Activity, models.Weekly, `[1,2,3]`},
		{models.Activity, models.Daily, ``},
	}
	for _, tc := range cases {
		_, err := Derive(tc.kind, tc.g, json.RawMessage(tc.payload), Options{})
		var mp *MalformedPayloadError
		if !errors.As(err, &mp) {
			t.Errorf("Derive(%s/%s, %q): err = %v, want MalformedPayloadError", tc.kind, tc.g, tc.payload, err)
		}
	}
}

// TestDerive_Idempotent verifies that deriving the same payload twice yields
// byte-identical JSON and leaves the input untouched.
func TestDerive_Idempotent(t *testing.T) {
	inputs := []struct {
		kind    models.MetricKind
		g       models.Granularity
		payload string
	}{
		{models.HeartRate, models.Daily, heartDailyPayload},
		{models.Sleep, models.Daily, sleepPayload},
		{models.Sleep, models.Weekly, sleepPayload},
	}
	for _, in := range inputs {
		payload := json.RawMessage(in.payload)
		before := append([]byte(nil), payload...)

		v1, err := Derive(in.kind, in.g, payload, Options{})
		if err != nil {
			t.Fatalf("Derive: %v", err)
		}
		v2, _ := Derive(in.kind, in.g, payload, Options{})
		b1, _ := json.Marshal(v1)
		b2, _ := json.Marshal(v2)
		if !bytes.Equal(b1, b2) {
			t.Errorf("%s/%s: derivations differ", in.kind, in.g)
		}
		if !bytes.Equal(before, payload) {
			t.Errorf("%s/%s: input mutated", in.kind, in.g)
		}
	}
}
