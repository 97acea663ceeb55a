package derive

import (
	"encoding/json"
	"math"
	"testing"
)

// TestCircularMeanStd verifies that times near midnight average across the
// 24→0 boundary instead of producing the naive 12:00 result.
func TestCircularMeanStd(t *testing.T) {
	tests := []struct {
		name     string
		hours    []float64
		wantMean float64
		spread   bool
	}{
		{"same time", []float64{22.0, 22.0, 22.0}, 22.0, false},
		{"around midnight", []float64{23.0, 1.0}, 0.0, true},
		{"morning cluster", []float64{7.0, 7.5, 8.0}, 7.5, true},
		{"evening cluster", []float64{22.0, 22.5, 23.0}, 22.5, true},
		{"empty", nil, 0.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean, std := circularMeanStd(tt.hours)
			// 24 and 0 are the same instant.
			diff := math.Abs(mean - tt.wantMean)
			if diff > 0.1 && math.Abs(diff-24) > 0.1 {
				t.Errorf("mean = %.2f, want %.2f", mean, tt.wantMean)
			}
			if tt.spread && std <= 0 {
				t.Errorf("std = %.4f, want > 0", std)
			}
			if !tt.spread && std > 0.01 {
				t.Errorf("std = %.4f, want ≈ 0", std)
			}
		})
	}
}

// TestHoursToHHMM verifies the fractional hours → "HH:MM" formatting,
// including rounding up into the next hour and wrapping at midnight.
func TestHoursToHHMM(t *testing.T) {
	tests := []struct {
		hours float64
		want  string
	}{
		{0.0, "00:00"},
		{7.5, "07:30"},
		{22.75, "22:45"},
		{23.0, "23:00"},
		{24.0, "00:00"},
		{12.0, "12:00"},
		{6.9999, "07:00"},
		{23.9999, "00:00"},
	}

	for _, tt := range tests {
		if got := hoursToHHMM(tt.hours); got != tt.want {
			t.Errorf("hoursToHHMM(%.4f) = %q, want %q", tt.hours, got, tt.want)
		}
	}
}

// TestSleepWeekly_Bedtime verifies average bedtime wraps midnight and that
// nights without timestamps are left out.
func TestSleepWeekly_Bedtime(t *testing.T) {
	payload := `{"sleep":[
		{"dateOfSleep":"2026-10-13","isMainSleep":true,"startTime":"2026-10-12T23:00:00.000","endTime":"2026-10-13T07:00:00.000"},
		{"dateOfSleep":"2026-10-14","isMainSleep":true,"startTime":"2026-10-14T01:00:00.000","endTime":"2026-10-14T07:00:00.000"},
		{"dateOfSleep":"2026-10-15","isMainSleep":true}
	]}`
	view, err := SleepWeekly(json.RawMessage(payload))
	if err != nil {
		t.Fatalf("SleepWeekly: %v", err)
	}
	if view.Summary.AvgBedtime != "00:00" {
		t.Errorf("AvgBedtime = %q, want 00:00", view.Summary.AvgBedtime)
	}
	if view.Summary.AvgWakeTime != "07:00" || *view.Summary.WakeTimeStdMin != 0 {
		t.Errorf("wake = %q ± %v", view.Summary.AvgWakeTime, *view.Summary.WakeTimeStdMin)
	}
	if *view.Summary.BedtimeStdMin <= 0 {
		t.Errorf("BedtimeStdMin = %v, want > 0", *view.Summary.BedtimeStdMin)
	}
}

// TestSleepWeekly_NoTimes verifies the bedtime fields stay empty without
// timestamps.
func TestSleepWeekly_NoTimes(t *testing.T) {
	view, err := SleepWeekly(json.RawMessage(`{"sleep":[{"dateOfSleep":"2026-10-13"}]}`))
	if err != nil {
		t.Fatalf("SleepWeekly: %v", err)
	}
	if view.Summary.AvgBedtime != "" || view.Summary.BedtimeStdMin != nil {
		t.Errorf("Summary = %+v", view.Summary)
	}
}
