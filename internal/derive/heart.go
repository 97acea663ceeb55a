package derive

import (
	"encoding/json"

	"github.com/claude/fitdash/internal/models"
)

// Downsample keeps every step-th sample, step = ceil(N/target), starting with
// the first. Order is preserved and the result is a new slice.
func Downsample[T any](samples []T, target int) []T {
	n := len(samples)
	if n == 0 {
		return []T{}
	}
	step := 1
	if target > 0 && n > target {
		step = (n + target - 1) / target
	}
	out := make([]T, 0, (n+step-1)/step)
	for i := 0; i < n; i += step {
		out = append(out, samples[i])
	}
	return out
}

// WeightedAverage is Σ(minutes × midpoint) / Σminutes over zones with
// minutes > 0. Returns nil when no zone has minutes.
func WeightedAverage(zones []models.HeartRateZone) *float64 {
	var weighted, minutes float64
	for _, z := range zones {
		if z.Minutes <= 0 {
			continue
		}
		weighted += z.Minutes * (z.Min + z.Max) / 2
		minutes += z.Minutes
	}
	if minutes == 0 {
		return nil
	}
	return ptr(weighted / minutes)
}

func zoneCalories(zones []models.HeartRateZone) *float64 {
	vals := make([]*float64, len(zones))
	for i := range zones {
		vals[i] = zones[i].CaloriesOut
	}
	return sumPresent(vals...)
}

// HeartRateDaily builds the single-day view: the down-sampled intraday line,
// the zone table and summary statistics.
func HeartRateDaily(payload json.RawMessage, opts Options) (*models.HeartDailyView, error) {
	var resp models.HeartRateResponse
	if err := decode("heart_rate", payload, &resp); err != nil {
		return nil, err
	}

	view := &models.HeartDailyView{Points: []models.HeartPoint{}, Zones: []models.HeartZone{}}

	if len(resp.Activities) > 0 {
		day := resp.Activities[0]
		view.Date = day.DateTime
		for _, z := range day.Value.HeartRateZones {
			view.Zones = append(view.Zones, models.HeartZone{
				Name:        z.Name,
				Min:         z.Min,
				Max:         z.Max,
				Minutes:     z.Minutes,
				Midpoint:    (z.Min + z.Max) / 2,
				CaloriesOut: copyPtr(z.CaloriesOut),
			})
		}
		view.Summary.RestingHeartRate = copyPtr(day.Value.RestingHeartRate)
		view.Summary.WeightedAverage = WeightedAverage(day.Value.HeartRateZones)
		view.Summary.ZoneCalories = zoneCalories(day.Value.HeartRateZones)
	}

	if resp.Intraday != nil && len(resp.Intraday.Dataset) > 0 {
		samples := resp.Intraday.Dataset
		lo, hi, sum := samples[0].Value, samples[0].Value, 0.0
		for _, s := range samples {
			if s.Value < lo {
				lo = s.Value
			}
			if s.Value > hi {
				hi = s.Value
			}
			sum += s.Value
		}
		view.Summary.MinBPM = ptr(lo)
		view.Summary.MaxBPM = ptr(hi)
		view.Summary.MeanBPM = ptr(sum / float64(len(samples)))
		view.Summary.SampleCount = len(samples)

		for _, s := range Downsample(samples, opts.intradayPoints()) {
			view.Points = append(view.Points, models.HeartPoint{Time: clockMinutes(s.Time), BPM: s.Value})
		}
	}

	return view, nil
}

// HeartRateWeekly builds one point per day with its weighted average and
// resting heart rate.
func HeartRateWeekly(payload json.RawMessage) (*models.HeartWeeklyView, error) {
	var resp models.HeartRateResponse
	if err := decode("heart_rate", payload, &resp); err != nil {
		return nil, err
	}

	view := &models.HeartWeeklyView{Days: make([]models.HeartDay, 0, len(resp.Activities))}
	var avgSum float64
	var avgCount int
	for _, a := range resp.Activities {
		day := models.HeartDay{
			Date:             a.DateTime,
			WeightedAverage:  WeightedAverage(a.Value.HeartRateZones),
			RestingHeartRate: copyPtr(a.Value.RestingHeartRate),
			CaloriesOut:      zoneCalories(a.Value.HeartRateZones),
		}
		if day.WeightedAverage != nil {
			avgSum += *day.WeightedAverage
			avgCount++
		}
		if day.RestingHeartRate != nil {
			view.Summary.LatestRestingHeartRate = copyPtr(day.RestingHeartRate)
		}
		view.Days = append(view.Days, day)
	}
	if avgCount > 0 {
		view.Summary.AverageWeighted = ptr(avgSum / float64(avgCount))
	}
	view.Summary.Days = len(view.Days)
	return view, nil
}

// clockMinutes trims "HH:MM:SS" to "HH:MM".
func clockMinutes(s string) string {
	if len(s) >= 5 {
		return s[:5]
	}
	return s
}
