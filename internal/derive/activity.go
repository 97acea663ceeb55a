package derive

import (
	"encoding/json"

	"github.com/claude/fitdash/internal/models"
)

const metersPerKilometer = 1000

// ActivityDaily extracts the flat daily summary. Distance is converted from
// kilometres to metres; active minutes are very-active plus fairly-active.
func ActivityDaily(payload json.RawMessage) (*models.ActivityDailyView, error) {
	var resp models.ActivityDayResponse
	if err := decode("activity", payload, &resp); err != nil {
		return nil, err
	}

	view := &models.ActivityDailyView{}
	s := resp.Summary
	if s == nil {
		return view, nil
	}
	view.Steps = copyPtr(s.Steps)
	view.CaloriesOut = copyPtr(s.CaloriesOut)
	view.Floors = copyPtr(s.Floors)
	view.ActiveMinutes = sumPresent(s.VeryActiveMinutes, s.FairlyActiveMinutes)
	for _, d := range s.Distances {
		if d.Activity == "total" {
			view.DistanceMeters = ptr(d.Distance * metersPerKilometer)
			break
		}
	}
	return view, nil
}

func valueAt(series []models.SeriesPoint, i int) float64 {
	if i >= len(series) {
		return 0
	}
	v, ok := series[i].Float()
	if !ok {
		return 0
	}
	return v
}

// MergeSeries joins the activity sub-resource series by index into one record
// per day. The longest series sets the length; a missing or unparseable value
// is 0. Each day's date comes from the first series that has that index.
// Distance is converted from kilometres to metres.
func MergeSeries(steps, calories, distance, activityCalories []models.SeriesPoint) []models.ActivityDay {
	all := [][]models.SeriesPoint{steps, calories, distance, activityCalories}
	n := 0
	for _, s := range all {
		if len(s) > n {
			n = len(s)
		}
	}

	days := make([]models.ActivityDay, n)
	for i := 0; i < n; i++ {
		for _, s := range all {
			if i < len(s) {
				days[i].Date = s[i].DateTime
				break
			}
		}
		days[i].Steps = valueAt(steps, i)
		days[i].Calories = valueAt(calories, i)
		days[i].DistanceMeters = valueAt(distance, i) * metersPerKilometer
		days[i].ActivityCalories = valueAt(activityCalories, i)
	}
	return days
}

// ActivityWeekly merges the composite weekly payload into per-day records.
func ActivityWeekly(payload json.RawMessage) (*models.ActivityWeeklyView, error) {
	var bundle models.ActivitySeriesBundle
	if err := decode("activity", payload, &bundle); err != nil {
		return nil, err
	}

	series := make(map[string][]models.SeriesPoint, len(models.ActivityResources))
	for _, res := range models.ActivityResources {
		pts, err := bundle.Series(res)
		if err != nil {
			return nil, &MalformedPayloadError{Kind: "activity", Reason: res + ": " + err.Error()}
		}
		series[res] = pts
	}

	days := MergeSeries(
		series[models.ResourceSteps],
		series[models.ResourceCalories],
		series[models.ResourceDistance],
		series[models.ResourceActivityCalories],
	)

	view := &models.ActivityWeeklyView{Days: days}
	for _, d := range days {
		view.Summary.TotalSteps += d.Steps
		view.Summary.TotalCalories += d.Calories
		view.Summary.TotalDistanceMeters += d.DistanceMeters
	}
	view.Summary.Days = len(days)
	if len(days) > 0 {
		view.Summary.AverageSteps = view.Summary.TotalSteps / float64(len(days))
		view.Summary.AverageCalories = view.Summary.TotalCalories / float64(len(days))
	}
	return view, nil
}
