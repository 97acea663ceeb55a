package derive

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/claude/fitdash/internal/models"
)

var sleepTimeLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

// parseSleepTime parses the provider's zone-less local timestamps.
func parseSleepTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range sleepTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// MainSleep returns the record flagged as main sleep, else the first record.
// ok is false when there are no records.
func MainSleep(records []models.SleepRecord) (models.SleepRecord, bool) {
	if len(records) == 0 {
		return models.SleepRecord{}, false
	}
	for _, r := range records {
		if r.IsMainSleep {
			return r, true
		}
	}
	return records[0], true
}

// Timeline positions each known-stage segment inside the sleep window as
// percentages of the window length, grouped into rows in SleepStageOrder.
// Segments with unparseable timestamps or unknown levels are skipped.
func Timeline(windowStart time.Time, windowSeconds float64, segments []models.SleepSegment) []models.SleepStageRow {
	rows := make([]models.SleepStageRow, len(models.SleepStageOrder))
	for i, stage := range models.SleepStageOrder {
		rows[i] = models.SleepStageRow{Stage: stage, Segments: []models.SleepTimelineSegment{}}
	}
	if windowSeconds <= 0 {
		return rows
	}

	for _, seg := range segments {
		stage, known := models.NormalizeSleepStage(seg.Level)
		if !known {
			continue
		}
		start, ok := parseSleepTime(seg.DateTime)
		if !ok {
			continue
		}
		offset := start.Sub(windowStart).Seconds()
		idx := models.SleepStageIndex(stage)
		rows[idx].Segments = append(rows[idx].Segments, models.SleepTimelineSegment{
			Stage:           stage,
			Start:           seg.DateTime,
			DurationSeconds: seg.Seconds,
			LeftPercent:     100 * offset / windowSeconds,
			WidthPercent:    100 * seg.Seconds / windowSeconds,
		})
	}
	return rows
}

func stageMinutes(levels *models.SleepLevels, stage string) *float64 {
	if levels == nil {
		return nil
	}
	s, ok := levels.Summary[stage]
	if !ok {
		return nil
	}
	return copyPtr(s.Minutes)
}

// SleepDaily builds the timeline of the night's main sleep record.
// A payload with no records yields an empty view.
func SleepDaily(payload json.RawMessage) (*models.SleepDailyView, error) {
	var resp models.SleepResponse
	if err := decode("sleep", payload, &resp); err != nil {
		return nil, err
	}

	view := &models.SleepDailyView{Rows: []models.SleepStageRow{}}
	rec, ok := MainSleep(resp.Sleep)
	if !ok {
		return view, nil
	}

	view.Date = rec.DateOfSleep
	view.WindowStart = rec.StartTime
	view.WindowEnd = rec.EndTime
	view.Summary = models.SleepDailySummary{
		MinutesAsleep: copyPtr(rec.MinutesAsleep),
		Efficiency:    copyPtr(rec.Efficiency),
		DeepMinutes:   stageMinutes(rec.Levels, models.SleepStageDeep),
		LightMinutes:  stageMinutes(rec.Levels, models.SleepStageLight),
		REMMinutes:    stageMinutes(rec.Levels, models.SleepStageREM),
		WakeMinutes:   stageMinutes(rec.Levels, models.SleepStageWake),
	}

	start, okStart := parseSleepTime(rec.StartTime)
	end, okEnd := parseSleepTime(rec.EndTime)
	var window float64
	if okStart && okEnd {
		window = end.Sub(start).Seconds()
	}
	if window > 0 {
		view.TotalHours = window / 3600
	}

	var segments []models.SleepSegment
	if rec.Levels != nil {
		segments = rec.Levels.Data
	}
	view.Rows = Timeline(start, window, segments)
	return view, nil
}

// SleepWeekly builds one row per night, oldest first, using the provider's
// per-record summaries as reported. When a date has several records the main
// one wins.
func SleepWeekly(payload json.RawMessage) (*models.SleepWeeklyView, error) {
	var resp models.SleepResponse
	if err := decode("sleep", payload, &resp); err != nil {
		return nil, err
	}

	byDate := make(map[string]models.SleepRecord)
	for _, r := range resp.Sleep {
		prev, seen := byDate[r.DateOfSleep]
		if !seen || (r.IsMainSleep && !prev.IsMainSleep) {
			byDate[r.DateOfSleep] = r
		}
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	view := &models.SleepWeeklyView{Days: make([]models.SleepDay, 0, len(dates))}
	var effSum float64
	var effCount int
	var bedHours, wakeHours []float64
	for _, d := range dates {
		r := byDate[d]
		if t, ok := parseSleepTime(r.StartTime); ok {
			bedHours = append(bedHours, hourOfDay(t))
		}
		if t, ok := parseSleepTime(r.EndTime); ok {
			wakeHours = append(wakeHours, hourOfDay(t))
		}
		view.Days = append(view.Days, models.SleepDay{
			Date:         d,
			DeepMinutes:  stageMinutes(r.Levels, models.SleepStageDeep),
			LightMinutes: stageMinutes(r.Levels, models.SleepStageLight),
			REMMinutes:   stageMinutes(r.Levels, models.SleepStageREM),
			WakeMinutes:  stageMinutes(r.Levels, models.SleepStageWake),
			TotalMinutes: copyPtr(r.MinutesAsleep),
			Efficiency:   copyPtr(r.Efficiency),
		})
		if r.Efficiency != nil {
			effSum += *r.Efficiency
			effCount++
		}
	}

	if resp.Summary != nil {
		view.Summary.TotalMinutesAsleep = copyPtr(resp.Summary.TotalMinutesAsleep)
	}
	if effCount > 0 {
		view.Summary.AverageEfficiency = ptr(effSum / float64(effCount))
	}
	view.Summary.Nights = len(view.Days)
	if len(bedHours) > 0 {
		mean, std := circularMeanStd(bedHours)
		view.Summary.AvgBedtime = hoursToHHMM(mean)
		view.Summary.BedtimeStdMin = ptr(math.Round(std * 60))
	}
	if len(wakeHours) > 0 {
		mean, std := circularMeanStd(wakeHours)
		view.Summary.AvgWakeTime = hoursToHHMM(mean)
		view.Summary.WakeTimeStdMin = ptr(math.Round(std * 60))
	}
	return view, nil
}
