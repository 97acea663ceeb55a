package models

// Derived view shapes. Optional numbers are pointers: nil means the provider
// did not report the value or it is undefined, and renders as JSON null.

// HeartPoint is one down-sampled intraday reading.
type HeartPoint struct {
	Time string  `json:"time"` // HH:MM
	BPM  float64 `json:"bpm"`
}

// HeartZone is a zone as displayed, including its midpoint.
type HeartZone struct {
	Name        string   `json:"name"`
	Min         float64  `json:"min"`
	Max         float64  `json:"max"`
	Minutes     float64  `json:"minutes"`
	Midpoint    float64  `json:"midpoint"`
	CaloriesOut *float64 `json:"calories_out"`
}

// HeartDailySummary is the summary record of a single-day heart-rate view.
type HeartDailySummary struct {
	RestingHeartRate *float64 `json:"resting_heart_rate"`
	WeightedAverage  *float64 `json:"weighted_average"`
	ZoneCalories     *float64 `json:"zone_calories"`
	MinBPM           *float64 `json:"min_bpm"`
	MaxBPM           *float64 `json:"max_bpm"`
	MeanBPM          *float64 `json:"mean_bpm"`
	SampleCount      int      `json:"sample_count"`
}

// HeartDailyView is the single-day heart-rate view.
type HeartDailyView struct {
	Date    string            `json:"date"`
	Points  []HeartPoint      `json:"points"`
	Zones   []HeartZone       `json:"zones"`
	Summary HeartDailySummary `json:"summary"`
}

// HeartDay is one day of a weekly heart-rate view.
type HeartDay struct {
	Date             string   `json:"date"`
	WeightedAverage  *float64 `json:"weighted_average"`
	RestingHeartRate *float64 `json:"resting_heart_rate"`
	CaloriesOut      *float64 `json:"calories_out"`
}

// HeartWeeklySummary summarizes the days of a weekly heart-rate view.
type HeartWeeklySummary struct {
	LatestRestingHeartRate *float64 `json:"latest_resting_heart_rate"`
	AverageWeighted        *float64 `json:"average_weighted"`
	Days                   int      `json:"days"`
}

// HeartWeeklyView is the date-range heart-rate view.
type HeartWeeklyView struct {
	Days    []HeartDay         `json:"days"`
	Summary HeartWeeklySummary `json:"summary"`
}

// SleepTimelineSegment is one stage interval positioned within the sleep window.
type SleepTimelineSegment struct {
	Stage           string  `json:"stage"`
	Start           string  `json:"start"`
	DurationSeconds float64 `json:"duration_seconds"`
	LeftPercent     float64 `json:"left_percent"`
	WidthPercent    float64 `json:"width_percent"`
}

// SleepStageRow groups the segments of one stage, in timeline order.
type SleepStageRow struct {
	Stage    string                 `json:"stage"`
	Segments []SleepTimelineSegment `json:"segments"`
}

// SleepDailySummary is read from the main sleep record.
type SleepDailySummary struct {
	MinutesAsleep *float64 `json:"minutes_asleep"`
	Efficiency    *float64 `json:"efficiency"`
	DeepMinutes   *float64 `json:"deep_minutes"`
	LightMinutes  *float64 `json:"light_minutes"`
	REMMinutes    *float64 `json:"rem_minutes"`
	WakeMinutes   *float64 `json:"wake_minutes"`
}

// SleepDailyView is the single-night sleep timeline.
type SleepDailyView struct {
	Date        string            `json:"date"`
	WindowStart string            `json:"window_start,omitempty"`
	WindowEnd   string            `json:"window_end,omitempty"`
	TotalHours  float64           `json:"total_hours"`
	Rows        []SleepStageRow   `json:"rows"`
	Summary     SleepDailySummary `json:"summary"`
}

// SleepDay is one row of a weekly sleep view.
type SleepDay struct {
	Date         string   `json:"date"`
	DeepMinutes  *float64 `json:"deep_minutes"`
	LightMinutes *float64 `json:"light_minutes"`
	REMMinutes   *float64 `json:"rem_minutes"`
	WakeMinutes  *float64 `json:"wake_minutes"`
	TotalMinutes *float64 `json:"total_minutes"`
	Efficiency   *float64 `json:"efficiency"`
}

// SleepWeeklySummary summarizes a weekly sleep view.
type SleepWeeklySummary struct {
	TotalMinutesAsleep *float64 `json:"total_minutes_asleep"`
	AverageEfficiency  *float64 `json:"average_efficiency"`
	Nights             int      `json:"nights"`

	// Bedtime and wake time are circular means over the nights' start and
	// end times ("HH:MM"), with spread in minutes. Empty when no night has
	// a parseable time.
	AvgBedtime     string   `json:"avg_bedtime,omitempty"`
	BedtimeStdMin  *float64 `json:"bedtime_std_min,omitempty"`
	AvgWakeTime    string   `json:"avg_wake_time,omitempty"`
	WakeTimeStdMin *float64 `json:"wake_time_std_min,omitempty"`
}

// SleepWeeklyView is the per-day stacked sleep view.
type SleepWeeklyView struct {
	Days    []SleepDay         `json:"days"`
	Summary SleepWeeklySummary `json:"summary"`
}

// ActivityDailyView is the flat single-day activity summary.
type ActivityDailyView struct {
	Date           string   `json:"date"`
	Steps          *float64 `json:"steps"`
	CaloriesOut    *float64 `json:"calories_out"`
	DistanceMeters *float64 `json:"distance_meters"`
	ActiveMinutes  *float64 `json:"active_minutes"`
	Floors         *float64 `json:"floors"`
}

// ActivityDay is one merged day of a weekly activity view. Missing series
// values are 0.
type ActivityDay struct {
	Date             string  `json:"date"`
	Steps            float64 `json:"steps"`
	Calories         float64 `json:"calories"`
	ActivityCalories float64 `json:"activity_calories"`
	DistanceMeters   float64 `json:"distance_meters"`
}

// ActivityWeeklySummary holds totals and per-day averages.
type ActivityWeeklySummary struct {
	TotalSteps          float64 `json:"total_steps"`
	TotalCalories       float64 `json:"total_calories"`
	TotalDistanceMeters float64 `json:"total_distance_meters"`
	AverageSteps        float64 `json:"average_steps"`
	AverageCalories     float64 `json:"average_calories"`
	Days                int     `json:"days"`
}

// ActivityWeeklyView is the per-day stacked activity view.
type ActivityWeeklyView struct {
	Days    []ActivityDay         `json:"days"`
	Summary ActivityWeeklySummary `json:"summary"`
}
