package derive

import (
	"fmt"
	"math"
	"time"
)

// hourOfDay extracts fractional hour of day from a time.Time.
func hourOfDay(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60.0 + float64(t.Second())/3600.0
}

// circularMeanStd computes the circular mean and standard deviation for times
// expressed as hours (0–24). 23:00 and 01:00 average to 00:00, not 12:00.
func circularMeanStd(hours []float64) (mean, std float64) {
	if len(hours) == 0 {
		return 0, 0
	}

	var sinSum, cosSum float64
	for _, h := range hours {
		rad := h / 24.0 * 2 * math.Pi
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
	}

	n := float64(len(hours))
	sinAvg := sinSum / n
	cosAvg := cosSum / n

	meanRad := math.Atan2(sinAvg, cosAvg)
	if meanRad < 0 {
		meanRad += 2 * math.Pi
	}
	mean = meanRad / (2 * math.Pi) * 24.0

	// Mean resultant length R; std = sqrt(-2 ln R), in hours.
	r := math.Min(math.Sqrt(sinAvg*sinAvg+cosAvg*cosAvg), 1)
	if r > 0 {
		std = math.Sqrt(-2*math.Log(r)) / (2 * math.Pi) * 24.0
	}
	return mean, std
}

// hoursToHHMM formats fractional hours (0–24) as "HH:MM".
func hoursToHHMM(h float64) string {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	total := int(math.Round(h*60)) % (24 * 60)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
