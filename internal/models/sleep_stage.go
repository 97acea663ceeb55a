package models

import "strings"

// Canonical sleep stage names, as used in the stages-type sleep log.
const (
	SleepStageWake  = "wake"
	SleepStageREM   = "rem"
	SleepStageLight = "light"
	SleepStageDeep  = "deep"
)

// SleepStageOrder is the fixed display order of the sleep timeline rows,
// top to bottom.
var SleepStageOrder = []string{SleepStageWake, SleepStageREM, SleepStageLight, SleepStageDeep}

// sleepStageMap maps lowercased level names to canonical stages. Levels of
// the classic-type log ("awake", "restless", "asleep") are not stages and
// stay unknown.
var sleepStageMap = map[string]string{
	"wake":  SleepStageWake,
	"rem":   SleepStageREM,
	"light": SleepStageLight,
	"deep":  SleepStageDeep,
}

// NormalizeSleepStage maps a provider level name to its canonical stage.
// Returns the canonical name and true if recognized, or the original string
// and false if unknown.
func NormalizeSleepStage(raw string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := sleepStageMap[lower]; ok {
		return canonical, true
	}
	return raw, false
}

// SleepStageIndex returns the row of a canonical stage within SleepStageOrder,
// or -1 for anything else.
func SleepStageIndex(stage string) int {
	for i, s := range SleepStageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}
