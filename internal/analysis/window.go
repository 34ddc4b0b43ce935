package analysis

import "github.com/jengzang/trailbloom-backend/internal/models"

// DefaultWindowDays is the trailing window of eligible observations
const DefaultWindowDays = 7

// Window returns the inclusive range [runDate-days, runDate]
func Window(runDate models.Date, days int) models.DateRange {
	return models.DateRange{Start: runDate.AddDays(-days), End: runDate}
}

// EvictionDay is the only day that can have just left the window when runs
// happen once per day: runDate - days - 1.
func EvictionDay(runDate models.Date, days int) models.Date {
	return runDate.AddDays(-days - 1)
}
