package dialog

import (
	"time"

	"github.com/harborview-health/voice-scheduler/internal/oracle"
)

// availabilityWindow converts a parsed date preference into explicit
// YYYY-MM-DD bounds in the org's zone. A nil parse defaults to this week; a
// moment narrows to its calendar day so the backend sees the caller's date,
// not the UTC one.
func availabilityWindow(parsed *oracle.ParsedDateTime, now time.Time, loc *time.Location) (fromDate, toDate string) {
	if parsed == nil {
		return WeekRange(now, loc, "this_week")
	}
	switch parsed.Kind {
	case "range":
		if parsed.When != "" {
			return WeekRange(now, loc, parsed.When)
		}
		return parsed.FromDate, parsed.ToDate
	case "moment":
		date := momentDate(parsed, loc)
		return date, date
	}
	return WeekRange(now, loc, "this_week")
}

// momentDate is the calendar date of a parsed moment in the given zone.
func momentDate(parsed *oracle.ParsedDateTime, loc *time.Location) string {
	t, err := time.Parse(time.RFC3339, parsed.IsoUTC)
	if err != nil {
		if len(parsed.IsoUTC) >= 10 {
			return parsed.IsoUTC[:10]
		}
		return parsed.IsoUTC
	}
	return DateInZone(t, loc)
}
