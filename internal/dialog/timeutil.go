package dialog

import "time"

const dateLayout = "2006-01-02"

// DateInZone returns the calendar date of an instant in the given zone.
// Availability queries use this so "February 5th 8:30 PM" in the org's zone
// requests slots for February 5th there, not the UTC calendar date.
func DateInZone(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}

// WeekdayIndex returns the ISO weekday of an instant in the given zone,
// Monday = 0 through Sunday = 6.
func WeekdayIndex(t time.Time, loc *time.Location) int {
	wd := int(t.In(loc).Weekday())
	return (wd + 6) % 7
}

// AddDays shifts a YYYY-MM-DD date by the given number of days.
func AddDays(date string, days int) string {
	t, err := time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, days).Format(dateLayout)
}

// WeekRange returns the Monday-to-Sunday date bounds of "this_week" or
// "next_week" relative to now, in the given zone.
func WeekRange(now time.Time, loc *time.Location, when string) (fromDate, toDate string) {
	today := DateInZone(now, loc)
	monday := AddDays(today, -WeekdayIndex(now, loc))
	if when == "next_week" {
		return AddDays(monday, 7), AddDays(monday, 13)
	}
	return monday, AddDays(monday, 6)
}
