package dialog

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/harborview-health/voice-scheduler/internal/backend"
)

var (
	datePhraseRE = regexp.MustCompile(`(?i)at \d|at [a-z]+|\d+(st|nd|rd|th)`)
	condensedRE  = regexp.MustCompile(`(?i)on\s+.+we have|\d+am|\d+pm`)
)

// slotDateWords renders one RFC3339 start time as a spoken phrase. The oracle
// phrasing is preferred; replies that do not look like a date phrase fall back
// to the deterministic rendering.
func (e *Engine) slotDateWords(ctx context.Context, isoStart string) string {
	phrase, err := e.nlu.DateWords(ctx, isoStart, e.tzName)
	if err == nil {
		phrase = strings.TrimSpace(phrase)
		if len(phrase) >= 10 && len(phrase) <= 120 && datePhraseRE.MatchString(phrase) {
			return phrase
		}
	}
	return SpokenSlotDate(isoStart, e.loc)
}

func (e *Engine) slotDateWordsBatch(ctx context.Context, isoStarts []string) []string {
	phrases := make([]string, len(isoStarts))
	for i, iso := range isoStarts {
		phrases[i] = e.slotDateWords(ctx, iso)
	}
	return phrases
}

// condensedAvailability reads out slots grouped by date. Grouping stays
// deterministic in the org's zone; the oracle path is only tried for UTC
// deployments where zone drift cannot occur.
func (e *Engine) condensedAvailability(ctx context.Context, slots []backend.Slot) string {
	if len(slots) == 0 {
		return "I don't see any open times for that period."
	}
	if e.loc == time.UTC {
		starts := make([]string, len(slots))
		for i, s := range slots {
			starts[i] = s.Start
		}
		text, err := e.nlu.CondensedAvailability(ctx, starts, e.tzName)
		if err == nil {
			text = strings.TrimSpace(text)
			if text != "" && len(text) <= 600 && condensedRE.MatchString(text) {
				return text
			}
		}
	}
	return SpokenAvailabilityByDate(slots, e.loc)
}

// SpokenSlotDate is the deterministic spoken form of a slot start time,
// e.g. "Friday, February 6th at half past 9 in the morning".
func SpokenSlotDate(isoStart string, loc *time.Location) string {
	t, err := time.Parse(time.RFC3339, isoStart)
	if err != nil {
		return isoStart
	}
	local := t.In(loc)
	return fmt.Sprintf("%s, %s %s at %s",
		local.Weekday(), local.Month(), spokenOrdinal(local.Day()),
		spokenTime(local.Hour(), local.Minute()))
}

func spokenTime(hour, minute int) string {
	period := "in the evening"
	if hour < 12 {
		period = "in the morning"
	} else if hour < 17 {
		period = "in the afternoon"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	switch minute {
	case 0:
		return fmt.Sprintf("%d %s", h, period)
	case 15:
		return fmt.Sprintf("quarter past %d %s", h, period)
	case 30:
		return fmt.Sprintf("half past %d %s", h, period)
	case 45:
		next := (hour + 1) % 12
		if next == 0 {
			next = 12
		}
		return fmt.Sprintf("quarter to %d %s", next, period)
	}
	return fmt.Sprintf("%d %d %s", h, minute, period)
}

func spokenOrdinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// SpokenAvailabilityByDate groups slots by calendar date in the given zone and
// lists the times per day, e.g. "On February 5th we have 10am, 1:30pm."
func SpokenAvailabilityByDate(slots []backend.Slot, loc *time.Location) string {
	type dayEntry struct {
		label string
		times []string
	}
	byDate := map[string]*dayEntry{}
	for _, s := range slots {
		t, err := time.Parse(time.RFC3339, s.Start)
		if err != nil {
			continue
		}
		local := t.In(loc)
		key := local.Format(dateLayout)
		entry := byDate[key]
		if entry == nil {
			entry = &dayEntry{label: fmt.Sprintf("%s %s", local.Month(), spokenOrdinal(local.Day()))}
			byDate[key] = entry
		}
		clock := shortClock(local.Hour(), local.Minute())
		if !contains(entry.times, clock) {
			entry.times = append(entry.times, clock)
		}
	}

	keys := make([]string, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		entry := byDate[k]
		parts = append(parts, fmt.Sprintf("On %s we have %s.", entry.label, strings.Join(entry.times, ", ")))
	}
	return strings.Join(parts, " ")
}

func shortClock(hour, minute int) string {
	suffix := "pm"
	if hour < 12 {
		suffix = "am"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	if minute == 0 {
		return fmt.Sprintf("%d%s", h, suffix)
	}
	return fmt.Sprintf("%d:%02d%s", h, minute, suffix)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
