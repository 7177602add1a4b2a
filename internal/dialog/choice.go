package dialog

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harborview-health/voice-scheduler/internal/backend"
)

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

var (
	optionNumRE  = regexp.MustCompile(`option\s*(\d+)`)
	bareDigitRE  = regexp.MustCompile(`^(?:the\s+)?(\d+)\s*$`)
	ordinalNumRE = regexp.MustCompile(`(?:the\s+)?(\d+)(?:st|nd|rd|th)(?:\s+one)?\s*$`)
)

// ParseOptionIndex resolves "option 2", "2", "the 2nd one", "second" and
// similar phrasings to a 0-based list index, or -1 when nothing matches.
func ParseOptionIndex(utterance string) int {
	trimmed := strings.ToLower(strings.TrimSpace(utterance))
	if trimmed == "" {
		return -1
	}

	if m := optionNumRE.FindStringSubmatch(trimmed); m != nil {
		return oneBasedToIndex(m[1])
	}
	if m := bareDigitRE.FindStringSubmatch(trimmed); m != nil {
		return oneBasedToIndex(m[1])
	}
	if m := ordinalNumRE.FindStringSubmatch(trimmed); m != nil {
		return oneBasedToIndex(m[1])
	}

	for _, word := range strings.Fields(strings.Map(stripPunct, trimmed)) {
		if n, ok := ordinalWords[word]; ok {
			return n - 1
		}
	}
	return -1
}

func oneBasedToIndex(digits string) int {
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return -1
	}
	return n - 1
}

func stripPunct(r rune) rune {
	switch r {
	case ',', '.', '!', '?':
		return ' '
	}
	return r
}

// ClosestSlot returns the slot whose start is nearest to target. Ties keep
// the earlier-listed slot. Nil when the list is empty or no start parses.
func ClosestSlot(slots []backend.Slot, target time.Time) *backend.Slot {
	var best *backend.Slot
	bestDiff := time.Duration(0)
	for i := range slots {
		start, err := time.Parse(time.RFC3339, slots[i].Start)
		if err != nil {
			continue
		}
		diff := start.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if best == nil || diff < bestDiff {
			best = &slots[i]
			bestDiff = diff
		}
	}
	return best
}

// FindSlotByID returns the slot with the given id, or nil.
func FindSlotByID(slots []backend.Slot, slotID int) *backend.Slot {
	for i := range slots {
		if slots[i].SlotID == slotID {
			return &slots[i]
		}
	}
	return nil
}

var affirmativeRE = regexp.MustCompile(`^(yes|yeah|yep|yup|sure|correct|that'?s?\s*right)\b|^yes\b`)

// isAffirmative is the cheap yes-detector used before falling back to the
// oracle's yes/no confirmation.
func isAffirmative(utterance string) bool {
	return affirmativeRE.MatchString(strings.ToLower(strings.TrimSpace(utterance)))
}

var (
	amPmRE       = regexp.MustCompile(`\b(am|pm)\b`)
	timeWordRE   = regexp.MustCompile(`\b(morning|afternoon|evening|o'clock)\b`)
	colonTimeRE  = regexp.MustCompile(`\d{1,2}\s*:\s*\d{2}`)
	monthDateRE  = regexp.MustCompile(`\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\w*\s+\d{1,2}(st|nd|rd|th)?\b`)
	weekdayRE    = regexp.MustCompile(`\b(tomorrow|today|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	digitPairRE  = regexp.MustCompile(`\d{1,2}\s+\d{1,2}(\s|$)`)
	dayNumericRE = regexp.MustCompile(`\d{1,2}\s*(am|pm|:)`)
)

// LooksLikeDateTime reports whether an utterance mentions a time or date,
// so "4 30 am" is matched by time rather than read as option 4.
func LooksLikeDateTime(utterance string) bool {
	t := strings.ToLower(utterance)
	return amPmRE.MatchString(t) ||
		timeWordRE.MatchString(t) ||
		colonTimeRE.MatchString(t) ||
		monthDateRE.MatchString(t) ||
		weekdayRE.MatchString(t) ||
		digitPairRE.MatchString(t)
}

// MentionsDifferentDateTime reports whether a confirm-step reply names a
// concrete date or time (so "yes" books, but "February 6th 1:30" reselects).
func MentionsDifferentDateTime(utterance string) bool {
	t := strings.ToLower(utterance)
	return monthDateRE.MatchString(t) ||
		dayNumericRE.MatchString(t) ||
		timeWordRE.MatchString(t)
}
