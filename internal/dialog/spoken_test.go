package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview-health/voice-scheduler/internal/backend"
)

func TestSpokenSlotDate(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		iso  string
		want string
	}{
		{"half past in the morning", "2026-02-06T14:30:00Z", "Friday, February 6th at half past 9 in the morning"},
		{"on the hour afternoon", "2026-02-06T19:00:00Z", "Friday, February 6th at 2 in the afternoon"},
		{"quarter past", "2026-02-06T15:15:00Z", "Friday, February 6th at quarter past 10 in the morning"},
		{"quarter to", "2026-02-06T16:45:00Z", "Friday, February 6th at quarter to 12 in the morning"},
		{"evening", "2026-02-07T00:00:00Z", "Friday, February 6th at 7 in the evening"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SpokenSlotDate(tt.iso, ny))
		})
	}
}

func TestSpokenSlotDateBadInput(t *testing.T) {
	assert.Equal(t, "not-a-date", SpokenSlotDate("not-a-date", time.UTC))
}

func TestSpokenOrdinal(t *testing.T) {
	assert.Equal(t, "1st", spokenOrdinal(1))
	assert.Equal(t, "2nd", spokenOrdinal(2))
	assert.Equal(t, "3rd", spokenOrdinal(3))
	assert.Equal(t, "11th", spokenOrdinal(11))
	assert.Equal(t, "12th", spokenOrdinal(12))
	assert.Equal(t, "13th", spokenOrdinal(13))
	assert.Equal(t, "21st", spokenOrdinal(21))
	assert.Equal(t, "30th", spokenOrdinal(30))
}

func TestSpokenAvailabilityByDate(t *testing.T) {
	slots := []backend.Slot{
		{SlotID: 1, Start: "2026-02-05T15:00:00Z"},
		{SlotID: 2, Start: "2026-02-05T18:30:00Z"},
		{SlotID: 3, Start: "2026-02-06T15:00:00Z"},
		// Duplicate time on the same date is read once.
		{SlotID: 4, Start: "2026-02-05T15:00:00Z"},
	}

	got := SpokenAvailabilityByDate(slots, time.UTC)
	assert.Equal(t, "On February 5th we have 3pm, 6:30pm. On February 6th we have 3pm.", got)
}

func TestSpokenAvailabilityByDateGroupsInZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 1:30 AM UTC Feb 6 is the evening of Feb 5 in New York.
	slots := []backend.Slot{
		{SlotID: 1, Start: "2026-02-06T01:30:00Z"},
	}
	got := SpokenAvailabilityByDate(slots, ny)
	assert.Equal(t, "On February 5th we have 8:30pm.", got)
}

func TestShortClock(t *testing.T) {
	assert.Equal(t, "10am", shortClock(10, 0))
	assert.Equal(t, "1:30pm", shortClock(13, 30))
	assert.Equal(t, "12pm", shortClock(12, 0))
	assert.Equal(t, "12:15am", shortClock(0, 15))
}
