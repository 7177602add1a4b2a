package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview-health/voice-scheduler/internal/backend"
)

func TestParseOptionIndex(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		want      int
	}{
		{"option word with number", "option 2", 1},
		{"bare digit", "2", 1},
		{"bare digit with article", "the 3", 2},
		{"ordinal suffix", "the 2nd one", 1},
		{"ordinal word", "the second one, please.", 1},
		{"number word", "two", 1},
		{"first", "first", 0},
		{"empty", "", -1},
		{"no option", "tomorrow afternoon works", -1},
		{"zero is invalid", "0", -1},
		{"digit inside a time is not an option", "4 30 pm", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOptionIndex(tt.utterance))
		})
	}
}

func TestClosestSlot(t *testing.T) {
	slots := []backend.Slot{
		{SlotID: 1, Start: "2026-02-05T14:00:00Z"},
		{SlotID: 2, Start: "2026-02-05T16:30:00Z"},
		{SlotID: 3, Start: "2026-02-05T19:00:00Z"},
	}

	target, err := time.Parse(time.RFC3339, "2026-02-05T16:00:00Z")
	require.NoError(t, err)

	got := ClosestSlot(slots, target)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.SlotID)
}

func TestClosestSlotTieKeepsEarlierListed(t *testing.T) {
	slots := []backend.Slot{
		{SlotID: 1, Start: "2026-02-05T14:00:00Z"},
		{SlotID: 2, Start: "2026-02-05T18:00:00Z"},
	}
	target, err := time.Parse(time.RFC3339, "2026-02-05T16:00:00Z")
	require.NoError(t, err)

	got := ClosestSlot(slots, target)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.SlotID)
}

func TestClosestSlotEmpty(t *testing.T) {
	assert.Nil(t, ClosestSlot(nil, time.Now()))
}

func TestLooksLikeDateTime(t *testing.T) {
	yes := []string{
		"4 30 am",
		"february 5th at 3pm",
		"tomorrow",
		"next monday",
		"10:30",
		"in the morning",
	}
	no := []string{
		"option 2",
		"yes please",
		"the second one",
	}
	for _, u := range yes {
		assert.True(t, LooksLikeDateTime(u), u)
	}
	for _, u := range no {
		assert.False(t, LooksLikeDateTime(u), u)
	}
}

func TestMentionsDifferentDateTime(t *testing.T) {
	assert.True(t, MentionsDifferentDateTime("actually February 6th 1:30"))
	assert.True(t, MentionsDifferentDateTime("make it 3pm"))
	assert.False(t, MentionsDifferentDateTime("yes, book it"))
	assert.False(t, MentionsDifferentDateTime("confirm"))
}

func TestIsAffirmative(t *testing.T) {
	assert.True(t, isAffirmative("yes"))
	assert.True(t, isAffirmative("Yeah, that's right"))
	assert.True(t, isAffirmative("correct"))
	assert.False(t, isAffirmative("no"))
	assert.False(t, isAffirmative("what services do you offer"))
}
