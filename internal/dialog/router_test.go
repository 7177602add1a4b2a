package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntryRoute(t *testing.T) {
	now := time.Now().UTC()

	t.Run("first turn normalizes caller id", func(t *testing.T) {
		s := NewCallState("c", "+15550001111", now)
		s.IterationCount = 1
		assert.Equal(t, nodeNormalize, entryRoute(s))
	})

	t.Run("identity steps resume confirmation", func(t *testing.T) {
		s := NewCallState("c", "", now)
		s.IterationCount = 2
		s.CurrentStep = "ask_are_you_name"
		assert.Equal(t, nodeConfirmIdentity, entryRoute(s))

		s.CurrentStep = "ask_dob"
		assert.Equal(t, nodeConfirmIdentity, entryRoute(s))
	})

	t.Run("verify flow resumes", func(t *testing.T) {
		s := NewCallState("c", "", now)
		s.IterationCount = 3
		s.CurrentFlow = FlowVerifyUser
		s.VerifyStep = VerifyAskName
		assert.Equal(t, nodeVerifyFlow, entryRoute(s))
	})

	t.Run("mid flow goes through the intent check", func(t *testing.T) {
		s := NewCallState("c", "", now)
		s.IterationCount = 4
		s.CurrentFlow = FlowBooking
		s.FlowData = &FlowData{Step: "offer_slots", StartedAt: now}
		assert.Equal(t, nodeInFlowIntentCheck, entryRoute(s))
	})

	t.Run("otherwise detect intent", func(t *testing.T) {
		s := NewCallState("c", "", now)
		s.IterationCount = 2
		assert.Equal(t, nodeDetectIntent, entryRoute(s))
	})
}

func TestIsExplicitNothingElse(t *testing.T) {
	yes := []string{
		"no, that's all",
		"Nothing else, thanks",
		"that's it",
		"goodbye",
		"we're good",
		"No thanks",
		"I'm done",
	}
	no := []string{
		"",
		"hmm",
		"maybe later",
		"can you repeat that",
	}
	for _, u := range yes {
		assert.True(t, isExplicitNothingElse(u), u)
	}
	for _, u := range no {
		assert.False(t, isExplicitNothingElse(u), u)
	}
}

func TestIntentRoute(t *testing.T) {
	now := time.Now().UTC()

	known := NewCallState("c", "", now)
	known.UserID = 7
	known.IsRegistered = true

	unknown := NewCallState("c", "", now)

	tests := []struct {
		name     string
		state    *CallState
		intent   string
		lastUser string
		want     string
	}{
		{"explicit goodbye ends", known, "no_request", "no, that's all", nodeThanksEnd},
		{"fuzzy no_request transfers", known, "no_request", "uh I guess", nodeTransfer},
		{"emergency", known, "emergency", "chest pain", nodeAdvise911},
		{"invalid business", known, "invalid_business", "do you sell tires", nodePoliteRejection},
		{"org info", unknown, "org_info", "what are your hours", nodeOrgInfo},
		{"register", unknown, "register", "I'm new", nodeRegisterFlow},
		{"book with user", known, "book", "book me in", nodeBookFlow},
		{"book without user verifies first", unknown, "book", "book me in", nodeVerifyFlow},
		{"cancel without user verifies first", unknown, "cancel", "cancel it", nodeVerifyFlow},
		{"get appointments with user", known, "get_appointments", "what do I have", nodeGetAppointments},
		{"frustration transfers", known, "frustration", "this is useless", nodeTransfer},
		{"unsupported transfers", known, "unsupported", "tell me a joke", nodeTransfer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, intentRoute(tt.state, tt.intent, tt.lastUser))
		})
	}
}

func TestVerifyNextRoute(t *testing.T) {
	s := NewCallState("c", "", time.Now().UTC())

	s.VerifyNext = "register"
	assert.Equal(t, nodeRegisterFlow, verifyNextRoute(s))

	s.VerifyNext = "transfer"
	assert.Equal(t, nodeTransfer, verifyNextRoute(s))

	s.VerifyNext = nodeBookFlow
	assert.Equal(t, nodeBookFlow, verifyNextRoute(s))

	s.VerifyNext = ""
	assert.Equal(t, nodeEnd, verifyNextRoute(s))
}
