package dialog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/harborview-health/voice-scheduler/internal/oracle"
)

// normalize canonicalizes the raw caller-ID number. Failures are recorded but
// never block the call; lookup falls back to the raw number.
func (e *Engine) normalize(ctx context.Context, t *turn) string {
	s := t.state
	if s.RawCallerPhone == "" || s.NormalizedPhone != "" {
		return nodeLookup
	}
	res, err := e.backend.NormalizeCallerID(ctx, s.RawCallerPhone)
	if err != nil {
		e.logger.Warn("caller id normalization failed", "call_id", s.CallID, "error", err)
		s.RecordFailure(err)
		return nodeLookup
	}
	s.NormalizedPhone = res.NormalizedNumber
	return nodeLookup
}

// lookup matches the caller to a stored user by phone number.
func (e *Engine) lookup(ctx context.Context, t *turn) string {
	s := t.state
	phone := s.NormalizedPhone
	if phone == "" {
		phone = s.RawCallerPhone
	}
	if phone == "" {
		return nodeGreetGeneral
	}
	users, err := e.backend.UsersByPhone(ctx, phone)
	if err != nil {
		e.logger.Warn("phone lookup failed", "call_id", s.CallID, "error", err)
		s.RecordFailure(err)
		return nodeGreetGeneral
	}
	if len(users) == 0 {
		return nodeGreetGeneral
	}
	u := users[0]
	s.UserID = u.ID
	s.UserName = u.FullName()
	s.UserDOB = u.DOB
	s.IsRegistered = true
	return nodeGreetPersonalized
}

func (e *Engine) greetPersonalized(t *turn) string {
	t.say(phraseGreetPersonalized(t.state.UserName))
	t.state.CurrentStep = "ask_are_you_name"
	return nodeEnd
}

func (e *Engine) greetGeneral(t *turn) string {
	t.say(phraseGreetGeneral)
	t.state.CurrentStep = "greeted"
	return nodeMentionServices
}

// mentionServices follows the general greeting. On the first turn the greeting
// already invites a request, so the chain stops; on later turns it continues
// into intent detection.
func (e *Engine) mentionServices(t *turn) string {
	s := t.state
	if t.reply == "" {
		t.say(phraseMentionServices)
	}
	s.CurrentStep = "mention_services"
	if s.IterationCount == 1 {
		return nodeEnd
	}
	return nodeDetectIntent
}

// detectIntent classifies the caller's request and routes to the handling node.
func (e *Engine) detectIntent(ctx context.Context, t *turn) string {
	s := t.state
	intent := e.nlu.DetectIntent(ctx, t.messages, oracle.IntentContext{
		UserName:       s.UserName,
		CurrentStep:    s.CurrentStep,
		PreviousIntent: s.CurrentIntent,
	})
	s.RecordIntent(intent, t.now)
	s.CurrentStep = "intent_" + intent
	if e.metrics != nil {
		e.metrics.CountIntent(intent)
	}

	switch intent {
	case "emergency":
		s.IsEmergency = true
	case "frustration":
		s.IsFrustrated = true
	}

	next := intentRoute(s, intent, t.lastUser())
	if next == nodeVerifyFlow {
		s.PendingIntentAfterVerify = intent
	}
	return next
}

func (e *Engine) thanksEnd(t *turn) string {
	t.say(phraseClose)
	t.state.ConversationEnded = true
	t.state.CurrentStep = "ended"
	return nodeEnd
}

func (e *Engine) advise911(t *turn) string {
	t.say(phraseEmergency911)
	t.state.IsEmergency = true
	t.state.ConversationEnded = true
	t.state.CurrentStep = "ended"
	return nodeEnd
}

func (e *Engine) politeRejection(t *turn) string {
	t.say(phraseRejection)
	t.state.RejectionCount++
	t.state.ConversationEnded = true
	t.state.CurrentStep = "ended"
	return nodeEnd
}

func (e *Engine) transfer(t *turn) string {
	if t.reply == "" {
		t.say(phraseTransfer)
	}
	t.state.ShouldTransfer = true
	t.state.TransferToAgent = true
	t.state.CurrentStep = "transfer"
	return nodeEnd
}

func (e *Engine) identityFailedEnd(t *turn) string {
	t.say(phraseIdentityFailedBye)
	t.state.ConversationEnded = true
	t.state.CurrentStep = "ended"
	return nodeEnd
}

// orgInfo reads out the organization's working hours.
func (e *Engine) orgInfo(ctx context.Context, t *turn) string {
	s := t.state
	s.CurrentStep = "org_info"
	rules, err := e.backend.BookingRules(ctx, e.orgID)
	if err != nil {
		s.RecordFailure(err)
		t.say(fmt.Sprintf("I couldn't fetch our hours right now. %s", phraseAnythingElse))
		return nodeEnd
	}
	if len(rules.WorkingHours) == 0 {
		t.say(fmt.Sprintf("I don't have our current hours on hand. %s", phraseAnythingElse))
		return nodeEnd
	}

	days := make([]string, 0, len(rules.WorkingHours))
	for day := range rules.WorkingHours {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return weekdayOrder(days[i]) < weekdayOrder(days[j]) })

	lines := make([]string, 0, len(days))
	for _, day := range days {
		h := rules.WorkingHours[day]
		lines = append(lines, fmt.Sprintf("%s: %s to %s", day, h.Start, h.End))
	}
	t.say(fmt.Sprintf("Our hours are: %s. %s", strings.Join(lines, ". "), phraseAnythingElse))
	return nodeEnd
}

func weekdayOrder(day string) int {
	switch lower(day) {
	case "monday":
		return 0
	case "tuesday":
		return 1
	case "wednesday":
		return 2
	case "thursday":
		return 3
	case "friday":
		return 4
	case "saturday":
		return 5
	case "sunday":
		return 6
	}
	return 7
}

// getAppointmentsFlow reads out the caller's upcoming appointments.
func (e *Engine) getAppointmentsFlow(ctx context.Context, t *turn) string {
	s := t.state
	if !s.HasUser() {
		t.say(phraseNeedLookupFirst)
		return nodeEnd
	}
	appts, err := e.backend.ListAppointments(ctx, s.UserID, "upcoming")
	if err != nil {
		s.RecordFailure(err)
		if s.FailureCount <= 1 {
			t.say(phraseToolRetry)
		} else {
			t.say(phraseTransfer)
			s.ShouldTransfer = true
			s.TransferToAgent = true
		}
		return nodeEnd
	}
	if len(appts) == 0 {
		t.say(fmt.Sprintf("%s %s", phraseNoAppointments, phraseAnythingElse))
		return nodeEnd
	}
	parts := make([]string, len(appts))
	for i, a := range appts {
		parts[i] = fmt.Sprintf("%d. %s on %s.", i+1, a.ProviderName, e.slotDateWords(ctx, a.Start))
	}
	t.say(fmt.Sprintf("%s %s %s", phraseUpcomingIntro, strings.Join(parts, " "), phraseAnythingElse))
	return nodeEnd
}
