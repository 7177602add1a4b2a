package dialog

import (
	"context"
	"fmt"
	"regexp"
)

var cancelDeclineRE = regexp.MustCompile(`never\s*mind|don'?t|actually\s*no|changed\s*my\s*mind|keep\s*it|^no\b`)

// cancelFlow cancels an appointment: list what can be cancelled, pick one,
// confirm before the cancellation goes through.
func (e *Engine) cancelFlow(ctx context.Context, t *turn) string {
	s := t.state
	if !s.HasUser() {
		t.say(phraseNeedLookupFirst)
		return nodeEnd
	}

	if s.CurrentFlow != FlowCancel || s.FlowData == nil {
		s.CurrentFlow = FlowCancel
		s.FlowData = &FlowData{Step: "choose", StartedAt: t.now}
	}

	if len(s.CancellableAppointments) == 0 {
		return e.listForCancel(ctx, t)
	}

	if s.SelectedAppointmentID != 0 && s.FlowData.Step == "confirm" {
		return e.confirmCancel(ctx, t)
	}

	return e.chooseAppointmentToCancel(ctx, t)
}

func (e *Engine) listForCancel(ctx context.Context, t *turn) string {
	s := t.state
	appts, err := e.backend.CancelOptions(ctx, s.UserID)
	if err != nil {
		return e.bookingToolFailure(t, err)
	}
	if len(appts) == 0 {
		t.say(fmt.Sprintf("%s %s", phraseNothingToCancel, phraseAnythingElse))
		s.ClearFlow()
		return nodeEnd
	}
	s.CancellableAppointments = appts
	if len(appts) == 1 {
		s.SelectedAppointmentID = appts[0].ID
		t.say(fmt.Sprintf("You have an appointment with %s on %s. %s",
			appts[0].ProviderName, e.slotDateWords(ctx, appts[0].Start), phraseSureCancel))
		s.FlowData.Step = "confirm"
		return nodeEnd
	}
	t.say(fmt.Sprintf("%s %s", e.spokenAppointmentList(ctx, appts), phraseWhichToCancel))
	s.FlowData.Step = "choose"
	return nodeEnd
}

func (e *Engine) chooseAppointmentToCancel(ctx context.Context, t *turn) string {
	s := t.state
	reply := t.lastUser()
	appts := s.CancellableAppointments

	idx := ParseOptionIndex(reply)
	if idx < 0 || idx >= len(appts) {
		if matched, ok := e.nlu.MatchAppointment(ctx, reply, e.candidateList(ctx, appts)); ok {
			for i, a := range appts {
				if a.ID == matched {
					idx = i
					break
				}
			}
		}
	}
	if idx < 0 || idx >= len(appts) {
		if cancelDeclineRE.MatchString(lower(reply)) {
			t.say(phraseCancelKept)
			s.ClearSelection()
			s.ClearFlow()
			return nodeEnd
		}
		if len(appts) == 1 {
			idx = 0
		} else {
			t.say(phraseWhichToCancel)
			return nodeEnd
		}
	}

	s.SelectedAppointmentID = appts[idx].ID
	t.say(fmt.Sprintf("Your appointment with %s on %s. %s",
		appts[idx].ProviderName, e.slotDateWords(ctx, appts[idx].Start), phraseSureCancel))
	s.FlowData.Step = "confirm"
	return nodeEnd
}

func (e *Engine) confirmCancel(ctx context.Context, t *turn) string {
	s := t.state
	reply := t.lastUser()
	lastLower := lower(reply)

	if cancelDeclineRE.MatchString(lastLower) {
		t.say(phraseCancelKept)
		s.ClearSelection()
		s.ClearFlow()
		return nodeEnd
	}
	if !userConfirms(lastLower) {
		t.say(phraseSureCancel)
		return nodeEnd
	}

	result, err := e.backend.CancelAppointment(ctx, s.SelectedAppointmentID)
	if err != nil {
		return e.bookingToolFailure(t, err)
	}

	msg := phraseCancelDone
	if result != nil && result.Penalty != nil {
		msg = fmt.Sprintf("Please note a late-cancellation fee of %.2f %s applies. %s",
			result.Penalty.Amount, result.Penalty.Currency, phraseCancelDone)
	}
	t.say(msg)
	s.ClearSelection()
	s.ClearFlow()
	s.CurrentStep = "cancelled"
	return nodeEnd
}
