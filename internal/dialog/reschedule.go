package dialog

import (
	"context"
	"fmt"
	"time"

	"github.com/harborview-health/voice-scheduler/internal/backend"
)

// rescheduleFlow moves an existing appointment: pick which one, pick a new
// slot, confirm, move it.
func (e *Engine) rescheduleFlow(ctx context.Context, t *turn) string {
	s := t.state
	if !s.HasUser() {
		t.say(phraseNeedLookupFirst)
		return nodeEnd
	}

	if s.CurrentFlow != FlowReschedule || s.FlowData == nil {
		s.CurrentFlow = FlowReschedule
		s.FlowData = &FlowData{Step: "choose", StartedAt: t.now}
	}

	if s.SelectedAppointmentID == 0 {
		if len(s.CancellableAppointments) == 0 {
			return e.listForReschedule(ctx, t)
		}
		return e.chooseAppointmentToReschedule(ctx, t)
	}

	if len(s.AvailableSlots) == 0 {
		return e.fetchRescheduleOptions(ctx, t, nil)
	}
	return e.chooseRescheduleSlot(ctx, t)
}

func (e *Engine) listForReschedule(ctx context.Context, t *turn) string {
	s := t.state
	appts, err := e.backend.ListAppointments(ctx, s.UserID, "upcoming")
	if err != nil {
		return e.bookingToolFailure(t, err)
	}
	if len(appts) == 0 {
		t.say(fmt.Sprintf("%s %s", phraseNoAppointments, phraseAnythingElse))
		s.ClearFlow()
		return nodeEnd
	}
	s.CancellableAppointments = appts
	if len(appts) == 1 {
		s.SelectedAppointmentID = appts[0].ID
		return e.fetchRescheduleOptions(ctx, t, nil)
	}
	t.say(fmt.Sprintf("%s %s Which one would you like to reschedule? Say the option number.",
		phraseFindUpcoming, e.spokenAppointmentList(ctx, appts)))
	s.FlowData.Step = "choose"
	return nodeEnd
}

func (e *Engine) chooseAppointmentToReschedule(ctx context.Context, t *turn) string {
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
		t.say(fmt.Sprintf("%s Which one would you like to reschedule? Say the option number.",
			e.spokenAppointmentList(ctx, appts)))
		return nodeEnd
	}

	s.SelectedAppointmentID = appts[idx].ID
	return e.fetchRescheduleOptions(ctx, t, nil)
}

func (e *Engine) fetchRescheduleOptions(ctx context.Context, t *turn, dateRange *backend.DateRange) string {
	return e.fetchRescheduleOptionsNear(ctx, t, dateRange, time.Time{})
}

// fetchRescheduleOptionsNear fetches replacement slots; when the caller named
// a specific time, the nearest fetched slot goes straight to confirmation.
func (e *Engine) fetchRescheduleOptionsNear(ctx context.Context, t *turn, dateRange *backend.DateRange, target time.Time) string {
	s := t.state
	slots, err := e.backend.RescheduleOptions(ctx, s.SelectedAppointmentID,
		backend.RescheduleOptionsRequest{PreferredDateRange: dateRange})
	if err != nil {
		return e.bookingToolFailure(t, err)
	}
	if len(slots) == 0 {
		t.say(phraseNoOpenings)
		return nodeEnd
	}
	s.AvailableSlots = slots
	s.SelectedSlotID = 0
	if !target.IsZero() {
		if slot := ClosestSlot(slots, target); slot != nil {
			return e.confirmRescheduleSlot(ctx, t, slot)
		}
	}
	t.say(phraseRescheduleOptions(e.condensedAvailability(ctx, slots)))
	s.FlowData.Step = "offer_slots"
	return nodeEnd
}

func (e *Engine) chooseRescheduleSlot(ctx context.Context, t *turn) string {
	s := t.state
	reply := t.lastUser()
	lastLower := lower(reply)

	if s.SelectedSlotID != 0 && s.FlowData.Step == "confirm" &&
		userConfirms(lastLower) && !MentionsDifferentDateTime(reply) {
		slot := FindSlotByID(s.AvailableSlots, s.SelectedSlotID)
		if slot == nil {
			t.say(phraseWhichSlot)
			s.SelectedSlotID = 0
			s.FlowData.Step = "offer_slots"
			return nodeEnd
		}
		if err := e.backend.RescheduleAppointment(ctx, s.SelectedAppointmentID, slot.SlotID); err != nil {
			return e.bookingToolFailure(t, err)
		}
		t.say(phraseRescheduleDone)
		s.ClearFlow()
		s.ClearSelection()
		s.CurrentStep = "rescheduled"
		return nodeEnd
	}

	if idx := ParseOptionIndex(reply); idx >= 0 && idx < len(s.AvailableSlots) {
		return e.confirmRescheduleSlot(ctx, t, &s.AvailableSlots[idx])
	}

	if parsed := e.nlu.ParseDateTime(ctx, reply, e.tzName, t.lastAssistant(), t.now); parsed != nil && parsed.Kind == "moment" {
		date := momentDate(parsed, e.loc)
		target, terr := time.Parse(time.RFC3339, parsed.IsoUTC)

		if sameDay := slotsOnDate(s.AvailableSlots, date, e.loc); len(sameDay) > 0 && terr == nil {
			if slot := ClosestSlot(sameDay, target); slot != nil {
				return e.confirmRescheduleSlot(ctx, t, slot)
			}
		}
		// A day we have no options for yet: ask the backend for that day.
		return e.fetchRescheduleOptionsNear(ctx, t, &backend.DateRange{From: date, To: date}, target)
	}

	t.say(phraseWhichSlot)
	return nodeEnd
}

func (e *Engine) confirmRescheduleSlot(ctx context.Context, t *turn, slot *backend.Slot) string {
	t.state.SelectedSlotID = slot.SlotID
	t.say(phraseRescheduleConfirm(e.slotDateWords(ctx, slot.Start)))
	t.state.FlowData.Step = "confirm"
	return nodeEnd
}
