package dialog

import (
	"context"
	"strings"
	"time"

	"github.com/harborview-health/voice-scheduler/internal/backend"
	"github.com/harborview-health/voice-scheduler/internal/oracle"
)

// slotsOnDate filters slots to one calendar date in the given zone.
func slotsOnDate(slots []backend.Slot, date string, loc *time.Location) []backend.Slot {
	var out []backend.Slot
	for _, s := range slots {
		start, err := time.Parse(time.RFC3339, s.Start)
		if err != nil {
			continue
		}
		if DateInZone(start, loc) == date {
			out = append(out, s)
		}
	}
	return out
}

// bookFlow walks a caller from "I'd like to book" to a confirmed appointment:
// offer slots, let them pick by number or by date and time, confirm, book.
func (e *Engine) bookFlow(ctx context.Context, t *turn) string {
	s := t.state
	if !s.HasUser() {
		t.say(phraseNeedLookupFirst)
		return nodeEnd
	}

	if s.CurrentFlow != FlowBooking || s.FlowData == nil {
		s.CurrentFlow = FlowBooking
		s.FlowData = &FlowData{Step: "check", StartedAt: t.now}
	}
	if s.VisitType == "" {
		s.VisitType = e.visitType
	}

	lastUser := t.lastUser()
	lastLower := lower(lastUser)

	// Confirmed selection books it. A reply that names a concrete date or time
	// is a reselection even if it also contains "yes".
	if s.SelectedSlotID != 0 && s.FlowData.Step == "confirm" &&
		userConfirms(lastLower) && !MentionsDifferentDateTime(lastUser) {
		return e.bookSelectedSlot(ctx, t)
	}

	if s.FlowData.Step == "check" || len(s.AvailableSlots) == 0 {
		return e.fetchAndOfferSlots(ctx, t, lastUser)
	}

	parsed := e.nlu.ParseDateTime(ctx, lastUser, e.tzName, t.lastAssistant(), t.now)

	// A concrete time on a day we already offered picks the nearest slot.
	if parsed != nil && parsed.Kind == "moment" && LooksLikeDateTime(lastUser) {
		date := momentDate(parsed, e.loc)
		if sameDay := slotsOnDate(s.AvailableSlots, date, e.loc); len(sameDay) > 0 {
			target, err := time.Parse(time.RFC3339, parsed.IsoUTC)
			if err == nil {
				if slot := ClosestSlot(sameDay, target); slot != nil {
					return e.offerSlotConfirm(ctx, t, slot)
				}
			}
		}
	}

	if idx := ParseOptionIndex(lastUser); idx >= 0 && idx < len(s.AvailableSlots) {
		return e.offerSlotConfirm(ctx, t, &s.AvailableSlots[idx])
	}

	// A different calendar day: fetch that day, widening a few days out when
	// it has nothing.
	if parsed != nil && parsed.Kind == "moment" {
		return e.fetchMomentDate(ctx, t, parsed)
	}
	if parsed != nil && parsed.Kind == "range" {
		return e.fetchAndOfferSlots(ctx, t, lastUser)
	}

	t.say(phraseWhichSlot)
	return nodeEnd
}

func userConfirms(lastLower string) bool {
	return strings.Contains(lastLower, "yes") ||
		strings.Contains(lastLower, "confirm") ||
		strings.Contains(lastLower, "book")
}

// fetchAndOfferSlots queries availability for the caller's stated window (or
// this week by default) and reads out the options.
func (e *Engine) fetchAndOfferSlots(ctx context.Context, t *turn, lastUser string) string {
	s := t.state

	rules, err := e.backend.BookingRules(ctx, e.orgID)
	if err != nil {
		return e.bookingToolFailure(t, err)
	}
	if !rules.AcceptingBookings {
		t.say(phraseNotAccepting)
		s.ClearFlow()
		return nodeEnd
	}

	parsed := e.nlu.ParseDateTime(ctx, lastUser, e.tzName, t.lastAssistant(), t.now)
	fromDate, toDate := availabilityWindow(parsed, t.now, e.loc)

	slots, err := e.backend.Availability(ctx, backend.AvailabilityQuery{
		OrganizationID: e.orgID,
		FromDate:       fromDate,
		ToDate:         toDate,
		VisitType:      s.VisitType,
	})
	if err != nil {
		return e.bookingToolFailure(t, err)
	}

	switch len(slots) {
	case 0:
		t.say(phraseNoOpenings)
		s.FlowData.Step = "check"
		return nodeEnd
	case 1:
		s.AvailableSlots = slots
		s.SelectedSlotID = slots[0].SlotID
		t.say(phraseSingleSlotOffer(e.slotDateWords(ctx, slots[0].Start)))
		s.FlowData.Step = "confirm"
		return nodeEnd
	}

	s.AvailableSlots = slots
	s.SelectedSlotID = 0
	t.say(phraseOfferSlots(e.condensedAvailability(ctx, slots)))
	s.FlowData.Step = "offer_slots"
	return nodeEnd
}

// fetchMomentDate looks up the specific day the caller asked for, widening by
// six days when that day is fully booked.
func (e *Engine) fetchMomentDate(ctx context.Context, t *turn, parsed *oracle.ParsedDateTime) string {
	s := t.state
	date := momentDate(parsed, e.loc)

	slots, err := e.backend.Availability(ctx, backend.AvailabilityQuery{
		OrganizationID: e.orgID,
		FromDate:       date,
		ToDate:         date,
		VisitType:      s.VisitType,
	})
	if err != nil {
		return e.bookingToolFailure(t, err)
	}

	if len(slots) > 0 {
		s.AvailableSlots = slots
		target, terr := time.Parse(time.RFC3339, parsed.IsoUTC)
		if terr == nil {
			if slot := ClosestSlot(slots, target); slot != nil {
				if len(slots) == 1 {
					s.SelectedSlotID = slot.SlotID
					t.say(phraseSingleSlotOffer(e.slotDateWords(ctx, slot.Start)))
					s.FlowData.Step = "confirm"
					return nodeEnd
				}
				return e.offerSlotConfirm(ctx, t, slot)
			}
		}
		t.say(phraseOfferSlotsSameDay(e.condensedAvailability(ctx, slots)))
		s.FlowData.Step = "offer_slots"
		return nodeEnd
	}

	wider, err := e.backend.Availability(ctx, backend.AvailabilityQuery{
		OrganizationID: e.orgID,
		FromDate:       date,
		ToDate:         AddDays(date, 6),
		VisitType:      s.VisitType,
	})
	if err != nil {
		return e.bookingToolFailure(t, err)
	}
	if len(wider) == 0 {
		t.say(phraseNoOpenings)
		return nodeEnd
	}
	s.AvailableSlots = wider
	s.SelectedSlotID = 0
	t.say(phraseOfferSlotsNearby(e.condensedAvailability(ctx, wider)))
	s.FlowData.Step = "offer_slots"
	return nodeEnd
}

func (e *Engine) offerSlotConfirm(ctx context.Context, t *turn, slot *backend.Slot) string {
	t.state.SelectedSlotID = slot.SlotID
	t.say(phraseConfirmSlot(e.slotDateWords(ctx, slot.Start)))
	t.state.FlowData.Step = "confirm"
	return nodeEnd
}

// bookSelectedSlot re-checks the chosen slot right before booking so a slot
// taken since the offer does not produce a stale booking.
func (e *Engine) bookSelectedSlot(ctx context.Context, t *turn) string {
	s := t.state
	chosen := FindSlotByID(s.AvailableSlots, s.SelectedSlotID)
	if chosen == nil {
		t.say(phraseWhichSlot)
		s.FlowData.Step = "offer_slots"
		s.SelectedSlotID = 0
		return nodeEnd
	}

	if start, err := time.Parse(time.RFC3339, chosen.Start); err == nil {
		date := DateInZone(start, e.loc)
		fresh, err := e.backend.Availability(ctx, backend.AvailabilityQuery{
			OrganizationID: e.orgID,
			FromDate:       date,
			ToDate:         date,
			VisitType:      s.VisitType,
		})
		if err == nil {
			if current := FindSlotByID(fresh, chosen.SlotID); current != nil {
				chosen = current
			}
		}
	}

	_, err := e.backend.CreateAppointment(ctx, backend.CreateAppointmentRequest{
		UserID:         s.UserID,
		OrganizationID: e.orgID,
		ProviderID:     chosen.ProviderID,
		VisitType:      s.VisitType,
		SlotID:         chosen.SlotID,
		Reason:         s.ReasonText,
		Channel:        "voice",
	})
	if err != nil {
		return e.bookingToolFailure(t, err)
	}

	msg := phraseBooked(e.slotDateWords(ctx, chosen.Start))
	if strings.Contains(lower(s.VisitType), "physical") || strings.Contains(lower(s.ReasonText), "physical") {
		msg += " " + phrasePhysicalPrepNote
	}
	if strings.Contains(lower(s.VisitType), "phone") {
		msg += " " + phrasePhoneVisitNote
	}
	t.say(msg)
	s.ClearFlow()
	s.ClearSelection()
	s.CurrentStep = "booked"
	return nodeEnd
}

func (e *Engine) bookingToolFailure(t *turn, err error) string {
	s := t.state
	e.logger.Warn("booking step failed", "call_id", s.CallID, "error", err)
	if s.FailureCount == 0 {
		s.RecordFailure(err)
		t.say(phraseToolRetry)
		return nodeEnd
	}
	s.RecordFailure(err)
	t.say(phraseTransfer)
	s.ShouldTransfer = true
	s.TransferToAgent = true
	return nodeEnd
}
