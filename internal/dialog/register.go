package dialog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/harborview-health/voice-scheduler/internal/backend"
)

var (
	femaleRE    = regexp.MustCompile(`fem|woman|girl`)
	maleRE      = regexp.MustCompile(`\bmale\b|\bman\b|\bboy\b|\bguy\b`)
	emailSkipRE = regexp.MustCompile(`^(no|skip|that'?s\s*fine|optional|no\s*thanks|nope|rather\s*not)$|skip\s*it|don'?t\s*have|prefer\s*not`)
)

// registerFlow collects a new user's record one field per turn, confirms the
// whole summary, then creates the user.
func (e *Engine) registerFlow(ctx context.Context, t *turn) string {
	s := t.state
	if s.IsRegistered {
		t.say(phraseAlreadyRegistered)
		s.ClearFlow()
		return nodeEnd
	}

	if s.CurrentFlow != FlowRegistration || s.FlowData == nil {
		return e.startRegistration(ctx, t)
	}

	reply := t.lastUser()
	data := s.RegistrationData
	if data == nil {
		data = map[string]string{}
		s.RegistrationData = data
	}

	switch s.FlowData.Step {
	case "offer_waitlist":
		if isAffirmative(reply) {
			t.say(phraseWaitlistAdded)
		} else {
			t.say(phraseWaitlistDeclined)
		}
		s.ClearFlow()
		return nodeEnd

	case "name":
		if msg, ok := e.registrationPushback(ctx, "name", phraseRegisterFullName, reply, data); !ok {
			t.say(msg)
			return nodeEnd
		}
		name, ok := e.nlu.ExtractFullName(ctx, reply)
		if !ok {
			name = strings.TrimSpace(reply)
		}
		first, last := splitFullName(name)
		data["name"], data["firstName"], data["lastName"] = name, first, last
		t.say(fmt.Sprintf("Thanks, %s. %s", name, phraseRegisterDOB))
		s.FlowData.Step = "dob"
		return nodeEnd

	case "dob":
		if msg, ok := e.registrationPushback(ctx, "dob", phraseRegisterDOB, reply, data); !ok {
			t.say(msg)
			return nodeEnd
		}
		dob := e.nlu.ParseDOB(ctx, reply)
		if dob == "" {
			t.say(fmt.Sprintf("I couldn't catch that date. %s", phraseRegisterDOB))
			return nodeEnd
		}
		data["dob"] = dob
		t.say(fmt.Sprintf("Got it, %s. %s", e.nlu.DOBWords(ctx, dob), phraseRegisterGender))
		s.FlowData.Step = "gender"
		return nodeEnd

	case "gender":
		data["gender"] = e.resolveGender(ctx, reply)
		if phone := s.callerPhone(); phone != "" {
			data["phonePrefill"] = phone
			t.say(phraseConfirmCallerPhone(phone))
		} else {
			t.say(phraseRegisterPhone)
		}
		s.FlowData.Step = "phone"
		return nodeEnd

	case "phone":
		return e.registrationPhoneStep(ctx, t, reply, data)

	case "email":
		trimmed := strings.TrimSpace(reply)
		if trimmed == "" || emailSkipRE.MatchString(lower(trimmed)) {
			data["email"] = ""
		} else if email, ok := e.nlu.ParseEmail(ctx, trimmed); ok {
			data["email"] = email
		} else {
			data["email"] = trimmed
		}
		t.say(e.registrationSummary(data))
		s.FlowData.Step = "confirm_all"
		return nodeEnd

	case "confirm_all":
		return e.registrationConfirmStep(ctx, t, reply, data)
	}
	return nodeEnd
}

func (e *Engine) startRegistration(ctx context.Context, t *turn) string {
	s := t.state
	rules, err := e.backend.BookingRules(ctx, e.orgID)
	if err != nil {
		return e.bookingToolFailure(t, err)
	}
	s.CurrentFlow = FlowRegistration
	s.RegistrationData = map[string]string{}
	if !rules.AcceptingBookings {
		t.say(phraseNotAccepting)
		s.FlowData = &FlowData{Step: "offer_waitlist", StartedAt: t.now}
		return nodeEnd
	}
	t.say(fmt.Sprintf("%s %s", phraseRegisterIntro, phraseRegisterFullName))
	s.FlowData = &FlowData{Step: "name", StartedAt: t.now}
	return nodeEnd
}

// registrationPushback asks the oracle whether the reply actually answers the
// question; off-topic or garbled replies get a clarification or a re-ask.
func (e *Engine) registrationPushback(ctx context.Context, step, question, reply string, data map[string]string) (string, bool) {
	analysis := e.nlu.AnalyzeRegistrationResponse(ctx, step, question, reply, data)
	if analysis.Valid && analysis.Action == "accept" {
		return "", true
	}
	if analysis.Action == "clarify" && analysis.ClarificationMessage != "" {
		return analysis.ClarificationMessage, false
	}
	if analysis.Action == "reask" {
		return question, false
	}
	return "", true
}

func (e *Engine) resolveGender(ctx context.Context, reply string) string {
	t := lower(reply)
	if femaleRE.MatchString(t) {
		return "female"
	}
	if maleRE.MatchString(t) {
		return "male"
	}
	return e.nlu.NormalizeGender(ctx, reply)
}

func (e *Engine) registrationPhoneStep(ctx context.Context, t *turn, reply string, data map[string]string) string {
	s := t.state
	prefill := data["phonePrefill"]

	digits := digitsOnly(reply)
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}

	switch {
	case len(digits) >= 10:
		data["phone"] = e.normalizePhone(ctx, digits)
	case prefill != "" && (isAffirmative(reply) || e.nlu.ConfirmYesNo(ctx, phraseConfirmCallerPhone(prefill), reply)):
		data["phone"] = prefill
	case prefill != "":
		delete(data, "phonePrefill")
		t.say(phraseRegisterPhone)
		return nodeEnd
	default:
		t.say(fmt.Sprintf("I couldn't catch that number. %s", phraseRegisterPhone))
		return nodeEnd
	}

	t.say(phraseRegisterEmail)
	s.FlowData.Step = "email"
	return nodeEnd
}

func (e *Engine) normalizePhone(ctx context.Context, digits string) string {
	res, err := e.backend.NormalizeCallerID(ctx, digits)
	if err == nil && res.NormalizedNumber != "" {
		return res.NormalizedNumber
	}
	return "+1" + digits
}

func (e *Engine) registrationConfirmStep(ctx context.Context, t *turn, reply string, data map[string]string) string {
	s := t.state
	if isAffirmative(reply) {
		return e.createRegisteredUser(ctx, t, data)
	}

	summary := e.registrationSummary(data)
	corr := e.nlu.ParseCorrection(ctx, reply, summary)
	if corr.Correcting {
		switch corr.Field {
		case "name":
			name, ok := e.nlu.ExtractFullName(ctx, corr.NewValue)
			if !ok {
				name = strings.TrimSpace(corr.NewValue)
			}
			first, last := splitFullName(name)
			data["name"], data["firstName"], data["lastName"] = name, first, last
		case "dob":
			dob := e.nlu.ParseDOB(ctx, corr.NewValue)
			if dob == "" {
				t.say("I couldn't catch that date. Could you repeat your date of birth?")
				return nodeEnd
			}
			data["dob"] = dob
		case "gender":
			data["gender"] = e.resolveGender(ctx, corr.NewValue)
		case "phone":
			digits := digitsOnly(corr.NewValue)
			if len(digits) == 11 && digits[0] == '1' {
				digits = digits[1:]
			}
			if len(digits) < 10 {
				t.say("I couldn't catch that number. Could you repeat your phone number?")
				return nodeEnd
			}
			data["phone"] = e.normalizePhone(ctx, digits)
		case "email":
			if email, ok := e.nlu.ParseEmail(ctx, corr.NewValue); ok {
				data["email"] = email
			} else {
				data["email"] = strings.TrimSpace(corr.NewValue)
			}
		}
		t.say(e.registrationSummary(data))
		return nodeEnd
	}

	analysis := e.nlu.AnalyzeRegistrationResponse(ctx, "confirm_all", summary, reply, data)
	switch analysis.Action {
	case "accept":
		return e.createRegisteredUser(ctx, t, data)
	case "clarify":
		if analysis.ClarificationMessage != "" {
			t.say(analysis.ClarificationMessage)
			return nodeEnd
		}
	}
	t.say(phraseCorrectionDecline)
	s.ShouldTransfer = true
	s.TransferToAgent = true
	return nodeEnd
}

func (e *Engine) createRegisteredUser(ctx context.Context, t *turn, data map[string]string) string {
	s := t.state
	phone := data["phone"]
	if phone == "" {
		phone = s.callerPhone()
	}
	created, err := e.backend.CreateUser(ctx, backend.CreateUserRequest{
		FirstName: data["firstName"],
		LastName:  data["lastName"],
		DOB:       data["dob"],
		Gender:    data["gender"],
		Phone:     phone,
		Email:     data["email"],
	})
	if err != nil {
		e.logger.Warn("user creation failed", "call_id", s.CallID, "error", err)
		s.RecordFailure(err)
		t.say(phraseRegisterTransfer)
		s.ShouldTransfer = true
		s.TransferToAgent = true
		return nodeEnd
	}
	s.UserID = created.UserID
	s.UserName = data["name"]
	s.UserDOB = data["dob"]
	s.IsRegistered = true
	t.say(phraseRegisterSuccess)
	s.ClearFlow()
	s.RegistrationData = nil
	s.CurrentStep = "registered"
	return nodeEnd
}

func (e *Engine) registrationSummary(data map[string]string) string {
	return phraseRegistrationSummary(data["name"], data["dob"], data["gender"], data["phone"], data["email"])
}

// callerPhone is the best phone number known for the call.
func (s *CallState) callerPhone() string {
	if s.NormalizedPhone != "" {
		return s.NormalizedPhone
	}
	return s.RawCallerPhone
}

// splitFullName treats the last token as the last name.
func splitFullName(name string) (first, last string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	}
	return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
}
