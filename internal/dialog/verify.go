package dialog

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var firstVisitRE = regexp.MustCompile(`first\s*visit|new\s*user|register|first\s*time|i'?m\s*new|never\s*been`)

// verifyFlow locates a caller who was not matched by caller ID: name search,
// spelled last name as a fallback, then date-of-birth confirmation, then phone.
// Two failed lookups offer registration or a transfer.
func (e *Engine) verifyFlow(ctx context.Context, t *turn) string {
	s := t.state
	reply := t.lastUser()

	if s.CurrentFlow != FlowVerifyUser || s.VerifyStep == "" {
		s.CurrentFlow = FlowVerifyUser
		s.VerifyStep = VerifyAskCurrentOrFirst
		s.NameSearchAttempts = 0
		t.say(phraseAskCurrentOrFirst)
		return nodeEnd
	}

	switch s.VerifyStep {
	case VerifyAskCurrentOrFirst:
		if firstVisitRE.MatchString(lower(reply)) {
			t.say(phraseHelpRegister)
			return e.finishVerify(t, "register")
		}
		t.say(phraseAskName)
		s.VerifyStep = VerifyAskName
		return nodeEnd

	case VerifyAskName:
		users, err := e.backend.SearchUsersByName(ctx, reply)
		if err != nil {
			s.RecordFailure(err)
		}
		if len(users) > 0 {
			u := users[0]
			s.UserID = u.ID
			s.UserName = u.FullName()
			s.UserDOB = u.DOB
			s.NameSearchAttempts = 0
			t.say(phraseAskDOBConfirm)
			s.VerifyStep = VerifyAskDOB
			return nodeEnd
		}
		s.NameSearchAttempts++
		if s.NameSearchAttempts >= 2 {
			return e.offerRegisterOrTransfer(t)
		}
		t.say(phraseNameNotFoundSpell)
		s.VerifyStep = VerifyAskSpellLast
		return nodeEnd

	case VerifyAskSpellLast:
		spelled := strings.ToUpper(strings.Join(strings.Fields(reply), ""))
		letters := make([]string, 0, len(spelled))
		for _, r := range spelled {
			letters = append(letters, string(r))
		}
		s.LastSpelledName = spelled
		t.say(phraseConfirmSpelling(strings.Join(letters, ", ")))
		s.VerifyStep = VerifyConfirmSpelling
		return nodeEnd

	case VerifyConfirmSpelling:
		if !isAffirmative(reply) {
			t.say(phraseNameNotFoundSpell)
			s.VerifyStep = VerifyAskSpellLast
			return nodeEnd
		}
		users, err := e.backend.SearchUsersFuzzy(ctx, s.LastSpelledName)
		if err != nil {
			s.RecordFailure(err)
		}
		if len(users) > 0 {
			u := users[0]
			s.UserID = u.ID
			s.UserName = u.FullName()
			s.UserDOB = u.DOB
			s.NameSearchAttempts = 0
			t.say(phraseAskDOBConfirm)
			s.VerifyStep = VerifyAskDOB
			return nodeEnd
		}
		s.NameSearchAttempts++
		if s.NameSearchAttempts >= 2 {
			return e.offerRegisterOrTransfer(t)
		}
		t.say(fmt.Sprintf("%s %s", phraseSearchingFor(s.LastSpelledName), phraseNameNotFoundSpell))
		s.VerifyStep = VerifyAskSpellLast
		return nodeEnd

	case VerifyAskDOB:
		if e.nlu.VerifyDOB(ctx, reply, s.UserDOB) {
			s.IsRegistered = true
			s.IdentityConfirmed = true
			t.say(phraseConfirmServices)
			return e.finishVerify(t, pendingVerifyTarget(s.PendingIntentAfterVerify))
		}
		t.say(fmt.Sprintf("%s %s", phraseDOBMismatchPhone, phraseAskPhone))
		s.VerifyStep = VerifyAskPhone
		return nodeEnd

	case VerifyAskPhone:
		digits := digitsOnly(reply)
		if len(digits) == 11 && digits[0] == '1' {
			digits = digits[1:]
		}
		if len(digits) < 10 {
			t.say(phraseAskPhone)
			return nodeEnd
		}
		users, err := e.backend.UsersByPhone(ctx, "+1"+digits)
		if err != nil {
			s.RecordFailure(err)
		}
		if len(users) > 0 {
			u := users[0]
			s.UserID = u.ID
			s.UserName = u.FullName()
			s.UserDOB = u.DOB
			s.IsRegistered = true
			s.IdentityConfirmed = true
			t.say(phraseConfirmServices)
			return e.finishVerify(t, pendingVerifyTarget(s.PendingIntentAfterVerify))
		}
		return e.offerRegisterOrTransfer(t)

	case VerifyOfferRegister:
		if isAffirmative(reply) {
			t.say(phraseHelpRegister)
			return e.finishVerify(t, "register")
		}
		t.say(phraseTransferLocate)
		s.ShouldTransfer = true
		return e.finishVerify(t, "transfer")
	}
	return nodeEnd
}

func (e *Engine) offerRegisterOrTransfer(t *turn) string {
	t.say(phraseOfferRegister)
	t.state.VerifyStep = VerifyOfferRegister
	return nodeEnd
}

// finishVerify leaves the verify flow and routes to the recorded target.
func (e *Engine) finishVerify(t *turn, next string) string {
	s := t.state
	s.CurrentFlow = ""
	s.VerifyStep = ""
	s.VerifyNext = next
	return verifyNextRoute(s)
}

// pendingVerifyTarget maps a deferred intent to its flow node.
func pendingVerifyTarget(intent string) string {
	switch intent {
	case "book":
		return nodeBookFlow
	case "reschedule":
		return nodeRescheduleFlow
	case "cancel":
		return nodeCancelFlow
	case "get_appointments":
		return nodeGetAppointments
	}
	return ""
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
