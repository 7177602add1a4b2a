package dialog

import "context"

// confirmIdentity verifies a phone-matched caller before account actions.
// The personalized greeting asks for a date of birth; this node handles the
// reply on the following turns.
func (e *Engine) confirmIdentity(ctx context.Context, t *turn) string {
	s := t.state
	reply := t.lastUser()

	switch s.CurrentStep {
	case "ask_are_you_name":
		if isAffirmative(reply) {
			t.say(phraseAskDOBConfirm)
			s.CurrentStep = "ask_dob"
			return nodeEnd
		}
		if s.UserDOB != "" && reply != "" {
			if e.nlu.VerifyDOB(ctx, reply, s.UserDOB) {
				return e.identityConfirmed(t)
			}
			return e.identityRejected(t)
		}
		t.say(phraseConfirmServices)
		s.CurrentStep = "mention_services"
		return nodeEnd

	case "ask_dob":
		if e.nlu.VerifyDOB(ctx, reply, s.UserDOB) {
			return e.identityConfirmed(t)
		}
		return e.identityRejected(t)
	}
	return nodeEnd
}

func (e *Engine) identityConfirmed(t *turn) string {
	t.say(phraseConfirmServices)
	t.state.IdentityConfirmed = true
	t.state.CurrentStep = "mention_services"
	return nodeEnd
}

func (e *Engine) identityRejected(t *turn) string {
	t.say(phraseDOBVerifyFailTransfer)
	t.state.IdentityOffer = "no"
	t.state.CurrentStep = "identity_failed"
	return nodeTransfer
}
