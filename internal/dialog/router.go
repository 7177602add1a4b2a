package dialog

import "regexp"

// Node names. Each turn runs a chain of these until a node returns nodeEnd.
const (
	nodeEnd               = ""
	nodeNormalize         = "normalize"
	nodeLookup            = "lookup"
	nodeGreetPersonalized = "greet_personalized"
	nodeGreetGeneral      = "greet_general"
	nodeMentionServices   = "mention_services"
	nodeConfirmIdentity   = "confirm_identity"
	nodeIdentityFailedEnd = "identity_failed_end"
	nodeDetectIntent      = "detect_intent"
	nodeInFlowIntentCheck = "in_flow_intent_check"
	nodeThanksEnd         = "thanks_end"
	nodeAdvise911         = "advise_911"
	nodePoliteRejection   = "polite_rejection"
	nodeTransfer          = "transfer"
	nodeOrgInfo           = "org_info"
	nodeRegisterFlow      = "register_flow"
	nodeBookFlow          = "book_flow"
	nodeRescheduleFlow    = "reschedule_flow"
	nodeCancelFlow        = "cancel_flow"
	nodeGetAppointments   = "get_appointments_flow"
	nodeVerifyFlow        = "verify_flow"
)

// entryRoute picks the first node of a turn from the persisted state.
func entryRoute(s *CallState) string {
	if s.IterationCount == 1 {
		return nodeNormalize
	}
	if s.CurrentStep == "ask_are_you_name" || s.CurrentStep == "ask_dob" {
		return nodeConfirmIdentity
	}
	if s.CurrentFlow == FlowVerifyUser && s.VerifyStep != "" {
		return nodeVerifyFlow
	}
	// Mid book/registration/reschedule/cancel: intent check only, so the flow
	// step (e.g. cancel confirm) survives the turn.
	if s.InFlow() {
		return nodeInFlowIntentCheck
	}
	return nodeDetectIntent
}

var nothingElsePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^no(\s|,|\.|$)`),
	regexp.MustCompile(`nothing\s*else`),
	regexp.MustCompile(`that'?s\s*all`),
	regexp.MustCompile(`goodbye|bye\b`),
	regexp.MustCompile(`that'?s\s*it`),
	regexp.MustCompile(`no\s*thanks`),
	regexp.MustCompile(`i'?m\s*done`),
	regexp.MustCompile(`all\s*done`),
	regexp.MustCompile(`nothing\s*more`),
	regexp.MustCompile(`not\s*really`),
	regexp.MustCompile(`we're\s*good|we\s*are\s*good`),
	regexp.MustCompile(`that\s*will\s*be\s*all`),
	regexp.MustCompile(`no\s*that'?s\s*(it|all)`),
}

// isExplicitNothingElse reports whether the user clearly said they are done.
// Only those phrasings may end the call; anything fuzzier goes to transfer.
func isExplicitNothingElse(lastUser string) bool {
	t := normalizeSpace(lastUser)
	if t == "" {
		return false
	}
	for _, p := range nothingElsePatterns {
		if p.MatchString(t) {
			return true
		}
	}
	return false
}

var spaceRE = regexp.MustCompile(`\s+`)

func normalizeSpace(s string) string {
	return spaceRE.ReplaceAllString(lower(s), " ")
}

// intentRoute maps a detected intent to the next node. Account-bound intents
// go through identity verification when the caller is still unknown.
func intentRoute(s *CallState, intent, lastUser string) string {
	hasUser := s.HasUser()
	var next string
	switch intent {
	case "no_request":
		next = nodeThanksEnd
	case "emergency":
		next = nodeAdvise911
	case "invalid_business":
		next = nodePoliteRejection
	case "org_info":
		next = nodeOrgInfo
	case "register":
		next = nodeRegisterFlow
	case "book":
		next = pickByUser(hasUser, nodeBookFlow)
	case "reschedule":
		next = pickByUser(hasUser, nodeRescheduleFlow)
	case "cancel":
		next = pickByUser(hasUser, nodeCancelFlow)
	case "get_appointments":
		next = pickByUser(hasUser, nodeGetAppointments)
	default:
		next = nodeTransfer
	}
	if next == nodeThanksEnd && !isExplicitNothingElse(lastUser) {
		return nodeTransfer
	}
	return next
}

func pickByUser(hasUser bool, flowNode string) string {
	if hasUser {
		return flowNode
	}
	return nodeVerifyFlow
}

// verifyNextRoute routes after the verify flow resolved (or gave up).
func verifyNextRoute(s *CallState) string {
	switch s.VerifyNext {
	case "register":
		return nodeRegisterFlow
	case "transfer":
		return nodeTransfer
	case nodeBookFlow, nodeRescheduleFlow, nodeCancelFlow, nodeGetAppointments:
		return s.VerifyNext
	}
	return nodeEnd
}
