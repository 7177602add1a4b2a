package dialog

import (
	"context"

	"github.com/harborview-health/voice-scheduler/internal/oracle"
)

// inFlowIntentCheck runs mid-flow: most turns continue the active flow, but
// the caller can switch requests ("actually, cancel it instead") at any step.
func (e *Engine) inFlowIntentCheck(ctx context.Context, t *turn) string {
	s := t.state
	flow := s.CurrentFlow
	step := ""
	if s.FlowData != nil {
		step = s.FlowData.Step
	}

	intent := e.nlu.DetectIntent(ctx, t.messages, oracle.IntentContext{
		UserName:       s.UserName,
		CurrentStep:    flow + "_" + step,
		PreviousIntent: flow,
	})
	if e.metrics != nil {
		e.metrics.CountIntent(intent)
	}

	if continuesFlow(flow, intent) {
		next := flowNode(flow)
		s.InFlowNextRoute = next
		return next
	}

	s.RecordIntent(intent, t.now)

	var next string
	switch intent {
	case "cancel":
		// Keep the already-listed appointments so "cancel it" mid-reschedule
		// does not re-ask which one.
		s.CurrentFlow = FlowCancel
		s.FlowData = &FlowData{Step: "choose", StartedAt: t.now}
		next = pickByUser(s.HasUser(), nodeCancelFlow)
	case "reschedule":
		s.CurrentFlow = FlowReschedule
		s.FlowData = &FlowData{Step: "choose", StartedAt: t.now}
		next = pickByUser(s.HasUser(), nodeRescheduleFlow)
	case "book":
		s.ClearSelection()
		s.CurrentFlow = FlowBooking
		s.FlowData = &FlowData{Step: "check", StartedAt: t.now}
		next = pickByUser(s.HasUser(), nodeBookFlow)
	case "get_appointments":
		s.ClearFlow()
		next = pickByUser(s.HasUser(), nodeGetAppointments)
	case "register":
		s.ClearFlow()
		next = nodeRegisterFlow
	case "org_info":
		s.ClearFlow()
		next = nodeOrgInfo
	case "no_request":
		s.ClearFlow()
		if isExplicitNothingElse(t.lastUser()) {
			next = nodeThanksEnd
		} else {
			next = nodeTransfer
		}
	case "emergency":
		s.IsEmergency = true
		next = nodeAdvise911
	case "invalid_business":
		next = nodePoliteRejection
	default:
		next = nodeTransfer
	}

	if next == nodeVerifyFlow {
		s.PendingIntentAfterVerify = intent
		s.ClearFlow()
	}
	s.InFlowNextRoute = next
	return next
}

// continuesFlow reports whether the detected intent keeps the active flow.
// Unsupported chatter mid-flow stays in the flow; the flow's own fallback
// prompt re-asks its question.
func continuesFlow(flow, intent string) bool {
	if intent == "unsupported" {
		return true
	}
	switch flow {
	case FlowBooking:
		return intent == "book" || intent == FlowBooking
	case FlowRegistration:
		return intent == "register" || intent == FlowRegistration
	case FlowReschedule:
		return intent == "reschedule"
	case FlowCancel:
		return intent == "cancel"
	}
	return false
}

func flowNode(flow string) string {
	switch flow {
	case FlowBooking:
		return nodeBookFlow
	case FlowRegistration:
		return nodeRegisterFlow
	case FlowReschedule:
		return nodeRescheduleFlow
	case FlowCancel:
		return nodeCancelFlow
	}
	return nodeEnd
}
