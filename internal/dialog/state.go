package dialog

import (
	"time"

	"github.com/harborview-health/voice-scheduler/internal/backend"
)

// Verify-flow steps, used when caller ID did not find the user.
const (
	VerifyAskCurrentOrFirst = "ask_current_or_first"
	VerifyAskName           = "ask_name"
	VerifyAskSpellLast      = "ask_spell_last"
	VerifyConfirmSpelling   = "confirm_spelling"
	VerifyAskDOB            = "ask_dob"
	VerifyAskPhone          = "ask_phone"
	VerifyOfferRegister     = "offer_register_or_transfer"
)

// Flow names stored in CallState.CurrentFlow.
const (
	FlowBooking      = "booking"
	FlowRegistration = "registration"
	FlowReschedule   = "reschedule"
	FlowCancel       = "cancel"
	FlowVerifyUser   = "verify_user"
)

// FlowData tracks progress inside one flow.
type FlowData struct {
	Step      string    `json:"step"`
	StartedAt time.Time `json:"startedAt"`
}

// IntentRecord is one entry of the per-call intent history.
type IntentRecord struct {
	Intent    string    `json:"intent"`
	Timestamp time.Time `json:"timestamp"`
	Iteration int       `json:"iteration"`
}

// CallState is everything the engine remembers about a call between turns.
// It is loaded from the session store at the start of a turn, updated by the
// nodes that run, and written back once when the turn ends.
type CallState struct {
	CallID          string `json:"callId"`
	RawCallerPhone  string `json:"rawCallerPhone,omitempty"`
	NormalizedPhone string `json:"normalizedPhone,omitempty"`

	UserID            int    `json:"userId,omitempty"`
	UserName          string `json:"userName,omitempty"`
	UserDOB           string `json:"userDob,omitempty"`
	IsRegistered      bool   `json:"isRegistered"`
	IdentityConfirmed bool   `json:"identityConfirmed"`

	CurrentIntent  string         `json:"currentIntent"`
	PreviousIntent string         `json:"previousIntent,omitempty"`
	IntentHistory  []IntentRecord `json:"intentHistory,omitempty"`
	IterationCount int            `json:"iterationCount"`
	CurrentStep    string         `json:"currentStep"`

	CurrentFlow      string            `json:"currentFlow,omitempty"`
	FlowData         *FlowData         `json:"flowData,omitempty"`
	RegistrationData map[string]string `json:"registrationData,omitempty"`

	SelectedAppointmentID   int                   `json:"selectedAppointmentId,omitempty"`
	SelectedSlotID          int                   `json:"selectedSlotId,omitempty"`
	AvailableSlots          []backend.Slot        `json:"availableSlots,omitempty"`
	CancellableAppointments []backend.Appointment `json:"cancellableAppointments,omitempty"`
	VisitType               string                `json:"visitType,omitempty"`
	ReasonText              string                `json:"reasonText,omitempty"`

	VerifyStep               string `json:"verifyStep,omitempty"`
	NameSearchAttempts       int    `json:"nameSearchAttempts,omitempty"`
	LastSpelledName          string `json:"lastSpelledName,omitempty"`
	PendingIntentAfterVerify string `json:"pendingIntentAfterVerify,omitempty"`
	VerifyNext               string `json:"verifyNext,omitempty"`
	IdentityOffer            string `json:"identityOffer,omitempty"` // offered | yes | no
	InFlowNextRoute          string `json:"inFlowNextRoute,omitempty"`

	FailureCount      int    `json:"failureCount,omitempty"`
	LastError         string `json:"lastError,omitempty"`
	RejectionCount    int    `json:"rejectionCount,omitempty"`
	IsEmergency       bool   `json:"isEmergency,omitempty"`
	IsFrustrated      bool   `json:"isFrustrated,omitempty"`
	ShouldTransfer    bool   `json:"shouldTransfer,omitempty"`
	TransferToAgent   bool   `json:"transferToAgent,omitempty"`
	ConversationEnded bool   `json:"conversationEnded,omitempty"`

	SessionStartedAt time.Time `json:"sessionStartedAt"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// NewCallState returns the state for a call's first turn.
func NewCallState(callID, rawCallerPhone string, now time.Time) *CallState {
	return &CallState{
		CallID:           callID,
		RawCallerPhone:   rawCallerPhone,
		CurrentIntent:    "invalid",
		CurrentStep:      "entry",
		SessionStartedAt: now,
		LastUpdated:      now,
	}
}

// HasUser reports whether the call has been matched to a stored user.
func (s *CallState) HasUser() bool {
	return s.UserID != 0 || s.IsRegistered
}

// InFlow reports whether the call is mid-flow with a recorded step.
func (s *CallState) InFlow() bool {
	if s.CurrentFlow == "" || s.FlowData == nil || s.FlowData.Step == "" {
		return false
	}
	switch s.CurrentFlow {
	case FlowBooking, FlowRegistration, FlowReschedule, FlowCancel:
		return true
	}
	return false
}

// ClearFlow leaves the current flow and drops its working data.
func (s *CallState) ClearFlow() {
	s.CurrentFlow = ""
	s.FlowData = nil
}

// ClearSelection drops the in-progress appointment and slot choice.
func (s *CallState) ClearSelection() {
	s.SelectedAppointmentID = 0
	s.SelectedSlotID = 0
	s.AvailableSlots = nil
	s.CancellableAppointments = nil
}

// RecordIntent appends to the intent history and rolls the current intent.
func (s *CallState) RecordIntent(intent string, now time.Time) {
	prev := s.CurrentIntent
	s.PreviousIntent = prev
	s.CurrentIntent = intent
	s.IntentHistory = append(s.IntentHistory, IntentRecord{
		Intent:    intent,
		Timestamp: now,
		Iteration: s.IterationCount,
	})
}

// RecordFailure notes a backend or oracle error for retry/transfer policy.
func (s *CallState) RecordFailure(err error) {
	s.FailureCount++
	if err != nil {
		s.LastError = err.Error()
	}
}
