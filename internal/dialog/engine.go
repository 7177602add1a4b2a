package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harborview-health/voice-scheduler/internal/backend"
	"github.com/harborview-health/voice-scheduler/internal/oracle"
	"github.com/harborview-health/voice-scheduler/pkg/logging"
)

// A node chain is short (entry router plus a couple of hops); the cap only
// guards against a routing cycle introduced by a future edit.
const maxNodeHops = 8

// Backend is the slice of the scheduling backend the engine needs.
// *backend.Client satisfies it.
type Backend interface {
	NormalizeCallerID(ctx context.Context, rawNumber string) (*backend.NormalizeResult, error)
	UsersByPhone(ctx context.Context, phone string) ([]backend.User, error)
	SearchUsersByName(ctx context.Context, name string) ([]backend.User, error)
	SearchUsersFuzzy(ctx context.Context, spelled string) ([]backend.User, error)
	CreateUser(ctx context.Context, req backend.CreateUserRequest) (*backend.CreateUserResult, error)
	BookingRules(ctx context.Context, orgID string) (*backend.BookingRules, error)
	Availability(ctx context.Context, q backend.AvailabilityQuery) ([]backend.Slot, error)
	CreateAppointment(ctx context.Context, req backend.CreateAppointmentRequest) (*backend.CreateAppointmentResult, error)
	ListAppointments(ctx context.Context, userID int, status string) ([]backend.Appointment, error)
	RescheduleOptions(ctx context.Context, appointmentID int, req backend.RescheduleOptionsRequest) ([]backend.Slot, error)
	RescheduleAppointment(ctx context.Context, appointmentID, newSlotID int) error
	CancelOptions(ctx context.Context, userID int) ([]backend.Appointment, error)
	CancelAppointment(ctx context.Context, appointmentID int) (*backend.CancelResult, error)
}

// NLU is the slice of the oracle the engine needs. *oracle.Oracle satisfies it.
type NLU interface {
	DetectIntent(ctx context.Context, messages []oracle.ChatMessage, ic oracle.IntentContext) string
	MatchAppointment(ctx context.Context, userMessage string, candidates []oracle.AppointmentCandidate) (int, bool)
	ParseDateTime(ctx context.Context, utterance, timezone, conversationContext string, now time.Time) *oracle.ParsedDateTime
	ConfirmYesNo(ctx context.Context, assistantQuestion, userReply string) bool
	AnalyzeRegistrationResponse(ctx context.Context, step, questionAsked, userResponse string, collected map[string]string) oracle.RegistrationAnalysis
	ExtractFullName(ctx context.Context, utterance string) (string, bool)
	ParseDOB(ctx context.Context, utterance string) string
	VerifyDOB(ctx context.Context, utterance, storedDOB string) bool
	DOBWords(ctx context.Context, dob string) string
	ParseCorrection(ctx context.Context, userMessage, currentSummary string) oracle.Correction
	NormalizeGender(ctx context.Context, userReply string) string
	ParseEmail(ctx context.Context, utterance string) (string, bool)
	DateWords(ctx context.Context, isoStart, timezone string) (string, error)
	CondensedAvailability(ctx context.Context, isoStarts []string, timezone string) (string, error)
}

// Metrics records turn outcomes. The prometheus implementation lives in
// internal/observability/metrics; a nil-safe noop is used in tests.
type Metrics interface {
	ObserveTurn(node string, duration time.Duration)
	CountIntent(intent string)
	CountTurnError()
}

// Config carries the engine's per-deployment settings.
type Config struct {
	OrganizationID string
	Timezone       *time.Location
	VisitType      string
	TurnTimeout    time.Duration
}

// TurnResult is what one processed turn returns to the HTTP layer.
type TurnResult struct {
	Reply          string
	CallEnded      bool
	Transfer       bool
	IterationCount int
}

// Engine is the turn controller: it serializes turns per call id, loads and
// saves state, and walks the node chain for each request.
type Engine struct {
	nlu     NLU
	backend Backend
	store   SessionStore
	metrics Metrics
	logger  *logging.Logger
	clock   func() time.Time

	orgID       string
	visitType   string
	loc         *time.Location
	tzName      string
	turnTimeout time.Duration

	locks keyedMutex
}

// NewEngine wires a turn controller.
func NewEngine(nlu NLU, be Backend, store SessionStore, metrics Metrics, cfg Config, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.Timezone
	if loc == nil {
		loc = time.UTC
	}
	timeout := cfg.TurnTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	visitType := cfg.VisitType
	if visitType == "" {
		visitType = "follow_up"
	}
	return &Engine{
		nlu:         nlu,
		backend:     be,
		store:       store,
		metrics:     metrics,
		logger:      logger.WithComponent("dialog"),
		clock:       time.Now,
		orgID:       cfg.OrganizationID,
		visitType:   visitType,
		loc:         loc,
		tzName:      loc.String(),
		turnTimeout: timeout,
		locks:       keyedMutex{entries: make(map[string]*lockEntry)},
	}
}

// turn is the working set of one request: the loaded state, the conversation
// so far, and the reply being built. Nodes update it in place; the engine
// persists the state once when the chain ends.
type turn struct {
	state    *CallState
	messages []oracle.ChatMessage
	reply    string
	now      time.Time
}

func (t *turn) say(msg string) { t.reply = msg }

func (t *turn) lastUser() string {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == oracle.ChatRoleUser {
			return strings.TrimSpace(t.messages[i].Content)
		}
	}
	return ""
}

func (t *turn) lastUserLower() string { return lower(t.lastUser()) }

func (t *turn) lastAssistant() string {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == oracle.ChatRoleAssistant {
			return strings.TrimSpace(t.messages[i].Content)
		}
	}
	return ""
}

func lower(s string) string { return strings.ToLower(s) }

// Respond processes one turn for a call. Turns for the same call id are
// serialized; each turn runs under the configured deadline.
func (e *Engine) Respond(ctx context.Context, callID string, messages []oracle.ChatMessage, rawCallerPhone string) (*TurnResult, error) {
	unlock := e.locks.lock(callID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, e.turnTimeout)
	defer cancel()

	now := e.clock()
	state, err := e.store.Load(ctx, callID)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		state = NewCallState(callID, rawCallerPhone, now)
	case err != nil:
		if e.metrics != nil {
			e.metrics.CountTurnError()
		}
		return nil, err
	}

	// Exactly one increment per turn, regardless of which nodes run.
	state.IterationCount++
	state.LastUpdated = now
	if state.RawCallerPhone == "" && rawCallerPhone != "" {
		state.RawCallerPhone = rawCallerPhone
	}

	t := &turn{state: state, messages: messages, now: now}

	node := entryRoute(state)
	for hops := 0; node != nodeEnd && hops < maxNodeHops; hops++ {
		started := e.clock()
		next := e.runNode(ctx, node, t)
		if e.metrics != nil {
			e.metrics.ObserveTurn(node, e.clock().Sub(started))
		}
		e.logger.Debug("node executed",
			"call_id", callID,
			"node", node,
			"next", next,
			"iteration", state.IterationCount,
		)
		node = next
	}

	if t.reply == "" {
		t.say(phraseAnythingElse)
	}

	if err := e.store.Save(ctx, callID, state); err != nil {
		if e.metrics != nil {
			e.metrics.CountTurnError()
		}
		return nil, err
	}

	return &TurnResult{
		Reply:          t.reply,
		CallEnded:      state.ConversationEnded,
		Transfer:       state.TransferToAgent,
		IterationCount: state.IterationCount,
	}, nil
}

func (e *Engine) runNode(ctx context.Context, node string, t *turn) string {
	switch node {
	case nodeNormalize:
		return e.normalize(ctx, t)
	case nodeLookup:
		return e.lookup(ctx, t)
	case nodeGreetPersonalized:
		return e.greetPersonalized(t)
	case nodeGreetGeneral:
		return e.greetGeneral(t)
	case nodeMentionServices:
		return e.mentionServices(t)
	case nodeConfirmIdentity:
		return e.confirmIdentity(ctx, t)
	case nodeIdentityFailedEnd:
		return e.identityFailedEnd(t)
	case nodeDetectIntent:
		return e.detectIntent(ctx, t)
	case nodeInFlowIntentCheck:
		return e.inFlowIntentCheck(ctx, t)
	case nodeThanksEnd:
		return e.thanksEnd(t)
	case nodeAdvise911:
		return e.advise911(t)
	case nodePoliteRejection:
		return e.politeRejection(t)
	case nodeTransfer:
		return e.transfer(t)
	case nodeOrgInfo:
		return e.orgInfo(ctx, t)
	case nodeRegisterFlow:
		return e.registerFlow(ctx, t)
	case nodeBookFlow:
		return e.bookFlow(ctx, t)
	case nodeRescheduleFlow:
		return e.rescheduleFlow(ctx, t)
	case nodeCancelFlow:
		return e.cancelFlow(ctx, t)
	case nodeGetAppointments:
		return e.getAppointmentsFlow(ctx, t)
	case nodeVerifyFlow:
		return e.verifyFlow(ctx, t)
	}
	e.logger.Error("unknown dialog node", "node", node)
	return nodeEnd
}

// keyedMutex serializes work per key without holding a global lock during
// the work itself.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

// candidateList converts appointments to oracle candidates with spoken dates.
func (e *Engine) candidateList(ctx context.Context, appts []backend.Appointment) []oracle.AppointmentCandidate {
	candidates := make([]oracle.AppointmentCandidate, len(appts))
	for i, a := range appts {
		candidates[i] = oracle.AppointmentCandidate{
			ID:           a.ID,
			ProviderName: a.ProviderName,
			DateTime:     e.slotDateWords(ctx, a.Start),
		}
	}
	return candidates
}

// spokenAppointmentList renders "Option 1: Dr. Kim on Friday..." read-outs.
func (e *Engine) spokenAppointmentList(ctx context.Context, appts []backend.Appointment) string {
	parts := make([]string, len(appts))
	for i, a := range appts {
		parts[i] = fmt.Sprintf("Option %d: %s on %s.", i+1, a.ProviderName, e.slotDateWords(ctx, a.Start))
	}
	return strings.Join(parts, " … Next, ")
}
