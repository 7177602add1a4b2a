package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harborview-health/voice-scheduler/pkg/logging"
)

// Oracle exposes the single-purpose NLU calls the dialogue engine needs.
// Every method returns a constrained result; malformed LLM output is reported
// as a failure for the caller's fallback policy, never as a panic.
type Oracle struct {
	client LLMClient
	model  string
	logger *logging.Logger
}

func New(client LLMClient, model string, logger *logging.Logger) *Oracle {
	if logger == nil {
		logger = logging.Default()
	}
	return &Oracle{client: client, model: model, logger: logger}
}

func (o *Oracle) reply(ctx context.Context, system, user string, maxTokens int32) (string, error) {
	resp, err := o.client.Complete(ctx, LLMRequest{
		Model:     o.model,
		System:    []string{system},
		Messages:  []ChatMessage{{Role: ChatRoleUser, Content: user}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// IntentContext carries the dialogue context the classifier uses to
// disambiguate short answers from genuine off-topic messages.
type IntentContext struct {
	UserName       string
	CurrentStep    string
	PreviousIntent string
}

// DetectIntent classifies the latest user message into one of IntentLabels.
// Oracle failure or an unrecognized reply yields "unsupported".
func (o *Oracle) DetectIntent(ctx context.Context, messages []ChatMessage, ic IntentContext) string {
	snippet := conversationSnippet(messages, 6)
	lastUser := lastUserContent(messages)

	var suffix strings.Builder
	if ic.PreviousIntent != "" {
		fmt.Fprintf(&suffix, "\nPrevious intent: %s", ic.PreviousIntent)
	}
	if ic.CurrentStep != "" {
		fmt.Fprintf(&suffix, "\nCurrent step: %s", ic.CurrentStep)
	}
	if ic.UserName != "" {
		fmt.Fprintf(&suffix, "\nKnown user: %s", ic.UserName)
	}

	raw, err := o.reply(ctx, intentClassifierSystem(), buildIntentClassifierUserMessage(snippet, lastUser, suffix.String()), 16)
	if err != nil {
		o.logger.Warn("intent classification failed", "error", err.Error())
		return "unsupported"
	}
	lowered := strings.ToLower(raw)
	for _, label := range IntentLabels {
		if strings.Contains(lowered, label) {
			return label
		}
	}
	return "unsupported"
}

// AppointmentCandidate is one listed appointment for description matching.
type AppointmentCandidate struct {
	ID           int
	ProviderName string
	DateTime     string
}

// MatchAppointment resolves the user's description to a candidate id.
// Returns (0, false) when nothing matches.
func (o *Oracle) MatchAppointment(ctx context.Context, userMessage string, candidates []AppointmentCandidate) (int, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	raw, err := o.reply(ctx, matchAppointmentSystem, buildMatchAppointmentUserMessage(userMessage, candidates), 16)
	if err != nil {
		o.logger.Warn("appointment match failed", "error", err.Error())
		return 0, false
	}
	if strings.EqualFold(strings.TrimSpace(raw), "NONE") {
		return 0, false
	}
	m := regexp.MustCompile(`\d+`).FindString(raw)
	if m == "" {
		return 0, false
	}
	id, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	for _, c := range candidates {
		if c.ID == id {
			return id, true
		}
	}
	// Some models answer with a 1-based list position instead of the id.
	if id >= 1 && id <= len(candidates) {
		return candidates[id-1].ID, true
	}
	return 0, false
}

// ParsedDateTime is the structured result of the date/time oracle.
// Exactly one of the shapes is populated, keyed by Kind.
type ParsedDateTime struct {
	Kind     string // "range" or "moment"
	When     string // "this_week" | "next_week" (range only)
	FromDate string // YYYY-MM-DD (range only)
	ToDate   string // YYYY-MM-DD (range only)
	IsoUTC   string // RFC3339 UTC (moment only)
}

var (
	dateOnlyRE  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	codeFenceRE = regexp.MustCompile("^```(?:json)?|```$")
)

// ParseDateTime asks the oracle to interpret a spoken date/time phrase.
// Returns nil when the utterance is not a clear date or time, or the reply
// does not match any of the three contract shapes.
func (o *Oracle) ParseDateTime(ctx context.Context, utterance, timezone, conversationContext string, now time.Time) *ParsedDateTime {
	raw, err := o.reply(ctx, parseDateTimeSystem,
		buildParseDateTimeUserMessage(now.UTC().Format(time.RFC3339), timezone, utterance, conversationContext), 120)
	if err != nil {
		o.logger.Warn("datetime parse failed", "error", err.Error())
		return nil
	}
	return parseDateTimeReply(raw)
}

func parseDateTimeReply(raw string) *ParsedDateTime {
	cleaned := strings.TrimSpace(raw)
	cleaned = codeFenceRE.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(strings.Trim(cleaned, "`"))
	if cleaned == "" || strings.EqualFold(cleaned, "INVALID") {
		return nil
	}
	// Tolerate prose around the JSON object.
	if i := strings.Index(cleaned, "{"); i >= 0 {
		if j := strings.LastIndex(cleaned, "}"); j > i {
			cleaned = cleaned[i : j+1]
		}
	}

	var parsed struct {
		Kind     string `json:"kind"`
		When     string `json:"when"`
		FromDate string `json:"fromDate"`
		ToDate   string `json:"toDate"`
		IsoUTC   string `json:"isoUtc"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil
	}

	switch parsed.Kind {
	case "range":
		if parsed.When == "this_week" || parsed.When == "next_week" {
			return &ParsedDateTime{Kind: "range", When: parsed.When}
		}
		if dateOnlyRE.MatchString(parsed.FromDate) && dateOnlyRE.MatchString(parsed.ToDate) {
			return &ParsedDateTime{Kind: "range", FromDate: parsed.FromDate, ToDate: parsed.ToDate}
		}
	case "moment":
		if t, err := time.Parse(time.RFC3339, parsed.IsoUTC); err == nil {
			return &ParsedDateTime{Kind: "moment", IsoUTC: t.UTC().Format(time.RFC3339)}
		}
	}
	return nil
}

// ConfirmYesNo asks whether the user's reply confirms the assistant's
// question. Oracle failure counts as "no".
func (o *Oracle) ConfirmYesNo(ctx context.Context, assistantQuestion, userReply string) bool {
	raw, err := o.reply(ctx, confirmYesNoSystem, buildConfirmYesNoUserMessage(assistantQuestion, userReply), 8)
	if err != nil {
		o.logger.Warn("yes/no confirmation failed", "error", err.Error())
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "yes")
}

// RegistrationAnalysis is the analyzer verdict for one registration answer.
type RegistrationAnalysis struct {
	Valid                bool   `json:"valid"`
	Action               string `json:"action"` // accept | clarify | reask
	ClarificationMessage string `json:"clarificationMessage"`
}

// AnalyzeRegistrationResponse gates a registration answer before it is
// stored. A malformed analyzer reply defaults to accept so one bad oracle
// response never wedges the flow.
func (o *Oracle) AnalyzeRegistrationResponse(ctx context.Context, step, questionAsked, userResponse string, collected map[string]string) RegistrationAnalysis {
	fallback := RegistrationAnalysis{Valid: true, Action: "accept"}
	raw, err := o.reply(ctx, registrationAnalyzerSystem,
		buildRegistrationAnalyzerUserMessage(step, questionAsked, userResponse, collected), 160)
	if err != nil {
		o.logger.Warn("registration analyzer failed", "error", err.Error())
		return fallback
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return fallback
	}
	var analysis RegistrationAnalysis
	if err := json.Unmarshal([]byte(raw[start:end+1]), &analysis); err != nil {
		return fallback
	}
	switch analysis.Action {
	case "accept", "clarify", "reask":
		return analysis
	}
	return fallback
}

// ExtractFullName pulls a person's name out of an indirect phrasing.
// Returns ("", false) when no name could be extracted.
func (o *Oracle) ExtractFullName(ctx context.Context, utterance string) (string, bool) {
	raw, err := o.reply(ctx, extractFullNameSystem, buildExtractFullNameUserMessage(utterance), 32)
	if err != nil {
		o.logger.Warn("name extraction failed", "error", err.Error())
		return "", false
	}
	name := strings.TrimSpace(strings.Trim(raw, `"`))
	if name == "" || strings.EqualFold(name, "NONE") {
		return "", false
	}
	return name, true
}

var dobRE = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// ParseDOB converts a spoken date of birth to YYYY-MM-DD; empty on failure.
func (o *Oracle) ParseDOB(ctx context.Context, utterance string) string {
	raw, err := o.reply(ctx, dobParseSystem, buildDobParseUserMessage(utterance), 16)
	if err != nil {
		o.logger.Warn("dob parse failed", "error", err.Error())
		return ""
	}
	if strings.Contains(strings.ToUpper(raw), "INVALID") {
		return ""
	}
	return dobRE.FindString(raw)
}

// VerifyDOB parses the uttered date and compares it to the stored DOB
// (normalized to its date part). A parse failure is a mismatch.
func (o *Oracle) VerifyDOB(ctx context.Context, utterance, storedDOB string) bool {
	uttered := o.ParseDOB(ctx, utterance)
	if uttered == "" {
		return false
	}
	return uttered == NormalizeDOB(storedDOB)
}

// NormalizeDOB reduces any stored DOB representation to YYYY-MM-DD.
func NormalizeDOB(dob string) string {
	dob = strings.TrimSpace(dob)
	if len(dob) >= 10 {
		return dob[:10]
	}
	return dob
}

// DOBWords renders a YYYY-MM-DD date as a spoken phrase. Falls back to a
// deterministic rendering when the oracle is unavailable.
func (o *Oracle) DOBWords(ctx context.Context, dob string) string {
	raw, err := o.reply(ctx, dobWordsSystem, buildDobWordsUserMessage(dob), 24)
	if err == nil {
		if phrase := strings.TrimSpace(raw); phrase != "" && len(phrase) < 60 {
			return phrase
		}
	}
	if t, perr := time.Parse("2006-01-02", dob); perr == nil {
		return fmt.Sprintf("%s %s, %d", t.Month().String(), ordinal(t.Day()), t.Year())
	}
	return dob
}

// Correction is a parsed mid-confirmation field correction.
type Correction struct {
	Correcting bool   `json:"correcting"`
	Field      string `json:"field"` // name | dob | gender | phone | email | ""
	NewValue   string `json:"newValue"`
}

// ParseCorrection decides whether a confirm-step reply is a field correction.
func (o *Oracle) ParseCorrection(ctx context.Context, userMessage, currentSummary string) Correction {
	raw, err := o.reply(ctx, correctionDuringConfirmSystem,
		buildCorrectionDuringConfirmUserMessage(userMessage, currentSummary), 120)
	if err != nil {
		o.logger.Warn("correction parse failed", "error", err.Error())
		return Correction{}
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Correction{}
	}
	var c Correction
	if err := json.Unmarshal([]byte(raw[start:end+1]), &c); err != nil {
		return Correction{}
	}
	switch c.Field {
	case "name", "dob", "gender", "phone", "email", "":
	default:
		c.Field = ""
	}
	return c
}

// NormalizeGender maps transcription variants to male/female/other.
func (o *Oracle) NormalizeGender(ctx context.Context, userReply string) string {
	raw, err := o.reply(ctx, genderNormalizeSystem, buildGenderNormalizeUserMessage(userReply), 8)
	if err != nil {
		o.logger.Warn("gender normalization failed", "error", err.Error())
		return "other"
	}
	lowered := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(lowered, "female"):
		return "female"
	case strings.Contains(lowered, "male"):
		return "male"
	default:
		return "other"
	}
}

var emailLikeRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ParseEmail normalizes a spoken email address. Returns ("", false) when no
// email can be extracted or the result does not look like one.
func (o *Oracle) ParseEmail(ctx context.Context, utterance string) (string, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(utterance))
	if emailLikeRE.MatchString(trimmed) {
		return trimmed, true
	}
	raw, err := o.reply(ctx, parseEmailSystem, buildParseEmailUserMessage(utterance), 32)
	if err != nil {
		o.logger.Warn("email parse failed", "error", err.Error())
		return "", false
	}
	email := strings.ToLower(strings.TrimSpace(strings.Trim(raw, `"`)))
	if email == "" || strings.EqualFold(email, "none") || !emailLikeRE.MatchString(email) {
		return "", false
	}
	return email, true
}

// DateWords converts an RFC3339 UTC start time into a spoken phrase in the
// given timezone. Error forces the caller's sync fallback.
func (o *Oracle) DateWords(ctx context.Context, isoStart, timezone string) (string, error) {
	return o.reply(ctx, dateWordsSystem, buildDateWordsSingleUserMessage(isoStart, timezone), 80)
}

// CondensedAvailability formats slot start times as one by-date paragraph.
func (o *Oracle) CondensedAvailability(ctx context.Context, isoStarts []string, timezone string) (string, error) {
	return o.reply(ctx, availabilityCondensedSystem,
		buildAvailabilityCondensedUserMessage(strings.Join(isoStarts, "\n"), timezone), 600)
}

func conversationSnippet(messages []ChatMessage, n int) string {
	start := len(messages) - n
	if start < 0 {
		start = 0
	}
	var sb strings.Builder
	for _, m := range messages[start:] {
		content := m.Content
		if len(content) > 200 {
			content = content[:200] + "…"
		}
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func lastUserContent(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == ChatRoleUser {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return strconv.Itoa(n) + suffix
}
