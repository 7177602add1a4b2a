package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TranscriptStore persists call transcripts to PostgreSQL for long-term
// history. A nil store (no DATABASE_URL configured) no-ops every call so the
// dialogue path never depends on the archive being up.
type TranscriptStore struct {
	db             *sql.DB
	excludedPhones map[string]struct{}
}

// NewTranscriptStore creates a transcript store.
func NewTranscriptStore(db *sql.DB) *TranscriptStore {
	if db == nil {
		return nil
	}
	return &TranscriptStore{db: db, excludedPhones: make(map[string]struct{})}
}

// NewTranscriptStoreWithExclusions creates a store that skips persistence for
// specific phone numbers, such as test lines.
func NewTranscriptStoreWithExclusions(db *sql.DB, excludePhones []string) *TranscriptStore {
	if db == nil {
		return nil
	}
	excluded := make(map[string]struct{})
	for _, phone := range excludePhones {
		digits := normalizePhoneDigits(phone)
		if digits != "" {
			excluded[digits] = struct{}{}
		}
	}
	return &TranscriptStore{db: db, excludedPhones: excluded}
}

func normalizePhoneDigits(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 10 {
		return "1" + d
	}
	return d
}

// CallRecord is one archived call.
type CallRecord struct {
	ID                 uuid.UUID
	CallID             string
	OrgID              string
	PhoneHash          string
	Status             string
	Channel            string
	TurnCount          int
	CallerTurnCount    int
	AssistantTurnCount int
	FinalIntent        string
	TransferredToAgent bool
	StartedAt          time.Time
	LastTurnAt         *time.Time
	EndedAt            *time.Time
}

// TurnRecord is one archived turn of a call.
type TurnRecord struct {
	ID        uuid.UUID
	CallID    string
	Role      string
	Content   string
	Intent    string
	Node      string
	CreatedAt time.Time
}

func (s *TranscriptStore) isPhoneExcluded(phone string) bool {
	if s == nil || len(s.excludedPhones) == 0 {
		return false
	}
	digits := normalizePhoneDigits(phone)
	_, excluded := s.excludedPhones[digits]
	return excluded
}

// EnsureCall creates the call record if it does not exist yet and returns its
// UUID. Phone numbers are stored hashed, never raw.
func (s *TranscriptStore) EnsureCall(ctx context.Context, callID, orgID, phone string) (uuid.UUID, error) {
	if s == nil || s.db == nil {
		return uuid.Nil, nil
	}
	if s.isPhoneExcluded(phone) {
		return uuid.Nil, nil
	}

	var existingID uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM calls WHERE call_id = $1`,
		callID,
	).Scan(&existingID)
	if err == nil {
		s.db.ExecContext(ctx,
			`UPDATE calls SET updated_at = $1 WHERE id = $2`,
			time.Now(), existingID,
		)
		return existingID, nil
	}
	if err != sql.ErrNoRows {
		return uuid.Nil, fmt.Errorf("archive: failed to check existing call: %w", err)
	}

	newID := uuid.New()
	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calls (
			id, call_id, org_id, phone_hash, status, channel,
			turn_count, caller_turn_count, assistant_turn_count,
			started_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, newID, callID, orgID, HashPhone(phone), "active", "voice",
		0, 0, 0, now, now, now,
	)
	if err != nil {
		// Another instance may have created it between the select and insert.
		if strings.Contains(err.Error(), "duplicate key") {
			return s.EnsureCall(ctx, callID, orgID, phone)
		}
		return uuid.Nil, fmt.Errorf("archive: failed to create call: %w", err)
	}
	return newID, nil
}

// AppendTurn persists one scrubbed turn and bumps the call counters.
func (s *TranscriptStore) AppendTurn(ctx context.Context, callID string, turn TurnRecord) error {
	if s == nil || s.db == nil {
		return nil
	}

	turnID := turn.ID
	if turnID == uuid.Nil {
		turnID = uuid.New()
	}
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO call_turns (
			id, call_id, role, content, intent, node, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, turnID, callID, turn.Role, ScrubPII(turn.Content), turn.Intent, turn.Node, createdAt)
	if err != nil {
		return fmt.Errorf("archive: failed to insert turn: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive: failed to read insert result: %w", err)
	}
	if rowsAffected == 0 {
		return nil
	}

	counterColumn := "turn_count"
	switch turn.Role {
	case "user":
		counterColumn = "caller_turn_count"
	case "assistant":
		counterColumn = "assistant_turn_count"
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE calls SET
			turn_count = turn_count + 1,
			%s = %s + 1,
			last_turn_at = $1,
			updated_at = $1
		WHERE call_id = $2
	`, counterColumn, counterColumn), createdAt, callID)
	if err != nil {
		return fmt.Errorf("archive: failed to update counters: %w", err)
	}
	return nil
}

// EndCall marks a call as ended with its final intent and transfer outcome.
func (s *TranscriptStore) EndCall(ctx context.Context, callID, finalIntent string, transferred bool) error {
	if s == nil || s.db == nil {
		return nil
	}
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		UPDATE calls SET
			status = 'ended',
			final_intent = $1,
			transferred_to_agent = $2,
			ended_at = $3,
			updated_at = $3
		WHERE call_id = $4 AND ended_at IS NULL
	`, finalIntent, transferred, now, callID)
	return err
}

// GetCall retrieves one archived call by its external call id.
func (s *TranscriptStore) GetCall(ctx context.Context, callID string) (*CallRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rec CallRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, call_id, org_id, phone_hash, status, channel,
			turn_count, caller_turn_count, assistant_turn_count,
			COALESCE(final_intent, ''), transferred_to_agent,
			started_at, last_turn_at, ended_at
		FROM calls WHERE call_id = $1
	`, callID).Scan(
		&rec.ID, &rec.CallID, &rec.OrgID, &rec.PhoneHash, &rec.Status, &rec.Channel,
		&rec.TurnCount, &rec.CallerTurnCount, &rec.AssistantTurnCount,
		&rec.FinalIntent, &rec.TransferredToAgent,
		&rec.StartedAt, &rec.LastTurnAt, &rec.EndedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("archive: failed to load call: %w", err)
	}
	return &rec, nil
}
