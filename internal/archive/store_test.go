package archive

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*TranscriptStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTranscriptStore(db), mock
}

func TestEnsureCallCreatesWhenMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id FROM calls WHERE call_id`).
		WithArgs("call-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO calls`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := store.EnsureCall(context.Background(), "call-1", "org-1", "+15550001111")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureCallReturnsExisting(t *testing.T) {
	store, mock := newMockStore(t)
	existing := uuid.New()

	mock.ExpectQuery(`SELECT id FROM calls WHERE call_id`).
		WithArgs("call-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(existing.String()))
	mock.ExpectExec(`UPDATE calls SET updated_at`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := store.EnsureCall(context.Background(), "call-1", "org-1", "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, existing, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureCallSkipsExcludedPhones(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewTranscriptStoreWithExclusions(db, []string{"+1 (555) 000-1111"})

	id, err := store.EnsureCall(context.Background(), "call-1", "org-1", "5550001111")
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendTurnScrubsAndCounts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO call_turns`).
		WithArgs(sqlmock.AnyArg(), "call-1", "user",
			"my email is [EMAIL] and my number is [PHONE]",
			"register", "register_flow", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE calls SET\s+turn_count = turn_count \+ 1,\s+caller_turn_count`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.AppendTurn(context.Background(), "call-1", TurnRecord{
		Role:      "user",
		Content:   "my email is dana@example.com and my number is 555-000-1111",
		Intent:    "register",
		Node:      "register_flow",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendTurnDuplicateIsIgnored(t *testing.T) {
	store, mock := newMockStore(t)

	// ON CONFLICT DO NOTHING reports zero rows; counters stay untouched.
	mock.ExpectExec(`INSERT INTO call_turns`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.AppendTurn(context.Background(), "call-1", TurnRecord{
		ID:      uuid.New(),
		Role:    "assistant",
		Content: "How may I help you today?",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEndCall(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE calls SET\s+status = 'ended'`).
		WithArgs("book", true, sqlmock.AnyArg(), "call-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.EndCall(context.Background(), "call-1", "book", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilStoreNoOps(t *testing.T) {
	var store *TranscriptStore

	id, err := store.EnsureCall(context.Background(), "call-1", "org-1", "")
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, id)

	require.NoError(t, store.AppendTurn(context.Background(), "call-1", TurnRecord{}))
	require.NoError(t, store.EndCall(context.Background(), "call-1", "", false))

	rec, err := store.GetCall(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
