package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrSessionNotFound is returned when no state exists for a call id.
var ErrSessionNotFound = errors.New("dialog: session not found")

// SessionStore persists per-call state between turns.
type SessionStore interface {
	Load(ctx context.Context, callID string) (*CallState, error)
	Save(ctx context.Context, callID string, state *CallState) error
}

// RedisSessionStore keeps call state in Redis with a TTL so abandoned calls
// expire on their own.
type RedisSessionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if client == nil {
		panic("dialog: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("voicescheduler.internal.dialog.session"),
	}
}

func sessionKey(callID string) string {
	return fmt.Sprintf("session:%s", callID)
}

func (s *RedisSessionStore) Load(ctx context.Context, callID string) (*CallState, error) {
	ctx, span := s.tracer.Start(ctx, "dialog.load_session")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(callID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("dialog: failed to load session: %w", err)
	}

	var state CallState
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("dialog: failed to decode session: %w", err)
	}
	return &state, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, callID string, state *CallState) error {
	ctx, span := s.tracer.Start(ctx, "dialog.save_session")
	defer span.End()

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("dialog: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(callID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("dialog: failed to persist session: %w", err)
	}
	return nil
}

// MemorySessionStore is an in-process store for tests and local development.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*CallState
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*CallState)}
}

func (s *MemorySessionStore) Load(_ context.Context, callID string) (*CallState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[callID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied, err := cloneState(state)
	if err != nil {
		return nil, err
	}
	return copied, nil
}

func (s *MemorySessionStore) Save(_ context.Context, callID string, state *CallState) error {
	copied, err := cloneState(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[callID] = copied
	return nil
}

func cloneState(state *CallState) (*CallState, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("dialog: failed to clone session: %w", err)
	}
	var copied CallState
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, fmt.Errorf("dialog: failed to clone session: %w", err)
	}
	return &copied, nil
}
