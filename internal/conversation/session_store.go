package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSessionTTL is the storage-level expiry for idle sessions. It
// mirrors the sweep threshold: a session untouched for this long is gone
// either way.
const DefaultSessionTTL = 24 * time.Hour

// SessionStore persists sessions in Redis, one JSON document per session id.
// Writes are last-writer-wins; a session's turn ordering is preserved by the
// single-document update.
type SessionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	now    func() time.Time
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithSessionTTL overrides the storage-level expiry.
func WithSessionTTL(ttl time.Duration) SessionStoreOption {
	return func(s *SessionStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSessionClock overrides the store's time source.
func WithSessionClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionStore creates a session store.
func NewSessionStore(client *redis.Client, opts ...SessionStoreOption) *SessionStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	s := &SessionStore{
		redis:  client,
		ttl:    DefaultSessionTTL,
		tracer: otel.Tracer("clinic.internal.conversation.sessions"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

// LoadOrCreate returns the session for the id, creating an empty one if it
// does not exist. Creation uses SET NX so that of two concurrent first
// turns exactly one creates the session and the other loads it.
func (s *SessionStore) LoadOrCreate(ctx context.Context, sessionID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_or_create_session")
	defer span.End()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if session != nil {
		return session, nil
	}

	now := s.now().UTC()
	fresh := &Session{
		SessionID:   sessionID,
		PartialData: map[string]any{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	data, err := json.Marshal(fresh)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to marshal session: %w", err)
	}

	created, err := s.redis.SetNX(ctx, sessionKey(sessionID), data, s.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to create session: %w", err)
	}
	if created {
		return fresh, nil
	}

	// Lost the creation race; the winner's document is authoritative.
	session, err = s.load(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("conversation: session %s vanished during creation", sessionID)
	}
	return session, nil
}

// AppendTurn appends a turn to the stored session document.
func (s *SessionStore) AppendTurn(ctx context.Context, sessionID string, turn Turn) error {
	session, err := s.LoadOrCreate(ctx, sessionID)
	if err != nil {
		return err
	}
	session.Turns = append(session.Turns, turn)
	return s.Save(ctx, session)
}

// SetLastFunctionResult updates the stored session's function result; nil
// clears it.
func (s *SessionStore) SetLastFunctionResult(ctx context.Context, sessionID string, result *FunctionResult) error {
	session, err := s.LoadOrCreate(ctx, sessionID)
	if err != nil {
		return err
	}
	session.LastFunctionResult = result
	return s.Save(ctx, session)
}

// Save persists the session, advancing UpdatedAt and refreshing the TTL.
func (s *SessionStore) Save(ctx context.Context, session *Session) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_session")
	defer span.End()

	session.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(session.SessionID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	return nil
}

// Load returns the session or nil when absent.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_session")
	defer span.End()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
	}
	return session, err
}

func (s *SessionStore) load(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("conversation: failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return &session, nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("conversation: failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired sweeps sessions whose UpdatedAt is older than maxAge and
// deletes them, returning the count. Safe to run concurrently with live
// traffic: an active session's save advances UpdatedAt past any cutoff
// computed before it.
func (s *SessionStore) DeleteExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.delete_expired_sessions")
	defer span.End()

	cutoff := s.now().UTC().Add(-maxAge)
	deleted := 0

	iter := s.redis.Scan(ctx, 0, sessionKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.redis.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			span.RecordError(err)
			return deleted, fmt.Errorf("conversation: sweep read %s: %w", key, err)
		}

		var session Session
		if err := json.Unmarshal(data, &session); err != nil {
			// Unreadable document: treat as expired.
			if delErr := s.redis.Del(ctx, key).Err(); delErr == nil {
				deleted++
			}
			continue
		}

		if session.UpdatedAt.Before(cutoff) {
			if err := s.redis.Del(ctx, key).Err(); err != nil {
				span.RecordError(err)
				return deleted, fmt.Errorf("conversation: sweep delete %s: %w", key, err)
			}
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return deleted, fmt.Errorf("conversation: sweep scan: %w", err)
	}

	return deleted, nil
}
