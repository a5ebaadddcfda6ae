package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SessionTTL is counted from session creation, regardless of completion.
const SessionTTL = 24 * time.Hour

var ErrSessionNotFound = errors.New("conversation session not found")

type Store interface {
	Load(ctx context.Context, sessionID string) (*Session, error)
	Save(ctx context.Context, s *Session, now time.Time) error
	Delete(ctx context.Context, sessionID string) error
}

type RedisStore struct {
	redis  redis.UniversalClient
	tracer trace.Tracer
}

func NewRedisStore(client redis.UniversalClient, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("govappt.internal.conversation.store")
	}
	return &RedisStore{redis: client, tracer: tracer}
}

func sessionKey(id string) string {
	return fmt.Sprintf("conversation:%s", id)
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_session", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return &sess, nil
}

// Save writes sess with whatever remains of its 24 hour lifetime. An already
// expired session is removed instead.
func (s *RedisStore) Save(ctx context.Context, sess *Session, now time.Time) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_session", trace.WithAttributes(attribute.String("session.id", sess.SessionID)))
	defer span.End()

	ttl := sess.ExpiresAt().Sub(now)
	if ttl <= 0 {
		return s.Delete(ctx, sess.SessionID)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sess.SessionID), data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.delete_session")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete session: %w", err)
	}
	return nil
}
