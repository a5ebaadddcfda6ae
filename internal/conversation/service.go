package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/gov-appointments/internal/observability/metrics"
)

var ErrEmptySessionID = errors.New("session id is required")

type Service struct {
	store   Store
	now     func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewService(store Store, logger zerolog.Logger, m *metrics.Metrics, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now, logger: logger, metrics: m}
}

// HandleMessage processes one citizen message, creating the session on first contact.
// A session owned by another user is reported as ErrSessionNotFound and left untouched.
func (s *Service) HandleMessage(ctx context.Context, sessionID, userID, message string) (TurnResponse, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return TurnResponse{}, ErrEmptySessionID
	}

	now := s.now()
	sess, err := s.store.Load(ctx, sessionID)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		sess = NewSession(sessionID, userID, now)
		s.logger.Debug().Str("session_id", sessionID).Msg("conversation started")
	case err != nil:
		return TurnResponse{}, err
	case sess.UserID != "" && sess.UserID != userID:
		// someone else's conversation looks the same as a missing one
		s.logger.Warn().Str("session_id", sessionID).Str("user_id", userID).Msg("message for foreign conversation")
		return TurnResponse{}, ErrSessionNotFound
	}

	prev := sess.CurrentStep
	resp := Process(sess, message, now)
	if err := s.store.Save(ctx, sess, now); err != nil {
		return TurnResponse{}, err
	}

	s.metrics.ObserveConversationTurn(string(resp.CurrentStep))
	if resp.IsComplete && prev != StepComplete {
		s.logger.Info().Str("session_id", sessionID).Msg("conversation completed")
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (*Session, error) {
	return s.store.Load(ctx, strings.TrimSpace(sessionID))
}

func (s *Service) Reset(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, strings.TrimSpace(sessionID))
}
