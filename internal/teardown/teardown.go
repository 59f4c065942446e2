// Package teardown ends sessions on behalf of the end user who started them.
package teardown

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/voicedesk/voicedesk/internal/common/apperrors"
	"github.com/voicedesk/voicedesk/internal/common/uuid"
	"github.com/voicedesk/voicedesk/internal/db"
	"github.com/voicedesk/voicedesk/internal/db/dberror"
	"github.com/voicedesk/voicedesk/internal/db/models"
	"github.com/voicedesk/voicedesk/internal/identity"
)

var (
	ErrTeardown        apperrors.Error = apperrors.New("teardown error").SetStatusCode(http.StatusInternalServerError)
	ErrSessionNotFound apperrors.Error = ErrTeardown.New("Session not found").SetStatusCode(http.StatusNotFound)
	ErrNotSessionOwner apperrors.Error = ErrTeardown.New("Forbidden").SetStatusCode(http.StatusForbidden)
	ErrEndFailed       apperrors.Error = ErrTeardown.New("Failed to end session")
	ErrLookupFailed    apperrors.Error = ErrTeardown.New("Failed to load session")
)

// EndResponse is returned when a session is ended.
type EndResponse struct {
	SessionID string               `json:"sessionId"`
	Status    models.SessionStatus `json:"status"`
	EndedAt   time.Time            `json:"endedAt"`
}

// SessionView is a session as shown to its end user.
type SessionView struct {
	SessionID string               `json:"sessionId"`
	AgentID   string               `json:"agentId"`
	RoomName  string               `json:"roomName"`
	Status    models.SessionStatus `json:"status"`
	CreatedAt time.Time            `json:"createdAt"`
	EndedAt   *time.Time           `json:"endedAt,omitempty"`
}

func viewOf(s *models.Session) *SessionView {
	return &SessionView{
		SessionID: s.ID.String(),
		AgentID:   s.AgentID.String(),
		RoomName:  s.RoomName,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
		EndedAt:   s.EndedAt,
	}
}

type Service struct {
	store db.SessionStore
	now   func() time.Time
}

func NewService(store db.SessionStore) *Service {
	return &Service{store: store, now: time.Now}
}

// load returns the session if caller owns it. Ids that are not uuids are
// reported as unknown sessions.
func (s *Service) load(ctx context.Context, caller *identity.User, sessionID string) (*models.Session, apperrors.Error) {
	if caller == nil {
		return nil, identity.ErrUnauthenticated
	}
	if !uuid.IsValid(sessionID) {
		return nil, ErrSessionNotFound
	}
	session, err := s.store.GetSession(ctx, uuid.MustParse(sessionID))
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		log.Ctx(ctx).Error().Err(err).Str("session_id", sessionID).Msg("session lookup failed")
		return nil, ErrLookupFailed.Err(err)
	}
	if session.EndUserID != caller.ID {
		log.Ctx(ctx).Warn().Str("session_id", sessionID).Str("caller", caller.ID).Msg("caller does not own session")
		return nil, ErrNotSessionOwner
	}
	return session, nil
}

// Get returns the caller's session.
func (s *Service) Get(ctx context.Context, caller *identity.User, sessionID string) (*SessionView, apperrors.Error) {
	session, err := s.load(ctx, caller, sessionID)
	if err != nil {
		return nil, err
	}
	return viewOf(session), nil
}

// End marks the caller's session ended. Ending an ended session succeeds
// and reports the time it was first ended.
func (s *Service) End(ctx context.Context, caller *identity.User, sessionID string) (*EndResponse, apperrors.Error) {
	session, err := s.load(ctx, caller, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() && session.EndedAt != nil {
		return &EndResponse{SessionID: session.ID.String(), Status: session.Status, EndedAt: *session.EndedAt}, nil
	}

	ended, err := s.store.EndSession(ctx, session.ID, s.now().UTC())
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("session_id", sessionID).Msg("failed to end session")
		return nil, ErrEndFailed.Err(err)
	}
	if ended.EndedAt == nil {
		return nil, ErrEndFailed.Msg("ended session has no end time")
	}
	log.Ctx(ctx).Info().Str("session_id", sessionID).Msg("session ended")
	return &EndResponse{SessionID: ended.ID.String(), Status: ended.Status, EndedAt: *ended.EndedAt}, nil
}
