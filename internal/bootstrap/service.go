// Package bootstrap implements the session bootstrap operation: it turns an
// authenticated end user and an agent id into a recorded session and a
// signed grant to join that session's room.
package bootstrap

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/voicedesk/voicedesk/internal/common/apperrors"
	"github.com/voicedesk/voicedesk/internal/common/uuid"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/db"
	"github.com/voicedesk/voicedesk/internal/db/dberror"
	"github.com/voicedesk/voicedesk/internal/db/models"
	"github.com/voicedesk/voicedesk/internal/grant"
	"github.com/voicedesk/voicedesk/internal/identity"
)

// Request is the bootstrap request body.
type Request struct {
	AgentID string `json:"agentId" validate:"required"`
}

// Response is returned on success. ServerURL is the media server address the
// client should connect to, when configured.
type Response struct {
	Token     string `json:"token"`
	RoomName  string `json:"roomName"`
	SessionID string `json:"sessionId"`
	ServerURL string `json:"serverUrl,omitempty"`
}

// RoomStrategy derives the room name for a new session.
type RoomStrategy func(sessionID uuid.UUID, agentID uuid.UUID) string

// RoomPerSession gives every session its own room.
func RoomPerSession(sessionID uuid.UUID, _ uuid.UUID) string {
	return "session-" + sessionID.String()
}

// RoomPerAgent puts every session with an agent into one shared room named
// after the agent.
func RoomPerAgent(_ uuid.UUID, agentID uuid.UUID) string {
	return agentID.String()
}

// RoomStrategyFor maps the configured strategy name to a RoomStrategy.
// Unknown names fall back to RoomPerSession.
func RoomStrategyFor(name string) RoomStrategy {
	if name == config.RoomPerAgent {
		return RoomPerAgent
	}
	return RoomPerSession
}

// Signer signs a room grant. *grant.Issuer is the production Signer.
type Signer interface {
	Issue(creds grant.Credentials, req grant.Request) (string, time.Time, apperrors.Error)
}

// Service runs bootstrap requests. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	store    db.Store
	users    identity.Provider
	creds    grant.CredentialSource
	issuer   Signer
	rooms    RoomStrategy
	validate *validator.Validate
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRoomStrategy overrides the default RoomPerSession.
func WithRoomStrategy(rs RoomStrategy) Option {
	return func(s *Service) { s.rooms = rs }
}

// WithClock sets the clock used for session creation times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service that writes sessions to store and signs
// grants with issuer using the credentials from creds.
func NewService(store db.Store, users identity.Provider, creds grant.CredentialSource, issuer Signer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		users:    users,
		creds:    creds,
		issuer:   issuer,
		rooms:    RoomPerSession,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Decoder fills in the request body. It is only called once the caller has
// been authenticated.
type Decoder func(req *Request) error

// DecodeRequest returns a Decoder for an already decoded request.
func DecodeRequest(r Request) Decoder {
	return func(req *Request) error {
		*req = r
		return nil
	}
}

// Bootstrap authenticates the caller, decodes and validates the request,
// checks the agent, records a new active session and signs a grant for its
// room. Steps run in that order and the first failure ends the request. A
// session row is written only after every check has passed, and at most one
// row is written per call.
func (s *Service) Bootstrap(ctx context.Context, authorization string, decode Decoder) (*Response, apperrors.Error) {
	logger := log.Ctx(ctx)

	user, err := s.users.GetUser(ctx, identity.BearerToken(authorization))
	if err != nil {
		logger.Warn().Err(err).Msg("bootstrap rejected: caller not authenticated")
		return nil, ErrUnauthenticated.Err(err)
	}

	req := &Request{}
	if derr := decode(req); derr != nil {
		logger.Debug().Err(derr).Msg("bootstrap rejected: unreadable request body")
		return nil, ErrInvalidInput.Err(derr)
	}
	req.AgentID = strings.TrimSpace(req.AgentID)
	if verr := s.validate.Struct(req); verr != nil {
		logger.Debug().Err(verr).Msg("bootstrap rejected: missing agent id")
		return nil, ErrInvalidInput.Err(verr)
	}

	agentID, perr := uuid.Parse(req.AgentID)
	if perr != nil || !uuid.IsValid(req.AgentID) {
		logger.Debug().Str("agent_id", req.AgentID).Msg("bootstrap rejected: agent id is not a uuid")
		return nil, ErrAgentNotFound
	}
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		if !errors.Is(err, dberror.ErrNotFound) {
			logger.Error().Err(err).Str("agent_id", req.AgentID).Msg("agent lookup failed")
		}
		return nil, ErrAgentNotFound.Err(err)
	}

	creds, err := s.creds.Credentials(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("grant issuer credentials missing")
		return nil, ErrMisconfigured.Err(err)
	}

	sessionID, rerr := uuid.NewRandom()
	if rerr != nil {
		logger.Error().Err(rerr).Msg("unable to generate session id")
		return nil, ErrPersistence.Err(rerr)
	}
	roomName := s.rooms(sessionID, agent.ID)

	session := &models.Session{
		ID:           sessionID,
		AgentID:      agent.ID,
		RoomName:     roomName,
		EndUserID:    user.ID,
		EndUserEmail: user.Email,
		EndUserPhone: user.Phone,
		Status:       models.SessionActive,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		logger.Error().Err(err).Str("agent_id", agent.ID.String()).Msg("failed to create session")
		return nil, ErrPersistence.Err(err)
	}

	token, _, err := s.issuer.Issue(creds, grant.Request{
		Identity: user.ID,
		Name:     user.DisplayName(),
		Room:     roomName,
	})
	if err != nil {
		// The session row stays; it is ended by the stale-session sweep.
		logger.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to sign grant")
		return nil, ErrSigning.Err(err)
	}

	logger.Info().
		Str("session_id", sessionID.String()).
		Str("agent_id", agent.ID.String()).
		Str("room_name", roomName).
		Msg("session created")

	return &Response{
		Token:     token,
		RoomName:  roomName,
		SessionID: sessionID.String(),
		ServerURL: creds.ServerURL,
	}, nil
}
