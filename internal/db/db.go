// Package db defines the persistence contract for agents and sessions and
// opens the configured backend.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/voicedesk/voicedesk/internal/common/apperrors"
	"github.com/voicedesk/voicedesk/internal/common/uuid"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/db/models"
	"github.com/voicedesk/voicedesk/internal/db/postgresql"
	"github.com/voicedesk/voicedesk/internal/db/sqlite"
)

// AgentStore reads and writes agents.
type AgentStore interface {
	GetAgent(ctx context.Context, agentID uuid.UUID) (*models.Agent, apperrors.Error)
	UpsertAgent(ctx context.Context, agent *models.Agent) apperrors.Error
	ListAgents(ctx context.Context, userID string) ([]*models.Agent, apperrors.Error)
}

// SessionStore reads and writes sessions.
//
// EndSession moves a session to ended. The first call fixes ended_at; later
// calls leave it untouched and return the stored row. endedAt is raised to
// created_at if it would precede it.
//
// SweepStaleSessions ends every active session created before cutoff and
// returns how many were ended.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.Session) apperrors.Error
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, apperrors.Error)
	EndSession(ctx context.Context, sessionID uuid.UUID, endedAt time.Time) (*models.Session, apperrors.Error)
	ListSessionsByAgent(ctx context.Context, agentID uuid.UUID, limit int) ([]*models.Session, apperrors.Error)
	SweepStaleSessions(ctx context.Context, cutoff time.Time, endedAt time.Time) (int64, apperrors.Error)
}

// Store is the full persistence contract.
type Store interface {
	AgentStore
	SessionStore

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*postgresql.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
)

// Open connects to the backend selected by c.DB.Driver. Connection attempts
// are retried with backoff since the database often starts alongside the
// service.
func Open(ctx context.Context, c *config.ConfigParam) (Store, error) {
	var store Store
	err := retry.Do(func() error {
		var err error
		store, err = open(ctx, c)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Warn().Err(err).Uint("attempt", n+1).Msg("database not ready, retrying")
		}),
	)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func open(ctx context.Context, c *config.ConfigParam) (Store, error) {
	switch c.DB.Driver {
	case config.DriverPostgres:
		timeout, err := config.ParseDuration(c.DB.StatementTimeout)
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}
		pg, err := postgresql.Open(ctx, c.DSN(), postgresql.Options{StatementTimeout: timeout})
		if err != nil {
			return nil, err
		}
		return pg, nil
	case config.DriverSQLite:
		lite, err := sqlite.Open(ctx, c.DB.Path)
		if err != nil {
			return nil, err
		}
		return lite, nil
	default:
		return nil, retry.Unrecoverable(fmt.Errorf("unsupported db driver: %q", c.DB.Driver))
	}
}
