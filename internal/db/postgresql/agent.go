package postgresql

import (
	"context"
	"database/sql"
	"time"

	"github.com/voicedesk/voicedesk/internal/common/apperrors"
	"github.com/voicedesk/voicedesk/internal/common/uuid"
	"github.com/voicedesk/voicedesk/internal/db/dberror"
	"github.com/voicedesk/voicedesk/internal/db/models"
)

const agentColumns = `id, user_id, name, voice, language, welcome_message, exit_message,
	icon_position, icon_size, icon_color, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*models.Agent, error) {
	var a models.Agent
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Voice, &a.Language, &a.WelcomeMessage, &a.ExitMessage,
		&a.IconPosition, &a.IconSize, &a.IconColor, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) GetAgent(ctx context.Context, agentID uuid.UUID) (*models.Agent, apperrors.Error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, agentID)
	agent, err := scanAgent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("agent not found")
		}
		return nil, mapError(ctx, err, "agent")
	}
	return agent, nil
}

// UpsertAgent inserts agent or updates the row with the same id. A zero id
// is replaced with a fresh one.
func (s *Store) UpsertAgent(ctx context.Context, agent *models.Agent) apperrors.Error {
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	now := time.Now().UTC()
	query := `
		INSERT INTO agents (` + agentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			name = EXCLUDED.name,
			voice = EXCLUDED.voice,
			language = EXCLUDED.language,
			welcome_message = EXCLUDED.welcome_message,
			exit_message = EXCLUDED.exit_message,
			icon_position = EXCLUDED.icon_position,
			icon_size = EXCLUDED.icon_size,
			icon_color = EXCLUDED.icon_color,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		agent.ID,
		agent.UserID,
		agent.Name,
		agent.Voice,
		agent.Language,
		agent.WelcomeMessage,
		agent.ExitMessage,
		agent.IconPosition,
		agent.IconSize,
		agent.IconColor,
		now,
	).Scan(&agent.CreatedAt, &agent.UpdatedAt)
	if err != nil {
		return mapError(ctx, err, "agent")
	}
	return nil
}

// ListAgents returns the agents owned by userID, or every agent when userID
// is empty, newest first.
func (s *Store) ListAgents(ctx context.Context, userID string) ([]*models.Agent, apperrors.Error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE ($1 = '' OR user_id = $1) ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, mapError(ctx, err, "agent")
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, mapError(ctx, err, "agent")
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(ctx, err, "agent")
	}
	return agents, nil
}
