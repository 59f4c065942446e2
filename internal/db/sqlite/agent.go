package sqlite

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
	var (
		a                models.Agent
		created, updated int64
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Voice, &a.Language, &a.WelcomeMessage, &a.ExitMessage,
		&a.IconPosition, &a.IconSize, &a.IconColor, &created, &updated)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return &a, nil
}

func (s *Store) GetAgent(ctx context.Context, agentID uuid.UUID) (*models.Agent, apperrors.Error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, agentID.String())
	agent, err := scanAgent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("agent not found")
		}
		return nil, mapError(ctx, err, "agent")
	}
	return agent, nil
}

func (s *Store) UpsertAgent(ctx context.Context, agent *models.Agent) apperrors.Error {
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	now := millis(time.Now())

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query := `
		INSERT INTO agents (` + agentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			voice = excluded.voice,
			language = excluded.language,
			welcome_message = excluded.welcome_message,
			exit_message = excluded.exit_message,
			icon_position = excluded.icon_position,
			icon_size = excluded.icon_size,
			icon_color = excluded.icon_color,
			updated_at = excluded.updated_at
		RETURNING created_at, updated_at
	`
	var created, updated int64
	err := s.db.QueryRowContext(ctx, query,
		agent.ID.String(),
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
		now,
	).Scan(&created, &updated)
	if err != nil {
		return mapError(ctx, err, "agent")
	}
	agent.CreatedAt = fromMillis(created)
	agent.UpdatedAt = fromMillis(updated)
	return nil
}

func (s *Store) ListAgents(ctx context.Context, userID string) ([]*models.Agent, apperrors.Error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE (?1 = '' OR user_id = ?1) ORDER BY created_at DESC`
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
