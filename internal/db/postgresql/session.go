package postgresql

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/voicedesk/voicedesk/internal/common/apperrors"
	"github.com/voicedesk/voicedesk/internal/common/uuid"
	"github.com/voicedesk/voicedesk/internal/db/dberror"
	"github.com/voicedesk/voicedesk/internal/db/models"
)

const sessionColumns = `id, agent_id, room_name, end_user_id, end_user_email, end_user_phone, status, created_at, ended_at`

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s       models.Session
		email   sql.NullString
		phone   sql.NullString
		endedAt sql.NullTime
		status  string
	)
	if err := row.Scan(&s.ID, &s.AgentID, &s.RoomName, &s.EndUserID, &email, &phone, &status, &s.CreatedAt, &endedAt); err != nil {
		return nil, err
	}
	s.EndUserEmail = email.String
	s.EndUserPhone = phone.String
	s.Status = models.SessionStatus(status)
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	return &s, nil
}

// CreateSession inserts a new active session. A session referencing an
// unknown agent fails with dberror.ErrNotFound.
func (s *Store) CreateSession(ctx context.Context, session *models.Session) apperrors.Error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.Status = models.SessionActive
	session.EndedAt = nil

	query := `
		INSERT INTO sessions (id, agent_id, room_name, end_user_id, end_user_email, end_user_phone, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.AgentID,
		session.RoomName,
		session.EndUserID,
		nullString(session.EndUserEmail),
		nullString(session.EndUserPhone),
		string(session.Status),
		session.CreatedAt,
	)
	if err != nil {
		return mapError(ctx, err, "session")
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, apperrors.Error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, sessionID)
	session, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("session not found")
		}
		return nil, mapError(ctx, err, "session")
	}
	return session, nil
}

func (s *Store) EndSession(ctx context.Context, sessionID uuid.UUID, endedAt time.Time) (*models.Session, apperrors.Error) {
	query := `
		UPDATE sessions
		SET status = 'ended',
			ended_at = COALESCE(ended_at, GREATEST($2::timestamptz, created_at))
		WHERE id = $1
		RETURNING ` + sessionColumns
	row := s.db.QueryRowContext(ctx, query, sessionID, endedAt.UTC())
	session, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("session not found")
		}
		return nil, mapError(ctx, err, "session")
	}
	return session, nil
}

func (s *Store) ListSessionsByAgent(ctx context.Context, agentID uuid.UUID, limit int) ([]*models.Session, apperrors.Error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE agent_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, agentID, limit)
	if err != nil {
		return nil, mapError(ctx, err, "session")
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, mapError(ctx, err, "session")
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(ctx, err, "session")
	}
	return sessions, nil
}

func (s *Store) SweepStaleSessions(ctx context.Context, cutoff time.Time, endedAt time.Time) (int64, apperrors.Error) {
	query := `
		UPDATE sessions
		SET status = 'ended', ended_at = GREATEST($2::timestamptz, created_at)
		WHERE status = 'active' AND created_at < $1
	`
	result, err := s.db.ExecContext(ctx, query, cutoff.UTC(), endedAt.UTC())
	if err != nil {
		return 0, mapError(ctx, err, "session")
	}
	n, err := result.RowsAffected()
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to get rows affected")
		return 0, dberror.ErrDatabase.Err(err)
	}
	return n, nil
}
