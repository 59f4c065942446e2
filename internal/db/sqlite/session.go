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

const sessionColumns = `id, agent_id, room_name, end_user_id, end_user_email, end_user_phone, status, created_at, ended_at`

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s       models.Session
		email   sql.NullString
		phone   sql.NullString
		status  string
		created int64
		endedAt sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.AgentID, &s.RoomName, &s.EndUserID, &email, &phone, &status, &created, &endedAt); err != nil {
		return nil, err
	}
	s.EndUserEmail = email.String
	s.EndUserPhone = phone.String
	s.Status = models.SessionStatus(status)
	s.CreatedAt = fromMillis(created)
	if endedAt.Valid {
		t := fromMillis(endedAt.Int64)
		s.EndedAt = &t
	}
	return &s, nil
}

func (s *Store) CreateSession(ctx context.Context, session *models.Session) apperrors.Error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.CreatedAt = fromMillis(millis(session.CreatedAt))
	session.Status = models.SessionActive
	session.EndedAt = nil

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query := `
		INSERT INTO sessions (id, agent_id, room_name, end_user_id, end_user_email, end_user_phone, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		session.ID.String(),
		session.AgentID.String(),
		session.RoomName,
		session.EndUserID,
		nullString(session.EndUserEmail),
		nullString(session.EndUserPhone),
		string(session.Status),
		millis(session.CreatedAt),
	)
	if err != nil {
		return mapError(ctx, err, "session")
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, apperrors.Error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, sessionID.String())
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
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query := `
		UPDATE sessions
		SET status = 'ended',
			ended_at = COALESCE(ended_at, MAX(?, created_at))
		WHERE id = ?
		RETURNING ` + sessionColumns
	row := s.db.QueryRowContext(ctx, query, millis(endedAt), sessionID.String())
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
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE agent_id = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, agentID.String(), limit)
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
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query := `
		UPDATE sessions
		SET status = 'ended', ended_at = MAX(?, created_at)
		WHERE status = 'active' AND created_at < ?
	`
	result, err := s.db.ExecContext(ctx, query, millis(endedAt), millis(cutoff))
	if err != nil {
		return 0, mapError(ctx, err, "session")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, dberror.ErrDatabase.Err(err)
	}
	return n, nil
}
