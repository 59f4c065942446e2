package models

import (
	"time"

	"github.com/voicedesk/voicedesk/internal/common/uuid"
)

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// Agent is a tenant-configured voice assistant. Only the id is consulted
// when a session is bootstrapped; the remaining fields drive the widget.
type Agent struct {
	ID             uuid.UUID `db:"id"`
	UserID         string    `db:"user_id"`
	Name           string    `db:"name"`
	Voice          string    `db:"voice"`
	Language       string    `db:"language"`
	WelcomeMessage string    `db:"welcome_message"`
	ExitMessage    string    `db:"exit_message"`
	IconPosition   string    `db:"icon_position"`
	IconSize       string    `db:"icon_size"`
	IconColor      string    `db:"icon_color"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Session is one end-user conversation with an agent. EndUserEmail and
// EndUserPhone are stored as NULL when empty. EndedAt is nil exactly when
// Status is SessionActive.
type Session struct {
	ID           uuid.UUID     `db:"id"`
	AgentID      uuid.UUID     `db:"agent_id"`
	RoomName     string        `db:"room_name"`
	EndUserID    string        `db:"end_user_id"`
	EndUserEmail string        `db:"end_user_email"`
	EndUserPhone string        `db:"end_user_phone"`
	Status       SessionStatus `db:"status"`
	CreatedAt    time.Time     `db:"created_at"`
	EndedAt      *time.Time    `db:"ended_at"`
}

func (s *Session) IsActive() bool {
	return s.Status == SessionActive
}
