// Package sqlite implements the agent and session store on an embedded
// SQLite database. It backs local runs and the test suites.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/voicedesk/voicedesk/internal/common/apperrors"
	"github.com/voicedesk/voicedesk/internal/db/dberror"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store serialises writes through writeMu so concurrent requests wait on the
// mutex instead of failing with SQLITE_BUSY.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(8)
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: sqlDB}
	if err := s.Migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	voice TEXT NOT NULL,
	language TEXT NOT NULL,
	welcome_message TEXT NOT NULL DEFAULT '',
	exit_message TEXT NOT NULL DEFAULT '',
	icon_position TEXT NOT NULL DEFAULT 'bottom-right',
	icon_size TEXT NOT NULL DEFAULT 'medium',
	icon_color TEXT NOT NULL DEFAULT '#000000',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agents_user ON agents(user_id);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	room_name TEXT NOT NULL,
	end_user_id TEXT NOT NULL,
	end_user_email TEXT,
	end_user_phone TEXT,
	status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'ended')),
	created_at INTEGER NOT NULL,
	ended_at INTEGER,
	CHECK ((status = 'ended') = (ended_at IS NOT NULL)),
	CHECK (ended_at IS NULL OR ended_at >= created_at)
);
CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions(agent_id, created_at);
CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions(created_at) WHERE status = 'active';
`

func mapError(ctx context.Context, err error, what string) apperrors.Error {
	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return dberror.ErrAlreadyExists.Msg(what + " already exists")
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return dberror.ErrNotFound.MsgErr(what+" references a missing row", err)
		case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return dberror.ErrInvalidInput.MsgErr("invalid "+what, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dberror.ErrUnavailable.Err(err)
	}
	log.Ctx(ctx).Error().Err(err).Str("entity", what).Msg("database error")
	return dberror.ErrDatabase.Err(err)
}

func millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
