// Package postgresql implements the agent and session store on PostgreSQL
// through database/sql and the pgx driver.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/voicedesk/voicedesk/internal/common/apperrors"
	"github.com/voicedesk/voicedesk/internal/db/dberror"
)

type Options struct {
	StatementTimeout time.Duration
}

type Store struct {
	db *sql.DB
}

// Open creates a connection pool for dsn and verifies it with a ping. Every
// new connection gets lock, statement and idle-in-transaction timeouts.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database dsn: %w", err)
	}
	if opts.StatementTimeout <= 0 {
		opts.StatementTimeout = 10 * time.Second
	}
	timeout := fmt.Sprintf("%d", opts.StatementTimeout.Milliseconds())
	sessionParams := map[string]string{
		"lock_timeout":                        timeout,
		"statement_timeout":                   timeout,
		"idle_in_transaction_session_timeout": timeout,
	}

	sqlDB := stdlib.OpenDB(*connConfig, stdlib.OptionAfterConnect(func(ctx context.Context, conn *pgx.Conn) error {
		for param, value := range sessionParams {
			query := fmt.Sprintf("SET %s = %s", pq.QuoteIdentifier(param), pq.QuoteLiteral(value))
			if _, err := conn.Exec(ctx, query); err != nil {
				return fmt.Errorf("failed to set %s: %w", param, err)
			}
		}
		return nil
	}))

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		log.Ctx(ctx).Error().Err(err).Msg("failed to ping db")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{db: sqlDB}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrationStatements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// mapError translates driver errors into dberror values. what names the
// entity for messages.
func mapError(ctx context.Context, err error, what string) apperrors.Error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return dberror.ErrAlreadyExists.Msg(what + " already exists")
		case "23503": // foreign_key_violation
			return dberror.ErrNotFound.MsgErr(what+" references a missing row", err)
		case "22P02", "23514": // invalid_text_representation, check_violation
			return dberror.ErrInvalidInput.MsgErr("invalid "+what, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dberror.ErrUnavailable.Err(err)
	}
	log.Ctx(ctx).Error().Err(err).Str("entity", what).Msg("database error")
	return dberror.ErrDatabase.Err(err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
