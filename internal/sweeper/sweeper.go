// Package sweeper ends sessions that were never torn down by their client.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/voicedesk/voicedesk/internal/db"
)

const (
	DefaultInterval      = 10 * time.Minute
	DefaultMaxSessionAge = 12 * time.Hour
)

type Sweeper struct {
	store    db.SessionStore
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
}

// New returns a sweeper that ends active sessions older than maxAge.
// Non-positive durations fall back to the defaults.
func New(store db.SessionStore, interval, maxAge time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxSessionAge
	}
	return &Sweeper{store: store, interval: interval, maxAge: maxAge, now: time.Now}
}

// RunOnce ends every stale session and returns how many were ended.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	n, err := s.store.SweepStaleSessions(ctx, now.Add(-s.maxAge), now)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("stale session sweep failed")
		return 0, err
	}
	if n > 0 {
		log.Ctx(ctx).Info().Int64("ended", n).Dur("max_age", s.maxAge).Msg("ended stale sessions")
	}
	return n, nil
}

// Run sweeps every interval until ctx is cancelled. Failed sweeps are
// logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Ctx(ctx).Info().Dur("interval", s.interval).Dur("max_age", s.maxAge).Msg("session sweeper started")

	for {
		select {
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		case <-ctx.Done():
			log.Ctx(ctx).Info().Msg("session sweeper stopped")
			return
		}
	}
}
