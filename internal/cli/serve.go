package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/db"
	"github.com/voicedesk/voicedesk/internal/server"
	"github.com/voicedesk/voicedesk/internal/sweeper"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the voicedesk API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, config.Config())
		},
	}
}

func setupDI(cfg *config.ConfigParam) do.Injector {
	injector := do.New()
	do.ProvideValue(injector, cfg)
	server.RegisterDI(injector)
	return injector
}

func serve(ctx context.Context, cfg *config.ConfigParam) error {
	slog := log.With().Str("state", "init").Logger()
	ctx = slog.WithContext(ctx)

	injector := setupDI(cfg)
	store, err := do.Invoke[db.Store](injector)
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := do.Invoke[*server.Server](injector)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if cfg.Sweeper.Enabled {
		sw := do.MustInvoke[*sweeper.Sweeper](injector)
		go sw.Run(log.Logger.WithContext(ctx))
	}

	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info().Str("addr", srv.Addr).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error().Err(err).Msg("could not stop server gracefully")
		if err := srv.Close(); err != nil {
			slog.Error().Err(err).Msg("could not stop server")
		}
	}
	slog.Info().Msg("server stopped")
	return nil
}
