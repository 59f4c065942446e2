package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/db"
	"github.com/voicedesk/voicedesk/internal/sweeper"
)

const commandTimeout = time.Minute

func openStore(ctx context.Context) (db.Store, error) {
	return db.Open(ctx, config.Config())
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(ctx); err != nil {
				return err
			}
			if opts.jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]string{"result": "ok", "driver": config.Config().DB.Driver})
				return nil
			}
			okLabel.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", config.Config().DB.Driver)
			return nil
		},
	}
}

func newSweepCmd(opts *rootOptions) *cobra.Command {
	var maxAge string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "End active sessions older than the maximum session age",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := config.Config().Sweeper
			if maxAge != "" {
				sc.MaxSessionAge = maxAge
			}
			age, err := config.ParseDuration(sc.MaxSessionAge)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := sweeper.New(store, sc.GetInterval(), age).RunOnce(ctx)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]any{"ended": n, "maxSessionAge": age.String()})
				return nil
			}
			okLabel.Fprintf(cmd.OutOrStdout(), "ended %d stale session(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&maxAge, "max-age", "", "Override sweeper.max_session_age, e.g. 12h or 2d")
	return cmd
}
