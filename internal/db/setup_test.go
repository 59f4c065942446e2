package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"github.com/voicedesk/voicedesk/internal/config"
)

// newTestStores returns the stores the contract tests run against: SQLite
// always, Postgres when VOICEDESK_TEST_POSTGRES_DSN is set.
func newTestStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := log.Logger.WithContext(context.Background())
	stores := map[string]Store{}

	c := config.Default()
	c.DB.Driver = config.DriverSQLite
	c.DB.Path = filepath.Join(t.TempDir(), "voicedesk.db")
	lite, err := Open(ctx, c)
	require.NoError(t, err)
	t.Cleanup(func() { lite.Close() })
	stores["sqlite"] = lite

	if dsn := os.Getenv("VOICEDESK_TEST_POSTGRES_DSN"); dsn != "" {
		c := config.Default()
		c.DB.Driver = config.DriverPostgres
		c.DB.DSN = dsn
		pg, err := Open(ctx, c)
		require.NoError(t, err)
		require.NoError(t, pg.Migrate(ctx))
		t.Cleanup(func() { pg.Close() })
		stores["postgresql"] = pg
	}
	return stores
}
