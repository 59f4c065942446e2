package server

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/do/v2"
	"github.com/voicedesk/voicedesk/internal/bootstrap"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/db"
	"github.com/voicedesk/voicedesk/internal/grant"
	"github.com/voicedesk/voicedesk/internal/identity"
	"github.com/voicedesk/voicedesk/internal/sweeper"
	"github.com/voicedesk/voicedesk/internal/teardown"
)

const databaseInitTimeout = 30 * time.Second

// RegisterDI provides every component the server needs. The injector must
// already hold a *config.ConfigParam.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (db.Store, error) {
		cfg := do.MustInvoke[*config.ConfigParam](i)
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()
		store, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return store, nil
	})
	do.Provide(injector, func(i do.Injector) (identity.Provider, error) {
		cfg := do.MustInvoke[*config.ConfigParam](i)
		return identity.NewProvider(cfg.Identity)
	})
	do.ProvideValue[grant.CredentialSource](injector, grant.ConfigCredentials{})
	do.Provide(injector, func(i do.Injector) (*grant.Issuer, error) {
		cfg := do.MustInvoke[*config.ConfigParam](i)
		return grant.NewIssuer(cfg.LiveKit.GetTokenTTL()), nil
	})
	do.Provide(injector, func(i do.Injector) (*bootstrap.Service, error) {
		cfg := do.MustInvoke[*config.ConfigParam](i)
		return bootstrap.NewService(
			do.MustInvoke[db.Store](i),
			do.MustInvoke[identity.Provider](i),
			do.MustInvoke[grant.CredentialSource](i),
			do.MustInvoke[*grant.Issuer](i),
			bootstrap.WithRoomStrategy(bootstrap.RoomStrategyFor(cfg.LiveKit.RoomStrategy)),
		), nil
	})
	do.Provide(injector, func(i do.Injector) (*teardown.Service, error) {
		return teardown.NewService(do.MustInvoke[db.Store](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*sweeper.Sweeper, error) {
		cfg := do.MustInvoke[*config.ConfigParam](i)
		return sweeper.New(do.MustInvoke[db.Store](i), cfg.Sweeper.GetInterval(), cfg.Sweeper.GetMaxSessionAge()), nil
	})
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		s := New(
			do.MustInvoke[*config.ConfigParam](i),
			do.MustInvoke[db.Store](i),
			do.MustInvoke[identity.Provider](i),
			do.MustInvoke[*bootstrap.Service](i),
			do.MustInvoke[*teardown.Service](i),
		)
		s.MountHandlers()
		return s, nil
	})
}
