// Package server assembles the HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	"github.com/voicedesk/voicedesk/internal/bootstrap"
	"github.com/voicedesk/voicedesk/internal/common/httpx"
	commonmiddleware "github.com/voicedesk/voicedesk/internal/common/middleware"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/db"
	"github.com/voicedesk/voicedesk/internal/identity"
	"github.com/voicedesk/voicedesk/internal/teardown"
)

const readinessTimeout = 2 * time.Second

type Server struct {
	Router *chi.Mux

	cfg       *config.ConfigParam
	store     db.Store
	users     identity.Provider
	bootstrap *bootstrap.Service
	teardown  *teardown.Service
}

func New(cfg *config.ConfigParam, store db.Store, users identity.Provider, bs *bootstrap.Service, td *teardown.Service) *Server {
	return &Server{
		Router:    chi.NewRouter(),
		cfg:       cfg,
		store:     store,
		users:     users,
		bootstrap: bs,
		teardown:  td,
	}
}

func (s *Server) MountHandlers() {
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	if d := s.cfg.Server.GetRequestTimeout(); d > 0 {
		s.Router.Use(commonmiddleware.SetTimeout(d))
	}

	// The bootstrap route answers any origin itself, including on errors.
	s.Router.Mount("/livekit-token", bootstrap.Router(s.bootstrap, s.cfg.Server.MaxRequestBodySize))

	s.Router.Group(func(r chi.Router) {
		if s.cfg.Server.HandleCORS {
			r.Use(s.HandleCORS)
		}
		r.Mount("/sessions", teardown.Router(s.teardown, s.users))
		r.Get("/version", s.getVersion)
		r.Get("/ready", s.getReadiness)
	})

	if log.Trace().Enabled() {
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			log.Trace().Str("method", method).Str("route", route).Msg("route")
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("unable to list routes")
		}
	}
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, &GetVersionRsp{
		ServerVersion: "voicedesk: " + ServerVersion,
		ApiVersion:    ApiVersion,
	})
}

func (s *Server) getReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("database ping failed during readiness check")
		httpx.ErrServiceUnavailable("database unavailable").Send(w)
		return
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleCORS applies the configured origin policy to the session routes.
func (s *Server) HandleCORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Client-Info", "Apikey"},
		ExposedHeaders:   []string{commonmiddleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}

// Addr is the listen address for the configured host and port.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%s", s.cfg.Server.HostName, s.cfg.Server.Port)
}
