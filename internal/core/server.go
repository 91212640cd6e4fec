// Package core provides the HTTP chassis of the notification service. It
// builds a chi router, enforces the cross-cutting concerns (request IDs,
// logging, panic recovery, authentication and admission control) and hosts
// the /health and /notify handlers.
package core

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cinotify/internal/config"
	notifcore "cinotify/internal/notifications/core"
	"cinotify/internal/orgconfig"
	"cinotify/internal/ratelimit"
	"cinotify/internal/types"
)

// Dependencies are the collaborators the handlers need. Authenticator,
// Organizations, Evaluator, Dispatcher and Health are required.
type Dependencies struct {
	Authenticator  Authenticator
	RateLimiter    ratelimit.Store
	Organizations  orgconfig.Provider
	Evaluator      notifcore.Evaluator
	Dispatcher     Dispatcher
	Health         HealthRunner
	Reporter       AdminNotifier
	Metrics        RateLimitRecorder
	MetricsHandler http.Handler
	Clock          types.Clock
}

// Server holds the router and every dependency of the HTTP layer.
type Server struct {
	Config *config.Config
	Logger *slog.Logger
	Dependencies

	validator *RequestValidator
	router    *chi.Mux
}

// NewServer checks the required dependencies and prepares an empty router.
// Call MountRoutes before serving.
func NewServer(cfg *config.Config, logger *slog.Logger, deps Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	if logger == nil {
		return nil, errors.New("logger must not be nil")
	}
	switch {
	case deps.Authenticator == nil:
		return nil, errors.New("authenticator must not be nil")
	case deps.Organizations == nil:
		return nil, errors.New("organization config provider must not be nil")
	case deps.Evaluator == nil:
		return nil, errors.New("evaluator must not be nil")
	case deps.Dispatcher == nil:
		return nil, errors.New("dispatcher must not be nil")
	case deps.Health == nil:
		return nil, errors.New("health runner must not be nil")
	}
	if deps.Clock == nil {
		deps.Clock = types.RealClock{}
	}

	return &Server{
		Config:       cfg,
		Logger:       logger,
		Dependencies: deps,
		validator:    NewRequestValidator(),
		router:       chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown waits for outstanding admin notices. The HTTP listener itself is
// owned by the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	waiter, ok := s.Reporter.(interface{ Wait() })
	if !ok {
		s.Logger.Info("server shutdown complete")
		return nil
	}
	done := make(chan struct{})
	go func() {
		waiter.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.Logger.Info("server shutdown complete")
		return nil
	case <-ctx.Done():
		s.Logger.Warn("server shutdown timed out waiting for admin notices")
		return ctx.Err()
	}
}
