package core

import (
	"net/http"
	"time"
)

// defaultRequestTimeout applies when the config leaves RequestTimeout unset.
const defaultRequestTimeout = 30 * time.Second

// defaultRedactedHeaders are masked in request logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"X-CINotify-Signature",
}

// allowedMethods lists the methods each route answers; everything else is
// a 405 carrying this list.
var allowedMethods = map[string][]string{
	"/health":  {http.MethodGet, http.MethodPost},
	"/notify":  {http.MethodPost},
	"/metrics": {http.MethodGet},
}

// MountRoutes registers the middleware chain and the routes.
//
// Global middleware order:
//  1. Recoverer        - outermost, catches every panic.
//  2. ContextTimeout   - bounds the whole request.
//  3. RequestID        - correlation ID for logs and responses.
//  4. SecurityHeaders
//  5. RequestLogger    - redacts credentials.
//  6. CORS
//
// /notify additionally runs Auth then RateLimit; admission needs the
// organization resolved by Auth.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))

	s.router.MethodNotAllowed(s.handleMethodNotAllowed)
	s.router.NotFound(s.handleNotFound)

	s.router.Get("/health", s.HandleHealth)
	s.router.Post("/health", s.HandleHealth)
	s.router.With(s.AuthMiddleware, s.RateLimit).Post("/notify", s.HandleNotify)
	if s.MetricsHandler != nil {
		s.router.Method(http.MethodGet, "/metrics", s.MetricsHandler)
	}
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	MethodNotAllowed(w, r, allowedMethods[r.URL.Path]...)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusNotFound, ErrorResponse{
		Error:   "Not Found",
		Message: "no route for " + r.URL.Path,
	})
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	if len(s.Config.Server.CorsAllowedOrigins) > 0 {
		return s.Config.Server.CorsAllowedOrigins
	}
	return []string{"*"}
}
