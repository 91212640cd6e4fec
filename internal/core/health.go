package core

import (
	"log/slog"
	"net/http"
	"time"

	"cinotify/internal/health"
	"cinotify/internal/types"
)

// healthResponse is the /health body. Authenticated and Org are present
// only when the caller supplied a valid credential.
type healthResponse struct {
	Status        types.HealthStatus `json:"status"`
	Timestamp     time.Time          `json:"timestamp"`
	ResponseTime  int64              `json:"responseTime"`
	Checks        types.ProbeSet     `json:"checks"`
	Version       string             `json:"version"`
	Authenticated bool               `json:"authenticated,omitempty"`
	Org           string             `json:"org,omitempty"`
}

// HandleHealth runs every probe, adds the api response-time check and
// answers 200 for healthy or degraded, 503 for unhealthy. Authentication is
// optional and only echoed back.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, authenticated := s.optionalIdentity(r)

	report := s.Health.Run(r.Context())
	elapsed := time.Since(start)
	report.Add(health.APIResult(elapsed, s.slowThreshold()))

	resp := healthResponse{
		Status:       report.Status,
		Timestamp:    report.Timestamp,
		ResponseTime: elapsed.Milliseconds(),
		Checks:       report.Checks,
		Version:      s.Config.ServiceVersion(),
	}
	if resp.Timestamp.IsZero() {
		resp.Timestamp = s.Clock.Now()
	}
	if authenticated {
		resp.Authenticated = true
		resp.Org = id.OrganizationID
	}

	s.Logger.Info("health check performed",
		slog.String("status", string(report.Status)),
		slog.Int64("response_time_ms", elapsed.Milliseconds()),
		slog.Bool("authenticated", authenticated),
	)

	JSON(w, r, report.HTTPStatus(), resp)
}

func (s *Server) slowThreshold() time.Duration {
	if s.Config.Health.SlowThreshold > 0 {
		return s.Config.Health.SlowThreshold
	}
	return time.Second
}
