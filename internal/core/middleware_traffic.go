package core

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cinotify/internal/types"
)

// RateLimit enforces the sliding-window admission limit per organization.
// It runs after AuthMiddleware; requests without an Identity pass through.
//
// Every admitted or rejected response carries:
//   - X-RateLimit-Limit
//   - X-RateLimit-Remaining
//   - X-RateLimit-Reset (unix seconds)
//
// Rejections add Retry-After. Store errors fail open.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.RateLimiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		id, ok := types.GetIdentity(r.Context())
		if !ok || id.OrganizationID == "" {
			next.ServeHTTP(w, r)
			return
		}

		limit, window := s.Config.RateLimit.Limit, s.Config.RateLimit.Window
		decision, err := s.RateLimiter.Admit(r.Context(), id.OrganizationID, limit, window)
		if err != nil {
			s.Logger.Error("rate limit store error",
				slog.String("org_id", id.OrganizationID),
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, decision)
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := int(decision.ResetTime.Sub(s.Clock.Now()).Round(time.Second).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

		s.Logger.Warn("rate limit exceeded",
			slog.String("org_id", id.OrganizationID),
			slog.String("user_id", id.UserID),
			slog.Int("limit", decision.Limit),
			slog.Time("reset_time", decision.ResetTime),
		)
		if s.Metrics != nil {
			s.Metrics.RecordRateLimited(r.Context(), id.OrganizationID)
		}

		JSON(w, r, http.StatusTooManyRequests, ErrorResponse{
			Error:     "Too Many Requests",
			Message:   "Rate limit exceeded. Retry after " + strconv.Itoa(retryAfter) + " seconds.",
			Code:      string(types.ErrCodeRateLimited),
			RequestID: types.GetRequestID(r.Context()),
		})
	})
}

func setRateLimitHeaders(w http.ResponseWriter, d types.RateLimitDecision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetTime.Unix(), 10))
}
