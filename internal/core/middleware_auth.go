package core

import (
	"log/slog"
	"net/http"

	"cinotify/internal/types"
)

// AuthMiddleware requires a valid Bearer credential and stores the resolved
// Identity in the request context. Failures are terminal: 401 with the
// auth_* code of the failure.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.Authenticator.Validate(r.Context(), r.Header.Get("Authorization"))
		if err != nil || id == nil {
			code := types.CodeOf(err)
			if code == "" || code.HTTPStatus() != http.StatusUnauthorized {
				if err != nil {
					s.Logger.Error("authentication failed: unexpected error",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
				}
				code = types.ErrCodeAuthUnauthorized
			}
			s.Logger.Warn("authentication failed",
				slog.String("ip", extractClientIP(r)),
				slog.String("path", r.URL.Path),
				slog.String("error_code", string(code)),
			)
			s.writeAuthError(w, r, code)
			return
		}

		next.ServeHTTP(w, r.WithContext(types.WithIdentity(r.Context(), *id)))
	})
}

// optionalIdentity resolves the Authorization header when present. It never
// writes a response.
func (s *Server) optionalIdentity(r *http.Request) (*types.Identity, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, false
	}
	id, err := s.Authenticator.Validate(r.Context(), header)
	if err != nil || id == nil {
		return nil, false
	}
	return id, true
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode) {
	JSON(w, r, http.StatusUnauthorized, ErrorResponse{
		Error:     "Unauthorized",
		Message:   authMessage(code),
		Code:      string(code),
		RequestID: types.GetRequestID(r.Context()),
	})
}

func authMessage(code types.ErrorCode) string {
	switch code {
	case types.ErrCodeAuthMalformedCredential:
		return "Malformed authorization header"
	case types.ErrCodeAuthTokenExpired:
		return "Authentication token has expired"
	default:
		return "Invalid or missing authentication token"
	}
}
