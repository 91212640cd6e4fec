package core

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"cinotify/internal/types"
)

// requestIDHeader carries the correlation ID in both directions.
const requestIDHeader = "X-Request-ID"

// responseCapture records the status code written by downstream handlers.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rc *responseCapture) Unwrap() http.ResponseWriter {
	return rc.ResponseWriter
}

// Recoverer turns a panic anywhere in the chain into the standard 500 body
// and a detached admin notice. It must be the outermost middleware.
func (s *Server) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			requestID := types.GetRequestID(r.Context())
			if requestID == "" {
				requestID = w.Header().Get(requestIDHeader)
			}
			s.Logger.Error("panic recovered",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("request_id", requestID),
				slog.String("panic", fmt.Sprintf("%v", rvr)),
				slog.String("stack", string(debug.Stack())),
			)
			if s.Reporter != nil {
				s.Reporter.NotifyAndIgnore(fmt.Errorf("panic: %v", rvr), requestID, "")
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = writeInternalError(w, requestID)
		}()

		next.ServeHTTP(w, r)
	})
}

// ContextTimeoutMiddleware bounds every request context. Handlers that pass
// the context on (the dispatcher in particular) convert the deadline into
// timeout outcomes instead of hanging.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware propagates X-Request-ID or generates a UUID.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(types.WithRequestID(r.Context(), requestID)))
	})
}

// RequestLogger logs one line per request with header values of
// redactedHeaders masked. It also stores a request-scoped logger in the
// context.
func RequestLogger(logger *slog.Logger, redactedHeaders []string) func(http.Handler) http.Handler {
	redactSet := make(map[string]struct{}, len(redactedHeaders))
	for _, h := range redactedHeaders {
		redactSet[strings.ToLower(h)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}

			reqLogger := logger.With(slog.String("request_id", types.GetRequestID(r.Context())))
			ctx := types.WithLogger(r.Context(), types.NewSlogLogger(reqLogger))

			// A panic skips the normal return; Recoverer answers it with 500.
			completed := false
			defer func() {
				status := rc.statusCode
				if !completed {
					status = http.StatusInternalServerError
				}
				logRequest(reqLogger, r, redactSet, status, time.Since(start), !completed)
			}()

			next.ServeHTTP(rc, r.WithContext(ctx))
			completed = true
		})
	}
}

func logRequest(reqLogger *slog.Logger, r *http.Request, redactSet map[string]struct{}, status int, dur time.Duration, panicked bool) {
	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", dur),
		slog.String("remote_addr", r.RemoteAddr),
	}
	if panicked {
		attrs = append(attrs, slog.Bool("panicked", true))
	}
	headers := make([]any, 0, len(r.Header))
	for name, values := range r.Header {
		if _, redact := redactSet[strings.ToLower(name)]; redact {
			headers = append(headers, slog.String(name, "[REDACTED]"))
		} else {
			headers = append(headers, slog.String(name, strings.Join(values, ", ")))
		}
	}
	if len(headers) > 0 {
		attrs = append(attrs, slog.Group("headers", headers...))
	}

	switch {
	case status >= 500:
		reqLogger.Error("request completed", attrs...)
	case status >= 400:
		reqLogger.Warn("request completed", attrs...)
	default:
		reqLogger.Info("request completed", attrs...)
	}
}

// SecurityHeadersMiddleware sets the standard hardening headers.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// NewCORSMiddleware allows the given origins ("*" for any) and answers
// preflight requests with 204.
func NewCORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
			break
		}
		originSet[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			var allowedOrigin string
			if allowAll {
				allowedOrigin = "*"
			} else if origin != "" {
				if _, ok := originSet[origin]; ok {
					allowedOrigin = origin
				}
			}

			if allowedOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
				w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After")
				w.Header().Set("Access-Control-Max-Age", "86400")
				if allowedOrigin != "*" {
					w.Header().Set("Vary", "Origin")
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestInfo is the caller description logged with every notify request.
type RequestInfo struct {
	ID        string `json:"id"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
	Method    string `json:"method"`
	URL       string `json:"url"`
}

// LogValue renders RequestInfo as a slog group.
func (ri RequestInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", ri.ID),
		slog.String("ip", ri.IP),
		slog.String("user_agent", ri.UserAgent),
		slog.String("method", ri.Method),
		slog.String("url", ri.URL),
	)
}

// extractRequestInfo describes the caller. The client IP is taken from
// X-Forwarded-For (first entry), then X-Real-IP, then RemoteAddr.
func extractRequestInfo(r *http.Request) RequestInfo {
	ua := r.UserAgent()
	if ua == "" {
		ua = "unknown"
	}
	return RequestInfo{
		ID:        types.GetRequestID(r.Context()),
		IP:        extractClientIP(r),
		UserAgent: ua,
		Method:    r.Method,
		URL:       r.URL.RequestURI(),
	}
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// writeInternalError formats the 500 body by hand so a panic path never
// depends on json.Marshal.
func writeInternalError(w http.ResponseWriter, requestID string) error {
	body := fmt.Sprintf(
		`{"success":false,"error":"Internal Server Error","message":"Failed to process notification","requestId":"%s"}`,
		escapeJSON(requestID),
	)
	_, err := w.Write([]byte(body))
	return err
}

func escapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}
