package core

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cinotify/internal/auth"
	"cinotify/internal/config"
	"cinotify/internal/dedup"
	"cinotify/internal/health"
	notifcore "cinotify/internal/notifications/core"
	"cinotify/internal/ratelimit"
	"cinotify/internal/types"
)

const (
	testSecret = "test-signing-secret"
	testAPIKey = "acme-static-key-0123456789"
)

var testNow = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type providerFunc func(ctx context.Context, orgID string) (*types.OrganizationConfig, error)

func (f providerFunc) GetOrganizationConfig(ctx context.Context, orgID string) (*types.OrganizationConfig, error) {
	return f(ctx, orgID)
}

// stubSender records deliveries and fails for destinations listed in fail.
type stubSender struct {
	mu   sync.Mutex
	sent []string
	fail map[string]bool
}

func (s *stubSender) Kind() types.ChannelKind { return types.ChannelWebhook }

func (s *stubSender) Send(_ context.Context, _ *types.NotificationEvent, ch types.ChannelConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ch.ChannelID)
	if s.fail[ch.Destination] {
		return types.NewAppError(types.ErrCodeChannelDeliveryFailure, "boom", nil)
	}
	return nil
}

// recordingNotifier captures admin notices.
type recordingNotifier struct {
	mu     sync.Mutex
	causes []error
}

func (n *recordingNotifier) NotifyAndIgnore(cause error, _, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.causes = append(n.causes, cause)
}

func (n *recordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.causes)
}

type staticProbe struct {
	name     string
	critical bool
	status   types.HealthStatus
}

func (p staticProbe) Name() string   { return p.name }
func (p staticProbe) Critical() bool { return p.critical }
func (p staticProbe) Check(context.Context) (types.HealthCheckResult, error) {
	return types.HealthCheckResult{Status: p.status}, nil
}

func testOrgConfig() *types.OrganizationConfig {
	return &types.OrganizationConfig{
		OrganizationID: "acme",
		Version:        "7",
		Deduplication:  types.DeduplicationConfig{Enabled: true, WindowMs: 60_000},
		Channels: []types.ChannelConfig{
			{ChannelID: "slack", Kind: types.ChannelWebhook, Enabled: true, Destination: "https://hooks.slack.com/services/T/B/X"},
			{ChannelID: "muted", Kind: types.ChannelWebhook, Enabled: false, Destination: "https://example.com/muted"},
			{ChannelID: "ops", Kind: types.ChannelWebhook, Enabled: true, Destination: "https://example.com/ops"},
		},
	}
}

type testEnv struct {
	server   *Server
	sender   *stubSender
	notifier *recordingNotifier
}

type envOption func(*Dependencies, *config.Config)

func withOrgs(p providerFunc) envOption {
	return func(d *Dependencies, _ *config.Config) { d.Organizations = p }
}

func withProbes(probes ...health.Probe) envOption {
	return func(d *Dependencies, _ *config.Config) {
		d.Health = health.NewAggregator(time.Second, fixedClock{testNow}, nil, probes...)
	}
}

func withRateLimit(limit int) envOption {
	return func(_ *Dependencies, c *config.Config) { c.RateLimit.Limit = limit }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	keys, err := auth.ParseAPIKeys("acme:" + testAPIKey)
	require.NoError(t, err)
	clock := fixedClock{testNow}
	logger := discardLogger()
	slogger := types.NewSlogLogger(logger)

	cfg := &config.Config{
		Server:    config.ServerConfig{RequestTimeout: 5 * time.Second},
		RateLimit: config.RateLimitConfig{Limit: 100, Window: time.Minute},
		Health:    config.HealthConfig{SlowThreshold: time.Second, Version: "2.0.0"},
	}

	sender := &stubSender{fail: map[string]bool{}}
	notifier := &recordingNotifier{}
	deps := Dependencies{
		Authenticator: auth.NewTokenValidator(testSecret, keys, clock, logger),
		RateLimiter:   ratelimit.NewMemoryStore(clock),
		Organizations: providerFunc(func(context.Context, string) (*types.OrganizationConfig, error) {
			return testOrgConfig(), nil
		}),
		Evaluator:  notifcore.NewRuleEvaluator(dedup.NewMemoryStore(clock), slogger, nil),
		Dispatcher: notifcore.NewDispatcher(notifcore.NewSenderRegistry(sender), time.Second, clock, slogger, nil),
		Health:     health.NewAggregator(time.Second, clock, nil, staticProbe{name: "runtime", status: types.HealthHealthy}),
		Reporter:   notifier,
		Clock:      clock,
	}
	for _, opt := range opts {
		opt(&deps, cfg)
	}

	s, err := NewServer(cfg, logger, deps)
	require.NoError(t, err)
	s.MountRoutes()
	return &testEnv{server: s, sender: sender, notifier: notifier}
}

func (e *testEnv) do(method, path, authHeader string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		buf, _ := json.Marshal(b)
		r = bytes.NewBuffer(buf)
	}
	req := httptest.NewRequest(method, path, r)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func bearer(token string) string { return "Bearer " + token }
