package core

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinotify/internal/config"
)

func TestNewServer_RequiresDependencies(t *testing.T) {
	full := newTestEnv(t).server.Dependencies

	tests := []struct {
		name   string
		mutate func(*Dependencies)
		want   string
	}{
		{"authenticator", func(d *Dependencies) { d.Authenticator = nil }, "authenticator must not be nil"},
		{"organizations", func(d *Dependencies) { d.Organizations = nil }, "organization config provider must not be nil"},
		{"evaluator", func(d *Dependencies) { d.Evaluator = nil }, "evaluator must not be nil"},
		{"dispatcher", func(d *Dependencies) { d.Dispatcher = nil }, "dispatcher must not be nil"},
		{"health", func(d *Dependencies) { d.Health = nil }, "health runner must not be nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := full
			tt.mutate(&deps)
			_, err := NewServer(&config.Config{}, discardLogger(), deps)
			require.EqualError(t, err, tt.want)
		})
	}

	_, err := NewServer(nil, discardLogger(), full)
	require.Error(t, err)
	_, err = NewServer(&config.Config{}, nil, full)
	require.Error(t, err)
}

type waitingNotifier struct {
	recordingNotifier
	release chan struct{}
	once    sync.Once
}

func (n *waitingNotifier) Wait() { <-n.release }

func TestShutdown_WaitsForAdminNotices(t *testing.T) {
	n := &waitingNotifier{release: make(chan struct{})}
	env := newTestEnv(t, func(d *Dependencies, _ *config.Config) { d.Reporter = n })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, env.server.Shutdown(ctx), context.DeadlineExceeded)

	n.once.Do(func() { close(n.release) })
	assert.NoError(t, env.server.Shutdown(context.Background()))
}

func TestShutdown_WithoutWaiter(t *testing.T) {
	assert.NoError(t, newTestEnv(t).server.Shutdown(context.Background()))
}

func TestRoutes_NotFound(t *testing.T) {
	rec := newTestEnv(t).do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decodeBody(t, rec)["error"])
}

func TestRoutes_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "cinotify_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	env := newTestEnv(t, func(d *Dependencies, _ *config.Config) {
		d.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	})
	rec := env.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cinotify_test_total 1")

	rec = newTestEnv(t).do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
