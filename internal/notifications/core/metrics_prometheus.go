package core

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cinotify/internal/types"
)

var _ ServiceMetrics = (*PrometheusMetrics)(nil)

// PrometheusMetrics exposes delivery telemetry for scraping on /metrics.
type PrometheusMetrics struct {
	deliveries *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	decisions  *prometheus.CounterVec
	rejected   prometheus.Counter
	health     prometheus.Gauge
}

// NewPrometheusMetrics registers the collectors with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cinotify",
			Name:      "deliveries_total",
			Help:      "Channel delivery attempts by channel kind and result.",
		}, []string{"channel", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cinotify",
			Name:      "delivery_duration_seconds",
			Help:      "Channel delivery latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"channel"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cinotify",
			Name:      "notify_decisions_total",
			Help:      "Rule evaluator decisions.",
		}, []string{"notify"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cinotify",
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		health: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cinotify",
			Name:      "health_status",
			Help:      "Overall service health: 0 healthy, 1 degraded, 2 unhealthy.",
		}),
	}
	reg.MustRegister(m.deliveries, m.latency, m.decisions, m.rejected, m.health)
	return m
}

func (m *PrometheusMetrics) RecordDelivery(_ context.Context, channel types.ChannelKind, result MetricResult) {
	m.deliveries.WithLabelValues(string(channel), string(result)).Inc()
}

func (m *PrometheusMetrics) RecordLatency(_ context.Context, channel types.ChannelKind, duration time.Duration) {
	m.latency.WithLabelValues(string(channel)).Observe(duration.Seconds())
}

// RecordDecision drops the organization label to keep cardinality bounded.
func (m *PrometheusMetrics) RecordDecision(_ context.Context, _ string, notify bool) {
	m.decisions.WithLabelValues(strconv.FormatBool(notify)).Inc()
}

func (m *PrometheusMetrics) RecordRateLimited(_ context.Context, _ string) {
	m.rejected.Inc()
}

func (m *PrometheusMetrics) RecordHealth(_ context.Context, status types.HealthStatus) {
	m.health.Set(HealthValue(status))
}
