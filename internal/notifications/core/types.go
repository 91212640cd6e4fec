// Package core decides whether a CI/CD event produces a notification and
// fans the event out to the organization's channels. Channel implementations
// (webhook, email) plug in through the Sender interface.
package core

import (
	"context"
	"time"

	"cinotify/internal/types"
)

// Evaluator decides whether an event should be delivered. Implementations
// fail open: when they return an error they also return true.
type Evaluator interface {
	ShouldNotify(ctx context.Context, event *types.NotificationEvent, cfg *types.OrganizationConfig) (bool, error)
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc func(ctx context.Context, event *types.NotificationEvent, cfg *types.OrganizationConfig) (bool, error)

// ShouldNotify calls f.
func (f EvaluatorFunc) ShouldNotify(ctx context.Context, event *types.NotificationEvent, cfg *types.OrganizationConfig) (bool, error) {
	return f(ctx, event, cfg)
}

// Sender delivers one event to one channel destination. Send must honor ctx
// cancellation; the dispatcher abandons sends that outlive their deadline.
type Sender interface {
	Kind() types.ChannelKind
	Send(ctx context.Context, event *types.NotificationEvent, ch types.ChannelConfig) error
}

// SenderRegistry resolves senders by channel kind.
type SenderRegistry map[types.ChannelKind]Sender

// NewSenderRegistry indexes senders by their Kind. A later sender replaces an
// earlier one of the same kind.
func NewSenderRegistry(senders ...Sender) SenderRegistry {
	reg := make(SenderRegistry, len(senders))
	for _, s := range senders {
		if s != nil {
			reg[s.Kind()] = s
		}
	}
	return reg
}

// Get returns the sender for kind.
func (r SenderRegistry) Get(kind types.ChannelKind) (Sender, bool) {
	s, ok := r[kind]
	return s, ok
}

// MetricResult categorizes a delivery outcome for metrics reporting.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailed  MetricResult = "failed"
	MetricTimeout MetricResult = "timeout"
)

// NotificationMetrics abstracts the telemetry backend (Prometheus, CloudWatch
// or none). Implementations never return errors; failures are logged.
type NotificationMetrics interface {
	RecordDelivery(ctx context.Context, channel types.ChannelKind, result MetricResult)
	RecordLatency(ctx context.Context, channel types.ChannelKind, duration time.Duration)
	RecordDecision(ctx context.Context, orgID string, notify bool)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

var _ ServiceMetrics = NoopMetrics{}

func (NoopMetrics) RecordDelivery(context.Context, types.ChannelKind, MetricResult) {}
func (NoopMetrics) RecordLatency(context.Context, types.ChannelKind, time.Duration) {}
func (NoopMetrics) RecordDecision(context.Context, string, bool)                    {}
func (NoopMetrics) RecordRateLimited(context.Context, string)                       {}
func (NoopMetrics) RecordHealth(context.Context, types.HealthStatus)                {}

// ServiceMetrics adds the request-path and health metrics that sit outside
// the notification pipeline.
type ServiceMetrics interface {
	NotificationMetrics
	RecordRateLimited(ctx context.Context, orgID string)
	RecordHealth(ctx context.Context, status types.HealthStatus)
}
