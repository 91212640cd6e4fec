package core

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"cinotify/internal/types"
)

// DefaultChannelTimeout bounds a single channel send when none is configured.
const DefaultChannelTimeout = 10 * time.Second

// Outcome error strings recorded in DeliveryOutcome.Error.
const (
	OutcomeTimeout     = "timeout"
	OutcomeUnsupported = "unsupported channel kind"
)

// Dispatcher fans an event out to every enabled channel concurrently.
type Dispatcher struct {
	senders SenderRegistry
	timeout time.Duration
	clock   types.Clock
	logger  types.Logger
	metrics NotificationMetrics
}

// NewDispatcher creates a Dispatcher. A non-positive timeout selects
// DefaultChannelTimeout.
func NewDispatcher(senders SenderRegistry, timeout time.Duration, clock types.Clock, logger types.Logger, metrics NotificationMetrics) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultChannelTimeout
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Dispatcher{
		senders: senders,
		timeout: timeout,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Dispatch delivers event to the enabled channels and returns one outcome per
// enabled channel in declaration order. It never fails as a whole: sender
// errors, panics and timeouts become failed outcomes. Channels still pending
// when ctx ends are recorded as timeouts.
func (d *Dispatcher) Dispatch(ctx context.Context, event *types.NotificationEvent, channels []types.ChannelConfig) types.DispatchResult {
	enabled := make([]types.ChannelConfig, 0, len(channels))
	for _, ch := range channels {
		if ch.Enabled {
			enabled = append(enabled, ch)
		}
	}

	outcomes := make([]types.DeliveryOutcome, len(enabled))

	// The group is only a join point; goroutines always return nil so one
	// failure never cancels its siblings.
	var g errgroup.Group
	for i, ch := range enabled {
		g.Go(func() error {
			outcomes[i] = d.deliver(ctx, event, ch)
			return nil
		})
	}
	_ = g.Wait()

	result := types.DispatchResult{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Success {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
	}
	return result
}

func (d *Dispatcher) deliver(ctx context.Context, event *types.NotificationEvent, ch types.ChannelConfig) types.DeliveryOutcome {
	outcome := types.DeliveryOutcome{ChannelID: ch.ChannelID, Kind: ch.Kind}
	start := d.clock.Now()

	sender, ok := d.senders.Get(ch.Kind)
	if !ok {
		outcome.Error = OutcomeUnsupported
		d.metrics.RecordDelivery(ctx, ch.Kind, MetricFailed)
		return outcome
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// Buffered so an abandoned send can still complete without blocking.
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("sender panicked: %v", r)
			}
		}()
		done <- sender.Send(sendCtx, event, ch)
	}()

	var err error
	select {
	case err = <-done:
	case <-sendCtx.Done():
		err = context.DeadlineExceeded
	}

	latency := d.clock.Now().Sub(start)
	outcome.LatencyMs = latency.Milliseconds()
	d.metrics.RecordLatency(ctx, ch.Kind, latency)

	switch {
	case err == nil:
		outcome.Success = true
		d.metrics.RecordDelivery(ctx, ch.Kind, MetricSuccess)
	case sendCtx.Err() != nil:
		outcome.Error = OutcomeTimeout
		d.metrics.RecordDelivery(ctx, ch.Kind, MetricTimeout)
		d.logger.Warn("channel delivery timed out",
			"channel", ch.ChannelID,
			"kind", string(ch.Kind),
			"request_id", event.Metadata.RequestID,
		)
	default:
		outcome.Error = err.Error()
		d.metrics.RecordDelivery(ctx, ch.Kind, MetricFailed)
		d.logger.Error("channel delivery failed",
			"channel", ch.ChannelID,
			"kind", string(ch.Kind),
			"request_id", event.Metadata.RequestID,
			"error", err.Error(),
		)
	}
	return outcome
}
