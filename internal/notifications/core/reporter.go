package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cinotify/internal/types"
)

// AdminChannelID identifies the administrative channel in logs and outcomes.
const AdminChannelID = "admin"

// ErrorReporter sends internal failure notices to the administrative channel.
// Reports are detached from the request: they run in their own goroutine with
// their own timeout and their failures are only logged.
type ErrorReporter struct {
	sender  Sender
	channel types.ChannelConfig
	timeout time.Duration
	clock   types.Clock
	logger  types.Logger
	wg      sync.WaitGroup
}

// NewErrorReporter creates a reporter delivering through sender to
// destination. An empty destination or nil sender disables reporting.
func NewErrorReporter(sender Sender, destination string, timeout time.Duration, clock types.Clock, logger types.Logger) *ErrorReporter {
	if clock == nil {
		clock = types.RealClock{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := &ErrorReporter{sender: sender, timeout: timeout, clock: clock, logger: logger}
	if sender != nil {
		r.channel = types.ChannelConfig{
			ChannelID:   AdminChannelID,
			Kind:        sender.Kind(),
			Enabled:     true,
			Destination: destination,
		}
	}
	return r
}

// Enabled reports whether notices are delivered anywhere.
func (r *ErrorReporter) Enabled() bool {
	return r != nil && r.sender != nil && r.channel.Destination != ""
}

// NotifyAndIgnore reports cause without blocking the caller.
func (r *ErrorReporter) NotifyAndIgnore(cause error, requestID, orgID string) {
	if !r.Enabled() || cause == nil {
		return
	}

	event := &types.NotificationEvent{
		Status:  types.EventStatusError,
		Title:   "CI notification service error",
		Message: fmt.Sprintf("Failed to process notification: %v", cause),
		Details: fmt.Sprintf("request %s", requestID),
		Context: map[string]any{"organization_id": orgID},
		Metadata: types.EventMetadata{
			Timestamp:      r.clock.Now(),
			RequestID:      requestID,
			OrganizationID: orgID,
			Source:         "internal",
		},
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("admin notice panicked", "request_id", requestID, "panic", fmt.Sprint(rec))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.sender.Send(ctx, event, r.channel); err != nil {
			r.logger.Error("failed to deliver admin notice",
				"request_id", requestID,
				"error", err.Error(),
			)
		}
	}()
}

// Wait blocks until in-flight notices finish. Used during shutdown.
func (r *ErrorReporter) Wait() {
	if r != nil {
		r.wg.Wait()
	}
}
