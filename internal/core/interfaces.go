package core

import (
	"context"

	"cinotify/internal/health"
	"cinotify/internal/types"
)

// Authenticator resolves an Authorization header to an Identity. It returns
// an AppError with an auth_* code on failure.
type Authenticator interface {
	Validate(ctx context.Context, header string) (*types.Identity, error)
}

// Dispatcher fans an event out to an organization's channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *types.NotificationEvent, channels []types.ChannelConfig) types.DispatchResult
}

// HealthRunner produces an aggregated health report.
type HealthRunner interface {
	Run(ctx context.Context) *health.Report
}

// AdminNotifier reports top-level failures out of band. It must not block.
type AdminNotifier interface {
	NotifyAndIgnore(cause error, requestID, orgID string)
}

// RateLimitRecorder counts rejected admissions.
type RateLimitRecorder interface {
	RecordRateLimited(ctx context.Context, orgID string)
}
