package types

import (
	"slices"
	"time"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	OrganizationID string         `json:"organization_id"`
	UserID         string         `json:"user_id"`
	Permissions    []string       `json:"permissions"`
	Kind           CredentialKind `json:"kind"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
}

// HasPermission reports whether the identity carries permission p.
func (i Identity) HasPermission(p string) bool {
	return slices.Contains(i.Permissions, p)
}

// EventMetadata is attached by the service, never by the caller.
type EventMetadata struct {
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	Source         string    `json:"source,omitempty"`
}

// NotificationEvent is one CI/CD outcome submitted to /notify.
type NotificationEvent struct {
	Status     EventStatus    `json:"status"`
	Message    string         `json:"message"`
	Title      string         `json:"title,omitempty"`
	Details    string         `json:"details,omitempty"`
	Repository string         `json:"repository,omitempty"`
	Branch     string         `json:"branch,omitempty"`
	Target     string         `json:"target,omitempty"`
	SourceURL  string         `json:"workflow_url,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	Metadata   EventMetadata  `json:"metadata"`
}

// DisplayTitle returns the title, falling back to a status-derived default.
func (e *NotificationEvent) DisplayTitle() string {
	if e.Title != "" {
		return e.Title
	}
	switch e.Status {
	case EventStatusSuccess:
		return "Pipeline succeeded"
	case EventStatusError:
		return "Pipeline failed"
	case EventStatusWarning:
		return "Pipeline warning"
	default:
		return "Pipeline update"
	}
}

// DeduplicationRecord tracks repeated fingerprints per organization.
type DeduplicationRecord struct {
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Fingerprint    string    `json:"fingerprint" db:"fingerprint"`
	FirstSeen      time.Time `json:"first_seen" db:"first_seen"`
	LastSeen       time.Time `json:"last_seen" db:"last_seen"`
	Count          int       `json:"count" db:"count"`
}

// MaxDedupWindow is the longest accepted deduplication window. The purge job
// keeps fingerprints at least this long.
const MaxDedupWindow = 24 * time.Hour

// DeduplicationConfig controls success-event suppression for an organization.
type DeduplicationConfig struct {
	Enabled  bool `json:"enabled" yaml:"enabled"`
	WindowMs int  `json:"windowMs" yaml:"windowMs" validate:"gte=0,lte=86400000"`
}

// Window returns the configured window as a duration.
func (d DeduplicationConfig) Window() time.Duration {
	return time.Duration(d.WindowMs) * time.Millisecond
}

// ChannelConfig is one delivery destination of an organization.
type ChannelConfig struct {
	ChannelID   string         `json:"id" yaml:"id" validate:"required"`
	Kind        ChannelKind    `json:"type" yaml:"type" validate:"required,oneof=webhook email"`
	Enabled     bool           `json:"enabled" yaml:"enabled"`
	Destination string         `json:"destination" yaml:"destination" validate:"required"`
	Options     map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// OrganizationConfig is the per-organization policy resolved on every request.
type OrganizationConfig struct {
	OrganizationID string              `json:"organization_id,omitempty" yaml:"organization_id,omitempty"`
	Channels       []ChannelConfig     `json:"channels" yaml:"channels" validate:"dive"`
	Deduplication  DeduplicationConfig `json:"deduplication" yaml:"deduplication"`
	Version        string              `json:"version" yaml:"version"`
	LastOptimized  *time.Time          `json:"lastOptimized,omitempty" yaml:"lastOptimized,omitempty"`
}

// EnabledChannels returns the enabled channels in declaration order.
func (c *OrganizationConfig) EnabledChannels() []ChannelConfig {
	if c == nil {
		return nil
	}
	out := make([]ChannelConfig, 0, len(c.Channels))
	for _, ch := range c.Channels {
		if ch.Enabled {
			out = append(out, ch)
		}
	}
	return out
}

// DeliveryOutcome is the result of delivering one event to one channel.
type DeliveryOutcome struct {
	ChannelID string      `json:"channel"`
	Kind      ChannelKind `json:"type"`
	Success   bool        `json:"success"`
	Error     string      `json:"error,omitempty"`
	LatencyMs int64       `json:"latency_ms"`
}

// DispatchResult aggregates the outcomes of one fan-out.
type DispatchResult struct {
	Outcomes     []DeliveryOutcome `json:"outcomes"`
	SuccessCount int               `json:"success_count"`
	FailureCount int               `json:"failure_count"`
}

// HealthCheckResult is the outcome of one probe.
type HealthCheckResult struct {
	Name      string       `json:"-"`
	Status    HealthStatus `json:"status"`
	Critical  bool         `json:"critical"`
	Detail    any          `json:"detail,omitempty"`
	LatencyMs int64        `json:"latency_ms"`
}

// ProbeSet maps probe names to their results.
type ProbeSet map[string]HealthCheckResult

// RateLimitDecision is the answer of a sliding-window admission check.
type RateLimitDecision struct {
	Allowed   bool      `json:"allowed"`
	Count     int       `json:"count"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}
