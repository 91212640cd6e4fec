package types

// EventStatus is the outcome reported by the CI/CD pipeline.
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusError   EventStatus = "error"
	EventStatusWarning EventStatus = "warning"
	EventStatusInfo    EventStatus = "info"
)

// AllEventStatuses lists the accepted statuses in their documented order.
var AllEventStatuses = []EventStatus{
	EventStatusSuccess,
	EventStatusError,
	EventStatusWarning,
	EventStatusInfo,
}

// IsValid reports whether s is one of the accepted statuses.
func (s EventStatus) IsValid() bool {
	switch s {
	case EventStatusSuccess, EventStatusError, EventStatusWarning, EventStatusInfo:
		return true
	}
	return false
}

// HealthStatus is the three-valued health of a probe or of the whole service.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// CredentialKind identifies which authentication path produced an Identity.
type CredentialKind string

const (
	CredentialSigned CredentialKind = "signed"
	CredentialStatic CredentialKind = "static"
)

// ChannelKind identifies the delivery mechanism of a channel.
type ChannelKind string

const (
	ChannelWebhook ChannelKind = "webhook"
	ChannelEmail   ChannelKind = "email"
)

// PermissionNotify is granted to every static key and required by /notify.
const PermissionNotify = "notify"
