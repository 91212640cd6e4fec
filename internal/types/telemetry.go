package types

// Telemetry metric names shared by the Prometheus and CloudWatch backends.
const (
	MetricDeliveryAttempt   = "DeliveryAttempt"
	MetricDeliverySuccess   = "DeliverySuccess"
	MetricDeliveryFailed    = "DeliveryFailed"
	MetricDeliveryLatency   = "DeliveryLatency"
	MetricNotifyDecision    = "NotifyDecision"
	MetricRateLimitRejected = "RateLimitRejected"
	MetricHealthStatus      = "HealthStatus"

	// Dimension Keys
	DimChannel  = "Channel"
	DimOrgID    = "OrgID"
	DimDecision = "Decision"
	DimStatus   = "Status"
	DimResult   = "Result"

	// Metric Namespace
	MetricNamespace = "CINotify"
)
