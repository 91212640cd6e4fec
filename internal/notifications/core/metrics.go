package core

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"cinotify/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that CloudWatchNotificationMetrics implements NotificationMetrics.
var _ ServiceMetrics = (*CloudWatchNotificationMetrics)(nil)

// CloudWatchNotificationMetrics publishes delivery telemetry to CloudWatch.
//
// Metrics emitted:
//   - DeliveryAttempt: Dims {Channel, Result}
//   - DeliveryLatency: Dims {Channel}
//   - NotifyDecision: Dims {OrgID, Decision}
//   - RateLimitRejected: Dims {OrgID}
//   - HealthStatus: no dimensions, 0 healthy, 1 degraded, 2 unhealthy
type CloudWatchNotificationMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchNotificationMetrics creates a publisher for namespace. An empty
// namespace selects types.MetricNamespace.
func NewCloudWatchNotificationMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchNotificationMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchNotificationMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDelivery emits a DeliveryAttempt count.
func (m *CloudWatchNotificationMetrics) RecordDelivery(ctx context.Context, channel types.ChannelKind, result MetricResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimChannel), Value: aws.String(string(channel))},
			{Name: aws.String(types.DimResult), Value: aws.String(string(result))},
		},
	}, "channel", string(channel), "result", string(result))
}

// RecordLatency emits the send duration in milliseconds.
func (m *CloudWatchNotificationMetrics) RecordLatency(ctx context.Context, channel types.ChannelKind, duration time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryLatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimChannel), Value: aws.String(string(channel))},
		},
	}, "channel", string(channel), "duration_ms", duration.Milliseconds())
}

// RecordDecision emits a NotifyDecision count.
func (m *CloudWatchNotificationMetrics) RecordDecision(ctx context.Context, orgID string, notify bool) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricNotifyDecision),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimOrgID), Value: aws.String(orgID)},
			{Name: aws.String(types.DimDecision), Value: aws.String(strconv.FormatBool(notify))},
		},
	}, "organization_id", orgID)
}

// RecordRateLimited emits a RateLimitRejected count.
func (m *CloudWatchNotificationMetrics) RecordRateLimited(ctx context.Context, orgID string) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricRateLimitRejected),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimOrgID), Value: aws.String(orgID)},
		},
	}, "organization_id", orgID)
}

// RecordHealth emits the overall health as a number.
func (m *CloudWatchNotificationMetrics) RecordHealth(ctx context.Context, status types.HealthStatus) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricHealthStatus),
		Value:      aws.Float64(HealthValue(status)),
		Unit:       cwtypes.StandardUnitNone,
	}, "status", string(status))
}

// HealthValue maps a status to the number published for it.
func HealthValue(status types.HealthStatus) float64 {
	switch status {
	case types.HealthHealthy:
		return 0
	case types.HealthDegraded:
		return 1
	default:
		return 2
	}
}

func (m *CloudWatchNotificationMetrics) put(ctx context.Context, datum cwtypes.MetricDatum, logArgs ...any) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		args := append([]any{"error", err.Error(), "metric", aws.ToString(datum.MetricName)}, logArgs...)
		m.logger.Error("failed to record metric", args...)
	}
}
