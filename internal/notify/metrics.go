package notify

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"reviewnotify/internal/types"
)

// Metrics receives dispatch telemetry. Recording is best-effort: a metrics
// failure is logged and never affects the dispatch outcome.
type Metrics interface {
	// RecordDispatch counts one dispatch outcome per action.
	RecordDispatch(ctx context.Context, action types.Action, result types.DispatchResult)

	// RecordDispatchLatency tracks end-to-end dispatch duration per action.
	RecordDispatchLatency(ctx context.Context, action types.Action, duration time.Duration)

	// RecordQueueLag tracks the delay between event enqueue and dispatch start.
	RecordQueueLag(ctx context.Context, lag time.Duration)

	// RecordCacheLookup counts resolver cache hits and misses.
	RecordCacheLookup(ctx context.Context, hit bool)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics implements Metrics by publishing to a CloudWatch
// namespace.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

var _ Metrics = (*CloudWatchMetrics)(nil)

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to the given
// namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespaceDefault
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDispatch emits a NotificationAttempt count with Action and Result
// dimensions.
func (m *CloudWatchMetrics) RecordDispatch(ctx context.Context, action types.Action, result types.DispatchResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDispatchAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimAction), Value: aws.String(string(action))},
			{Name: aws.String(types.DimResult), Value: aws.String(string(result))},
		},
	})
}

// RecordDispatchLatency emits dispatch duration in milliseconds with the
// Action dimension.
func (m *CloudWatchMetrics) RecordDispatchLatency(ctx context.Context, action types.Action, duration time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDispatchLatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimAction), Value: aws.String(string(action))},
		},
	})
}

// RecordQueueLag emits the time between event enqueue and processing start,
// covering SQS backlog and visibility delays.
func (m *CloudWatchMetrics) RecordQueueLag(ctx context.Context, lag time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricQueueLag),
		Value:      aws.Float64(float64(lag.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

// RecordCacheLookup counts one resolver cache lookup with a hit/miss
// dimension.
func (m *CloudWatchMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricResolveCache),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimCache), Value: aws.String(outcome)},
		},
	})
}

func (m *CloudWatchMetrics) put(ctx context.Context, datum cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"error", err.Error(),
			"metric", aws.ToString(datum.MetricName),
		)
	}
}

// NopMetrics discards all telemetry. Used in local mode and tests.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) RecordDispatch(context.Context, types.Action, types.DispatchResult) {}
func (NopMetrics) RecordDispatchLatency(context.Context, types.Action, time.Duration) {}
func (NopMetrics) RecordQueueLag(context.Context, time.Duration)                      {}
func (NopMetrics) RecordCacheLookup(context.Context, bool)                            {}
