package notify

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"commercepay/internal/types"
)

// CloudWatchClient abstracts PutMetricData for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Request metric names.
const (
	MetricAPIRequestCount = "APIRequestCount"
	MetricAPILatency      = "APILatency"
)

// CloudWatchMetrics emits webhook and request telemetry:
//   - WebhookVerification: Dims {Result}
//   - EventDispatch: Dims {Sink, EventType, Result}
//   - APIRequestCount / APILatency: Dims {Method, Route, Status}
//
// Publishing failures are logged and never surface to callers.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics. An empty namespace uses
// types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordVerification counts one signature check outcome.
func (m *CloudWatchMetrics) RecordVerification(ctx context.Context, result types.VerificationResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricWebhookVerification),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dimensions(types.DimResult, string(result)),
	})
}

// RecordDispatch counts one sink delivery.
func (m *CloudWatchMetrics) RecordDispatch(ctx context.Context, sink, eventType string, err error) {
	result := "success"
	if err != nil {
		result = "failed"
	}
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricEventDispatch),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dimensions(
			types.DimSink, sink,
			types.DimEventType, eventType,
			types.DimResult, result,
		),
	})
}

// RecordRequest implements core.MetricsCollector.
func (m *CloudWatchMetrics) RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	dims := dimensions("Method", method, "Route", route, "Status", strconv.Itoa(status))
	m.put(ctx,
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	)
}

func (m *CloudWatchMetrics) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to publish metric",
			"metric", aws.ToString(data[0].MetricName),
			"error", err,
		)
	}
}

// dimensions builds CloudWatch dimensions from name/value pairs.
func dimensions(kv ...string) []cwtypes.Dimension {
	dims := make([]cwtypes.Dimension, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		value := kv[i+1]
		if value == "" {
			value = "unknown"
		}
		dims = append(dims, cwtypes.Dimension{Name: aws.String(kv[i]), Value: aws.String(value)})
	}
	return dims
}

// NoopMetrics discards all telemetry. Used when no metric namespace is
// configured.
type NoopMetrics struct{}

func (NoopMetrics) RecordVerification(context.Context, types.VerificationResult) {}
func (NoopMetrics) RecordDispatch(context.Context, string, string, error) {}
func (NoopMetrics) RecordRequest(context.Context, string, string, int, time.Duration) {}
