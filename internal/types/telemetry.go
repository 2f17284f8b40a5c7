package types

// Telemetry metric names for CloudWatch.
const (
	// Metric Names
	MetricWebhookVerification = "WebhookVerification"
	MetricEventDispatch       = "EventDispatch"

	// Dimension Keys
	DimResult    = "Result"
	DimEventType = "EventType"
	DimSink      = "Sink"

	// Default Metric Namespace
	MetricNamespace = "CommercePay"
)

// VerificationResult labels the outcome of a webhook signature check for
// metrics.
type VerificationResult string

const (
	VerificationValid   VerificationResult = "valid"
	VerificationInvalid VerificationResult = "invalid"
	VerificationMissing VerificationResult = "missing"
)
