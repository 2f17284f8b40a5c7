// Package config defines the configuration for the commercepay binaries.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails LoadConfig; binaries
// exit on that error.
package config

import (
	"time"

	"commercepay/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import types for secret fields.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the subset they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Commerce      CommerceConfig
	Webhook       WebhookConfig
	Notify        NotifyConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not Env.
	Build BuildInfo
}

// ServerConfig holds HTTP listener settings for the webhook receiver.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080" validate:"numeric"`
}

// CommerceConfig holds Coinbase Commerce API credentials.
type CommerceConfig struct {
	APIKey     SecretString  `envconfig:"COINBASE_COMMERCE_API_KEY"`
	APIVersion string        `envconfig:"COINBASE_COMMERCE_API_VERSION" default:"2018-03-22"`
	BaseURL    string        `envconfig:"COINBASE_COMMERCE_BASE_URL" validate:"omitempty,url"` // tests and sandboxes only
	Timeout    time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gt=0"`
}

// WebhookConfig holds the shared secret used to verify webhook deliveries.
type WebhookConfig struct {
	Secret SecretString `envconfig:"COINBASE_WEBHOOK_SECRET"`
}

// NotifyConfig selects downstream sinks for verified events. Empty values
// disable the corresponding sink.
type NotifyConfig struct {
	DiscordWebhookURL SecretString `envconfig:"DISCORD_WEBHOOK_URL"`
	DiscordFooter     string       `envconfig:"DISCORD_FOOTER_TEXT" default:"Coinbase Commerce"`
	EventQueueURL     string       `envconfig:"EVENT_QUEUE_URL" validate:"omitempty,url"`
}

// AWSConfig holds regional configuration for the SDK clients.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// ObservabilityConfig holds telemetry settings. An empty namespace disables
// CloudWatch metrics.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a value could not be parsed into its field type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
