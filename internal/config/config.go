// Package config defines the global configuration structure for the review
// notification service. Configuration is loaded once at process
// initialization and is immutable thereafter, following 12-Factor principles.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or invalid format fails the process immediately on
// startup (fail fast). The one deliberate exception is SLACK_TOKEN: its
// absence is valid and means the notifier is disabled entirely.
package config

import (
	"time"

	"reviewnotify/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used in configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"review-notify"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Slack         SlackConfig
	Review        ReviewConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Lock          LockConfig
	Server        ServerConfig
	Observability ObservabilityConfig

	// Build metadata (injected via ldflags, not env).
	Build BuildInfo
}

// SlackConfig holds the chat-platform credential and delivery settings.
type SlackConfig struct {
	// Token gates the whole notifier: when empty the feature does not attach
	// and events pass through unnotified.
	Token SecretString `envconfig:"SLACK_TOKEN"`

	// NotifyChannel is the shared channel for broadcasts and fallback notices.
	NotifyChannel string `envconfig:"SLACK_NOTIFY_CHANNEL" default:"swarm-reviews"`

	// UserCacheTTL bounds how long a resolved email -> user id mapping is
	// served from cache.
	UserCacheTTL time.Duration `envconfig:"USER_CACHE_TTL" default:"1h"`

	APIBaseURL  string        `envconfig:"SLACK_API_BASE_URL" default:"https://slack.com/api"`
	HTTPTimeout time.Duration `envconfig:"SLACK_HTTP_TIMEOUT" default:"10s"`
}

// Enabled reports whether a token was provided.
func (c SlackConfig) Enabled() bool {
	return c.Token.Unmask() != ""
}

// ReviewConfig holds the pieces used to build links back into the review UI.
type ReviewConfig struct {
	Hostname    string `envconfig:"REVIEW_HOSTNAME" validate:"required,hostname_port|hostname"`
	ExternalURL string `envconfig:"REVIEW_EXTERNAL_URL" validate:"omitempty,url"`
	// ServerID prefixes review paths on multi-server installations.
	ServerID string `envconfig:"REVIEW_SERVER_ID"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// ActivityQueue receives host activity events from the gateway.
	ActivityQueue string `envconfig:"SQS_ACTIVITY" validate:"required,url"`

	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// LockConfig tunes the distributed dedup lease. LeaseTTL bounds how long a
// crashed holder can keep a key locked; AcquireTimeout bounds how long an
// acquisition blocks before the dispatch attempt is abandoned.
type LockConfig struct {
	LeaseTTL       time.Duration `envconfig:"LOCK_LEASE_TTL" default:"60s"`
	AcquireTimeout time.Duration `envconfig:"LOCK_ACQUIRE_TIMEOUT" default:"10s"`
	PollInterval   time.Duration `envconfig:"LOCK_POLL_INTERVAL" default:"250ms"`
}

// ServerConfig holds the event gateway's HTTP settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`

	// SharedSecret authenticates the host platform's event hook. Empty
	// disables the check (local development only).
	SharedSecret SecretString `envconfig:"GATEWAY_SHARED_SECRET"`

	RequestTimeout time.Duration `envconfig:"GATEWAY_REQUEST_TIMEOUT" default:"29s"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"ReviewNotify"`
}

// BuildInfo holds build-time metadata injected via ldflags. These values are
// not populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates environment values could not be parsed into their
	// target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
