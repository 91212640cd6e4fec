// Package config defines the process configuration for the notification
// service. Configuration is loaded once at startup and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any invalid value causes startup to fail before the server listens.
package config

import (
	"time"

	"cinotify/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import types just to unmask a credential.
type SecretString = types.SecretString

// Backend names shared by the rate limiter and the deduplication store.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config is the top-level configuration struct. Sub-components receive only
// the subsection they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"cinotify"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Dedup         DedupConfig
	Dispatch      DispatchConfig
	Health        HealthConfig
	Database      DatabaseConfig
	Webhook       WebhookConfig
	Email         EmailConfig
	OrgConfig     OrgConfigSource
	Observability ObservabilityConfig
	AWS           AWSConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// AuthConfig holds the credential store: the shared signing secret for
// signed tokens and the org:key table for static keys. At least one must be
// configured or no request can ever authenticate.
type AuthConfig struct {
	JWTSecret  SecretString  `envconfig:"JWT_SECRET" validate:"required_without=APIKeys"`
	APIKeys    SecretString  `envconfig:"API_KEYS" validate:"required_without=JWTSecret"`
	Issuer     string        `envconfig:"JWT_ISSUER" default:"cinotify"`
	DefaultTTL time.Duration `envconfig:"JWT_DEFAULT_TTL" default:"720h" validate:"gt=0"`
}

// RateLimitConfig controls per-organization admission on /notify.
type RateLimitConfig struct {
	Backend       string        `envconfig:"RATE_LIMIT_BACKEND" default:"memory" validate:"oneof=memory postgres"`
	Limit         int           `envconfig:"RATE_LIMIT_MAX" default:"100" validate:"gt=0"`
	Window        time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m" validate:"gt=0"`
	Retention     time.Duration `envconfig:"RATE_LIMIT_RETENTION" default:"1h" validate:"gt=0"`
	SweepSchedule string        `envconfig:"RATE_LIMIT_SWEEP_SCHEDULE" default:"@every 10m" validate:"required"`
}

// DedupConfig controls the deduplication store.
type DedupConfig struct {
	Backend       string        `envconfig:"DEDUP_BACKEND" default:"memory" validate:"oneof=memory postgres"`
	PurgeMaxAge   time.Duration `envconfig:"DEDUP_PURGE_MAX_AGE" default:"24h" validate:"gt=0"`
	PurgeSchedule string        `envconfig:"DEDUP_PURGE_SCHEDULE" default:"@every 15m" validate:"required"`
}

// DispatchConfig controls channel fan-out and the administrative error channel.
type DispatchConfig struct {
	ChannelTimeout     time.Duration `envconfig:"DISPATCH_CHANNEL_TIMEOUT" default:"10s" validate:"gt=0"`
	AdminWebhookURL    string        `envconfig:"ADMIN_WEBHOOK_URL" validate:"omitempty,url"`
	AdminNoticeTimeout time.Duration `envconfig:"ADMIN_NOTICE_TIMEOUT" default:"5s" validate:"gt=0"`
}

// HealthConfig controls probe execution and the background monitor.
type HealthConfig struct {
	Timeout         time.Duration `envconfig:"HEALTH_TIMEOUT" default:"2s" validate:"gt=0"`
	MonitorSchedule string        `envconfig:"HEALTH_MONITOR_SCHEDULE" default:"@every 1m"`
	SlowThreshold   time.Duration `envconfig:"HEALTH_SLOW_THRESHOLD" default:"1s" validate:"gt=0"`
	Version         string        `envconfig:"SERVICE_VERSION" default:"2.0.0"`
	MaxGoroutines   int           `envconfig:"HEALTH_MAX_GOROUTINES" default:"10000" validate:"gt=0"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
// The database is optional; it is required only by postgres backends.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL"`

	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// WebhookConfig holds settings for outbound webhook delivery.
type WebhookConfig struct {
	UserAgent      string        `envconfig:"WEBHOOK_USER_AGENT" default:"CINotify-Webhook/1.0"`
	DefaultTimeout time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s" validate:"gt=0"`
	MaxRedirects   int           `envconfig:"WEBHOOK_MAX_REDIRECTS" default:"3" validate:"gte=0"`
	// PerHostRate throttles outbound requests per destination host (req/s).
	PerHostRate   float64      `envconfig:"WEBHOOK_PER_HOST_RATE" default:"5" validate:"gt=0"`
	PerHostBurst  int          `envconfig:"WEBHOOK_PER_HOST_BURST" default:"10" validate:"gt=0"`
	SigningSecret SecretString `envconfig:"WEBHOOK_SIGNING_SECRET"`
	// AllowPrivateTargets disables SSRF protection. Local development only.
	AllowPrivateTargets bool `envconfig:"WEBHOOK_ALLOW_PRIVATE_TARGETS" default:"false"`
}

// EmailConfig holds SES email channel settings.
type EmailConfig struct {
	Enabled     bool   `envconfig:"EMAIL_ENABLED" default:"false"`
	FromAddress string `envconfig:"EMAIL_FROM_ADDRESS" default:"ci-alerts@example.com" validate:"omitempty,email"`
	FromName    string `envconfig:"EMAIL_FROM_NAME" default:"CI Notifications"`
}

// OrgConfigSource selects where organization configuration comes from.
type OrgConfigSource struct {
	Source string `envconfig:"ORG_CONFIG_SOURCE" default:"file" validate:"oneof=file postgres"`
	Path   string `envconfig:"ORG_CONFIG_PATH" default:"config/organizations.yaml"`
	Watch  bool   `envconfig:"ORG_CONFIG_WATCH" default:"true"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=prometheus cloudwatch none"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"CINotify"`
}

// AWSConfig holds AWS regional configuration used by SSM, SES and CloudWatch.
type AWSConfig struct {
	Region      string `envconfig:"AWS_REGION" default:"us-east-1"`
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// UsesPostgres reports whether any component needs a database connection.
func (c *Config) UsesPostgres() bool {
	return c.RateLimit.Backend == BackendPostgres ||
		c.Dedup.Backend == BackendPostgres ||
		c.OrgConfig.Source == BackendPostgres
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
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
