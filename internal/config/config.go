// Package config defines the configuration structure for the crop advisor
// client and its local stub backend. Configuration is loaded once at process
// start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> struct tag defaults (Lowest)
//
// Any invalid value causes LoadConfig to return a *ConfigError so the process
// can exit before any session starts (fail fast).
package config

import (
	"time"
)

// Config is the top-level configuration struct. Sub-components receive only
// the config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"cropadvisor"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Domain Configurations
	API           APIConfig
	Session       SessionConfig
	Stub          StubConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// APIConfig holds the remote prediction service endpoint and client chassis
// tuning.
type APIConfig struct {
	// BaseURL is the constant prefix for /recommend and /weather (no trailing slash).
	BaseURL   string `envconfig:"ADVISOR_API_BASE_URL" default:"http://localhost:3001/api" validate:"required,url"`
	UserAgent string `envconfig:"ADVISOR_USER_AGENT" default:"CropAdvisor/1.0"`

	// Circuit breaker: consecutive transport/5xx failures before opening, and
	// how long the breaker stays open before a probe request.
	BreakerConsecutiveFailures uint32        `envconfig:"BREAKER_CONSECUTIVE_FAILURES" default:"5" validate:"min=1"`
	BreakerOpenTimeout         time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s" validate:"min=1s"`
}

// SessionConfig holds the recommendation session tuning.
type SessionConfig struct {
	DebounceWindow time.Duration `envconfig:"DEBOUNCE_WINDOW" default:"800ms" validate:"min=1ms"`
	CityMinLength  int           `envconfig:"CITY_MIN_LENGTH" default:"2" validate:"min=1"`
}

// StubConfig holds settings for the local stand-in prediction service.
type StubConfig struct {
	Port         string        `envconfig:"STUB_PORT" default:"3001" validate:"required,numeric"`
	Latency      time.Duration `envconfig:"STUB_LATENCY" default:"0s" validate:"min=0s"`
	RateLimitRPS float64       `envconfig:"STUB_RATE_LIMIT_RPS" default:"20" validate:"gt=0"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	// MetricsAddr is the listen address for /metrics on the client; empty disables it.
	MetricsAddr string `envconfig:"METRICS_ADDR" validate:"omitempty,hostname_port"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// IsLocal reports whether the process runs in local development mode.
func (c *Config) IsLocal() bool {
	return c.Environment == localEnv
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrDotenv indicates a .env file exists but could not be parsed.
	ErrDotenv ConfigErrorType = "DOTENV_FAILED"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
