package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/aryan0dhankhar/propertyhub/internal/featureflags"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

const minSecretLen = 32

// Config holds the application configuration. It is built once by Load and
// handed to every component that needs it.
type Config struct {
	Environment        string   `env:"ENVIRONMENT" envDefault:"development"`
	AppName            string   `env:"APP_NAME" envDefault:"propertyhub"`
	LogLevel           string   `env:"LOG_LEVEL"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`

	Server       ServerConfig       `envPrefix:"SERVER_"`
	Database     DatabaseConfig     `envPrefix:"DATABASE_"`
	Auth         AuthConfig         `envPrefix:""`
	Redis        RedisConfig        `envPrefix:"REDIS_"`
	RateLimit    RateLimitConfig    `envPrefix:"RATE_LIMIT_"`
	Uploads      UploadConfig       `envPrefix:"UPLOAD_"`
	Integrations IntegrationsConfig `envPrefix:""`
	Telemetry    TelemetryConfig    `envPrefix:""`

	Flags featureflags.Flags
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `env:"PORT" envDefault:"8000"`
	APIPrefix       string        `env:"API_PREFIX" envDefault:"/api/v1"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DatabaseConfig configures the connection pool and session scope.
type DatabaseConfig struct {
	URL              string        `env:"URL"`
	PoolSize         int           `env:"POOL_SIZE" envDefault:"10"`
	MaxIdle          int           `env:"MAX_IDLE" envDefault:"5"`
	PoolRecycle      time.Duration `env:"POOL_RECYCLE" envDefault:"30m"`
	StatementTimeout time.Duration `env:"STATEMENT_TIMEOUT" envDefault:"30s"`
	Echo             string        `env:"ECHO"`

	// EchoSQL is Echo resolved against the environment default.
	EchoSQL bool
}

// AuthConfig configures the credential manager.
type AuthConfig struct {
	SecretKey                string `env:"SECRET_KEY"`
	Issuer                   string `env:"JWT_ISSUER" envDefault:"propertyhub"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`
	BcryptCost               int    `env:"BCRYPT_COST" envDefault:"12"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenExpireMinutes) * time.Minute
}

// RedisConfig configures the login lockout store. An empty URL disables it.
type RedisConfig struct {
	URL                string        `env:"URL"`
	LoginMaxFailures   int           `env:"LOGIN_MAX_FAILURES" envDefault:"5"`
	LoginLockoutWindow time.Duration `env:"LOGIN_LOCKOUT_WINDOW" envDefault:"15m"`
}

// RateLimitConfig configures the per-client limiter on authentication routes.
type RateLimitConfig struct {
	Requests int           `env:"REQUESTS" envDefault:"60"`
	Window   time.Duration `env:"WINDOW" envDefault:"1m"`
}

// UploadConfig is passed through to the file handling collaborators.
type UploadConfig struct {
	MaxSizeBytes int64    `env:"MAX_SIZE" envDefault:"10485760"`
	AllowedTypes []string `env:"ALLOWED_TYPES" envSeparator:"," envDefault:"image/jpeg,image/png,application/pdf"`
}

// IntegrationsConfig carries third-party keys untouched; nothing in this
// service talks to these providers directly.
type IntegrationsConfig struct {
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	TwilioAccountSID    string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken     string `env:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber   string `env:"TWILIO_PHONE_NUMBER"`
	SendGridAPIKey      string `env:"SENDGRID_API_KEY"`
	EmailFrom           string `env:"EMAIL_FROM"`
	AWSAccessKeyID      string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion           string `env:"AWS_REGION"`
	S3BucketName        string `env:"S3_BUCKET_NAME"`
}

// TelemetryConfig configures trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	OTLPEndpoint string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string        `env:"OTEL_SERVICE_NAME" envDefault:"propertyhub"`
	StatsRefresh time.Duration `env:"STATS_REFRESH_INTERVAL" envDefault:"1m"`
}

// ConfigurationError reports a missing or invalid setting. It is fatal at startup.
type ConfigurationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err carries a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// Load reads configuration from the process environment, after merging an
// optional .env file from the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	return FromEnvironment(environMap(os.Environ()))
}

// FromEnvironment builds a validated Config from the given variables only.
func FromEnvironment(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, &ConfigurationError{Key: "environment", Reason: err.Error(), Err: err}
	}
	cfg.Flags = featureflags.FromEnvironment(vars)

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the service runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

func (c *Config) normalize() error {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	switch c.Environment {
	case EnvDevelopment, EnvTest, EnvStaging, EnvProduction:
	default:
		return &ConfigurationError{Key: "ENVIRONMENT", Reason: fmt.Sprintf("unknown environment %q", c.Environment)}
	}

	if strings.TrimSpace(c.Database.URL) == "" {
		return &ConfigurationError{Key: "DATABASE_URL", Reason: "required"}
	}
	if c.Auth.SecretKey == "" {
		return &ConfigurationError{Key: "SECRET_KEY", Reason: "required"}
	}
	if !c.IsDevelopment() && len(c.Auth.SecretKey) < minSecretLen {
		return &ConfigurationError{
			Key:    "SECRET_KEY",
			Reason: fmt.Sprintf("must be at least %d bytes outside development", minSecretLen),
		}
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		return &ConfigurationError{Key: "ACCESS_TOKEN_EXPIRE_MINUTES", Reason: "must be positive"}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ConfigurationError{Key: "SERVER_PORT", Reason: fmt.Sprintf("out of range: %d", c.Server.Port)}
	}
	c.Server.APIPrefix = "/" + strings.Trim(c.Server.APIPrefix, "/")

	if c.Database.PoolSize <= 0 {
		return &ConfigurationError{Key: "DATABASE_POOL_SIZE", Reason: "must be positive"}
	}
	if c.Database.MaxIdle < 0 || c.Database.MaxIdle > c.Database.PoolSize {
		c.Database.MaxIdle = c.Database.PoolSize
	}

	echo := strings.ToLower(strings.TrimSpace(c.Database.Echo))
	switch echo {
	case "":
		c.Database.EchoSQL = c.IsDevelopment()
	case "1", "true", "yes", "on":
		c.Database.EchoSQL = true
	default:
		c.Database.EchoSQL = false
	}

	if c.LogLevel == "" {
		if c.IsDevelopment() {
			c.LogLevel = "debug"
		} else {
			c.LogLevel = "info"
		}
	}

	if c.RateLimit.Requests <= 0 {
		c.RateLimit.Requests = 60
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}

	return nil
}

func environMap(environ []string) map[string]string {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		vars[key] = value
	}
	return vars
}
