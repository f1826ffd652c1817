package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the configuration shared by every binary. Each binary validates the
// subset it needs with the Require* helpers.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`
	Locale      string `env:"LOCALE" envDefault:"ar"`

	TableName   string `env:"TABLE_NAME"`
	ParamPrefix string `env:"PARAM_PREFIX"`

	// Cognito
	UserPoolID    string `env:"COGNITO_USER_POOL_ID"`
	ClientID      string `env:"COGNITO_CLIENT_ID"`
	CognitoRegion string `env:"COGNITO_REGION"`
	JWKSURL       string `env:"JWKS_URL"`
	Issuer        string `env:"ISSUER"`
	Audience      string `env:"AUDIENCE"`
	SecretLength  int    `env:"SECRET_LENGTH" envDefault:"12"`

	// Change notifications
	RedisURL            string  `env:"REDIS_URL"`
	ChangeChannelPrefix string  `env:"CHANGE_CHANNEL_PREFIX" envDefault:"changes:"`
	FeedRefreshRate     float64 `env:"FEED_REFRESH_RATE" envDefault:"4"`

	// Chat media
	MediaBucket    string        `env:"MEDIA_BUCKET"`
	MediaUploadTTL time.Duration `env:"MEDIA_UPLOAD_TTL" envDefault:"15m"`

	// Retention
	RetentionHorizon     time.Duration `env:"RETENTION_HORIZON" envDefault:"168h"`
	RetentionCron        string        `env:"RETENTION_CRON" envDefault:"0 3 * * *"`
	RetentionTimezone    string        `env:"RETENTION_TIMEZONE" envDefault:"Africa/Cairo"`
	RetentionBatchSize   int           `env:"RETENTION_BATCH_SIZE" envDefault:"100"`
	RetentionConcurrency int           `env:"RETENTION_CONCURRENCY" envDefault:"4"`
	MetricsPort          int           `env:"METRICS_PORT" envDefault:"9102"`

	// Realtime gateway
	RealtimePort    int           `env:"REALTIME_PORT" envDefault:"8190"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if cfg.RetentionHorizon <= 0 {
		return nil, fmt.Errorf("RETENTION_HORIZON must be positive")
	}
	if cfg.SecretLength < 8 {
		return nil, fmt.Errorf("SECRET_LENGTH must be at least 8")
	}
	return cfg, nil
}

func required(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	return nil
}

// RequireStore checks the settings every binary touching the table needs.
func (c *Config) RequireStore() error {
	return required("TABLE_NAME", c.TableName)
}

// RequireIdentity checks the Cognito settings used for account management.
func (c *Config) RequireIdentity() error {
	return required(
		"COGNITO_USER_POOL_ID", c.UserPoolID,
		"COGNITO_CLIENT_ID", c.ClientID,
		"PARAM_PREFIX", c.ParamPrefix,
	)
}

// RequireTokens checks the settings used to verify ID tokens.
func (c *Config) RequireTokens() error {
	return required("JWKS_URL", c.JWKSURL, "ISSUER", c.Issuer, "AUDIENCE", c.Audience)
}

// RequireChanges checks the change notification bus settings.
func (c *Config) RequireChanges() error {
	return required("REDIS_URL", c.RedisURL)
}

// Location resolves the retention timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.RetentionTimezone)
	if err != nil {
		return nil, fmt.Errorf("load RETENTION_TIMEZONE %q: %w", c.RetentionTimezone, err)
	}
	return loc, nil
}

// Addr returns the realtime gateway listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.RealtimePort)
}

// MetricsAddr returns the sweeper daemon metrics listen address.
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf(":%d", c.MetricsPort)
}
