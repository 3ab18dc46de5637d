// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"vidtube-auth/internal/security"
)

const (
	defaultAccessTTL     = 15 * time.Minute
	defaultRefreshTTL    = 240 * time.Hour // 10d
	defaultLoginCooldown = 15 * time.Minute

	// minProductionSecretBytes is the shortest HS256 secret accepted when APP_ENV=production.
	minProductionSecretBytes = 32
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the REST API listens on (e.g. :8000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health server listens on.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// MetricsAddr serves Prometheus /metrics; empty disables it.
	MetricsAddr string `mapstructure:"METRICS_ADDR"`
	// DatabaseURL is the Postgres DSN. Empty selects the in-memory store (not allowed in production).
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// AccessTokenSecret signs access tokens. A "file:" prefix reads it from a file.
	AccessTokenSecret string `mapstructure:"ACCESS_TOKEN_SECRET"`
	// RefreshTokenSecret signs refresh tokens and must differ from AccessTokenSecret.
	RefreshTokenSecret string `mapstructure:"REFRESH_TOKEN_SECRET"`
	// AccessTokenExpiry is the access token lifetime (e.g. "15m").
	AccessTokenExpiry string `mapstructure:"ACCESS_TOKEN_EXPIRY"`
	// RefreshTokenExpiry is the refresh token lifetime (e.g. "240h").
	RefreshTokenExpiry string `mapstructure:"REFRESH_TOKEN_EXPIRY"`
	JWTIssuer          string `mapstructure:"JWT_ISSUER"`
	// BcryptCost is the bcrypt cost factor (4–31); default 10.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	CookieSecure bool   `mapstructure:"COOKIE_SECURE"`
	CookieDomain string `mapstructure:"COOKIE_DOMAIN"`

	// RedisAddr enables login throttling when set (e.g. localhost:6379).
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// LoginMaxAttempts is the number of failed logins allowed per identifier or IP within LoginCooldown.
	LoginMaxAttempts int    `mapstructure:"LOGIN_MAX_ATTEMPTS"`
	LoginCooldownRaw string `mapstructure:"LOGIN_COOLDOWN"`

	// OTel (optional). When the endpoint is set, traces, metrics and logs are exported over OTLP gRPC.
	OTelEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses; when set, auth events are published.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuthEventsKafkaTopic is the topic auth events are written to.
	AuthEventsKafkaTopic string `mapstructure:"AUTH_EVENTS_KAFKA_TOPIC"`

	LogFormat string `mapstructure:"LOG_FORMAT"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("METRICS_ADDR", ":9100")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("ACCESS_TOKEN_SECRET", "")
	v.SetDefault("REFRESH_TOKEN_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_EXPIRY", "15m")
	v.SetDefault("REFRESH_TOKEN_EXPIRY", "240h")
	v.SetDefault("JWT_ISSUER", "vidtube-auth")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_COOLDOWN", "15m")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "vidtube-auth")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUTH_EVENTS_KAFKA_TOPIC", "vidtube-auth-events")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if strings.TrimSpace(c.AccessTokenSecret) == "" || strings.TrimSpace(c.RefreshTokenSecret) == "" {
		return errors.New("config: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be set")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("config: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 10
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.LoginMaxAttempts <= 0 {
		return errors.New("config: LOGIN_MAX_ATTEMPTS must be positive")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.IsProduction() && c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set when APP_ENV=production")
	}
	access, err := parseDuration(c.AccessTokenExpiry, defaultAccessTTL)
	if err != nil {
		return fmt.Errorf("config: ACCESS_TOKEN_EXPIRY: %w", err)
	}
	refresh, err := parseDuration(c.RefreshTokenExpiry, defaultRefreshTTL)
	if err != nil {
		return fmt.Errorf("config: REFRESH_TOKEN_EXPIRY: %w", err)
	}
	if access >= refresh {
		return fmt.Errorf("config: ACCESS_TOKEN_EXPIRY (%s) must be shorter than REFRESH_TOKEN_EXPIRY (%s)", access, refresh)
	}
	if _, err := parseDuration(c.LoginCooldownRaw, defaultLoginCooldown); err != nil {
		return fmt.Errorf("config: LOGIN_COOLDOWN: %w", err)
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return strings.EqualFold(c.Env, "production") }

// TokenSecrets resolves both signing secrets (reading "file:" references) and
// checks that they differ and, in production, are long enough for HS256.
func (c *Config) TokenSecrets() (access, refresh []byte, err error) {
	access, err = security.LoadSecret(c.AccessTokenSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("config: ACCESS_TOKEN_SECRET: %w", err)
	}
	refresh, err = security.LoadSecret(c.RefreshTokenSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("config: REFRESH_TOKEN_SECRET: %w", err)
	}
	if subtle.ConstantTimeCompare(access, refresh) == 1 {
		return nil, nil, fmt.Errorf("config: %w", security.ErrSecretReuse)
	}
	if c.IsProduction() && (len(access) < minProductionSecretBytes || len(refresh) < minProductionSecretBytes) {
		return nil, nil, fmt.Errorf("config: token secrets must be at least %d bytes in production", minProductionSecretBytes)
	}
	return access, refresh, nil
}

// AccessTTL parses AccessTokenExpiry as a time.Duration. Returns 15m if unset;
// Load rejects invalid values.
func (c *Config) AccessTTL() time.Duration {
	return durationOr(c.AccessTokenExpiry, defaultAccessTTL)
}

// RefreshTTL parses RefreshTokenExpiry as a time.Duration. A trailing "d" is
// read as days ("10d"). Returns 240h if unset.
func (c *Config) RefreshTTL() time.Duration {
	return durationOr(c.RefreshTokenExpiry, defaultRefreshTTL)
}

// LoginCooldown is the window for the failed-login counters. Returns 15m if unset.
func (c *Config) LoginCooldown() time.Duration {
	return durationOr(c.LoginCooldownRaw, defaultLoginCooldown)
}

var errNonPositiveDuration = errors.New("duration must be positive")

// parseDuration reads a Go duration or a whole number of days ("10d"). An
// empty value yields fallback.
func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, err
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w, got %q", errNonPositiveDuration, s)
	}
	return d, nil
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := parseDuration(s, fallback)
	if err != nil {
		return fallback
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event publishing is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
