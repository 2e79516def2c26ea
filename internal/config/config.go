// Package config loads the accountd service settings from the environment,
// an optional .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	goAccount "github.com/MrEthical07/goAccount"
)

// Config stores all settings of the service.
type Config struct {
	Env       string `mapstructure:"APP_ENV"`
	AppName   string `mapstructure:"APP_NAME"`
	Host      string `mapstructure:"APP_HOST"`
	Port      int    `mapstructure:"APP_PORT"`
	AppURL    string `mapstructure:"APP_URL"`
	APIPrefix string `mapstructure:"API_PREFIX"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`

	JWTSecret           string `mapstructure:"JWT_SECRET"`
	JWTExpiresIn        string `mapstructure:"JWT_EXPIRES_IN"`
	JWTRefreshSecret    string `mapstructure:"JWT_REFRESH_SECRET"`
	JWTRefreshExpiresIn string `mapstructure:"JWT_REFRESH_EXPIRES_IN"`
	BcryptRounds        int    `mapstructure:"BCRYPT_ROUNDS"`
	PasswordAlgorithm   string `mapstructure:"PASSWORD_ALGORITHM"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBPoolSize  int    `mapstructure:"DB_POOL_SIZE"`

	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     int    `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripeAPIVersion    string `mapstructure:"STRIPE_API_VERSION"`
	StripeAPIBaseURL    string `mapstructure:"STRIPE_API_BASE_URL"`

	RabbitMQURL      string `mapstructure:"RABBITMQ_URL"`
	RabbitMQExchange string `mapstructure:"RABBITMQ_EXCHANGE"`

	RateLimitWindowMS       int  `mapstructure:"RATE_LIMIT_WINDOW_MS"`
	RateLimitMaxRequests    int  `mapstructure:"RATE_LIMIT_MAX_REQUESTS"`
	RateLimitSkipSuccessful bool `mapstructure:"RATE_LIMIT_SKIP_SUCCESSFUL_REQUESTS"`

	CORSOrigin      string `mapstructure:"CORS_ORIGIN"`
	CORSCredentials bool   `mapstructure:"CORS_CREDENTIALS"`

	HousekeepingSchedule string `mapstructure:"HOUSEKEEPING_SCHEDULE"`
	WebhookRetention     string `mapstructure:"WEBHOOK_RETENTION"`

	FeatureStripePayments bool `mapstructure:"FEATURE_STRIPE_PAYMENTS"`
}

var defaults = map[string]any{
	"APP_ENV":                             "development",
	"APP_NAME":                            "goAccount",
	"APP_HOST":                            "0.0.0.0",
	"APP_PORT":                            3000,
	"APP_URL":                             "http://localhost:3000",
	"API_PREFIX":                          "/api/v1",
	"LOG_LEVEL":                           "info",
	"JWT_EXPIRES_IN":                      "7d",
	"JWT_REFRESH_EXPIRES_IN":              "30d",
	"BCRYPT_ROUNDS":                       12,
	"PASSWORD_ALGORITHM":                  "bcrypt",
	"DB_POOL_SIZE":                        10,
	"REDIS_HOST":                          "localhost",
	"REDIS_PORT":                          6379,
	"REDIS_DB":                            0,
	"STRIPE_API_VERSION":                  "2023-10-16",
	"RABBITMQ_EXCHANGE":                   "billing_events",
	"RATE_LIMIT_WINDOW_MS":                15 * 60 * 1000,
	"RATE_LIMIT_MAX_REQUESTS":             100,
	"RATE_LIMIT_SKIP_SUCCESSFUL_REQUESTS": false,
	"CORS_ORIGIN":                         "*",
	"CORS_CREDENTIALS":                    true,
	"HOUSEKEEPING_SCHEDULE":               "@every 1h",
	"WEBHOOK_RETENTION":                   "30d",
	"FEATURE_STRIPE_PAYMENTS":             true,
}

var bound = []string{
	"JWT_SECRET",
	"JWT_REFRESH_SECRET",
	"DATABASE_URL",
	"REDIS_PASSWORD",
	"STRIPE_SECRET_KEY",
	"STRIPE_WEBHOOK_SECRET",
	"STRIPE_API_BASE_URL",
	"RABBITMQ_URL",
}

// Load reads .env from dir (when present) into the process environment, then
// resolves every setting from configFile, the environment and the defaults,
// in that order of precedence: environment over file over default.
func Load(dir, configFile string) (*Config, error) {
	if dir == "" {
		dir = "."
	}
	if err := godotenv.Load(strings.TrimSuffix(dir, "/") + "/.env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range bound {
		_ = v.BindEnv(key)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings needed to start the service.
func (c *Config) Validate() error {
	switch c.Env {
	case "production", "development", "test":
	default:
		return fmt.Errorf("APP_ENV must be production, development or test, got %q", c.Env)
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if len(c.JWTRefreshSecret) < 32 {
		return errors.New("JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if _, err := ParseDuration(c.JWTExpiresIn); err != nil {
		return fmt.Errorf("JWT_EXPIRES_IN: %w", err)
	}
	if _, err := ParseDuration(c.JWTRefreshExpiresIn); err != nil {
		return fmt.Errorf("JWT_REFRESH_EXPIRES_IN: %w", err)
	}
	if _, err := ParseDuration(c.WebhookRetention); err != nil {
		return fmt.Errorf("WEBHOOK_RETENTION: %w", err)
	}
	switch c.PasswordAlgorithm {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("PASSWORD_ALGORITHM must be bcrypt or argon2id, got %q", c.PasswordAlgorithm)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("APP_PORT out of range: %d", c.Port)
	}
	if c.RateLimitWindowMS <= 0 || c.RateLimitMaxRequests <= 0 {
		return errors.New("RATE_LIMIT_WINDOW_MS and RATE_LIMIT_MAX_REQUESTS must be > 0")
	}
	if c.FeatureStripePayments && c.StripeSecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is required when FEATURE_STRIPE_PAYMENTS is on")
	}
	if c.IsProduction() && c.StripeWebhookSecret == "" && c.FeatureStripePayments {
		return errors.New("STRIPE_WEBHOOK_SECRET is required in production")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// Addr is the HTTP listen address.
func (c *Config) Addr() string { return c.Host + ":" + strconv.Itoa(c.Port) }

// RedisAddr is the host:port of the Redis server.
func (c *Config) RedisAddr() string { return c.RedisHost + ":" + strconv.Itoa(c.RedisPort) }

// RateLimitWindow is the general API budget window.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMS) * time.Millisecond
}

// CORSOrigins splits CORS_ORIGIN on commas.
func (c *Config) CORSOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// Engine builds the goAccount engine configuration. Verified email is only
// required in production.
func (c *Config) Engine() (goAccount.Config, error) {
	access, err := ParseDuration(c.JWTExpiresIn)
	if err != nil {
		return goAccount.Config{}, err
	}
	refresh, err := ParseDuration(c.JWTRefreshExpiresIn)
	if err != nil {
		return goAccount.Config{}, err
	}

	cfg := goAccount.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(c.JWTSecret)
	cfg.JWT.RefreshSecret = []byte(c.JWTRefreshSecret)
	cfg.JWT.AccessTTL = access
	cfg.JWT.RefreshTTL = refresh
	if c.PasswordAlgorithm != "" {
		cfg.Password.Algorithm = c.PasswordAlgorithm
	}
	cfg.Password.BcryptCost = c.BcryptRounds
	cfg.Session.RequireVerifiedEmail = c.IsProduction()
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.ProductionMode = c.IsProduction()
	return cfg, cfg.Validate()
}

// ParseDuration accepts Go durations plus a day suffix ("7d") and bare
// millisecond counts ("900000").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms <= 0 {
			return 0, fmt.Errorf("duration must be positive: %q", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %q", s)
	}
	return d, nil
}
