package goAccount

import (
	"errors"
	"log/slog"

	"github.com/MrEthical07/goAccount/credential"
	internalaudit "github.com/MrEthical07/goAccount/internal/audit"
	"github.com/MrEthical07/goAccount/internal/limiters"
	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder can be built once.
type Builder struct {
	config Config
	store  credential.Store
	redis  redis.UniversalClient

	customers CustomerProvisioner
	notifier  Notifier
	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the engine configuration. The config is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the credential store. Required.
func (b *Builder) WithStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithRedis sets the Redis client backing the challenge-email throttles.
// Required when PasswordReset or EmailVerification throttling is on.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCustomerProvisioner enables billing customer provisioning on
// registration, profile sync and account deletion.
func (b *Builder) WithCustomerProvisioner(p CustomerProvisioner) *Builder {
	b.customers = p
	return b
}

// WithNotifier sets the account email transport.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the sink audit events are dispatched to. Auditing
// stays off unless Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. Defaults to [slog.Default].
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the session-resolution latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and assembles the engine. The Builder
// cannot be reused afterwards.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	throttled := cfg.PasswordReset.MaxRequests > 0 || cfg.EmailVerification.MaxRequests > 0
	if throttled && b.redis == nil {
		return nil, errors.New("challenge throttling requires redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- PASSWORDS --------
	passwords, err := password.New(password.Config{
		Algorithm:      password.Algorithm(cfg.Password.Algorithm),
		BcryptCost:     cfg.Password.BcryptCost,
		Argon2:         cfg.Password.Argon2,
		MaxConcurrency: cfg.Password.MaxConcurrency,
	})
	if err != nil {
		return nil, err
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret: cloneBytes(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		store:     b.store,
		passwords: passwords,
		tokens:    jm,
		customers: b.customers,
		notifier:  b.notifier,
		logger:    logger.With("component", "engine"),
	}

	engine.lockout = limiters.NewLockout(lockoutRecorder{store: b.store}, limiters.LockoutConfig{
		Enabled:   cfg.Lockout.Enabled,
		Threshold: cfg.Lockout.Threshold,
		Duration:  cfg.Lockout.Duration,
	})
	if b.redis != nil {
		engine.challenges = limiters.NewChallengeLimiter(rate.New(b.redis, "rl"),
			limiters.ChallengeConfig{MaxRequests: cfg.PasswordReset.MaxRequests, Window: cfg.PasswordReset.RequestWindow},
			limiters.ChallengeConfig{MaxRequests: cfg.EmailVerification.MaxRequests, Window: cfg.EmailVerification.RequestWindow},
		)
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
