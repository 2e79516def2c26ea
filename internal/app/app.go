package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/billing"
	"github.com/MrEthical07/goAccount/broker"
	"github.com/MrEthical07/goAccount/credential"
	"github.com/MrEthical07/goAccount/internal/api"
	"github.com/MrEthical07/goAccount/internal/config"
	"github.com/MrEthical07/goAccount/internal/rate"
	otelexport "github.com/MrEthical07/goAccount/metrics/export/otel"
	"github.com/MrEthical07/goAccount/metrics/export/prometheus"
	"github.com/MrEthical07/goAccount/stripe"
	"github.com/MrEthical07/goAccount/webhook"
)

const shutdownTimeout = 30 * time.Second

// accountStore is what both credential backends provide.
type accountStore interface {
	credential.Store
	webhook.CustomerStore
	Purger
}

// App is a wired accountd instance.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	redis     *redis.Client
	pool      *pgxpool.Pool
	publisher broker.Publisher
	engine    *goAccount.Engine
	meters    *otelexport.Exporter
	scheduler *Scheduler
	handler   http.Handler
}

// New connects every backend named by cfg and builds the HTTP handler.
// Postgres is used for accounts and the webhook ledger when DATABASE_URL is
// set; Redis serves them otherwise. A missing or unreachable broker falls
// back to logging events.
func New(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	var (
		store  accountStore
		ledger webhook.Ledger
		pruner Pruner
	)
	if cfg.DatabaseURL != "" {
		a.pool, err = connectPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = credential.NewPostgresStore(a.pool)
		pg := webhook.NewPostgresLedger(a.pool, 0)
		ledger, pruner = pg, pg
	} else {
		logger.Warn("DATABASE_URL not set, storing accounts in redis")
		retention, _ := config.ParseDuration(cfg.WebhookRetention)
		store = credential.NewRedisStore(a.redis, "account")
		ledger = webhook.NewRedisLedger(a.redis, "webhook", 0, retention)
	}

	a.publisher = connectBroker(cfg, logger)

	var orchestrator *billing.Orchestrator
	if cfg.FeatureStripePayments {
		client, err := stripe.New(stripe.Config{
			SecretKey:  cfg.StripeSecretKey,
			APIVersion: cfg.StripeAPIVersion,
			BaseURL:    cfg.StripeAPIBaseURL,
			Logger:     logger.With("component", "stripe"),
		})
		if err != nil {
			return nil, err
		}
		orchestrator = billing.NewOrchestrator(client, billing.Config{Logger: logger.With("component", "billing")})
	}

	engineCfg, err := cfg.Engine()
	if err != nil {
		return nil, err
	}
	builder := goAccount.New().
		WithConfig(engineCfg).
		WithStore(store).
		WithRedis(a.redis).
		WithNotifier(NewEmailNotifier(a.publisher, cfg.AppURL+cfg.APIPrefix+"/auth", logger)).
		WithAuditSink(goAccount.SlogSink{Logger: logger.With("component", "audit")}).
		WithLogger(logger)
	if orchestrator != nil {
		builder = builder.WithCustomerProvisioner(orchestrator)
	}
	a.engine, err = builder.Build()
	if err != nil {
		return nil, err
	}

	a.meters, err = otelexport.New(otel.Meter("github.com/MrEthical07/goAccount"), a.engine)
	if err != nil {
		return nil, err
	}

	apiCfg := api.Config{
		Production:      cfg.IsProduction(),
		Version:         version,
		APIPrefix:       cfg.APIPrefix,
		CORSOrigins:     cfg.CORSOrigins(),
		CORSCredentials: cfg.CORSCredentials,
		APIRule:         rate.Rule{Name: "api", Limit: cfg.RateLimitMaxRequests, Window: cfg.RateLimitWindow()},
		SkipSuccessful:  cfg.RateLimitSkipSuccessful,
		Accounts:        a.engine,
		Limiter:         rate.New(a.redis, "rl"),
		Metrics:         prometheus.NewExporter(a.engine, a.poolGauges()...).Handler(),
		Checks:          a.checks(),
		Logger:          logger,
	}
	if orchestrator != nil {
		apiCfg.Billing = orchestrator
		if cfg.StripeWebhookSecret != "" {
			reconciler, err := webhook.NewReconciler(webhook.Config{
				Secret:    cfg.StripeWebhookSecret,
				Ledger:    ledger,
				Publisher: a.publisher,
				Customers: store,
				Logger:    logger,
			})
			if err != nil {
				return nil, err
			}
			apiCfg.Webhooks = reconciler
		}
	}

	server, err := api.NewServer(apiCfg)
	if err != nil {
		return nil, err
	}
	a.handler = server.Routes()

	retention, err := config.ParseDuration(cfg.WebhookRetention)
	if err != nil {
		return nil, err
	}
	a.scheduler = NewScheduler(NewHousekeeping(store, pruner, retention, logger), cfg.HousekeepingSchedule, logger)
	return a, nil
}

func connectPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if cfg.DBPoolSize > 0 {
		poolCfg.MaxConns = int32(cfg.DBPoolSize)
	}
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func connectBroker(cfg *config.Config, logger *slog.Logger) broker.Publisher {
	fallback := broker.LogPublisher{Logger: logger.With("component", "broker")}
	if cfg.RabbitMQURL == "" {
		return fallback
	}
	producer, err := broker.NewEventProducer(cfg.RabbitMQURL, cfg.RabbitMQExchange, logger.With("component", "broker"))
	if err != nil {
		logger.Warn("broker unavailable, events will only be logged", "error", err)
		return fallback
	}
	return producer
}

func (a *App) checks() []api.Check {
	checks := []api.Check{{Name: "redis", Probe: func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }}}
	if a.pool != nil {
		checks = append(checks, api.Check{Name: "postgres", Probe: a.pool.Ping})
	}
	return checks
}

func (a *App) poolGauges() []prometheus.Gauge {
	gauges := []prometheus.Gauge{{
		Name:  "goaccount_redis_pool_connections",
		Help:  "Open connections in the Redis pool.",
		Value: func() float64 { return float64(a.redis.PoolStats().TotalConns) },
	}}
	if a.pool != nil {
		gauges = append(gauges,
			prometheus.Gauge{
				Name:  "goaccount_db_pool_acquired",
				Help:  "Postgres connections currently in use.",
				Value: func() float64 { return float64(a.pool.Stat().AcquiredConns()) },
			},
			prometheus.Gauge{
				Name:  "goaccount_db_pool_total",
				Help:  "Postgres connections open.",
				Value: func() float64 { return float64(a.pool.Stat().TotalConns()) },
			},
		)
	}
	return gauges
}

// Handler is the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP and runs housekeeping until ctx is cancelled, then shuts
// both down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", srv.Addr, "env", a.cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", "error", err)
	}
	select {
	case <-a.scheduler.Stop().Done():
	case <-shutdownCtx.Done():
	}
	a.logger.Info("server stopped")
	return serveErr
}

// Close releases every backend. Safe on a partially built App.
func (a *App) Close() {
	if a.meters != nil {
		_ = a.meters.Close()
	}
	if a.engine != nil {
		a.engine.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("broker close failed", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
