// Package api is the HTTP surface of accountd: the chi router, the handlers
// and the single conversion of errors into the response envelope.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/billing"
	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/MrEthical07/goAccount/middleware"
	"github.com/MrEthical07/goAccount/webhook"
)

// Accounts is the account engine as seen by the handlers.
// [*goAccount.Engine] implements it.
type Accounts interface {
	middleware.Authenticator
	Register(ctx context.Context, req goAccount.RegisterRequest) (*goAccount.AuthResult, error)
	Login(ctx context.Context, email, password string) (*goAccount.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (goAccount.TokenPair, error)
	Logout(ctx context.Context, accountID, refreshToken string) error
	LogoutAll(ctx context.Context, accountID string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, next string) error
	ChangePassword(ctx context.Context, accountID, current, next string) error
	VerifyEmail(ctx context.Context, token string) (string, error)
	ResendVerification(ctx context.Context, accountID string) error
	Profile(ctx context.Context, accountID string) (goAccount.AccountView, error)
	UpdateProfile(ctx context.Context, accountID string, upd goAccount.ProfileUpdate) (goAccount.AccountView, error)
	DeleteAccount(ctx context.Context, accountID, password, confirmation string) error
	Ping(ctx context.Context) error
}

// Billing is the payment orchestration used by the payment and customer
// handlers. [*billing.Orchestrator] implements it.
type Billing interface {
	PaymentMethods(ctx context.Context, customerID string) ([]billing.PaymentMethod, error)
	AddPaymentMethod(ctx context.Context, customerID, paymentMethodID string, makeDefault bool) (*billing.PaymentMethod, error)
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	RemovePaymentMethod(ctx context.Context, paymentMethodID string) error
	ChargeInvoice(ctx context.Context, req billing.ChargeRequest) (*billing.ChargeResult, error)
	CreatePaymentIntent(ctx context.Context, req billing.IntentRequest) (*billing.PaymentIntent, error)
	Refund(ctx context.Context, req billing.RefundRequest) (*billing.Refund, error)
	History(ctx context.Context, customerID string, limit int, startingAfter string) (*billing.InvoicePage, error)
	Invoice(ctx context.Context, customerID, id string) (*billing.Invoice, error)
	InvoicePDF(ctx context.Context, customerID, id string) (string, error)
}

// Webhooks verifies and applies processor events. [*webhook.Reconciler]
// implements it.
type Webhooks interface {
	Handle(ctx context.Context, payload []byte, signature string) (webhook.Outcome, error)
}

// Check is a named readiness probe.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Config configures a [Server].
type Config struct {
	Production      bool
	Version         string
	APIPrefix       string
	CORSOrigins     []string
	CORSCredentials bool
	RequestTimeout  time.Duration

	// APIRule is the general per-client budget. AuthRule and PaymentRule
	// default to the middleware package rules.
	APIRule        rate.Rule
	AuthRule       rate.Rule
	PaymentRule    rate.Rule
	SkipSuccessful bool

	Accounts Accounts
	Billing  Billing
	Webhooks Webhooks
	Limiter  middleware.Limiter
	Metrics  http.Handler
	Checks   []Check
	Logger   *slog.Logger
}

// Server holds the handler dependencies.
type Server struct {
	production bool
	version    string
	started    time.Time
	now        func() time.Time

	accounts Accounts
	billing  Billing
	webhooks Webhooks
	limiter  middleware.Limiter
	metrics  http.Handler
	checks   []Check
	logger   *slog.Logger
	cfg      Config
}

// NewServer validates cfg and returns a server ready for [Server.Routes].
func NewServer(cfg Config) (*Server, error) {
	if cfg.Accounts == nil {
		return nil, errors.New("api: accounts engine is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.AuthRule.Name == "" {
		cfg.AuthRule = middleware.AuthRule
	}
	if cfg.PaymentRule.Name == "" {
		cfg.PaymentRule = middleware.PaymentRule
	}
	if cfg.APIRule.Name == "" {
		cfg.APIRule = middleware.APIRule
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Server{
		production: cfg.Production,
		version:    cfg.Version,
		started:    time.Now(),
		now:        time.Now,
		accounts:   cfg.Accounts,
		billing:    cfg.Billing,
		webhooks:   cfg.Webhooks,
		limiter:    cfg.Limiter,
		metrics:    cfg.Metrics,
		checks:     cfg.Checks,
		logger:     cfg.Logger.With("component", "api"),
		cfg:        cfg,
	}, nil
}

// session returns the authenticated session. Routes that call it are always
// mounted behind Authenticate.
func session(r *http.Request) (goAccount.Session, error) {
	s, ok := goAccount.SessionFromContext(r.Context())
	if !ok {
		return goAccount.Session{}, goAccount.ErrUnauthorized
	}
	return s, nil
}
