package stripe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/MrEthical07/goAccount/billing"
)

const (
	// DefaultAPIVersion is the API version the SDK is pinned to.
	DefaultAPIVersion = stripeapi.APIVersion
	DefaultMaxRetries = 2
)

// Config configures a [Client].
type Config struct {
	SecretKey string
	// APIVersion must be empty or equal to [DefaultAPIVersion].
	APIVersion string
	// BaseURL overrides the API endpoint, for stripe-mock or tests.
	BaseURL    string
	MaxRetries int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client adapts the Stripe SDK to [billing.Processor].
type Client struct {
	api    *client.API
	logger *slog.Logger
}

var (
	// ErrMissingKey is returned by New without a secret key.
	ErrMissingKey = errors.New("stripe: secret key is required")
	// ErrAPIVersion is returned by New for an API version the SDK cannot speak.
	ErrAPIVersion = errors.New("stripe: unsupported API version")
)

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingKey
	}
	if cfg.APIVersion != "" && cfg.APIVersion != DefaultAPIVersion {
		return nil, fmt.Errorf("%w: %q, sdk is pinned to %q", ErrAPIVersion, cfg.APIVersion, DefaultAPIVersion)
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "stripe")

	backendCfg := &stripeapi.BackendConfig{
		HTTPClient:        cfg.HTTPClient,
		MaxNetworkRetries: stripeapi.Int64(int64(cfg.MaxRetries)),
		LeveledLogger:     leveledLogger{logger: logger},
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripeapi.String(strings.TrimRight(cfg.BaseURL, "/"))
	}
	backend := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendCfg)

	return &Client{
		api: client.New(cfg.SecretKey, &stripeapi.Backends{
			API:     backend,
			Connect: backend,
			Uploads: backend,
		}),
		logger: logger,
	}, nil
}

// APIError is a Stripe error response.
type APIError struct {
	StatusCode  int
	RequestID   string
	Type        string
	Code        string
	DeclineCode string
	Param       string
	Message     string

	err *stripeapi.Error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stripe: %d", e.StatusCode)
	if e.Type != "" {
		b.WriteString(" " + e.Type)
	}
	if e.Code != "" {
		b.WriteString(" (" + e.Code + ")")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.err }

// Is matches [billing.ErrNotFound] for missing objects.
func (e *APIError) Is(target error) bool {
	return target == billing.ErrNotFound &&
		(e.StatusCode == http.StatusNotFound || e.Code == string(stripeapi.ErrorCodeResourceMissing))
}

// apiError converts SDK errors into [*APIError]. Transport errors pass
// through unchanged.
func apiError(err error) error {
	var se *stripeapi.Error
	if !errors.As(err, &se) {
		return err
	}
	return &APIError{
		StatusCode:  se.HTTPStatusCode,
		RequestID:   se.RequestID,
		Type:        string(se.Type),
		Code:        string(se.Code),
		DeclineCode: string(se.DeclineCode),
		Param:       se.Param,
		Message:     se.Msg,
		err:         se,
	}
}

// params binds ctx to a request. Writes carry a fresh idempotency key that
// the SDK reuses across its retries.
func params(ctx context.Context, write bool) stripeapi.Params {
	p := stripeapi.Params{Context: ctx}
	if write {
		p.SetIdempotencyKey(uuid.NewString())
	}
	return p
}

type metadataSetter interface {
	AddMetadata(key, value string)
}

func addMetadata(p metadataSetter, metadata map[string]string) {
	for k, v := range metadata {
		p.AddMetadata(k, v)
	}
}

// leveledLogger routes SDK logging into slog.
type leveledLogger struct {
	logger *slog.Logger
}

func (l leveledLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l leveledLogger) Infof(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l leveledLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l leveledLogger) Errorf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

var _ billing.Processor = (*Client)(nil)
