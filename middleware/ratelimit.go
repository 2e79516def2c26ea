package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/internal/rate"
)

// Limiter is the counter backend of [RateLimit]. [*rate.Limiter] implements
// it.
type Limiter interface {
	Hit(ctx context.Context, rule rate.Rule, key string) (rate.Decision, error)
	Forgive(ctx context.Context, rule rate.Rule, key string) error
}

// KeyFunc derives the budget key of a request.
type KeyFunc func(r *http.Request) string

// LimitError is passed to the [ErrorHandler] when a budget is spent.
type LimitError struct {
	Rule     rate.Rule
	Decision rate.Decision
	Message  string
}

func (e *LimitError) Error() string { return e.Message }

func (e *LimitError) Unwrap() error { return rate.ErrRateLimited }

func asLimitError(err error, target **LimitError) bool {
	return errors.As(err, target)
}

// SkipSuccessful only charges requests that end with a status >= 400.
func SkipSuccessful() Option {
	return func(o *options) { o.skipSuccessful = true }
}

// WithMessage sets the message reported when the budget is spent.
func WithMessage(msg string) Option {
	return func(o *options) { o.message = msg }
}

// Predefined budgets.
var (
	AuthRule    = rate.Rule{Name: "auth", Limit: 5, Window: 15 * time.Minute}
	PaymentRule = rate.Rule{Name: "payment", Limit: 10, Window: time.Minute}
	APIRule     = rate.Rule{Name: "api", Limit: 100, Window: 15 * time.Minute}
)

// ClientKey keys a request by client address, plus the account id when a
// session is already attached.
func ClientKey(r *http.Request) string {
	key := clientIP(r)
	if key == "" {
		key = "unknown"
	}
	if s, ok := goAccount.SessionFromContext(r.Context()); ok {
		key += "-" + s.AccountID
	}
	return key
}

// RateLimit enforces rule per key. A limiter failure lets the request through
// and is logged.
func RateLimit(limiter Limiter, rule rate.Rule, keyFn KeyFunc, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	if keyFn == nil {
		keyFn = ClientKey
	}
	if o.message == "" {
		o.message = "Too many requests, please try again later"
	}
	logger := o.logger.With("component", "ratelimit", "rule", rule.Name)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			d, err := limiter.Hit(r.Context(), rule, key)
			switch {
			case errors.Is(err, rate.ErrRateLimited):
				setLimitHeaders(w, d)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter(d)))
				o.onError(w, r, &LimitError{Rule: rule, Decision: d, Message: o.message})
				return
			case err != nil:
				logger.Warn("rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			setLimitHeaders(w, d)

			if !o.skipSuccessful {
				next.ServeHTTP(w, r)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if status := ww.Status(); status == 0 || status < http.StatusBadRequest {
				if err := limiter.Forgive(context.WithoutCancel(r.Context()), rule, key); err != nil {
					logger.Warn("rate limiter forgive failed", "error", err)
				}
			}
		})
	}
}

func setLimitHeaders(w http.ResponseWriter, d rate.Decision) {
	if d.Limit <= 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func retryAfter(d rate.Decision) int {
	secs := int(time.Until(d.ResetAt).Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
