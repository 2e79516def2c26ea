package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	goAccount "github.com/MrEthical07/goAccount"
)

// Authenticator resolves a bearer token to a session. [*goAccount.Engine]
// implements it.
type Authenticator interface {
	ResolveSession(ctx context.Context, token string) (*goAccount.Session, error)
}

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Option configures the middleware constructors.
type Option func(*options)

type options struct {
	onError        ErrorHandler
	logger         *slog.Logger
	skipSuccessful bool
	message        string
}

// WithErrorHandler sets the rejection writer.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) { o.onError = h }
}

// WithLogger sets the logger used for backend failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.onError == nil {
		o.onError = defaultErrorHandler
	}
	return o
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	var limited *LimitError
	if asLimitError(err, &limited) {
		http.Error(w, limited.Message, http.StatusTooManyRequests)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// Authenticate requires a valid bearer access token. The resolved session is
// stored in the request context; read it with [goAccount.SessionFromContext].
// A missing token is reported as [goAccount.ErrUnauthorized]; every other
// failure is the error returned by the engine.
func Authenticate(auth Authenticator, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				o.onError(w, r, goAccount.ErrEngineNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				o.onError(w, r, goAccount.ErrUnauthorized)
				return
			}

			session, err := auth.ResolveSession(r.Context(), token)
			if err != nil {
				o.onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(goAccount.WithSession(r.Context(), session)))
		})
	}
}

// Optional resolves a bearer token when one is present. Any failure is
// ignored and the request proceeds without a session.
func Optional(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok || auth == nil {
				next.ServeHTTP(w, r)
				return
			}
			session, err := auth.ResolveSession(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(goAccount.WithSession(r.Context(), session)))
		})
	}
}

// ClientInfo copies the caller's address and User-Agent into the request
// context for audit events. Put it after chi's RealIP.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := goAccount.WithClientIP(r.Context(), clientIP(r))
		if ua := r.UserAgent(); ua != "" {
			ctx = goAccount.WithUserAgent(ctx, ua)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
