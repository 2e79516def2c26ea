package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/MrEthical07/goAccount/middleware"
)

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestIDHeader)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(chimw.Timeout(s.cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: s.cfg.CORSCredentials,
		MaxAge:           86400,
	}))
	r.Use(middleware.ClientInfo)

	r.NotFound(s.notFound)
	r.MethodNotAllowed(s.methodNotAllowed)

	r.Get("/health", s.handleHealth)
	r.Get("/ping", s.handlePing)
	r.Get("/ready", s.handleReady)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	authenticate := middleware.Authenticate(s.accounts, middleware.WithErrorHandler(s.writeError), middleware.WithLogger(s.logger))

	r.Route(s.cfg.APIPrefix, func(r chi.Router) {
		// The processor signs the raw body; it must not pass through the
		// general budget or any body-consuming middleware.
		if s.webhooks != nil {
			r.Post("/webhooks/stripe", s.handleStripeWebhook)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit(s.cfg.APIRule, nil))

			r.Route("/auth", func(r chi.Router) {
				authLimit := s.rateLimit(s.cfg.AuthRule,
					[]middleware.Option{middleware.SkipSuccessful(), middleware.WithMessage("Too many authentication attempts, please try again later")})

				r.With(authLimit).Post("/register", s.handleRegister)
				r.With(authLimit).Post("/login", s.handleLogin)
				r.With(authLimit).Post("/refresh-token", s.handleRefresh)
				r.With(authLimit).Post("/forgot-password", s.handleForgotPassword)
				r.With(authLimit).Post("/reset-password", s.handleResetPassword)
				r.Get("/verify-email/{token}", s.handleVerifyEmail)

				r.Group(func(r chi.Router) {
					r.Use(authenticate)
					r.Post("/logout", s.handleLogout)
					r.Post("/logout-all", s.handleLogoutAll)
					r.Post("/change-password", s.handleChangePassword)
					r.With(authLimit).Post("/resend-verification", s.handleResendVerification)
				})
			})

			if s.billing != nil {
				r.Route("/payments", func(r chi.Router) {
					r.Use(authenticate)
					r.Use(s.rateLimit(s.cfg.PaymentRule, []middleware.Option{middleware.WithMessage("Too many payment requests, please slow down")}))

					r.Post("/intent", s.handleCreateIntent)
					r.Post("/charge", s.handleCharge)
					r.Post("/charge-with-items", s.handleChargeWithItems)
					r.Post("/refund", s.handleRefund)
					r.Get("/history", s.handleHistory)
				})
			}

			r.Route("/customers", func(r chi.Router) {
				r.Use(authenticate)

				r.Get("/profile", s.handleGetProfile)
				r.Put("/profile", s.handleUpdateProfile)
				r.Delete("/account", s.handleDeleteAccount)

				if s.billing != nil {
					r.Get("/payment-methods", s.handleListPaymentMethods)
					r.Post("/payment-methods", s.handleAddPaymentMethod)
					r.Put("/payment-methods/{id}/default", s.handleSetDefaultPaymentMethod)
					r.Delete("/payment-methods/{id}", s.handleRemovePaymentMethod)
					r.Get("/invoices", s.handleListInvoices)
					r.Get("/invoices/{id}", s.handleGetInvoice)
					r.Get("/invoices/{id}/download", s.handleDownloadInvoice)
				}
			})
		})
	})

	return r
}

func (s *Server) rateLimit(rule rate.Rule, opts []middleware.Option) func(http.Handler) http.Handler {
	if s.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	opts = append([]middleware.Option{middleware.WithErrorHandler(s.writeError), middleware.WithLogger(s.logger)}, opts...)
	if rule.Name == s.cfg.APIRule.Name && s.cfg.SkipSuccessful {
		opts = append(opts, middleware.SkipSuccessful())
	}
	return middleware.RateLimit(s.limiter, rule, middleware.ClientKey, opts...)
}
