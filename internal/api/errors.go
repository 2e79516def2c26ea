package api

import (
	"errors"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/apperr"
	"github.com/MrEthical07/goAccount/billing"
	"github.com/MrEthical07/goAccount/middleware"
	"github.com/MrEthical07/goAccount/webhook"
)

// accountErrors maps engine sentinels to their caller-facing form. Order
// matters: the first match wins.
var accountErrors = []struct {
	target error
	err    *apperr.Error
}{
	{goAccount.ErrUnauthorized, apperr.Authentication("No authentication token provided")},
	{goAccount.ErrTokenExpired, apperr.Authentication("Token has expired")},
	{goAccount.ErrTokenInvalid, apperr.Authentication("Invalid token")},
	{goAccount.ErrInvalidCredentials, apperr.Authentication("Invalid email or password")},
	{goAccount.ErrAccountLocked, apperr.Authentication("Account is locked due to multiple failed login attempts")},
	{goAccount.ErrAccountInactive, apperr.Authentication("Account is inactive or deleted")},
	{goAccount.ErrAccountUnverified, apperr.Authentication("Email not verified")},
	{goAccount.ErrRefreshInvalid, apperr.Authentication("Invalid refresh token")},
	{goAccount.ErrAccountNotFound, apperr.NotFound("Customer")},
	{goAccount.ErrAccountExists, apperr.Conflict("An account with this email already exists")},
	{goAccount.ErrPasswordReuse, apperr.Validation("New password must be different from current password", nil)},
	{goAccount.ErrCurrentPasswordIncorrect, apperr.Validation("Current password is incorrect", nil)},
	{goAccount.ErrPasswordResetInvalid, apperr.Validation("Invalid or expired reset token", nil)},
	{goAccount.ErrVerificationInvalid, apperr.Validation("Invalid verification token", nil)},
	{goAccount.ErrAlreadyVerified, apperr.Validation("Email already verified", nil)},
	{goAccount.ErrDeleteConfirmation, apperr.Validation(`Please type "DELETE" to confirm account deletion`, nil)},
	{goAccount.ErrInvalidPassword, apperr.Validation("Invalid password", nil)},
	{goAccount.ErrInvalidInput, apperr.Validation("Invalid input", nil)},
	{goAccount.ErrChallengeRateLimited, apperr.RateLimit("Too many requests for this email, please try again later")},
	{goAccount.ErrBillingUnavailable, apperr.ExternalService("Stripe", "Failed to create customer", nil)},
	{billing.ErrInvoiceNotFound, apperr.NotFound("Invoice")},
	{billing.ErrInvoicePDFMissing, apperr.NotFound("Invoice PDF")},
	{billing.ErrPaymentNotFound, apperr.NotFound("Payment")},
	{webhook.ErrMissingSignature, apperr.Payment("Missing Stripe signature", nil)},
	{webhook.ErrInvalidSignature, apperr.Payment("Invalid webhook signature", nil)},
}

// classify converts any handler error to an [*apperr.Error]. Unrecognised
// errors become non-operational internal errors.
func (s *Server) classify(err error) *apperr.Error {
	if ae, ok := apperr.As(err); ok {
		return ae
	}

	var limited *middleware.LimitError
	if errors.As(err, &limited) {
		return apperr.RateLimit(limited.Message).WithCause(err)
	}

	if errors.Is(err, goAccount.ErrPasswordPolicy) {
		return apperr.Validation("Password does not meet the requirements", err.Error()).WithCause(err)
	}

	for _, m := range accountErrors {
		if errors.Is(err, m.target) {
			return m.err.WithCause(err)
		}
	}

	if errors.Is(err, billing.ErrInvalidRequest) {
		return apperr.Validation("Invalid payment request", err.Error()).WithCause(err)
	}

	var be *billing.Error
	if errors.As(err, &be) {
		var details any
		if be.Err != nil {
			details = be.Err.Error()
		}
		if errors.Is(be.Kind, billing.ErrPayment) {
			return apperr.Payment(be.Message, details).WithCause(err)
		}
		return apperr.ExternalService("Stripe", be.Message, details).WithCause(err)
	}

	return apperr.Internal(err)
}

var errRefreshRequired = apperr.Authentication("Refresh token is required")
