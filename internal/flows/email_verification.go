package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAccount/credential"
)

// VerificationFailureKind classifies email verification failures.
type VerificationFailureKind int

const (
	VerificationFailureNone VerificationFailureKind = iota
	VerificationFailureInvalid
	VerificationFailureNotFound
	VerificationFailureAlreadyVerified
	VerificationFailureRateLimited
	VerificationFailureBackend
)

type VerificationStore interface {
	FindByID(ctx context.Context, id string, fields credential.Fields) (*credential.Account, error)
	SetVerificationToken(ctx context.Context, id, token string) error
	ConsumeVerificationToken(ctx context.Context, token string) (string, error)
}

// VerificationDeps captures email verification dependencies.
type VerificationDeps struct {
	Hooks
	Store            VerificationStore
	NewSecret        func() (string, error)
	CheckRateLimit   func(ctx context.Context, email string) error
	IsRateLimited    func(error) bool
	SendVerification func(ctx context.Context, email, token string) error

	Metrics struct {
		Request     int
		Success     int
		Failure     int
		RateLimited int
	}
	Events struct {
		Request string
		Confirm string
	}
}

// RunVerifyEmail consumes a verification token and marks the owning account
// verified. A token works once.
func RunVerifyEmail(ctx context.Context, token string, deps VerificationDeps) (string, VerificationFailureKind, error) {
	deps.normalize()
	if token == "" {
		deps.MetricInc(deps.Metrics.Failure)
		return "", VerificationFailureInvalid, nil
	}

	accountID, err := deps.Store.ConsumeVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, credential.ErrTokenNotFound) {
			deps.MetricInc(deps.Metrics.Failure)
			deps.EmitAudit(ctx, deps.Events.Confirm, false, "", nil, reason("invalid_token"))
			return "", VerificationFailureInvalid, nil
		}
		return "", VerificationFailureBackend, err
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Confirm, true, accountID, nil, nil)
	return accountID, VerificationFailureNone, nil
}

// RunResendVerification replaces the verification token of an authenticated,
// unverified account and mails the new one.
func RunResendVerification(ctx context.Context, accountID string, deps VerificationDeps) (VerificationFailureKind, error) {
	deps.normalize()

	account, err := deps.Store.FindByID(ctx, accountID, credential.FieldsNone)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return VerificationFailureNotFound, err
		}
		return VerificationFailureBackend, err
	}
	if account.EmailVerified {
		return VerificationFailureAlreadyVerified, nil
	}

	if deps.CheckRateLimit != nil {
		if err := deps.CheckRateLimit(ctx, account.Email); err != nil {
			if deps.IsRateLimited != nil && deps.IsRateLimited(err) {
				deps.MetricInc(deps.Metrics.RateLimited)
				deps.EmitAudit(ctx, deps.Events.Request, false, accountID, err, reason("rate_limited"))
				return VerificationFailureRateLimited, err
			}
			return VerificationFailureBackend, err
		}
	}

	token, err := deps.NewSecret()
	if err != nil {
		return VerificationFailureBackend, err
	}
	if err := deps.Store.SetVerificationToken(ctx, accountID, token); err != nil {
		return VerificationFailureBackend, err
	}
	if deps.SendVerification != nil {
		if err := deps.SendVerification(ctx, account.Email, token); err != nil {
			deps.Warn("verification email failed", "account_id", accountID, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.Request)
	deps.EmitAudit(ctx, deps.Events.Request, true, accountID, nil, nil)
	return VerificationFailureNone, nil
}
