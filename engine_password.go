package goAccount

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAccount/internal"
	"github.com/MrEthical07/goAccount/internal/flows"
	"github.com/MrEthical07/goAccount/internal/limiters"
)

// ChangePassword replaces the password of an authenticated account after
// checking the current one.
func (e *Engine) ChangePassword(ctx context.Context, accountID, current, next string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if current == "" || next == "" {
		return ErrInvalidInput
	}
	kind, err := flows.RunChangePassword(ctx, accountID, current, next, e.passwordFlowDeps())
	return mapPasswordFailure(kind, err)
}

// RequestPasswordReset mails a reset token to email when an active account
// holds it. The result is the same whether or not the account exists, except
// when the address has exhausted its request budget.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	kind, err := flows.RunRequestPasswordReset(ctx, email, e.passwordFlowDeps())
	return mapPasswordFailure(kind, err)
}

// ResetPassword consumes a reset token, sets the new password and revokes
// every refresh token of the account.
func (e *Engine) ResetPassword(ctx context.Context, token, next string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if next == "" {
		return ErrInvalidInput
	}
	kind, err := flows.RunResetPassword(ctx, token, next, e.passwordFlowDeps())
	return mapPasswordFailure(kind, err)
}

func (e *Engine) passwordFlowDeps() flows.PasswordDeps {
	deps := flows.PasswordDeps{
		Hooks:            e.hooks(),
		Store:            e.store,
		ValidatePassword: e.validatePassword,
		HashPassword:     e.passwords.Hash,
		VerifyPassword:   e.passwords.Verify,
		ResetTTL:         e.config.PasswordReset.TokenTTL,
		NewSecret:        internal.NewSecret,
		DigestToken:      internal.DigestToken,
		IsRateLimited: func(err error) bool {
			return errors.Is(err, limiters.ErrChallengeRateLimited)
		},
	}
	if e.challenges != nil {
		deps.CheckRateLimit = e.challenges.CheckReset
	}
	if e.notifier != nil {
		deps.SendResetEmail = e.notifier.SendPasswordReset
	}
	deps.Metrics.ChangeSuccess = int(MetricPasswordChangeSuccess)
	deps.Metrics.ChangeInvalidOld = int(MetricPasswordChangeInvalidOld)
	deps.Metrics.ResetRequest = int(MetricPasswordResetRequest)
	deps.Metrics.ResetSuccess = int(MetricPasswordResetSuccess)
	deps.Metrics.ResetFailure = int(MetricPasswordResetFailure)
	deps.Metrics.RateLimited = int(MetricChallengeRateLimited)
	deps.Events.Change = auditEventPasswordChange
	deps.Events.ResetRequest = auditEventPasswordResetRequest
	deps.Events.ResetConfirm = auditEventPasswordResetConfirm
	return deps
}

func mapPasswordFailure(kind flows.PasswordFailureKind, err error) error {
	switch kind {
	case flows.PasswordFailureNone:
		return nil
	case flows.PasswordFailureNotFound:
		return ErrAccountNotFound
	case flows.PasswordFailureCurrentIncorrect:
		return ErrCurrentPasswordIncorrect
	case flows.PasswordFailurePolicy:
		return err
	case flows.PasswordFailureReuse:
		return ErrPasswordReuse
	case flows.PasswordFailureTokenInvalid:
		return ErrPasswordResetInvalid
	case flows.PasswordFailureRateLimited:
		return ErrChallengeRateLimited
	default:
		return unavailable(err)
	}
}
