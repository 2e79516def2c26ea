package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/credential"
)

// PasswordFailureKind classifies password change and reset failures.
type PasswordFailureKind int

const (
	PasswordFailureNone PasswordFailureKind = iota
	PasswordFailureNotFound
	PasswordFailureCurrentIncorrect
	PasswordFailurePolicy
	PasswordFailureReuse
	PasswordFailureTokenInvalid
	PasswordFailureRateLimited
	PasswordFailureBackend
)

type PasswordStore interface {
	FindByID(ctx context.Context, id string, fields credential.Fields) (*credential.Account, error)
	FindByEmail(ctx context.Context, email string, fields credential.Fields) (*credential.Account, error)
	SetPasswordHash(ctx context.Context, id, hash string, revokeSessions bool) error
	SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error)
}

// PasswordDeps captures change and reset dependencies.
type PasswordDeps struct {
	Hooks
	Store PasswordStore

	ValidatePassword func(string) error
	HashPassword     func(ctx context.Context, password string) (string, error)
	VerifyPassword   func(ctx context.Context, password, hash string) (bool, error)

	ResetTTL        time.Duration
	NewSecret       func() (string, error)
	DigestToken     func(string) string
	CheckRateLimit  func(ctx context.Context, email string) error
	IsRateLimited   func(error) bool
	SendResetEmail  func(ctx context.Context, email, token string) error

	Metrics struct {
		ChangeSuccess    int
		ChangeInvalidOld int
		ResetRequest     int
		ResetSuccess     int
		ResetFailure     int
		RateLimited      int
	}
	Events struct {
		Change       string
		ResetRequest string
		ResetConfirm string
	}
}

// RunChangePassword replaces the password of an authenticated account after
// checking the current one. Existing refresh tokens stay live.
func RunChangePassword(ctx context.Context, accountID, current, next string, deps PasswordDeps) (PasswordFailureKind, error) {
	deps.normalize()

	account, err := deps.Store.FindByID(ctx, accountID, credential.FieldPasswordHash)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return PasswordFailureNotFound, err
		}
		return PasswordFailureBackend, err
	}

	ok, err := deps.VerifyPassword(ctx, current, account.PasswordHash)
	if err != nil && ctx.Err() != nil {
		return PasswordFailureBackend, err
	}
	if !ok {
		deps.MetricInc(deps.Metrics.ChangeInvalidOld)
		deps.EmitAudit(ctx, deps.Events.Change, false, accountID, nil, reason("invalid_current"))
		return PasswordFailureCurrentIncorrect, nil
	}
	if deps.ValidatePassword != nil {
		if err := deps.ValidatePassword(next); err != nil {
			return PasswordFailurePolicy, err
		}
	}
	if current == next {
		deps.EmitAudit(ctx, deps.Events.Change, false, accountID, nil, reason("reuse"))
		return PasswordFailureReuse, nil
	}

	hash, err := deps.HashPassword(ctx, next)
	if err != nil {
		return PasswordFailureBackend, err
	}
	if err := deps.Store.SetPasswordHash(ctx, accountID, hash, false); err != nil {
		return PasswordFailureBackend, err
	}

	deps.MetricInc(deps.Metrics.ChangeSuccess)
	deps.EmitAudit(ctx, deps.Events.Change, true, accountID, nil, nil)
	return PasswordFailureNone, nil
}

// RunRequestPasswordReset issues a reset token for email and hands it to the
// mailer. Unknown, inactive and deleted accounts succeed silently so the
// response never reveals whether an account exists. Only the token digest is
// stored.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordDeps) (PasswordFailureKind, error) {
	deps.normalize()
	email = credential.NormalizeEmail(email)
	if email == "" {
		return PasswordFailureNone, nil
	}

	if deps.CheckRateLimit != nil {
		if err := deps.CheckRateLimit(ctx, email); err != nil {
			if deps.IsRateLimited != nil && deps.IsRateLimited(err) {
				deps.MetricInc(deps.Metrics.RateLimited)
				deps.EmitAudit(ctx, deps.Events.ResetRequest, false, "", err, reason("rate_limited"))
				return PasswordFailureRateLimited, err
			}
			return PasswordFailureBackend, err
		}
	}
	deps.MetricInc(deps.Metrics.ResetRequest)

	account, err := deps.Store.FindByEmail(ctx, email, credential.FieldsNone)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			deps.EmitAudit(ctx, deps.Events.ResetRequest, false, "", nil, reason("unknown_email"))
			return PasswordFailureNone, nil
		}
		return PasswordFailureBackend, err
	}
	if !account.CanAuthenticate() {
		deps.EmitAudit(ctx, deps.Events.ResetRequest, false, account.ID, nil, reason("inactive"))
		return PasswordFailureNone, nil
	}

	token, err := deps.NewSecret()
	if err != nil {
		return PasswordFailureBackend, err
	}
	if err := deps.Store.SetResetToken(ctx, account.ID, deps.DigestToken(token), deps.Now().Add(deps.ResetTTL)); err != nil {
		return PasswordFailureBackend, err
	}
	if deps.SendResetEmail != nil {
		if err := deps.SendResetEmail(ctx, account.Email, token); err != nil {
			deps.Warn("password reset email failed", "account_id", account.ID, "error", err)
		}
	}

	deps.EmitAudit(ctx, deps.Events.ResetRequest, true, account.ID, nil, nil)
	return PasswordFailureNone, nil
}

// RunResetPassword consumes a reset token and sets a new password. Every
// refresh token of the account is revoked in the same store update.
func RunResetPassword(ctx context.Context, token, next string, deps PasswordDeps) (PasswordFailureKind, error) {
	deps.normalize()
	if token == "" {
		deps.MetricInc(deps.Metrics.ResetFailure)
		return PasswordFailureTokenInvalid, nil
	}
	if deps.ValidatePassword != nil {
		if err := deps.ValidatePassword(next); err != nil {
			return PasswordFailurePolicy, err
		}
	}

	// Hash before consuming so a hashing failure does not burn the token.
	hash, err := deps.HashPassword(ctx, next)
	if err != nil {
		return PasswordFailureBackend, err
	}

	accountID, err := deps.Store.ConsumeResetToken(ctx, deps.DigestToken(token), deps.Now())
	if err != nil {
		if errors.Is(err, credential.ErrTokenNotFound) {
			deps.MetricInc(deps.Metrics.ResetFailure)
			deps.EmitAudit(ctx, deps.Events.ResetConfirm, false, "", nil, reason("invalid_token"))
			return PasswordFailureTokenInvalid, nil
		}
		return PasswordFailureBackend, err
	}

	if err := deps.Store.SetPasswordHash(ctx, accountID, hash, true); err != nil {
		return PasswordFailureBackend, err
	}

	deps.MetricInc(deps.Metrics.ResetSuccess)
	deps.EmitAudit(ctx, deps.Events.ResetConfirm, true, accountID, nil, nil)
	return PasswordFailureNone, nil
}
