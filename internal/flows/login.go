package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/credential"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidCredentials
	LoginFailureLocked
	LoginFailureInactive
	LoginFailureBackend
	LoginFailureIssue
)

// LoginResult carries either the authenticated account and tokens or
// failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	Account *credential.Account
	Tokens  IssuedTokens
	// LockedNow is set when this attempt was the one that locked the account.
	LockedNow bool
}

type LoginStore interface {
	FindByEmail(ctx context.Context, email string, fields credential.Fields) (*credential.Account, error)
	SetPasswordHash(ctx context.Context, id, hash string, revokeSessions bool) error
}

type LoginLockout interface {
	Locked(lockUntil, now time.Time) bool
	RecordFailure(ctx context.Context, accountID string, now time.Time) (bool, time.Time, error)
	Reset(ctx context.Context, accountID string, now time.Time) error
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess  int
	LoginFailure  int
	LoginLocked   int
	AccountLocked int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess  string
	LoginFailure  string
	AccountLocked string
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Hooks
	Store   LoginStore
	Lockout LoginLockout

	VerifyPassword func(ctx context.Context, password, hash string) (bool, error)
	NeedsUpgrade   func(hash string) (bool, error)
	HashPassword   func(ctx context.Context, password string) (string, error)
	UpgradeOnLogin bool
	// DummyHash is verified against when the email is unknown so both paths
	// cost one hash comparison.
	DummyHash func() string

	IssueTokens func(ctx context.Context, account *credential.Account) (IssuedTokens, error)

	Metrics LoginMetrics
	Events  LoginEvents
}

// RunLogin authenticates email and password. The lock is checked before the
// password and the active flag after it, so a locked account reveals nothing
// about password correctness.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	deps.normalize()
	if deps.Store == nil || deps.VerifyPassword == nil || deps.IssueTokens == nil {
		return LoginResult{Failure: LoginFailureBackend, Err: errors.New("login flow not wired")}
	}

	email = credential.NormalizeEmail(email)
	if email == "" || password == "" {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", nil, reason("missing_credentials"))
		return LoginResult{Failure: LoginFailureInvalidCredentials}
	}

	account, err := deps.Store.FindByEmail(ctx, email, credential.FieldPasswordHash|credential.FieldLockout)
	if err != nil {
		if !errors.Is(err, credential.ErrNotFound) {
			return LoginResult{Failure: LoginFailureBackend, Err: err}
		}
		if deps.DummyHash != nil {
			_, _ = deps.VerifyPassword(ctx, password, deps.DummyHash())
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", nil, func() map[string]string {
			return map[string]string{"reason": "unknown_email", "domain": emailDomain(email)}
		})
		return LoginResult{Failure: LoginFailureInvalidCredentials}
	}

	now := deps.Now()
	if deps.Lockout != nil && deps.Lockout.Locked(account.LockUntil, now) {
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, account.ID, nil, reason("locked"))
		return LoginResult{Failure: LoginFailureLocked, Account: account}
	}

	ok, err := deps.VerifyPassword(ctx, password, account.PasswordHash)
	if err != nil && ctx.Err() != nil {
		return LoginResult{Failure: LoginFailureBackend, Err: err}
	}
	if !ok {
		res := LoginResult{Failure: LoginFailureInvalidCredentials, Account: account}
		if deps.Lockout != nil {
			locked, until, lockErr := deps.Lockout.RecordFailure(ctx, account.ID, now)
			if lockErr != nil {
				return LoginResult{Failure: LoginFailureBackend, Err: lockErr, Account: account}
			}
			if locked && !account.LockUntil.Equal(until) {
				res.LockedNow = true
				deps.MetricInc(deps.Metrics.AccountLocked)
				deps.EmitAudit(ctx, deps.Events.AccountLocked, true, account.ID, nil, func() map[string]string {
					return map[string]string{"lock_until": until.UTC().Format(time.RFC3339)}
				})
			}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, account.ID, nil, reason("bad_password"))
		return res
	}

	if !account.CanAuthenticate() {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, account.ID, nil, reason("inactive"))
		return LoginResult{Failure: LoginFailureInactive, Account: account}
	}

	if deps.Lockout != nil {
		if err := deps.Lockout.Reset(ctx, account.ID, now); err != nil {
			return LoginResult{Failure: LoginFailureBackend, Err: err, Account: account}
		}
	}
	account.LoginAttempts = 0
	account.LockUntil = time.Time{}
	account.LastLogin = now

	if deps.UpgradeOnLogin && deps.NeedsUpgrade != nil && deps.HashPassword != nil {
		if upgrade, _ := deps.NeedsUpgrade(account.PasswordHash); upgrade {
			if hash, err := deps.HashPassword(ctx, password); err == nil {
				if err := deps.Store.SetPasswordHash(ctx, account.ID, hash, false); err != nil {
					deps.Warn("password rehash failed", "account_id", account.ID, "error", err)
				}
			}
		}
	}
	account.PasswordHash = ""

	tokens, err := deps.IssueTokens(ctx, account)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, Account: account}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, account.ID, nil, nil)
	return LoginResult{Account: account, Tokens: tokens}
}

func emailDomain(email string) string {
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return email[i+1:]
	}
	return ""
}
