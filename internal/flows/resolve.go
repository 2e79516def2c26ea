package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/credential"
	"github.com/MrEthical07/goAccount/jwt"
)

// ResolveFailureKind classifies session resolution failures.
type ResolveFailureKind int

const (
	ResolveFailureNone ResolveFailureKind = iota
	ResolveFailureToken
	ResolveFailureAccountMissing
	ResolveFailureInactive
	ResolveFailureLocked
	ResolveFailureUnverified
	ResolveFailureBackend
)

// ResolveResult returns either the claims and account snapshot or a
// classified failure.
type ResolveResult struct {
	Failure ResolveFailureKind
	Err     error
	Claims  *jwt.Claims
	Account *credential.Account
}

type ResolveStore interface {
	FindByID(ctx context.Context, id string, fields credential.Fields) (*credential.Account, error)
}

// ResolveDeps captures session resolution dependencies.
type ResolveDeps struct {
	Hooks
	Store           ResolveStore
	ParseAccess     func(token string) (*jwt.Claims, error)
	Locked          func(lockUntil, now time.Time) bool
	RequireVerified bool

	Metrics struct {
		Resolved int
		Rejected int
	}
}

// RunResolveSession verifies an access token and resolves it to the current
// account state. Every failure is terminal; callers map them all to one
// generic rejection except unverified email.
func RunResolveSession(ctx context.Context, token string, deps ResolveDeps) ResolveResult {
	deps.normalize()
	reject := func(kind ResolveFailureKind, err error, claims *jwt.Claims, account *credential.Account) ResolveResult {
		deps.MetricInc(deps.Metrics.Rejected)
		return ResolveResult{Failure: kind, Err: err, Claims: claims, Account: account}
	}

	if token == "" {
		return reject(ResolveFailureToken, errors.New("empty token"), nil, nil)
	}
	claims, err := deps.ParseAccess(token)
	if err != nil {
		return reject(ResolveFailureToken, err, nil, nil)
	}

	account, err := deps.Store.FindByID(ctx, claims.AccountID, credential.FieldLockout)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return reject(ResolveFailureAccountMissing, err, claims, nil)
		}
		return reject(ResolveFailureBackend, err, claims, nil)
	}
	if !account.CanAuthenticate() {
		return reject(ResolveFailureInactive, nil, claims, account)
	}
	if deps.Locked != nil && deps.Locked(account.LockUntil, deps.Now()) {
		return reject(ResolveFailureLocked, nil, claims, account)
	}
	if deps.RequireVerified && !account.EmailVerified {
		return reject(ResolveFailureUnverified, nil, claims, account)
	}

	deps.MetricInc(deps.Metrics.Resolved)
	return ResolveResult{Claims: claims, Account: account}
}
