package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/credential"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureParse
	RefreshFailureAccountMissing
	RefreshFailureAccountInactive
	RefreshFailureNotLive
	RefreshFailureRotate
	RefreshFailureIssue
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure   RefreshFailureKind
	Err       error
	AccountID string
	Account   *credential.Account
	Tokens    IssuedTokens
}

type RefreshStore interface {
	FindByID(ctx context.Context, id string, fields credential.Fields) (*credential.Account, error)
	RotateRefreshToken(ctx context.Context, id, oldToken, newToken string, max int) error
}

// RefreshMetrics carries metric IDs needed by the refresh flow.
type RefreshMetrics struct {
	RefreshSuccess int
	RefreshFailure int
	RefreshNotLive int
}

// RefreshEvents carries audit event names used by the refresh flow.
type RefreshEvents struct {
	RefreshSuccess string
	RefreshInvalid string
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Hooks
	Store RefreshStore
	Cap   int

	// ParseRefresh verifies signature, expiry and type and returns the
	// account id the token was minted for.
	ParseRefresh func(token string) (string, error)
	// DigestToken maps a token to its stored form.
	DigestToken  func(token string) string
	IssueAccess  func(account *credential.Account) (string, time.Time, error)
	IssueRefresh func(account *credential.Account) (string, error)

	Metrics RefreshMetrics
	Events  RefreshEvents
}

// RunRefresh exchanges a live refresh token for a new pair. Removal of the
// presented token and the membership check are one store operation, so of
// two concurrent exchanges of the same token exactly one succeeds.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	deps.normalize()
	fail := func(kind RefreshFailureKind, accountID, why string, err error) RefreshResult {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.EmitAudit(ctx, deps.Events.RefreshInvalid, false, accountID, err, reason(why))
		return RefreshResult{Failure: kind, Err: err, AccountID: accountID}
	}

	accountID, err := deps.ParseRefresh(refreshToken)
	if err != nil {
		return fail(RefreshFailureParse, "", "parse_failed", err)
	}

	account, err := deps.Store.FindByID(ctx, accountID, credential.FieldsNone)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return fail(RefreshFailureAccountMissing, accountID, "account_missing", err)
		}
		return fail(RefreshFailureRotate, accountID, "lookup_failed", err)
	}
	if !account.CanAuthenticate() {
		return fail(RefreshFailureAccountInactive, accountID, "account_inactive", nil)
	}

	next, err := deps.IssueRefresh(account)
	if err != nil {
		return fail(RefreshFailureIssue, accountID, "issue_refresh_failed", err)
	}

	if err := deps.Store.RotateRefreshToken(ctx, accountID, deps.DigestToken(refreshToken), deps.DigestToken(next), deps.Cap); err != nil {
		if errors.Is(err, credential.ErrRefreshNotLive) {
			deps.MetricInc(deps.Metrics.RefreshNotLive)
			return fail(RefreshFailureNotLive, accountID, "not_live", err)
		}
		return fail(RefreshFailureRotate, accountID, "rotate_failed", err)
	}

	access, expires, err := deps.IssueAccess(account)
	if err != nil {
		return fail(RefreshFailureIssue, accountID, "issue_access_failed", err)
	}
	tokens := IssuedTokens{AccessToken: access, RefreshToken: next, AccessExpires: expires}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshSuccess, true, accountID, nil, nil)
	return RefreshResult{AccountID: accountID, Account: account, Tokens: tokens}
}
