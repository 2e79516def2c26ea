package goAccount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode"

	"github.com/MrEthical07/goAccount/credential"
	"github.com/MrEthical07/goAccount/internal"
	internalaudit "github.com/MrEthical07/goAccount/internal/audit"
	"github.com/MrEthical07/goAccount/internal/flows"
	"github.com/MrEthical07/goAccount/internal/limiters"
	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/password"
)

// Engine owns credential verification, token issuance and account
// lifecycle. It is safe for concurrent use once built.
type Engine struct {
	config     Config
	store      credential.Store
	passwords  *password.Service
	tokens     *jwt.Manager
	lockout    *limiters.Lockout
	challenges *limiters.ChallengeLimiter
	customers  CustomerProvisioner
	notifier   Notifier
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	logger     *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// Close stops the audit dispatcher after draining buffered events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping checks the credential backend.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := e.store.Ping(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

// AccessTTL reports the lifetime of issued access tokens.
func (e *Engine) AccessTTL() time.Duration {
	return e.tokens.AccessTTL()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) hooks() flows.Hooks {
	return flows.Hooks{
		Now:       time.Now,
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		Warn:      e.logger.Warn,
	}
}

/*
====================================
LOGIN
====================================
*/

// Login verifies credentials and issues a token pair. Unknown emails and
// wrong passwords both return ErrInvalidCredentials; repeated failures lock
// the account for the configured duration.
func (e *Engine) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunLogin(ctx, email, password, e.loginFlowDeps())
	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureInvalidCredentials:
		return nil, ErrInvalidCredentials
	case flows.LoginFailureLocked:
		return nil, ErrAccountLocked
	case flows.LoginFailureInactive:
		return nil, ErrAccountInactive
	case flows.LoginFailureIssue:
		return nil, res.Err
	default:
		return nil, unavailable(res.Err)
	}

	e.logger.Info("account logged in", "account_id", res.Account.ID)
	return &AuthResult{
		Account: newAccountView(res.Account),
		Tokens:  e.tokenPair(res.Tokens),
	}, nil
}

func (e *Engine) loginFlowDeps() flows.LoginDeps {
	return flows.LoginDeps{
		Hooks:          e.hooks(),
		Store:          e.store,
		Lockout:        e.lockout,
		VerifyPassword: e.passwords.Verify,
		NeedsUpgrade:   e.passwords.NeedsUpgrade,
		HashPassword:   e.passwords.Hash,
		UpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		DummyHash:      e.dummyPasswordHash,
		IssueTokens:    e.issueTokens,
		Metrics: flows.LoginMetrics{
			LoginSuccess:  int(MetricLoginSuccess),
			LoginFailure:  int(MetricLoginFailure),
			LoginLocked:   int(MetricLoginLocked),
			AccountLocked: int(MetricAccountLocked),
		},
		Events: flows.LoginEvents{
			LoginSuccess:  auditEventLoginSuccess,
			LoginFailure:  auditEventLoginFailure,
			AccountLocked: auditEventAccountLocked,
		},
	}
}

// dummyPasswordHash is verified against for unknown emails so that the
// response time does not reveal whether an account exists.
func (e *Engine) dummyPasswordHash() string {
	e.dummyOnce.Do(func() {
		secret, err := internal.NewSecret()
		if err != nil {
			secret = "goaccount-dummy-password"
		}
		e.dummyHash, _ = e.passwords.Hash(context.Background(), secret)
	})
	return e.dummyHash
}

/*
====================================
TOKENS
====================================
*/

func (e *Engine) issueTokens(ctx context.Context, account *credential.Account) (flows.IssuedTokens, error) {
	access, expires, err := e.tokens.Issue(jwt.TypeAccess, account.ID, account.Email)
	if err != nil {
		return flows.IssuedTokens{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, _, err := e.tokens.Issue(jwt.TypeRefresh, account.ID, account.Email)
	if err != nil {
		return flows.IssuedTokens{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := e.store.PushRefreshToken(ctx, account.ID, internal.DigestToken(refresh), e.config.Session.RefreshTokenCap); err != nil {
		return flows.IssuedTokens{}, unavailable(err)
	}
	return flows.IssuedTokens{AccessToken: access, RefreshToken: refresh, AccessExpires: expires}, nil
}

func (e *Engine) tokenPair(t flows.IssuedTokens) TokenPair {
	return TokenPair{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    int64(e.tokens.AccessTTL() / time.Second),
	}
}

// Refresh exchanges a live refresh token for a new pair. The presented token
// stops being live in the same store step that admits the new one, so of two
// concurrent exchanges of one token exactly one succeeds.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil || e.store == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if refreshToken == "" {
		return TokenPair{}, ErrRefreshInvalid
	}

	res := flows.RunRefresh(ctx, refreshToken, e.refreshFlowDeps())
	switch res.Failure {
	case flows.RefreshFailureNone:
		return e.tokenPair(res.Tokens), nil
	case flows.RefreshFailureRotate:
		return TokenPair{}, unavailable(res.Err)
	case flows.RefreshFailureIssue:
		return TokenPair{}, res.Err
	default:
		return TokenPair{}, ErrRefreshInvalid
	}
}

func (e *Engine) refreshFlowDeps() flows.RefreshDeps {
	return flows.RefreshDeps{
		Hooks: e.hooks(),
		Store: e.store,
		Cap:   e.config.Session.RefreshTokenCap,
		ParseRefresh: func(token string) (string, error) {
			claims, err := e.tokens.Parse(jwt.TypeRefresh, token)
			if err != nil {
				return "", err
			}
			return claims.AccountID, nil
		},
		DigestToken: internal.DigestToken,
		IssueAccess: func(a *credential.Account) (string, time.Time, error) {
			return e.tokens.Issue(jwt.TypeAccess, a.ID, a.Email)
		},
		IssueRefresh: func(a *credential.Account) (string, error) {
			token, _, err := e.tokens.Issue(jwt.TypeRefresh, a.ID, a.Email)
			return token, err
		},
		Metrics: flows.RefreshMetrics{
			RefreshSuccess: int(MetricRefreshSuccess),
			RefreshFailure: int(MetricRefreshFailure),
			RefreshNotLive: int(MetricRefreshNotLive),
		},
		Events: flows.RefreshEvents{
			RefreshSuccess: auditEventRefreshSuccess,
			RefreshInvalid: auditEventRefreshInvalid,
		},
	}
}

/*
====================================
SESSIONS
====================================
*/

// ResolveSession verifies an access token and returns a snapshot of the
// account it belongs to. Expired tokens are rejected with [ErrTokenExpired].
// Missing, deactivated, deleted and locked accounts are rejected with
// [ErrTokenInvalid], [ErrAccountInactive] or [ErrAccountLocked]; a missing verification is rejected with
// [ErrAccountUnverified] only when RequireVerifiedEmail is set.
func (e *Engine) ResolveSession(ctx context.Context, token string) (*Session, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if token == "" {
		return nil, ErrUnauthorized
	}

	start := time.Now()
	res := flows.RunResolveSession(ctx, token, e.resolveFlowDeps())
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricResolveLatency, time.Since(start))
	}

	switch res.Failure {
	case flows.ResolveFailureNone:
	case flows.ResolveFailureToken:
		if errors.Is(res.Err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	case flows.ResolveFailureAccountMissing:
		return nil, ErrTokenInvalid
	case flows.ResolveFailureInactive:
		return nil, ErrAccountInactive
	case flows.ResolveFailureLocked:
		return nil, ErrAccountLocked
	case flows.ResolveFailureUnverified:
		return nil, ErrAccountUnverified
	default:
		return nil, unavailable(res.Err)
	}

	a := res.Account
	s := &Session{
		AccountID:         a.ID,
		Email:             a.Email,
		EmailVerified:     a.EmailVerified,
		FirstName:         a.FirstName,
		LastName:          a.LastName,
		BillingCustomerID: a.BillingCustomerID,
		TokenID:           res.Claims.ID,
	}
	if res.Claims.ExpiresAt != nil {
		s.ExpiresAt = res.Claims.ExpiresAt.Time
	}
	return s, nil
}

func (e *Engine) resolveFlowDeps() flows.ResolveDeps {
	deps := flows.ResolveDeps{
		Hooks: e.hooks(),
		Store: e.store,
		ParseAccess: func(token string) (*jwt.Claims, error) {
			return e.tokens.Parse(jwt.TypeAccess, token)
		},
		Locked:          e.lockout.Locked,
		RequireVerified: e.config.Session.RequireVerifiedEmail,
	}
	deps.Metrics.Resolved = int(MetricSessionResolved)
	deps.Metrics.Rejected = int(MetricSessionRejected)
	return deps
}

// Logout revokes refreshToken for accountID. An empty or already revoked
// token is not an error.
func (e *Engine) Logout(ctx context.Context, accountID, refreshToken string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := flows.RunLogout(ctx, accountID, refreshToken, e.logoutFlowDeps()); err != nil {
		return unavailable(err)
	}
	return nil
}

// LogoutAll revokes every refresh token of accountID.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := flows.RunLogoutAll(ctx, accountID, e.logoutFlowDeps()); err != nil {
		return unavailable(err)
	}
	return nil
}

func (e *Engine) logoutFlowDeps() flows.LogoutDeps {
	deps := flows.LogoutDeps{
		Hooks:       e.hooks(),
		Store:       e.store,
		DigestToken: internal.DigestToken,
	}
	deps.Metrics.Logout = int(MetricLogout)
	deps.Metrics.LogoutAll = int(MetricLogoutAll)
	deps.Events.Logout = auditEventLogoutSession
	deps.Events.LogoutAll = auditEventLogoutAll
	return deps
}

/*
====================================
HELPERS
====================================
*/

// validatePassword enforces the password policy: a length the hash can
// represent plus at least one upper-case letter, lower-case letter, digit
// and special character.
func (e *Engine) validatePassword(pw string) error {
	if len(pw) < e.config.Password.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPasswordPolicy, e.config.Password.MinLength)
	}
	if limit := e.passwords.MaxBytes(); limit > 0 && len(pw) > limit {
		return fmt.Errorf("%w: must be at most %d bytes", ErrPasswordPolicy, limit)
	}
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return fmt.Errorf("%w: must contain upper-case, lower-case, digit and special characters", ErrPasswordPolicy)
	}
	return nil
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// lockoutRecorder maps the store's atomic lockout update onto the limiter's
// counter contract.
type lockoutRecorder struct {
	store credential.Store
}

func (r lockoutRecorder) RecordFailure(ctx context.Context, accountID string, threshold int, duration time.Duration, now time.Time) (int, time.Time, error) {
	state, err := r.store.RecordFailedAttempt(ctx, accountID, credential.LockoutPolicy{Threshold: threshold, Duration: duration}, now)
	if err != nil {
		return 0, time.Time{}, err
	}
	return state.Attempts, state.LockUntil, nil
}

func (r lockoutRecorder) ResetFailures(ctx context.Context, accountID string, now time.Time) error {
	return r.store.RecordSuccess(ctx, accountID, now)
}
