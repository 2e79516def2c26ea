package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goAccount/credential"
)

// LockoutConfig holds configuration for the automatic account lockout policy.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	Duration  time.Duration
}

var (
	// ErrLockoutUnavailable indicates the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// FailureRecorder persists the failed-attempt counter. The credential store
// implements it with a single atomic update.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, accountID string, threshold int, duration time.Duration, now time.Time) (attempts int, lockUntil time.Time, err error)
	ResetFailures(ctx context.Context, accountID string, now time.Time) error
}

// Lockout decides when repeated login failures lock an account.
type Lockout struct {
	store  FailureRecorder
	config LockoutConfig
}

// NewLockout creates a lockout policy over store.
func NewLockout(store FailureRecorder, cfg LockoutConfig) *Lockout {
	return &Lockout{store: store, config: cfg}
}

// Locked reports whether an account whose lock expires at lockUntil must be
// rejected at now. Always false when the policy is disabled.
func (l *Lockout) Locked(lockUntil, now time.Time) bool {
	if l == nil || !l.config.Enabled {
		return false
	}
	return credential.IsLocked(lockUntil, now)
}

// RecordFailure counts a failed login. Returns true when this failure left
// the account locked.
func (l *Lockout) RecordFailure(ctx context.Context, accountID string, now time.Time) (bool, time.Time, error) {
	if l == nil || !l.config.Enabled || accountID == "" {
		return false, time.Time{}, nil
	}

	_, lockUntil, err := l.store.RecordFailure(ctx, accountID, l.config.Threshold, l.config.Duration, now)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return credential.IsLocked(lockUntil, now), lockUntil, nil
}

// Reset clears the failure counter after a successful login.
func (l *Lockout) Reset(ctx context.Context, accountID string, now time.Time) error {
	if l == nil || accountID == "" {
		return nil
	}

	if err := l.store.ResetFailures(ctx, accountID, now); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}
