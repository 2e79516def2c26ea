package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/internal/rate"
)

var (
	// ErrChallengeRateLimited is returned when too many reset or verification
	// emails were requested for one address.
	ErrChallengeRateLimited = errors.New("challenge rate limited")
	// ErrChallengeUnavailable indicates the counter backend is unreachable.
	ErrChallengeUnavailable = errors.New("challenge limiter unavailable")
)

// ChallengeConfig bounds how often one address may request a password reset
// or a verification email.
type ChallengeConfig struct {
	MaxRequests int
	Window      time.Duration
}

// ChallengeLimiter throttles outbound account emails per address.
type ChallengeLimiter struct {
	limiter *rate.Limiter
	reset   rate.Rule
	verify  rate.Rule
}

// NewChallengeLimiter creates a limiter over the shared rate counters. A
// zero MaxRequests disables the matching throttle.
func NewChallengeLimiter(limiter *rate.Limiter, reset, verify ChallengeConfig) *ChallengeLimiter {
	return &ChallengeLimiter{
		limiter: limiter,
		reset:   rate.Rule{Name: "pwreset", Limit: reset.MaxRequests, Window: reset.Window},
		verify:  rate.Rule{Name: "verify", Limit: verify.MaxRequests, Window: verify.Window},
	}
}

// CheckReset counts a password-reset request for email.
func (l *ChallengeLimiter) CheckReset(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	return l.check(ctx, l.reset, email)
}

// CheckVerification counts a verification-email request for email.
func (l *ChallengeLimiter) CheckVerification(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	return l.check(ctx, l.verify, email)
}

func (l *ChallengeLimiter) check(ctx context.Context, rule rate.Rule, email string) error {
	_, err := l.limiter.Hit(ctx, rule, strings.ToLower(strings.TrimSpace(email)))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrChallengeRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
}
