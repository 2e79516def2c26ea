package goAccount

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAccount/internal"
	"github.com/MrEthical07/goAccount/internal/flows"
	"github.com/MrEthical07/goAccount/internal/limiters"
)

// VerifyEmail consumes a verification token and marks its account verified.
// It returns the id of the verified account.
func (e *Engine) VerifyEmail(ctx context.Context, token string) (string, error) {
	if e == nil || e.store == nil {
		return "", ErrEngineNotReady
	}
	accountID, kind, err := flows.RunVerifyEmail(ctx, token, e.verificationFlowDeps())
	if err := mapVerificationFailure(kind, err); err != nil {
		return "", err
	}
	return accountID, nil
}

// ResendVerification issues a fresh verification token for an unverified
// account and mails it.
func (e *Engine) ResendVerification(ctx context.Context, accountID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	kind, err := flows.RunResendVerification(ctx, accountID, e.verificationFlowDeps())
	return mapVerificationFailure(kind, err)
}

func (e *Engine) verificationFlowDeps() flows.VerificationDeps {
	deps := flows.VerificationDeps{
		Hooks:     e.hooks(),
		Store:     e.store,
		NewSecret: internal.NewSecret,
		IsRateLimited: func(err error) bool {
			return errors.Is(err, limiters.ErrChallengeRateLimited)
		},
	}
	if e.challenges != nil {
		deps.CheckRateLimit = e.challenges.CheckVerification
	}
	if e.notifier != nil {
		deps.SendVerification = e.notifier.SendVerification
	}
	deps.Metrics.Request = int(MetricEmailVerificationRequest)
	deps.Metrics.Success = int(MetricEmailVerificationSuccess)
	deps.Metrics.Failure = int(MetricEmailVerificationFailure)
	deps.Metrics.RateLimited = int(MetricChallengeRateLimited)
	deps.Events.Request = auditEventEmailVerificationRequest
	deps.Events.Confirm = auditEventEmailVerificationConfirm
	return deps
}

func mapVerificationFailure(kind flows.VerificationFailureKind, err error) error {
	switch kind {
	case flows.VerificationFailureNone:
		return nil
	case flows.VerificationFailureInvalid:
		return ErrVerificationInvalid
	case flows.VerificationFailureNotFound:
		return ErrAccountNotFound
	case flows.VerificationFailureAlreadyVerified:
		return ErrAlreadyVerified
	case flows.VerificationFailureRateLimited:
		return ErrChallengeRateLimited
	default:
		return unavailable(err)
	}
}
