package credential

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrEmailTaken is returned by Create on a case-insensitive duplicate email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrRefreshNotLive is returned when a refresh token is not in the live list.
	ErrRefreshNotLive = errors.New("refresh token not live")
	// ErrTokenNotFound is returned when a reset or verification token does not
	// match, has expired or was already used.
	ErrTokenNotFound = errors.New("token not found")
	// ErrStoreUnavailable wraps backend transport failures.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// DefaultRefreshTokenCap is the number of refresh tokens kept per account.
const DefaultRefreshTokenCap = 5

// Store persists accounts. Implementations must make RecordFailedAttempt and
// RotateRefreshToken single atomic steps.
type Store interface {
	Create(ctx context.Context, account *Account) error
	FindByEmail(ctx context.Context, email string, fields Fields) (*Account, error)
	FindByID(ctx context.Context, id string, fields Fields) (*Account, error)

	// RecordFailedAttempt resets an expired lock to a count of one, otherwise
	// increments; the lock is set only when the count crosses the threshold
	// while unlocked.
	RecordFailedAttempt(ctx context.Context, id string, policy LockoutPolicy, now time.Time) (LockoutState, error)
	RecordSuccess(ctx context.Context, id string, now time.Time) error

	PushRefreshToken(ctx context.Context, id, token string, max int) error
	RotateRefreshToken(ctx context.Context, id, oldToken, newToken string, max int) error
	RemoveRefreshToken(ctx context.Context, id, token string) error
	ClearRefreshTokens(ctx context.Context, id string) error

	SetPasswordHash(ctx context.Context, id, hash string, revokeSessions bool) error
	SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error)
	SetVerificationToken(ctx context.Context, id, token string) error
	ConsumeVerificationToken(ctx context.Context, token string) (string, error)

	UpdateProfile(ctx context.Context, id string, profile Profile) error
	SetBillingCustomer(ctx context.Context, id, customerID string) error
	// ClearBillingCustomer detaches customerID from whichever account holds it
	// and returns that account's id.
	ClearBillingCustomer(ctx context.Context, customerID string) (string, error)

	SoftDelete(ctx context.Context, id string, now time.Time) error
	// PurgeExpired drops reset tokens that expired before now.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
	Ping(ctx context.Context) error
}
