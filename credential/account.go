package credential

import (
	"strings"
	"time"
)

// Address is the postal address kept on an account and mirrored to the
// billing customer.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Profile holds the user-editable account fields.
type Profile struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Phone     string  `json:"phone,omitempty"`
	Address   Address `json:"address"`
}

// FullName joins first and last name.
func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Account is the stored credential record. Sensitive fields are only
// populated when requested with the matching [Fields] bit.
type Account struct {
	ID    string
	Email string
	Profile

	EmailVerified bool
	Active        bool
	Deleted       bool
	DeletedAt     time.Time

	BillingCustomerID string
	LastLogin         time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// FieldPasswordHash
	PasswordHash string
	// FieldRefreshTokens, oldest first.
	RefreshTokens []string
	// FieldLockout
	LoginAttempts int
	LockUntil     time.Time
	// FieldSecrets
	VerificationToken string
	ResetTokenHash    string
	ResetTokenExpires time.Time
}

// CanAuthenticate reports whether the account may hold a session at all.
func (a *Account) CanAuthenticate() bool {
	return a != nil && a.Active && !a.Deleted
}

// Fields selects sensitive columns on reads.
type Fields uint8

const (
	FieldPasswordHash Fields = 1 << iota
	FieldRefreshTokens
	FieldLockout
	FieldSecrets

	FieldsNone Fields = 0
	FieldsAll         = FieldPasswordHash | FieldRefreshTokens | FieldLockout | FieldSecrets
)

// Has reports whether f includes every bit of want.
func (f Fields) Has(want Fields) bool {
	return f&want == want
}

// LockoutPolicy configures automatic lockout after repeated failed logins.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy locks an account for two hours after five failures.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: 5, Duration: 2 * time.Hour}
}

// LockoutState is the counter state after a recorded failure.
type LockoutState struct {
	Attempts  int
	LockUntil time.Time
}

// Locked reports whether the lock is still in force at now.
func (s LockoutState) Locked(now time.Time) bool {
	return IsLocked(s.LockUntil, now)
}

// IsLocked is true iff lockUntil is set and in the future.
func IsLocked(lockUntil, now time.Time) bool {
	return !lockUntil.IsZero() && lockUntil.After(now)
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func scrub(a *Account, fields Fields) *Account {
	if !fields.Has(FieldPasswordHash) {
		a.PasswordHash = ""
	}
	if !fields.Has(FieldRefreshTokens) {
		a.RefreshTokens = nil
	}
	if !fields.Has(FieldLockout) {
		a.LoginAttempts = 0
		a.LockUntil = time.Time{}
	}
	if !fields.Has(FieldSecrets) {
		a.VerificationToken = ""
		a.ResetTokenHash = ""
		a.ResetTokenExpires = time.Time{}
	}
	return a
}
