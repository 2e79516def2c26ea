// Package limiters provides the account-level policies built on top of the
// credential store and the internal/rate primitives.
//
// # Limiters
//
//   - [Lockout] locks an account after Threshold consecutive failed logins
//     for Duration. Counting is delegated to a [FailureRecorder] so the
//     increment and the lock decision happen in one atomic store update.
//   - [ChallengeLimiter] throttles password-reset and verification emails
//     per address.
//
// All limiters are nil-safe: calling any method on a nil receiver is a no-op.
//
// # What this package must NOT do
//
//   - Import goAccount or any sibling internal package except internal/rate.
//   - Decide the HTTP outcome of a limit. Flow functions map the errors.
package limiters
