// Package goAccount is the account and session engine behind the payments
// API: registration, login with lockout, rotating refresh tokens, password
// reset, email verification and account deletion.
//
// An [Engine] is assembled once through [Builder.Build] and is safe for
// concurrent use afterwards. Credentials live behind [credential.Store];
// billing customers are managed through a [CustomerProvisioner], normally a
// [billing.Orchestrator].
//
// # Tokens
//
// Access and refresh tokens are HS256 JWTs signed with independent secrets.
// Only the SHA-256 digest of a refresh token is stored, and at most
// Session.RefreshTokenCap digests are live per account. Refresh exchanges a
// token for a new pair in a single store step, so a token can be redeemed
// once.
//
// # Errors
//
// Engine methods return the sentinels declared in errors.go, possibly
// wrapped. Callers classify them with [errors.Is]; the HTTP layer maps them
// to status codes in one place.
package goAccount
