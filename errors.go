package goAccount

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountLocked is returned while an account is locked after repeated failed logins.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive is returned for deactivated or soft-deleted accounts.
	ErrAccountInactive = errors.New("account deactivated")
	// ErrAccountUnverified is returned when policy requires a verified email and the account has none.
	ErrAccountUnverified = errors.New("email not verified")
	// ErrAccountExists is returned by Register when the email is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound is returned when an authenticated account no longer exists.
	ErrAccountNotFound = errors.New("account not found")
	// ErrUnauthorized is returned when no usable access token was presented.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenInvalid covers bad signatures, expiry and wrong token type on access tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for a well-formed access token past its expiry.
	ErrTokenExpired = errors.New("token has expired")
	// ErrRefreshInvalid is returned when a refresh token fails verification or is no longer live.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrPasswordPolicy is returned when a new password does not meet the policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when the new password equals the current one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrCurrentPasswordIncorrect is returned by ChangePassword for a wrong current password.
	ErrCurrentPasswordIncorrect = errors.New("current password is incorrect")
	// ErrPasswordResetInvalid is returned for unknown, used or expired reset tokens.
	ErrPasswordResetInvalid = errors.New("invalid or expired reset token")
	// ErrVerificationInvalid is returned for unknown or used verification tokens.
	ErrVerificationInvalid = errors.New("invalid verification token")
	// ErrAlreadyVerified is returned when a verification email is requested for a verified account.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrChallengeRateLimited is returned when too many reset or verification emails were requested.
	ErrChallengeRateLimited = errors.New("too many requests for this email")
	// ErrDeleteConfirmation is returned when account deletion is not confirmed.
	ErrDeleteConfirmation = errors.New("account deletion requires confirmation")
	// ErrInvalidPassword is returned when a password re-check for a sensitive action fails.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidInput is returned for missing required fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEngineNotReady is returned when the engine was not built with its dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrStoreUnavailable wraps credential backend failures.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrBillingUnavailable wraps billing customer provisioning failures.
	ErrBillingUnavailable = errors.New("billing provider unavailable")
)
