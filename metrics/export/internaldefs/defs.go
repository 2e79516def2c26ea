package internaldefs

import (
	goAccount "github.com/MrEthical07/goAccount"
)

// Prefix is prepended to every exported series name.
const Prefix = "goaccount_"

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goAccount.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   goAccount.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{goAccount.MetricLoginSuccess, Prefix + "login_success_total", "Successful logins."},
	{goAccount.MetricLoginFailure, Prefix + "login_failure_total", "Rejected logins, any cause."},
	{goAccount.MetricLoginLocked, Prefix + "login_locked_total", "Logins rejected because the account was locked."},
	{goAccount.MetricAccountLocked, Prefix + "account_locked_total", "Accounts locked after repeated failures."},
	{goAccount.MetricRefreshSuccess, Prefix + "refresh_success_total", "Successful refresh-token rotations."},
	{goAccount.MetricRefreshFailure, Prefix + "refresh_failure_total", "Rejected refresh-token rotations."},
	{goAccount.MetricRefreshNotLive, Prefix + "refresh_not_live_total", "Refresh tokens presented after rotation or revocation."},
	{goAccount.MetricLogout, Prefix + "logout_total", "Single-token logouts."},
	{goAccount.MetricLogoutAll, Prefix + "logout_all_total", "Logout-all operations."},
	{goAccount.MetricRegisterSuccess, Prefix + "register_success_total", "Accounts registered."},
	{goAccount.MetricRegisterDuplicate, Prefix + "register_duplicate_total", "Registrations rejected as duplicate."},
	{goAccount.MetricPasswordChangeSuccess, Prefix + "password_change_success_total", "Password changes."},
	{goAccount.MetricPasswordChangeInvalidOld, Prefix + "password_change_invalid_old_total", "Password changes with a wrong current password."},
	{goAccount.MetricPasswordResetRequest, Prefix + "password_reset_request_total", "Password reset requests."},
	{goAccount.MetricPasswordResetSuccess, Prefix + "password_reset_success_total", "Completed password resets."},
	{goAccount.MetricPasswordResetFailure, Prefix + "password_reset_failure_total", "Rejected password reset tokens."},
	{goAccount.MetricEmailVerificationRequest, Prefix + "email_verification_request_total", "Verification emails requested."},
	{goAccount.MetricEmailVerificationSuccess, Prefix + "email_verification_success_total", "Emails verified."},
	{goAccount.MetricEmailVerificationFailure, Prefix + "email_verification_failure_total", "Rejected verification tokens."},
	{goAccount.MetricChallengeRateLimited, Prefix + "challenge_rate_limited_total", "Reset or verification emails refused by the per-email limit."},
	{goAccount.MetricSessionResolved, Prefix + "session_resolved_total", "Access tokens resolved to a session."},
	{goAccount.MetricSessionRejected, Prefix + "session_rejected_total", "Access tokens rejected during resolution."},
	{goAccount.MetricAccountDeleted, Prefix + "account_deleted_total", "Accounts soft-deleted."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{goAccount.MetricResolveLatency, Prefix + "session_resolve_seconds", "Session resolution latency."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = Prefix + "audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."

// HistogramBounds are the upper bounds of the engine's eight latency
// buckets, in seconds, as Prometheus le labels.
var HistogramBounds = [8]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// HistogramBoundSuffix is HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = [8]string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// CumulativeBuckets turns the engine's per-bucket counts into cumulative
// counts. Missing buckets count as zero; extra ones are ignored.
func CumulativeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
