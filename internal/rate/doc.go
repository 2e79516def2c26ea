// Package rate provides Redis-backed fixed-window counters shared by the HTTP
// rate-limit middleware.
//
// # Window semantics
//
// INCR plus a PEXPIRE on the first hit, run as one script. Keys are
// "<prefix>:<rule>:<client key>". Budgets that skip successful requests call
// Forgive after the handler succeeds.
//
// # What this package must NOT do
//
//   - Decide which requests are limited (that lives in middleware).
//   - Be imported outside the goAccount module.
package rate
