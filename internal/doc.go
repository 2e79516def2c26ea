// Package internal contains helpers that are private to goAccount, such as
// secret generation and token digests.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function flow orchestrators for every Engine operation
//   - limiters: lockout policy and challenge-email throttling
//   - rate: core Redis-backed fixed-window counters
//   - config: process configuration for cmd/accountd
//   - api: chi HTTP surface
//   - app: process wiring and housekeeping jobs
//
// # What this package must NOT do
//
//   - Export types that appear in the public goAccount API.
//   - Be imported by any package outside the goAccount module.
package internal
