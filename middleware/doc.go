// Package middleware adapts the goAccount engine and the shared rate limiter
// to net/http.
//
// # Middleware
//
//   - [Authenticate] rejects requests without a valid access token.
//   - [Optional] attaches a session when a valid token is present and
//     otherwise proceeds anonymously.
//   - [RateLimit] enforces a fixed-window budget per client key.
//   - [ClientInfo] records the caller's IP and User-Agent for audit events.
//
// Rejections are reported through an [ErrorHandler] so the caller controls
// the response body. Without one a plain-text response is written.
//
// This package does not parse tokens or touch storage itself; every
// authentication decision comes from Engine.ResolveSession.
package middleware
