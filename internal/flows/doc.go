// Package flows contains pure-function orchestrators for every Engine
// operation.
//
// Each flow function (RunLogin, RunRefresh, RunResolveSession, RunRegister,
// ...) accepts a typed dependency struct and returns a result carrying a
// failure kind, so the root package decides which public error a failure
// maps to. Flows coordinate the credential store, token issuance, the lockout
// policy, audit and metrics but own none of them.
//
// This package must not import goAccount and must not hold state between
// calls; all I/O goes through the dependency structs.
package flows
