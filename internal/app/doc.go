// Package app assembles the accountd service from its configuration: the
// credential store, billing processor, webhook reconciler, event broker,
// HTTP server and housekeeping scheduler.
package app
