// Package otel publishes goAccount engine metrics as OpenTelemetry observable
// instruments. The caller owns the MeterProvider; [New] only registers a
// callback that samples the engine on each collection.
package otel
