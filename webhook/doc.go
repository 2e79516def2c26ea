// Package webhook applies payment processor webhooks exactly once.
//
// A [Reconciler] verifies the delivery signature, claims the event id in a
// [Ledger], runs the handler for the event type and then completes the
// claim. A failing handler releases the claim so the processor's redelivery
// can retry. Handled events are published as [DomainEvent] values.
package webhook
