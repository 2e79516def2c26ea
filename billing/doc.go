// Package billing orchestrates payments against an external processor.
//
// The [Orchestrator] turns caller requests into ordered processor calls:
// invoice items are registered concurrently, then an invoice is created,
// finalized and paid. Every processor call runs under its own timeout.
// Amounts cross the package boundary in major units and travel to the
// processor in minor units; see [ToMinorUnits].
//
// Errors are classified as [ErrPayment] (money movement failed),
// [ErrExternalService] (any other processor failure) or
// [ErrInvalidRequest]. [*Error] carries the caller-facing message.
package billing
