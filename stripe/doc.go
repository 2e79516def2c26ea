// Package stripe adapts the official Stripe SDK (stripe-go) to
// [billing.Processor] and wraps its webhook signature verification.
//
// Every write carries an Idempotency-Key that the SDK reuses across its
// network retries. SDK error responses are returned as [*APIError], which
// matches [billing.ErrNotFound] for missing objects.
//
// [billing.Processor]: github.com/MrEthical07/goAccount/billing.Processor
// [billing.ErrNotFound]: github.com/MrEthical07/goAccount/billing.ErrNotFound
package stripe
