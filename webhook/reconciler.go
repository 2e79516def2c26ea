package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goAccount/stripe"
)

var (
	// ErrMissingSignature is returned when the delivery has no signature
	// header.
	ErrMissingSignature = errors.New("missing webhook signature")
	// ErrInvalidSignature is returned when verification fails.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Outcome reports what Handle did with a verified event.
type Outcome int

const (
	OutcomeProcessed Outcome = iota
	OutcomeDuplicate
	OutcomeIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Publisher receives the domain event derived from a handled webhook.
// [broker.EventProducer] implements it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
}

// CustomerStore detaches deleted billing customers from their accounts.
type CustomerStore interface {
	ClearBillingCustomer(ctx context.Context, customerID string) (string, error)
}

// Config configures a [Reconciler].
type Config struct {
	Secret    string
	Tolerance time.Duration
	Ledger    Ledger
	Publisher Publisher
	Customers CustomerStore
	Logger    *slog.Logger
}

// Reconciler verifies processor webhooks and applies each event once.
type Reconciler struct {
	secret    string
	tolerance time.Duration
	ledger    Ledger
	publisher Publisher
	customers CustomerStore
	logger    *slog.Logger
	handlers  map[string]handlerFunc
}

type handlerFunc func(ctx context.Context, ev *stripe.Event) (*DomainEvent, error)

// NewReconciler creates a reconciler. Secret and Ledger are required.
func NewReconciler(cfg Config) (*Reconciler, error) {
	if cfg.Secret == "" {
		return nil, errors.New("webhook: signing secret is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("webhook: ledger is required")
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = stripe.DefaultTolerance
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	r := &Reconciler{
		secret:    cfg.Secret,
		tolerance: cfg.Tolerance,
		ledger:    cfg.Ledger,
		publisher: cfg.Publisher,
		customers: cfg.Customers,
		logger:    cfg.Logger.With("component", "webhook"),
	}
	r.handlers = map[string]handlerFunc{
		"payment_intent.succeeded":      r.paymentIntent,
		"payment_intent.payment_failed": r.paymentIntent,
		"invoice.payment_succeeded":     r.invoice,
		"invoice.payment_failed":        r.invoice,
		"charge.refunded":               r.chargeRefunded,
		"customer.updated":              r.customerUpdated,
		"customer.deleted":              r.customerDeleted,
		"payment_method.attached":       r.paymentMethod,
		"payment_method.detached":       r.paymentMethod,
	}
	return r, nil
}

// Handle verifies payload against signature and dispatches the event. A
// delivery that fails verification has no side effects. An event id that
// is already handled or in flight is acknowledged as a duplicate. When a
// handler fails the claim is released and the error returned, so the
// processor's redelivery can retry.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	if signature == "" {
		return 0, ErrMissingSignature
	}
	ev, err := stripe.ConstructEvent(payload, signature, r.secret, r.tolerance)
	if err != nil {
		r.logger.Warn("webhook verification failed", "error", err)
		return 0, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	handler, known := r.handlers[ev.Type]
	if !known {
		r.logger.Warn("unhandled webhook event type", "event_id", ev.ID, "type", ev.Type)
		return OutcomeIgnored, nil
	}

	claimed, err := r.ledger.Claim(ctx, ev.ID, ev.Type)
	if err != nil {
		return 0, err
	}
	if !claimed {
		r.logger.Info("duplicate webhook event", "event_id", ev.ID, "type", ev.Type)
		return OutcomeDuplicate, nil
	}

	r.logger.Info("received webhook", "event_id", ev.ID, "type", ev.Type)
	if err := r.apply(ctx, ev, handler); err != nil {
		r.logger.Error("webhook handler failed", "event_id", ev.ID, "type", ev.Type, "error", err)
		if relErr := r.ledger.Release(ctx, ev.ID, err); relErr != nil {
			r.logger.Error("webhook claim release failed", "event_id", ev.ID, "error", relErr)
		}
		return 0, err
	}

	if err := r.ledger.Complete(ctx, ev.ID); err != nil {
		// The side effects already happened; a redelivery after the claim
		// expires would repeat them.
		r.logger.Error("webhook completion not recorded", "event_id", ev.ID, "error", err)
	}
	return OutcomeProcessed, nil
}

func (r *Reconciler) apply(ctx context.Context, ev *stripe.Event, handler handlerFunc) error {
	domainEvent, err := handler(ctx, ev)
	if err != nil {
		return err
	}
	if domainEvent == nil || r.publisher == nil {
		return nil
	}
	if err := r.publisher.Publish(ctx, ev.Type, domainEvent); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func decodeObject[T any](ev *stripe.Event) (T, error) {
	var obj T
	if err := json.Unmarshal(ev.Data.Object, &obj); err != nil {
		return obj, fmt.Errorf("decode %s object: %w", ev.Type, err)
	}
	return obj, nil
}
