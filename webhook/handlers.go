package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/billing"
	"github.com/MrEthical07/goAccount/credential"
	"github.com/MrEthical07/goAccount/stripe"
)

// DomainEvent is published for every handled webhook. Amount is in minor
// units.
type DomainEvent struct {
	EventID    string         `json:"eventId"`
	Type       string         `json:"type"`
	ObjectID   string         `json:"objectId"`
	CustomerID string         `json:"customerId,omitempty"`
	AccountID  string         `json:"accountId,omitempty"`
	Amount     int64          `json:"amount,omitempty"`
	Currency   string         `json:"currency,omitempty"`
	Status     billing.Status `json:"status,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

func newDomainEvent(ev *stripe.Event, objectID string) *DomainEvent {
	return &DomainEvent{
		EventID:    ev.ID,
		Type:       ev.Type,
		ObjectID:   objectID,
		OccurredAt: time.Unix(ev.Created, 0).UTC(),
	}
}

func (r *Reconciler) paymentIntent(_ context.Context, ev *stripe.Event) (*DomainEvent, error) {
	obj, err := decodeObject[struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		Amount           int64  `json:"amount"`
		Currency         string `json:"currency"`
		Customer         string `json:"customer"`
		LastPaymentError *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"last_payment_error"`
	}](ev)
	if err != nil {
		return nil, err
	}

	out := newDomainEvent(ev, obj.ID)
	out.CustomerID, out.Amount, out.Currency = obj.Customer, obj.Amount, obj.Currency
	out.Status = billing.MapIntentStatus(obj.Status)
	if obj.LastPaymentError != nil {
		out.Reason = obj.LastPaymentError.Code
		r.logger.Warn("payment failed", "payment_intent", obj.ID, "code", obj.LastPaymentError.Code, "message", obj.LastPaymentError.Message)
	} else {
		r.logger.Info("payment succeeded", "payment_intent", obj.ID, "amount", obj.Amount, "currency", obj.Currency)
	}
	return out, nil
}

func (r *Reconciler) invoice(_ context.Context, ev *stripe.Event) (*DomainEvent, error) {
	obj, err := decodeObject[struct {
		ID         string `json:"id"`
		Customer   string `json:"customer"`
		Status     string `json:"status"`
		AmountPaid int64  `json:"amount_paid"`
		AmountDue  int64  `json:"amount_due"`
		Currency   string `json:"currency"`
	}](ev)
	if err != nil {
		return nil, err
	}

	out := newDomainEvent(ev, obj.ID)
	out.CustomerID, out.Currency = obj.Customer, obj.Currency
	if ev.Type == "invoice.payment_succeeded" {
		out.Amount, out.Status = obj.AmountPaid, billing.StatusSucceeded
		r.logger.Info("invoice paid", "invoice_id", obj.ID, "customer_id", obj.Customer, "amount", obj.AmountPaid)
	} else {
		out.Amount, out.Status = obj.AmountDue, billing.StatusFailed
		r.logger.Warn("invoice payment failed", "invoice_id", obj.ID, "customer_id", obj.Customer, "amount", obj.AmountDue)
	}
	return out, nil
}

func (r *Reconciler) chargeRefunded(_ context.Context, ev *stripe.Event) (*DomainEvent, error) {
	obj, err := decodeObject[struct {
		ID             string `json:"id"`
		Customer       string `json:"customer"`
		AmountRefunded int64  `json:"amount_refunded"`
		Currency       string `json:"currency"`
		PaymentIntent  string `json:"payment_intent"`
	}](ev)
	if err != nil {
		return nil, err
	}

	r.logger.Info("charge refunded", "charge_id", obj.ID, "payment_intent", obj.PaymentIntent, "amount", obj.AmountRefunded)
	out := newDomainEvent(ev, obj.ID)
	out.CustomerID, out.Amount, out.Currency = obj.Customer, obj.AmountRefunded, obj.Currency
	out.Status = billing.StatusRefunded
	return out, nil
}

type customerObject struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (r *Reconciler) customerUpdated(_ context.Context, ev *stripe.Event) (*DomainEvent, error) {
	obj, err := decodeObject[customerObject](ev)
	if err != nil {
		return nil, err
	}
	r.logger.Info("customer updated", "customer_id", obj.ID)
	out := newDomainEvent(ev, obj.ID)
	out.CustomerID = obj.ID
	return out, nil
}

// customerDeleted detaches the customer from its account so later billing
// calls fail fast instead of reaching a deleted processor object.
func (r *Reconciler) customerDeleted(ctx context.Context, ev *stripe.Event) (*DomainEvent, error) {
	obj, err := decodeObject[customerObject](ev)
	if err != nil {
		return nil, err
	}

	out := newDomainEvent(ev, obj.ID)
	out.CustomerID = obj.ID
	if r.customers != nil {
		accountID, err := r.customers.ClearBillingCustomer(ctx, obj.ID)
		switch {
		case err == nil:
			out.AccountID = accountID
		case errors.Is(err, credential.ErrNotFound):
			// Already detached, e.g. by account deletion.
		default:
			return nil, err
		}
	}
	r.logger.Info("customer deleted", "customer_id", obj.ID, "account_id", out.AccountID)
	return out, nil
}

func (r *Reconciler) paymentMethod(_ context.Context, ev *stripe.Event) (*DomainEvent, error) {
	obj, err := decodeObject[struct {
		ID       string `json:"id"`
		Customer string `json:"customer"`
	}](ev)
	if err != nil {
		return nil, err
	}
	r.logger.Info("payment method changed", "type", ev.Type, "payment_method", obj.ID, "customer_id", obj.Customer)
	out := newDomainEvent(ev, obj.ID)
	out.CustomerID = obj.Customer
	return out, nil
}
