package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultCurrency is used when a request names none.
	DefaultCurrency = "usd"
	// DefaultCallTimeout bounds every single processor call.
	DefaultCallTimeout = 15 * time.Second
	// DefaultRefundReason is recorded when a refund carries no reason.
	DefaultRefundReason = "Customer request"

	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// Config configures an [Orchestrator].
type Config struct {
	Currency    string
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// Orchestrator drives multi-step payment operations against a [Processor].
type Orchestrator struct {
	processor Processor
	currency  string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator. Zero config fields take defaults.
func NewOrchestrator(p Processor, cfg Config) *Orchestrator {
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		processor: p,
		currency:  strings.ToLower(cfg.Currency),
		timeout:   cfg.CallTimeout,
		logger:    cfg.Logger.With("component", "billing"),
	}
}

func call[T any](o *Orchestrator, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return fn(ctx)
}

/* ==== CUSTOMERS ==== */

// ProvisionCustomer creates the processor customer for a new account and
// returns its id.
func (o *Orchestrator) ProvisionCustomer(ctx context.Context, details CustomerDetails) (string, error) {
	c, err := call(o, ctx, func(ctx context.Context) (*Customer, error) {
		return o.processor.CreateCustomer(ctx, details)
	})
	if err != nil {
		return "", externalError("Failed to create customer", err)
	}
	o.logger.Info("customer created", "customer_id", c.ID, "account_id", details.AccountID)
	return c.ID, nil
}

// SyncCustomer pushes changed profile fields to the processor.
func (o *Orchestrator) SyncCustomer(ctx context.Context, customerID string, details CustomerDetails) error {
	_, err := call(o, ctx, func(ctx context.Context) (*Customer, error) {
		return o.processor.UpdateCustomer(ctx, customerID, details)
	})
	if err != nil {
		return externalError("Failed to update customer", err)
	}
	return nil
}

// RemoveCustomer deletes the processor customer.
func (o *Orchestrator) RemoveCustomer(ctx context.Context, customerID string) error {
	_, err := call(o, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.processor.DeleteCustomer(ctx, customerID)
	})
	if err != nil {
		return externalError("Failed to delete customer", err)
	}
	o.logger.Info("customer deleted", "customer_id", customerID)
	return nil
}

/* ==== PAYMENT METHODS ==== */

// PaymentMethods lists the customer's saved cards.
func (o *Orchestrator) PaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error) {
	methods, err := call(o, ctx, func(ctx context.Context) ([]PaymentMethod, error) {
		return o.processor.ListPaymentMethods(ctx, customerID)
	})
	if err != nil {
		return nil, externalError("Failed to list payment methods", err)
	}
	return methods, nil
}

// AddPaymentMethod attaches a payment method to the customer and optionally
// makes it the invoice default.
func (o *Orchestrator) AddPaymentMethod(ctx context.Context, customerID, paymentMethodID string, makeDefault bool) (*PaymentMethod, error) {
	if paymentMethodID == "" {
		return nil, fmt.Errorf("%w: payment method id is required", ErrInvalidRequest)
	}
	pm, err := call(o, ctx, func(ctx context.Context) (*PaymentMethod, error) {
		return o.processor.AttachPaymentMethod(ctx, paymentMethodID, customerID)
	})
	if err != nil {
		return nil, paymentError("Failed to attach payment method", err)
	}
	if makeDefault {
		if err := o.SetDefaultPaymentMethod(ctx, customerID, paymentMethodID); err != nil {
			return nil, err
		}
	}
	return pm, nil
}

// SetDefaultPaymentMethod makes paymentMethodID the customer's default for
// invoices.
func (o *Orchestrator) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	_, err := call(o, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.processor.SetDefaultPaymentMethod(ctx, customerID, paymentMethodID)
	})
	if err != nil {
		return paymentError("Failed to set default payment method", err)
	}
	return nil
}

// RemovePaymentMethod detaches a payment method from its customer.
func (o *Orchestrator) RemovePaymentMethod(ctx context.Context, paymentMethodID string) error {
	_, err := call(o, ctx, func(ctx context.Context) (*PaymentMethod, error) {
		return o.processor.DetachPaymentMethod(ctx, paymentMethodID)
	})
	if err != nil {
		return paymentError("Failed to remove payment method", err)
	}
	return nil
}

/* ==== CHARGES ==== */

// ChargeRequest is an invoice charge against a customer.
type ChargeRequest struct {
	CustomerID        string
	Items             []LineItem
	PaymentMethodID   string
	SavePaymentMethod bool
	Description       string
}

// ChargeResult is the outcome of [Orchestrator.ChargeInvoice]. PaymentIntent
// is nil when the pay step failed or the invoice reported no payment yet.
type ChargeResult struct {
	Invoice       *Invoice
	PaymentIntent *PaymentIntent
	Status        Status
}

// ChargeInvoice registers every item on the customer, creates and finalizes
// an invoice and pays it immediately.
//
// A failing pay step is not an error: the finalized invoice is returned with
// status failed so the caller can show it. Failures before that return an
// [ErrPayment] error.
func (o *Orchestrator) ChargeInvoice(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := validateCharge(req); err != nil {
		return nil, err
	}

	if req.SavePaymentMethod && req.PaymentMethodID != "" {
		if _, err := o.AddPaymentMethod(ctx, req.CustomerID, req.PaymentMethodID, true); err != nil {
			return nil, err
		}
	}

	if err := o.registerItems(ctx, req.CustomerID, req.Items); err != nil {
		return nil, paymentError("Failed to process payment", err)
	}

	draft, err := call(o, ctx, func(ctx context.Context) (*Invoice, error) {
		return o.processor.CreateInvoice(ctx, InvoiceParams{
			Customer:    req.CustomerID,
			Description: req.Description,
			Metadata:    map[string]string{"source": "api"},
		})
	})
	if err != nil {
		return nil, paymentError("Failed to process payment", err)
	}

	finalized, err := call(o, ctx, func(ctx context.Context) (*Invoice, error) {
		return o.processor.FinalizeInvoice(ctx, draft.ID)
	})
	if err != nil {
		return nil, paymentError("Failed to process payment", err)
	}

	paid, err := call(o, ctx, func(ctx context.Context) (*Invoice, error) {
		return o.processor.PayInvoice(ctx, finalized.ID, PayParams{PaymentMethod: req.PaymentMethodID})
	})
	if err != nil {
		o.logger.Warn("invoice payment failed", "invoice_id", finalized.ID, "customer_id", req.CustomerID, "error", err)
		return &ChargeResult{Invoice: finalized, Status: StatusFailed}, nil
	}

	if len(paid.PaymentIntentIDs) == 0 {
		// Settled later through invoice.payment_succeeded.
		return &ChargeResult{Invoice: paid, Status: StatusProcessing}, nil
	}

	intent, err := call(o, ctx, func(ctx context.Context) (*PaymentIntent, error) {
		return o.processor.GetPaymentIntent(ctx, paid.PaymentIntentIDs[0])
	})
	if err != nil {
		o.logger.Warn("payment intent lookup failed", "invoice_id", paid.ID, "error", err)
		return &ChargeResult{Invoice: paid, Status: StatusProcessing}, nil
	}

	o.logger.Info("invoice charged", "invoice_id", paid.ID, "customer_id", req.CustomerID, "status", intent.Status)
	return &ChargeResult{Invoice: paid, PaymentIntent: intent, Status: MapIntentStatus(intent.Status)}, nil
}

func validateCharge(req ChargeRequest) error {
	if req.CustomerID == "" {
		return fmt.Errorf("%w: customer is required", ErrInvalidRequest)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidRequest)
	}
	for i, item := range req.Items {
		if item.Amount <= 0 {
			return fmt.Errorf("%w: item %d amount must be positive", ErrInvalidRequest, i)
		}
		if item.Quantity < 0 {
			return fmt.Errorf("%w: item %d quantity must not be negative", ErrInvalidRequest, i)
		}
	}
	return nil
}

func (o *Orchestrator) registerItems(ctx context.Context, customerID string, items []LineItem) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, item := range items {
		params := InvoiceItemParams{
			Customer:    customerID,
			Amount:      ToMinorUnits(item.Amount),
			Currency:    o.currency,
			Description: item.Description,
			Quantity:    item.Quantity,
			Metadata: map[string]string{
				"unitPrice": formatAmount(item.UnitPrice),
				"tax":       formatAmount(item.Tax),
				"discount":  formatAmount(item.Discount),
			},
		}
		g.Go(func() error {
			_, err := call(o, gctx, func(ctx context.Context) (string, error) {
				return o.processor.CreateInvoiceItem(ctx, params)
			})
			return err
		})
	}
	return g.Wait()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// IntentRequest creates a standalone payment intent. Amount is in major
// units.
type IntentRequest struct {
	Amount          float64
	Currency        string
	CustomerID      string
	PaymentMethodID string
	Description     string
	Metadata        map[string]string
}

// CreatePaymentIntent creates a payment intent with automatic payment
// methods. Supplying a payment method confirms it off-session.
func (o *Orchestrator) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*PaymentIntent, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = o.currency
	}
	intent, err := call(o, ctx, func(ctx context.Context) (*PaymentIntent, error) {
		return o.processor.CreatePaymentIntent(ctx, PaymentIntentParams{
			Amount:        ToMinorUnits(req.Amount),
			Currency:      currency,
			Customer:      req.CustomerID,
			PaymentMethod: req.PaymentMethodID,
			Description:   req.Description,
			Metadata:      req.Metadata,
		})
	})
	if err != nil {
		return nil, paymentError("Failed to create payment", err)
	}
	return intent, nil
}

// RefundRequest refunds a payment intent. A zero Amount refunds in full.
// When CustomerID is set the intent must belong to that customer.
type RefundRequest struct {
	PaymentIntentID string
	CustomerID      string
	Amount          float64
	Reason          string
}

// Refund refunds a payment intent.
func (o *Orchestrator) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	if req.PaymentIntentID == "" {
		return nil, fmt.Errorf("%w: payment intent is required", ErrInvalidRequest)
	}
	if req.Amount < 0 {
		return nil, fmt.Errorf("%w: refund amount must not be negative", ErrInvalidRequest)
	}
	if req.CustomerID != "" {
		intent, err := call(o, ctx, func(ctx context.Context) (*PaymentIntent, error) {
			return o.processor.GetPaymentIntent(ctx, req.PaymentIntentID)
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrPaymentNotFound
			}
			return nil, externalError("Failed to retrieve payment", err)
		}
		if intent.Customer != req.CustomerID {
			return nil, ErrPaymentNotFound
		}
	}
	reason := req.Reason
	if reason == "" {
		reason = DefaultRefundReason
	}
	refund, err := call(o, ctx, func(ctx context.Context) (*Refund, error) {
		return o.processor.CreateRefund(ctx, RefundParams{
			PaymentIntent: req.PaymentIntentID,
			Amount:        ToMinorUnits(req.Amount),
			Reason:        reason,
		})
	})
	if err != nil {
		return nil, paymentError("Failed to process refund", err)
	}
	o.logger.Info("refund created", "refund_id", refund.ID, "payment_intent", req.PaymentIntentID, "amount", refund.Amount)
	return refund, nil
}

/* ==== INVOICES ==== */

// History returns one page of the customer's invoices, newest first.
func (o *Orchestrator) History(ctx context.Context, customerID string, limit int, startingAfter string) (*InvoicePage, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	page, err := call(o, ctx, func(ctx context.Context) (*InvoicePage, error) {
		return o.processor.ListInvoices(ctx, ListParams{Customer: customerID, Limit: limit, StartingAfter: startingAfter})
	})
	if err != nil {
		return nil, externalError("Failed to list invoices", err)
	}
	return page, nil
}

// Invoice returns the invoice id if it belongs to customerID. Invoices of
// other customers are reported as missing.
func (o *Orchestrator) Invoice(ctx context.Context, customerID, id string) (*Invoice, error) {
	inv, err := call(o, ctx, func(ctx context.Context) (*Invoice, error) {
		return o.processor.GetInvoice(ctx, id)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, externalError("Failed to retrieve invoice", err)
	}
	if inv.Customer != customerID {
		return nil, ErrInvoiceNotFound
	}
	return inv, nil
}

// InvoicePDF returns the download URL of an owned invoice.
func (o *Orchestrator) InvoicePDF(ctx context.Context, customerID, id string) (string, error) {
	inv, err := o.Invoice(ctx, customerID, id)
	if err != nil {
		return "", err
	}
	if inv.InvoicePDF == "" {
		return "", ErrInvoicePDFMissing
	}
	return inv.InvoicePDF, nil
}
