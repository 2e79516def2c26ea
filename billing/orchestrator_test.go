package billing_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/MrEthical07/goAccount/billing"
	"github.com/MrEthical07/goAccount/billing/billingtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrchestrator(p *billingtest.Processor) *billing.Orchestrator {
	return billing.NewOrchestrator(p, billing.Config{
		CallTimeout: 200 * time.Millisecond,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func customer(t *testing.T, o *billing.Orchestrator) string {
	t.Helper()
	id, err := o.ProvisionCustomer(context.Background(), billing.CustomerDetails{
		AccountID: "acct-1",
		Email:     "ada@example.com",
		Name:      "Ada Lovelace",
	})
	require.NoError(t, err)
	return id
}

func TestMinorUnitsRoundTrip(t *testing.T) {
	assert.Equal(t, int64(1999), billing.ToMinorUnits(19.99))
	assert.Equal(t, 19.99, billing.FromMinorUnits(1999))
	assert.Equal(t, int64(10), billing.ToMinorUnits(0.1))
	assert.Equal(t, int64(0), billing.ToMinorUnits(0))
}

func TestMapIntentStatus(t *testing.T) {
	cases := map[string]billing.Status{
		"requires_payment_method": billing.StatusPending,
		"requires_confirmation":   billing.StatusPending,
		"requires_action":         billing.StatusPending,
		"processing":              billing.StatusProcessing,
		"requires_capture":        billing.StatusProcessing,
		"canceled":                billing.StatusCancelled,
		"succeeded":               billing.StatusSucceeded,
		"":                        billing.StatusFailed,
		"something_new":           billing.StatusFailed,
	}
	for in, want := range cases {
		assert.Equal(t, want, billing.MapIntentStatus(in), in)
	}
}

func TestChargeInvoiceSucceeds(t *testing.T) {
	t.Parallel()

	p := billingtest.New()
	o := newOrchestrator(p)
	cus := customer(t, o)

	res, err := o.ChargeInvoice(context.Background(), billing.ChargeRequest{
		CustomerID: cus,
		Items: []billing.LineItem{
			{Description: "Seat", Quantity: 2, UnitPrice: 10, Amount: 20},
			{Description: "Support", Quantity: 1, UnitPrice: 19.99, Amount: 19.99, Tax: 1.5},
		},
		PaymentMethodID: "pm_card",
	})
	require.NoError(t, err)
	require.NotNil(t, res.PaymentIntent)
	assert.Equal(t, billing.StatusSucceeded, res.Status)
	assert.Equal(t, "paid", res.Invoice.Status)
	assert.Equal(t, int64(3999), res.Invoice.AmountPaid)
	assert.Equal(t, "pm_card", res.PaymentIntent.PaymentMethod)

	require.Len(t, p.Items, 2)
	for _, it := range p.Items {
		assert.Equal(t, "usd", it.Currency)
		assert.Contains(t, it.Metadata, "unitPrice")
		assert.Contains(t, it.Metadata, "discount")
	}
	assert.Equal(t, 0, p.CallCount("AttachPaymentMethod"))
}

func TestChargeInvoiceSavesPaymentMethod(t *testing.T) {
	t.Parallel()

	p := billingtest.New()
	o := newOrchestrator(p)
	cus := customer(t, o)

	_, err := o.ChargeInvoice(context.Background(), billing.ChargeRequest{
		CustomerID:        cus,
		Items:             []billing.LineItem{{Description: "Payment", Quantity: 1, UnitPrice: 5, Amount: 5}},
		PaymentMethodID:   "pm_saved",
		SavePaymentMethod: true,
	})
	require.NoError(t, err)
	assert.Equal(t, cus, p.Methods["pm_saved"])
	assert.Equal(t, "pm_saved", p.Defaults[cus])
}

func TestChargeInvoicePayFailureReturnsFinalizedInvoice(t *testing.T) {
	t.Parallel()

	p := billingtest.New()
	p.Fail["PayInvoice"] = billingtest.ErrInjected
	o := newOrchestrator(p)
	cus := customer(t, o)

	res, err := o.ChargeInvoice(context.Background(), billing.ChargeRequest{
		CustomerID: cus,
		Items:      []billing.LineItem{{Description: "Payment", Quantity: 1, UnitPrice: 19.99, Amount: 19.99}},
	})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusFailed, res.Status)
	assert.Nil(t, res.PaymentIntent)
	require.NotNil(t, res.Invoice)
	assert.Equal(t, "open", res.Invoice.Status)
	assert.Equal(t, int64(1999), res.Invoice.AmountDue)
}

func TestChargeInvoicePayTimeoutIsFailedStatus(t *testing.T) {
	t.Parallel()

	p := billingtest.New()
	p.PayDelay = time.Second
	o := newOrchestrator(p)
	cus := customer(t, o)

	res, err := o.ChargeInvoice(context.Background(), billing.ChargeRequest{
		CustomerID: cus,
		Items:      []billing.LineItem{{Description: "Payment", Quantity: 1, Amount: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusFailed, res.Status)
	assert.Nil(t, res.PaymentIntent)
}

func TestChargeInvoiceWithoutPaymentsIsProcessing(t *testing.T) {
	t.Parallel()

	p := billingtest.New()
	p.SkipPayments = true
	o := newOrchestrator(p)
	cus := customer(t, o)

	res, err := o.ChargeInvoice(context.Background(), billing.ChargeRequest{
		CustomerID: cus,
		Items:      []billing.LineItem{{Description: "Payment", Quantity: 1, Amount: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusProcessing, res.Status)
	assert.Nil(t, res.PaymentIntent)
}

func TestChargeInvoiceMapsIntentStatus(t *testing.T) {
	t.Parallel()

	p := billingtest.New()
	p.IntentStatus = "requires_action"
	o := newOrchestrator(p)
	cus := customer(t, o)

	res, err := o.ChargeInvoice(context.Background(), billing.ChargeRequest{
		CustomerID: cus,
		Items:      []billing.LineItem{{Description: "Payment", Quantity: 1, Amount: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPending, res.Status)
}

func TestChargeInvoiceItemFailureIsPaymentError(t *testing.T) {
	t.Parallel()

	p := billingtest.New()
	p.Fail["CreateInvoiceItem"] = billingtest.ErrInjected
	o := newOrchestrator(p)
	cus := customer(t, o)

	res, err := o.ChargeInvoice(context.Background(), billing.ChargeRequest{
		CustomerID: cus,
		Items:      []billing.LineItem{{Description: "a", Amount: 1}, {Description: "b", Amount: 2}},
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, billing.ErrPayment)
	assert.ErrorIs(t, err, billingtest.ErrInjected)
	assert.Equal(t, 0, p.CallCount("CreateInvoice"))

	var be *billing.Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "Failed to process payment", be.Message)
}

func TestChargeInvoiceFinalizeFailureIsPaymentError(t *testing.T) {
	t.Parallel()

	p := billingtest.New()
	p.Fail["FinalizeInvoice"] = billingtest.ErrInjected
	o := newOrchestrator(p)
	cus := customer(t, o)

	_, err := o.ChargeInvoice(context.Background(), billing.ChargeRequest{
		CustomerID: cus,
		Items:      []billing.LineItem{{Description: "a", Amount: 1}},
	})
	assert.ErrorIs(t, err, billing.ErrPayment)
	assert.Equal(t, 0, p.CallCount("PayInvoice"))
}

func TestChargeInvoiceRejectsInvalidRequests(t *testing.T) {
	o := newOrchestrator(billingtest.New())

	_, err := o.ChargeInvoice(context.Background(), billing.ChargeRequest{CustomerID: "cus_1"})
	assert.ErrorIs(t, err, billing.ErrInvalidRequest)

	_, err = o.ChargeInvoice(context.Background(), billing.ChargeRequest{
		CustomerID: "cus_1",
		Items:      []billing.LineItem{{Description: "free", Amount: 0}},
	})
	assert.ErrorIs(t, err, billing.ErrInvalidRequest)
}

func TestCreatePaymentIntentConvertsAmount(t *testing.T) {
	t.Parallel()

	p := billingtest.New()
	o := newOrchestrator(p)

	intent, err := o.CreatePaymentIntent(context.Background(), billing.IntentRequest{Amount: 12.34, CustomerID: "cus_x"})
	require.NoError(t, err)
	assert.Equal(t, int64(1234), intent.Amount)
	assert.Equal(t, "usd", intent.Currency)
	assert.Equal(t, "requires_payment_method", intent.Status)
	assert.NotEmpty(t, intent.ClientSecret)

	p.Fail["CreatePaymentIntent"] = billingtest.ErrInjected
	_, err = o.CreatePaymentIntent(context.Background(), billing.IntentRequest{Amount: 1})
	assert.ErrorIs(t, err, billing.ErrPayment)
}

func TestRefundDefaultsReason(t *testing.T) {
	t.Parallel()

	p := billingtest.New()
	o := newOrchestrator(p)
	intent, err := o.CreatePaymentIntent(context.Background(), billing.IntentRequest{Amount: 50, PaymentMethodID: "pm_1"})
	require.NoError(t, err)

	refund, err := o.Refund(context.Background(), billing.RefundRequest{PaymentIntentID: intent.ID, Amount: 10.5})
	require.NoError(t, err)
	assert.Equal(t, int64(1050), refund.Amount)
	require.Len(t, p.Refunds, 1)
	assert.Equal(t, billing.DefaultRefundReason, p.Refunds[0].Reason)

	_, err = o.Refund(context.Background(), billing.RefundRequest{PaymentIntentID: "pi_missing"})
	assert.ErrorIs(t, err, billing.ErrPayment)
}

func TestRefundChecksIntentOwner(t *testing.T) {
	t.Parallel()

	p := billingtest.New()
	o := newOrchestrator(p)
	owner := customer(t, o)
	other := customer(t, o)
	intent, err := o.CreatePaymentIntent(context.Background(), billing.IntentRequest{Amount: 20, CustomerID: owner, PaymentMethodID: "pm_1"})
	require.NoError(t, err)

	_, err = o.Refund(context.Background(), billing.RefundRequest{PaymentIntentID: intent.ID, CustomerID: other})
	assert.ErrorIs(t, err, billing.ErrPaymentNotFound)
	assert.Empty(t, p.Refunds)

	_, err = o.Refund(context.Background(), billing.RefundRequest{PaymentIntentID: "pi_missing", CustomerID: owner})
	assert.ErrorIs(t, err, billing.ErrPaymentNotFound)

	refund, err := o.Refund(context.Background(), billing.RefundRequest{PaymentIntentID: intent.ID, CustomerID: owner})
	require.NoError(t, err)
	assert.Equal(t, intent.ID, refund.PaymentIntent)
}

func TestInvoiceOwnership(t *testing.T) {
	t.Parallel()

	p := billingtest.New()
	o := newOrchestrator(p)
	owner := customer(t, o)
	other := customer(t, o)

	res, err := o.ChargeInvoice(context.Background(), billing.ChargeRequest{
		CustomerID: owner,
		Items:      []billing.LineItem{{Description: "a", Amount: 1}},
	})
	require.NoError(t, err)

	inv, err := o.Invoice(context.Background(), owner, res.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Invoice.ID, inv.ID)

	_, err = o.Invoice(context.Background(), other, res.Invoice.ID)
	assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)

	_, err = o.Invoice(context.Background(), owner, "in_missing")
	assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)

	url, err := o.InvoicePDF(context.Background(), owner, res.Invoice.ID)
	require.NoError(t, err)
	assert.Contains(t, url, res.Invoice.ID)
}

func TestHistoryClampsLimit(t *testing.T) {
	t.Parallel()

	p := billingtest.New()
	o := newOrchestrator(p)
	cus := customer(t, o)
	for range 3 {
		_, err := o.ChargeInvoice(context.Background(), billing.ChargeRequest{
			CustomerID: cus,
			Items:      []billing.LineItem{{Description: "a", Amount: 1}},
		})
		require.NoError(t, err)
	}

	page, err := o.History(context.Background(), cus, 2, "")
	require.NoError(t, err)
	assert.Len(t, page.Invoices, 2)
	assert.True(t, page.HasMore)

	page, err = o.History(context.Background(), cus, 0, "")
	require.NoError(t, err)
	assert.Len(t, page.Invoices, 3)
	assert.False(t, page.HasMore)
}

func TestCustomerLifecycleErrorsAreExternal(t *testing.T) {
	t.Parallel()

	p := billingtest.New()
	o := newOrchestrator(p)
	cus := customer(t, o)

	require.NoError(t, o.SyncCustomer(context.Background(), cus, billing.CustomerDetails{Name: "Ada King"}))
	assert.Equal(t, "Ada King", p.Customers[cus].Name)

	require.NoError(t, o.RemoveCustomer(context.Background(), cus))
	err := o.RemoveCustomer(context.Background(), cus)
	assert.ErrorIs(t, err, billing.ErrExternalService)
	assert.NotErrorIs(t, err, billing.ErrPayment)

	p.Fail["DetachPaymentMethod"] = billingtest.ErrInjected
	assert.ErrorIs(t, o.RemovePaymentMethod(context.Background(), "pm_x"), billing.ErrPayment)
}
