package billing

import "context"

// InvoiceItemParams registers one pending item on a customer. Amount is the
// line total in minor units.
type InvoiceItemParams struct {
	Customer    string
	Amount      int64
	Currency    string
	Description string
	Quantity    int64
	Metadata    map[string]string
}

// InvoiceParams creates a draft invoice that collects pending items.
type InvoiceParams struct {
	Customer    string
	Description string
	Metadata    map[string]string
}

// PayParams pays a finalized invoice off-session.
type PayParams struct {
	PaymentMethod string
}

// PaymentIntentParams creates a payment intent. When PaymentMethod is set the
// intent is confirmed off-session immediately.
type PaymentIntentParams struct {
	Amount        int64
	Currency      string
	Customer      string
	PaymentMethod string
	Description   string
	Metadata      map[string]string
}

// RefundParams refunds a payment intent, fully when Amount is zero.
type RefundParams struct {
	PaymentIntent string
	Amount        int64
	Reason        string
}

// ListParams pages through a customer's invoices.
type ListParams struct {
	Customer      string
	Limit         int
	StartingAfter string
}

// Processor is the external payment processor.
type Processor interface {
	CreateCustomer(ctx context.Context, details CustomerDetails) (*Customer, error)
	UpdateCustomer(ctx context.Context, id string, details CustomerDetails) (*Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error

	AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*PaymentMethod, error)
	DetachPaymentMethod(ctx context.Context, paymentMethodID string) (*PaymentMethod, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error)

	CreateInvoiceItem(ctx context.Context, params InvoiceItemParams) (string, error)
	CreateInvoice(ctx context.Context, params InvoiceParams) (*Invoice, error)
	FinalizeInvoice(ctx context.Context, id string) (*Invoice, error)
	PayInvoice(ctx context.Context, id string, params PayParams) (*Invoice, error)
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	ListInvoices(ctx context.Context, params ListParams) (*InvoicePage, error)

	CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
	CreateRefund(ctx context.Context, params RefundParams) (*Refund, error)
}
