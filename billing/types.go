package billing

import (
	"math"
	"time"
)

// Status is the processor-independent payment status reported to callers.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// MapIntentStatus translates a processor payment-intent status into a
// [Status]. Unknown values map to failed.
func MapIntentStatus(s string) Status {
	switch s {
	case "requires_payment_method", "requires_confirmation", "requires_action":
		return StatusPending
	case "processing", "requires_capture":
		return StatusProcessing
	case "canceled":
		return StatusCancelled
	case "succeeded":
		return StatusSucceeded
	default:
		return StatusFailed
	}
}

// ToMinorUnits converts a major-unit amount to cents, rounding half away
// from zero.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts cents back to major units.
func FromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}

// Address is the billing address sent to the processor.
type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// IsZero reports whether no address field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// CustomerDetails describes the customer that mirrors an account.
type CustomerDetails struct {
	AccountID string
	Email     string
	Name      string
	Phone     string
	Address   Address
}

// Customer is the processor's customer record.
type Customer struct {
	ID                   string
	Email                string
	Name                 string
	DefaultPaymentMethod string
	Deleted              bool
}

// PaymentMethod is a saved card.
type PaymentMethod struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Brand    string    `json:"brand,omitempty"`
	Last4    string    `json:"last4,omitempty"`
	ExpMonth int       `json:"expMonth,omitempty"`
	ExpYear  int       `json:"expYear,omitempty"`
	Customer string    `json:"customer,omitempty"`
	Created  time.Time `json:"created"`
}

// LineItem is one charge on an invoice. Amounts are in major units.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Amount      float64 `json:"amount"`
	Tax         float64 `json:"tax,omitempty"`
	Discount    float64 `json:"discount,omitempty"`
}

// Invoice is the processor's invoice record. Amounts are in minor units.
type Invoice struct {
	ID               string    `json:"id"`
	Customer         string    `json:"customer"`
	Status           string    `json:"status"`
	Currency         string    `json:"currency"`
	AmountDue        int64     `json:"amountDue"`
	AmountPaid       int64     `json:"amountPaid"`
	HostedInvoiceURL string    `json:"invoiceUrl,omitempty"`
	InvoicePDF       string    `json:"invoicePdf,omitempty"`
	Description      string    `json:"description,omitempty"`
	Created          time.Time `json:"created"`
	// PaymentIntentIDs lists the intents of the invoice's payments, first
	// payment first.
	PaymentIntentIDs []string `json:"-"`
}

// PaymentIntent is the processor's payment attempt record.
type PaymentIntent struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	ClientSecret  string `json:"clientSecret,omitempty"`
	Customer      string `json:"customer,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
}

// Refund is a processed refund. Amount is in minor units.
type Refund struct {
	ID            string `json:"id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	PaymentIntent string `json:"paymentIntent"`
}

// InvoicePage is one page of a customer's invoice history.
type InvoicePage struct {
	Invoices []Invoice `json:"invoices"`
	HasMore  bool      `json:"hasMore"`
}
