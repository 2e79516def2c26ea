package billing

import "errors"

var (
	// ErrPayment marks a failure while moving money: charging, attaching a
	// payment method or refunding.
	ErrPayment = errors.New("payment failed")
	// ErrExternalService marks any other processor failure.
	ErrExternalService = errors.New("payment processor unavailable")
	// ErrInvalidRequest is returned before any processor call when the
	// request itself cannot be charged.
	ErrInvalidRequest = errors.New("invalid billing request")
	// ErrNotFound is matched by processor errors for missing objects.
	ErrNotFound = errors.New("billing object not found")
	// ErrInvoiceNotFound is returned when an invoice does not exist or
	// belongs to another customer.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrPaymentNotFound is returned when a payment intent does not exist or
	// belongs to another customer.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrInvoicePDFMissing is returned when an invoice has no rendered PDF.
	ErrInvoicePDFMissing = errors.New("invoice pdf not available")
)

// Error carries a caller-facing message next to its classification.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func paymentError(msg string, err error) error {
	return &Error{Kind: ErrPayment, Message: msg, Err: err}
}

func externalError(msg string, err error) error {
	return &Error{Kind: ErrExternalService, Message: msg, Err: err}
}
