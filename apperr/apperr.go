// Package apperr is the caller-facing error taxonomy of the HTTP API. Every
// error that leaves a handler is converted to an [*Error] exactly once; its
// Kind decides the response code and status.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the API client.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindRateLimit
	KindPayment
	KindExternalService
)

var kindInfo = map[Kind]struct {
	code   string
	status int
}{
	KindInternal:        {"INTERNAL_ERROR", http.StatusInternalServerError},
	KindValidation:      {"VALIDATION_ERROR", http.StatusBadRequest},
	KindAuthentication:  {"AUTHENTICATION_ERROR", http.StatusUnauthorized},
	KindAuthorization:   {"AUTHORIZATION_ERROR", http.StatusForbidden},
	KindNotFound:        {"NOT_FOUND", http.StatusNotFound},
	KindConflict:        {"CONFLICT_ERROR", http.StatusConflict},
	KindRateLimit:       {"RATE_LIMIT_ERROR", http.StatusTooManyRequests},
	KindPayment:         {"PAYMENT_ERROR", http.StatusPaymentRequired},
	KindExternalService: {"EXTERNAL_SERVICE_ERROR", http.StatusServiceUnavailable},
}

// Code is the stable machine-readable code of k.
func (k Kind) Code() string {
	if info, ok := kindInfo[k]; ok {
		return info.code
	}
	return kindInfo[KindInternal].code
}

// Status is the HTTP status of k.
func (k Kind) Status() int {
	if info, ok := kindInfo[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

func (k Kind) String() string { return k.Code() }

// Error is a classified error. Operational errors are expected failures whose
// message is safe to show; non-operational ones are bugs or outages.
type Error struct {
	Kind        Kind
	Message     string
	Details     any
	Operational bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Code is shorthand for e.Kind.Code().
func (e *Error) Code() string { return e.Kind.Code() }

// Status is shorthand for e.Kind.Status().
func (e *Error) Status() int { return e.Kind.Status() }

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// New returns an operational error of kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Operational: true}
}

func Validation(message string, details any) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details, Operational: true}
}

func Authentication(message string) *Error {
	if message == "" {
		message = "Authentication failed"
	}
	return New(KindAuthentication, message)
}

func Authorization(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return New(KindAuthorization, message)
}

// NotFound reports a missing resource as "<resource> not found".
func NotFound(resource string) *Error {
	if resource == "" {
		resource = "Resource"
	}
	return New(KindNotFound, resource+" not found")
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func RateLimit(message string) *Error {
	if message == "" {
		message = "Too many requests"
	}
	return New(KindRateLimit, message)
}

func Payment(message string, details any) *Error {
	return &Error{Kind: KindPayment, Message: message, Details: details, Operational: true}
}

// ExternalService reports a failing dependency as "<service>: <message>".
func ExternalService(service, message string, details any) *Error {
	return &Error{Kind: KindExternalService, Message: service + ": " + message, Details: details, Operational: true}
}

// Internal wraps an unexpected error. Its message is withheld in production.
func Internal(err error) *Error {
	msg := "Internal server error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// As returns the first [*Error] in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// From returns err as an [*Error], wrapping unclassified errors with
// [Internal].
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return Internal(err)
}
