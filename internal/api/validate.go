package api

import (
	"net/mail"
	"strings"

	"github.com/MrEthical07/goAccount/apperr"
)

// fieldError is one entry of a validation failure's details.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validator struct {
	errs []fieldError
}

func (v *validator) check(ok bool, field, message string) {
	if !ok {
		v.errs = append(v.errs, fieldError{Field: field, Message: message})
	}
}

func (v *validator) required(value, field, message string) {
	v.check(strings.TrimSpace(value) != "", field, message)
}

func (v *validator) email(value, field string) {
	addr, err := mail.ParseAddress(value)
	v.check(err == nil && addr.Address == strings.TrimSpace(value), field, "Please provide a valid email")
}

func (v *validator) maxLen(value string, n int, field, message string) {
	v.check(len(strings.TrimSpace(value)) <= n, field, message)
}

func (v *validator) oneOf(value string, allowed []string, field, message string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return
		}
	}
	v.errs = append(v.errs, fieldError{Field: field, Message: message})
}

// err returns the collected failures as one validation error, or nil.
func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.Validation("Validation failed", v.errs)
}

var (
	currencies    = []string{"usd", "eur", "gbp"}
	refundReasons = []string{"duplicate", "fraudulent", "requested_by_customer", "other"}
)
