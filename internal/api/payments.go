package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/goAccount/apperr"
	"github.com/MrEthical07/goAccount/billing"
)

// billingCustomer returns the processor customer of the caller.
func billingCustomer(r *http.Request) (string, string, error) {
	sess, err := session(r)
	if err != nil {
		return "", "", err
	}
	if sess.BillingCustomerID == "" {
		return "", "", apperr.NotFound("Customer")
	}
	return sess.AccountID, sess.BillingCustomerID, nil
}

type intentRequest struct {
	Amount      float64           `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

type intentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	accountID, customerID, err := billingCustomer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req intentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var v validator
	v.check(req.Amount >= 0.01, "amount", "Amount must be greater than 0")
	v.oneOf(req.Currency, currencies, "currency", "Invalid currency")
	v.maxLen(req.Description, 500, "description", "Description cannot exceed 500 characters")
	if err := v.err(); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, _ := session(r)
	metadata := make(map[string]string, len(req.Metadata)+2)
	for k, val := range req.Metadata {
		metadata[k] = val
	}
	metadata["customerId"] = accountID
	metadata["customerEmail"] = sess.Email

	intent, err := s.billing.CreatePaymentIntent(r.Context(), billing.IntentRequest{
		Amount:      req.Amount,
		Currency:    strings.ToLower(req.Currency),
		CustomerID:  customerID,
		Description: req.Description,
		Metadata:    metadata,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("payment intent created", "account_id", accountID, "payment_intent", intent.ID, "amount", intent.Amount)
	respondOK(w, http.StatusOK, intentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
	}, "")
}

type chargeRequest struct {
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	PaymentMethodID   string  `json:"paymentMethodId"`
	SavePaymentMethod bool    `json:"savePaymentMethod"`
	Description       string  `json:"description"`
}

type chargeItemsRequest struct {
	Items             []billing.LineItem `json:"items"`
	Currency          string             `json:"currency"`
	PaymentMethodID   string             `json:"paymentMethodId"`
	SavePaymentMethod bool               `json:"savePaymentMethod"`
	Description       string             `json:"description"`
}

type invoiceSummary struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	InvoiceURL string `json:"invoiceUrl,omitempty"`
	InvoicePDF string `json:"invoicePdf,omitempty"`
}

type intentSummary struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type chargeResponse struct {
	Invoice       invoiceSummary `json:"invoice"`
	PaymentIntent *intentSummary `json:"paymentIntent"`
	PaymentStatus billing.Status `json:"paymentStatus"`
}

func newChargeResponse(res *billing.ChargeResult) chargeResponse {
	out := chargeResponse{
		Invoice: invoiceSummary{
			ID:         res.Invoice.ID,
			Status:     res.Invoice.Status,
			Amount:     res.Invoice.AmountPaid,
			Currency:   res.Invoice.Currency,
			InvoiceURL: res.Invoice.HostedInvoiceURL,
			InvoicePDF: res.Invoice.InvoicePDF,
		},
		PaymentStatus: res.Status,
	}
	if res.PaymentIntent != nil {
		out.PaymentIntent = &intentSummary{ID: res.PaymentIntent.ID, Status: res.PaymentIntent.Status}
	}
	return out
}

func (s *Server) handleCharge(w http.ResponseWriter, r *http.Request) {
	accountID, customerID, err := billingCustomer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req chargeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var v validator
	v.check(req.Amount >= 0.01, "amount", "Amount must be greater than 0")
	v.oneOf(req.Currency, currencies, "currency", "Invalid currency")
	v.required(req.PaymentMethodID, "paymentMethodId", "Payment method is required")
	v.maxLen(req.Description, 500, "description", "Description cannot exceed 500 characters")
	if err := v.err(); err != nil {
		s.writeError(w, r, err)
		return
	}

	itemDescription := req.Description
	if itemDescription == "" {
		itemDescription = "Payment"
	}
	res, err := s.billing.ChargeInvoice(r.Context(), billing.ChargeRequest{
		CustomerID:        customerID,
		Items:             []billing.LineItem{{Description: itemDescription, Quantity: 1, UnitPrice: req.Amount, Amount: req.Amount}},
		PaymentMethodID:   req.PaymentMethodID,
		SavePaymentMethod: req.SavePaymentMethod,
		Description:       req.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("payment processed", "account_id", accountID, "invoice_id", res.Invoice.ID, "status", res.Status)
	respondOK(w, http.StatusOK, newChargeResponse(res), "")
}

func (s *Server) handleChargeWithItems(w http.ResponseWriter, r *http.Request) {
	accountID, customerID, err := billingCustomer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req chargeItemsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var v validator
	v.check(len(req.Items) > 0, "items", "At least one item is required")
	for i, item := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		v.required(item.Description, field+".description", "Description is required")
		v.maxLen(item.Description, 200, field+".description", "Description cannot exceed 200 characters")
		v.check(item.Quantity >= 1, field+".quantity", "Quantity must be at least 1")
		v.check(item.UnitPrice >= 0.01, field+".unitPrice", "Unit price must be greater than 0")
		v.check(item.Amount >= 0.01, field+".amount", "Amount must be greater than 0")
	}
	v.oneOf(req.Currency, currencies, "currency", "Invalid currency")
	v.required(req.PaymentMethodID, "paymentMethodId", "Payment method is required")
	if err := v.err(); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.billing.ChargeInvoice(r.Context(), billing.ChargeRequest{
		CustomerID:        customerID,
		Items:             req.Items,
		PaymentMethodID:   req.PaymentMethodID,
		SavePaymentMethod: req.SavePaymentMethod,
		Description:       req.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var total float64
	for _, item := range req.Items {
		total += item.Amount
	}
	s.logger.Info("multi-item payment processed", "account_id", accountID, "invoice_id", res.Invoice.ID, "items", len(req.Items), "total", total)
	respondOK(w, http.StatusOK, newChargeResponse(res), "")
}

type refundRequest struct {
	PaymentIntentID string            `json:"paymentIntentId"`
	Amount          float64           `json:"amount"`
	Reason          string            `json:"reason"`
	Metadata        map[string]string `json:"metadata"`
}

type refundResponse struct {
	RefundID string  `json:"refundId"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Status   string  `json:"status"`
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	accountID, customerID, err := billingCustomer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req refundRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var v validator
	v.required(req.PaymentIntentID, "paymentIntentId", "Payment intent ID is required")
	v.check(req.Amount == 0 || req.Amount >= 0.01, "amount", "Amount must be greater than 0")
	v.oneOf(req.Reason, refundReasons, "reason", "Invalid refund reason")
	if err := v.err(); err != nil {
		s.writeError(w, r, err)
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = req.Metadata["reason"]
	}
	refund, err := s.billing.Refund(r.Context(), billing.RefundRequest{
		PaymentIntentID: req.PaymentIntentID,
		CustomerID:      customerID,
		Amount:          req.Amount,
		Reason:          reason,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("refund created", "account_id", accountID, "refund_id", refund.ID, "payment_intent", req.PaymentIntentID)
	respondOK(w, http.StatusOK, refundResponse{
		RefundID: refund.ID,
		Amount:   billing.FromMinorUnits(refund.Amount),
		Currency: refund.Currency,
		Status:   refund.Status,
	}, "")
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	_, customerID, err := billingCustomer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := pageLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.billing.History(r.Context(), customerID, limit, r.URL.Query().Get("startingAfter"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, page, "")
}

// pageLimit parses the optional ?limit= query parameter (1..100, default 10).
func pageLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 10, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 100 {
		return 0, apperr.Validation("Validation failed", []fieldError{{Field: "limit", Message: "Limit must be between 1 and 100"}})
	}
	return n, nil
}
