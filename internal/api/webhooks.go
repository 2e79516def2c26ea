package api

import (
	"io"
	"net/http"

	"github.com/MrEthical07/goAccount/apperr"
)

const maxWebhookBytes = 64 << 10

type webhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
}

// handleStripeWebhook reads the raw body untouched; the signature covers the
// exact bytes.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		s.writeError(w, r, apperr.Validation("Invalid webhook payload", nil))
		return
	}

	outcome, err := s.webhooks.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, webhookResponse{Received: true, Outcome: outcome.String()}, "")
}
