package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/apperr"
	"github.com/MrEthical07/goAccount/credential"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.accounts.Profile(r.Context(), sess.AccountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, view, "")
}

type updateProfileRequest struct {
	FirstName *string             `json:"firstName"`
	LastName  *string             `json:"lastName"`
	Phone     *string             `json:"phone"`
	Address   *credential.Address `json:"address"`
}

func (req updateProfileRequest) validate() error {
	var v validator
	if req.FirstName != nil {
		v.required(*req.FirstName, "firstName", "First name cannot be empty")
		v.maxLen(*req.FirstName, 50, "firstName", "First name cannot exceed 50 characters")
	}
	if req.LastName != nil {
		v.required(*req.LastName, "lastName", "Last name cannot be empty")
		v.maxLen(*req.LastName, 50, "lastName", "Last name cannot exceed 50 characters")
	}
	if req.Address != nil {
		v.check(req.Address.Country == "" || len(req.Address.Country) == 2, "address.country", "Country must be an ISO 3166-1 alpha-2 code")
	}
	return v.err()
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.accounts.UpdateProfile(r.Context(), sess.AccountID, goAccount.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, view, "Profile updated successfully")
}

type deleteAccountRequest struct {
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req deleteAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var v validator
	v.check(req.Password != "", "password", "Password is required to delete account")
	v.check(req.Confirmation == goAccount.DeleteConfirmation, "confirmation", `Please type "DELETE" to confirm account deletion`)
	if err := v.err(); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.accounts.DeleteAccount(r.Context(), sess.AccountID, req.Password, req.Confirmation); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, nil, "Account deleted successfully")
}

/* ==== PAYMENT METHODS ==== */

func (s *Server) handleListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	_, customerID, err := billingCustomer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	methods, err := s.billing.PaymentMethods(r.Context(), customerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, methods, "")
}

type addPaymentMethodRequest struct {
	PaymentMethodID string `json:"paymentMethodId"`
	SetAsDefault    bool   `json:"setAsDefault"`
}

func (s *Server) handleAddPaymentMethod(w http.ResponseWriter, r *http.Request) {
	_, customerID, err := billingCustomer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req addPaymentMethodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var v validator
	v.required(req.PaymentMethodID, "paymentMethodId", "Payment method is required")
	if err := v.err(); err != nil {
		s.writeError(w, r, err)
		return
	}

	pm, err := s.billing.AddPaymentMethod(r.Context(), customerID, req.PaymentMethodID, req.SetAsDefault)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, pm, "Payment method added successfully")
}

func (s *Server) handleSetDefaultPaymentMethod(w http.ResponseWriter, r *http.Request) {
	_, customerID, err := billingCustomer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.ownPaymentMethod(r, customerID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.billing.SetDefaultPaymentMethod(r.Context(), customerID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, nil, "Default payment method updated")
}

func (s *Server) handleRemovePaymentMethod(w http.ResponseWriter, r *http.Request) {
	_, customerID, err := billingCustomer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.ownPaymentMethod(r, customerID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.billing.RemovePaymentMethod(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, nil, "Payment method removed successfully")
}

// ownPaymentMethod reports a payment method of another customer as missing.
func (s *Server) ownPaymentMethod(r *http.Request, customerID, id string) error {
	methods, err := s.billing.PaymentMethods(r.Context(), customerID)
	if err != nil {
		return err
	}
	for _, pm := range methods {
		if pm.ID == id {
			return nil
		}
	}
	return apperr.NotFound("Payment method")
}

/* ==== INVOICES ==== */

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	s.handleHistory(w, r)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	_, customerID, err := billingCustomer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	inv, err := s.billing.Invoice(r.Context(), customerID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, inv, "")
}

func (s *Server) handleDownloadInvoice(w http.ResponseWriter, r *http.Request) {
	_, customerID, err := billingCustomer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	url, err := s.billing.InvoicePDF(r.Context(), customerID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, map[string]string{"url": url}, "")
}
