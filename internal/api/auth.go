package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/credential"
)

type registerRequest struct {
	Email     string             `json:"email"`
	Password  string             `json:"password"`
	FirstName string             `json:"firstName"`
	LastName  string             `json:"lastName"`
	Phone     string             `json:"phone"`
	Address   credential.Address `json:"address"`
}

func (req registerRequest) validate() error {
	var v validator
	v.email(req.Email, "email")
	v.check(len(req.Password) >= 8, "password", "Password must be at least 8 characters long")
	v.required(req.FirstName, "firstName", "First name is required")
	v.maxLen(req.FirstName, 50, "firstName", "First name cannot exceed 50 characters")
	v.required(req.LastName, "lastName", "Last name is required")
	v.maxLen(req.LastName, 50, "lastName", "Last name cannot exceed 50 characters")
	v.check(req.Address.Country == "" || len(req.Address.Country) == 2, "address.country", "Country must be an ISO 3166-1 alpha-2 code")
	return v.err()
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.accounts.Register(r.Context(), goAccount.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	respondOK(w, http.StatusCreated, res, "Registration successful. Please verify your email.")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var v validator
	v.email(req.Email, "email")
	v.check(req.Password != "", "password", "Password is required")
	if err := v.err(); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	respondOK(w, http.StatusOK, res, "Login successful")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		s.writeError(w, r, errRefreshRequired)
		return
	}

	tokens, err := s.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	respondOK(w, http.StatusOK, tokens, "")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// The body is optional.
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	if req.RefreshToken != "" {
		if err := s.accounts.Logout(r.Context(), sess.AccountID, req.RefreshToken); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	respondOK(w, http.StatusOK, nil, "Logout successful")
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.accounts.LogoutAll(r.Context(), sess.AccountID); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, nil, "Logged out from all devices")
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var v validator
	v.email(req.Email, "email")
	if err := v.err(); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.accounts.RequestPasswordReset(r.Context(), strings.TrimSpace(req.Email)); err != nil {
		s.writeError(w, r, err)
		return
	}

	respondOK(w, http.StatusOK, nil, "If an account exists with this email, a password reset link has been sent")
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var v validator
	v.required(req.Token, "token", "Reset token is required")
	v.check(len(req.NewPassword) >= 8, "newPassword", "Password must be at least 8 characters long")
	if err := v.err(); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.accounts.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}

	respondOK(w, http.StatusOK, nil, "Password reset successful. Please login with your new password.")
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var v validator
	v.check(req.CurrentPassword != "", "currentPassword", "Current password is required")
	v.check(len(req.NewPassword) >= 8, "newPassword", "Password must be at least 8 characters long")
	if err := v.err(); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.accounts.ChangePassword(r.Context(), sess.AccountID, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}

	respondOK(w, http.StatusOK, nil, "Password changed successfully")
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if _, err := s.accounts.VerifyEmail(r.Context(), chi.URLParam(r, "token")); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, nil, "Email verified successfully")
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.accounts.ResendVerification(r.Context(), sess.AccountID); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, nil, "Verification email sent")
}
