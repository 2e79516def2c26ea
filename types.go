package goAccount

import (
	"context"
	"io"
	"time"

	"github.com/MrEthical07/goAccount/billing"
	"github.com/MrEthical07/goAccount/credential"
	internalaudit "github.com/MrEthical07/goAccount/internal/audit"
)

// Session is the immutable identity attached to an authenticated request.
// It is a snapshot of the account taken when the access token was resolved.
type Session struct {
	AccountID         string
	Email             string
	EmailVerified     bool
	FirstName         string
	LastName          string
	BillingCustomerID string
	TokenID           string
	ExpiresAt         time.Time
}

// TokenPair is returned by login, registration and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// AccountView is the public representation of an account. It never carries
// the password hash, refresh tokens or one-time secrets.
type AccountView struct {
	ID                string             `json:"id"`
	Email             string             `json:"email"`
	FirstName         string             `json:"firstName"`
	LastName          string             `json:"lastName"`
	Phone             string             `json:"phone,omitempty"`
	Address           credential.Address `json:"address"`
	EmailVerified     bool               `json:"emailVerified"`
	Active            bool               `json:"isActive"`
	BillingCustomerID string             `json:"stripeCustomerId,omitempty"`
	LastLogin         *time.Time         `json:"lastLogin,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

func newAccountView(a *credential.Account) AccountView {
	v := AccountView{
		ID:                a.ID,
		Email:             a.Email,
		FirstName:         a.FirstName,
		LastName:          a.LastName,
		Phone:             a.Phone,
		Address:           a.Address,
		EmailVerified:     a.EmailVerified,
		Active:            a.Active,
		BillingCustomerID: a.BillingCustomerID,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
	if !a.LastLogin.IsZero() {
		last := a.LastLogin
		v.LastLogin = &last
	}
	return v
}

// AuthResult is returned by [Engine.Register] and [Engine.Login].
type AuthResult struct {
	Account AccountView `json:"user"`
	Tokens  TokenPair   `json:"tokens"`
}

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Address   credential.Address
}

// ProfileUpdate carries the editable profile fields. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *credential.Address
}

func (u ProfileUpdate) touchesBilling() bool {
	return u.FirstName != nil || u.LastName != nil || u.Phone != nil || u.Address != nil
}

func (u ProfileUpdate) apply(p credential.Profile) credential.Profile {
	if u.FirstName != nil {
		p.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		p.LastName = *u.LastName
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.Address != nil {
		p.Address = *u.Address
	}
	return p
}

// CustomerProvisioner manages the billing customer that mirrors an account.
// [billing.Orchestrator] implements it.
type CustomerProvisioner interface {
	ProvisionCustomer(ctx context.Context, details billing.CustomerDetails) (string, error)
	SyncCustomer(ctx context.Context, customerID string, details billing.CustomerDetails) error
	RemoveCustomer(ctx context.Context, customerID string) error
}

// Notifier delivers account emails. The engine never returns raw tokens to
// HTTP callers; they only travel through the notifier.
type Notifier interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink is an [AuditSink] that writes events to a structured logger.
type SlogSink = internalaudit.SlogSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
