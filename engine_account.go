package goAccount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goAccount/billing"
	"github.com/MrEthical07/goAccount/credential"
	"github.com/MrEthical07/goAccount/internal"
	"github.com/MrEthical07/goAccount/internal/flows"
)

// DeleteConfirmation is the literal a caller must send to delete an account.
const DeleteConfirmation = "DELETE"

// Register creates an account, provisions its billing customer when a
// provisioner is configured, sends the verification email and returns a
// token pair. A billing failure leaves no account behind.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunRegister(ctx, flows.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Profile: credential.Profile{
			FirstName: strings.TrimSpace(req.FirstName),
			LastName:  strings.TrimSpace(req.LastName),
			Phone:     strings.TrimSpace(req.Phone),
			Address:   req.Address,
		},
	}, e.registerFlowDeps())

	switch res.Failure {
	case flows.RegisterFailureNone:
	case flows.RegisterFailureInvalid:
		return nil, ErrInvalidInput
	case flows.RegisterFailurePolicy:
		return nil, res.Err
	case flows.RegisterFailureExists:
		return nil, ErrAccountExists
	case flows.RegisterFailureBilling:
		return nil, fmt.Errorf("%w: %w", ErrBillingUnavailable, res.Err)
	case flows.RegisterFailureIssue:
		return nil, res.Err
	default:
		return nil, unavailable(res.Err)
	}

	e.logger.Info("account registered", "account_id", res.Account.ID)
	return &AuthResult{
		Account: newAccountView(res.Account),
		Tokens:  e.tokenPair(res.Tokens),
	}, nil
}

func (e *Engine) registerFlowDeps() flows.RegisterDeps {
	deps := flows.RegisterDeps{
		Hooks:            e.hooks(),
		Store:            e.store,
		ValidatePassword: e.validatePassword,
		HashPassword:     e.passwords.Hash,
		NewAccountID:     uuid.NewString,
		NewSecret:        internal.NewSecret,
		IssueTokens:      e.issueTokens,
	}
	if e.customers != nil {
		deps.ProvisionCustomer = func(ctx context.Context, a *credential.Account) (string, error) {
			return e.customers.ProvisionCustomer(ctx, customerDetails(a))
		}
		deps.RemoveCustomer = e.customers.RemoveCustomer
	}
	if e.notifier != nil {
		deps.SendVerification = e.notifier.SendVerification
	}
	deps.Metrics.Success = int(MetricRegisterSuccess)
	deps.Metrics.Duplicate = int(MetricRegisterDuplicate)
	deps.Events.Success = auditEventAccountCreationSuccess
	deps.Events.Failure = auditEventAccountCreationFailure
	deps.Events.Duplicate = auditEventAccountCreationDuplicate
	return deps
}

func customerDetails(a *credential.Account) billing.CustomerDetails {
	return billing.CustomerDetails{
		AccountID: a.ID,
		Email:     a.Email,
		Name:      a.FullName(),
		Phone:     a.Phone,
		Address: billing.Address{
			Line1:      a.Address.Line1,
			Line2:      a.Address.Line2,
			City:       a.Address.City,
			State:      a.Address.State,
			PostalCode: a.Address.PostalCode,
			Country:    a.Address.Country,
		},
	}
}

// Profile returns the public view of an account.
func (e *Engine) Profile(ctx context.Context, accountID string) (AccountView, error) {
	if e == nil || e.store == nil {
		return AccountView{}, ErrEngineNotReady
	}
	a, err := e.findLive(ctx, accountID)
	if err != nil {
		return AccountView{}, err
	}
	return newAccountView(a), nil
}

// UpdateProfile applies the non-nil fields of upd. The billing customer is
// synced afterwards; a sync failure is logged and does not fail the update.
func (e *Engine) UpdateProfile(ctx context.Context, accountID string, upd ProfileUpdate) (AccountView, error) {
	if e == nil || e.store == nil {
		return AccountView{}, ErrEngineNotReady
	}
	a, err := e.findLive(ctx, accountID)
	if err != nil {
		return AccountView{}, err
	}

	profile := upd.apply(a.Profile)
	profile.FirstName = strings.TrimSpace(profile.FirstName)
	profile.LastName = strings.TrimSpace(profile.LastName)
	if profile.FirstName == "" || profile.LastName == "" {
		return AccountView{}, ErrInvalidInput
	}

	if err := e.store.UpdateProfile(ctx, accountID, profile); err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return AccountView{}, ErrAccountNotFound
		}
		return AccountView{}, unavailable(err)
	}
	a.Profile = profile
	a.UpdatedAt = time.Now()

	if e.customers != nil && a.BillingCustomerID != "" && upd.touchesBilling() {
		if err := e.customers.SyncCustomer(ctx, a.BillingCustomerID, customerDetails(a)); err != nil {
			e.logger.Warn("billing customer sync failed", "account_id", accountID, "customer_id", a.BillingCustomerID, "error", err)
		}
	}

	e.emitAudit(ctx, auditEventProfileUpdated, true, accountID, nil, nil)
	return newAccountView(a), nil
}

// DeleteAccount soft-deletes the account after re-checking its password.
// confirmation must equal [DeleteConfirmation].
func (e *Engine) DeleteAccount(ctx context.Context, accountID, password, confirmation string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if password == "" {
		return ErrInvalidInput
	}
	if confirmation != DeleteConfirmation {
		return ErrDeleteConfirmation
	}

	deps := flows.DeleteAccountDeps{
		Hooks:          e.hooks(),
		Store:          e.store,
		VerifyPassword: e.passwords.Verify,
		Metric:         int(MetricAccountDeleted),
		Event:          auditEventAccountDeleted,
	}
	if e.customers != nil {
		deps.RemoveCustomer = e.customers.RemoveCustomer
	}

	kind, err := flows.RunDeleteAccount(ctx, accountID, password, deps)
	switch kind {
	case flows.DeleteFailureNone:
		e.logger.Info("account deleted", "account_id", accountID)
		return nil
	case flows.DeleteFailureNotFound:
		return ErrAccountNotFound
	case flows.DeleteFailurePassword:
		return ErrInvalidPassword
	default:
		return unavailable(err)
	}
}

func (e *Engine) findLive(ctx context.Context, accountID string) (*credential.Account, error) {
	a, err := e.store.FindByID(ctx, accountID, credential.FieldsNone)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, unavailable(err)
	}
	if a.Deleted {
		return nil, ErrAccountNotFound
	}
	return a, nil
}
