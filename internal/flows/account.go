package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/credential"
)

// RegisterFailureKind classifies registration failures.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureInvalid
	RegisterFailurePolicy
	RegisterFailureExists
	RegisterFailureBilling
	RegisterFailureBackend
	RegisterFailureIssue
)

// RegisterInput is the flow-local registration request.
type RegisterInput struct {
	Email    string
	Password string
	Profile  credential.Profile
}

// RegisterResult carries the created account and its first token pair.
type RegisterResult struct {
	Failure RegisterFailureKind
	Err     error
	Account *credential.Account
	Tokens  IssuedTokens
}

type RegisterStore interface {
	FindByEmail(ctx context.Context, email string, fields credential.Fields) (*credential.Account, error)
	Create(ctx context.Context, account *credential.Account) error
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	Hooks
	Store RegisterStore

	ValidatePassword func(string) error
	HashPassword     func(ctx context.Context, password string) (string, error)
	NewAccountID     func() string
	NewSecret        func() (string, error)

	// ProvisionCustomer creates the billing customer mirroring the account.
	// Nil disables billing provisioning.
	ProvisionCustomer func(ctx context.Context, account *credential.Account) (string, error)
	RemoveCustomer    func(ctx context.Context, customerID string) error
	IssueTokens       func(ctx context.Context, account *credential.Account) (IssuedTokens, error)
	SendVerification  func(ctx context.Context, email, token string) error

	Metrics struct {
		Success   int
		Duplicate int
	}
	Events struct {
		Success   string
		Failure   string
		Duplicate string
	}
}

// RunRegister creates an account. The duplicate check runs before the billing
// customer is created; if a concurrent registration wins the email anyway,
// the orphaned customer is removed again.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) RegisterResult {
	deps.normalize()
	fail := func(kind RegisterFailureKind, why string, err error) RegisterResult {
		deps.EmitAudit(ctx, deps.Events.Failure, false, "", err, reason(why))
		return RegisterResult{Failure: kind, Err: err}
	}

	email := credential.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" || in.Profile.FirstName == "" || in.Profile.LastName == "" {
		return fail(RegisterFailureInvalid, "missing_fields", nil)
	}
	if deps.ValidatePassword != nil {
		if err := deps.ValidatePassword(in.Password); err != nil {
			return fail(RegisterFailurePolicy, "password_policy", err)
		}
	}

	if _, err := deps.Store.FindByEmail(ctx, email, credential.FieldsNone); err == nil {
		deps.MetricInc(deps.Metrics.Duplicate)
		deps.EmitAudit(ctx, deps.Events.Duplicate, false, "", nil, nil)
		return RegisterResult{Failure: RegisterFailureExists}
	} else if !errors.Is(err, credential.ErrNotFound) {
		return fail(RegisterFailureBackend, "lookup_failed", err)
	}

	hash, err := deps.HashPassword(ctx, in.Password)
	if err != nil {
		return fail(RegisterFailureBackend, "hash_failed", err)
	}
	verifyToken, err := deps.NewSecret()
	if err != nil {
		return fail(RegisterFailureBackend, "secret_failed", err)
	}

	now := deps.Now()
	account := &credential.Account{
		ID:                deps.NewAccountID(),
		Email:             email,
		Profile:           in.Profile,
		PasswordHash:      hash,
		Active:            true,
		VerificationToken: verifyToken,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if deps.ProvisionCustomer != nil {
		customerID, err := deps.ProvisionCustomer(ctx, account)
		if err != nil {
			return fail(RegisterFailureBilling, "billing_customer_failed", err)
		}
		account.BillingCustomerID = customerID
	}

	if err := deps.Store.Create(ctx, account); err != nil {
		if account.BillingCustomerID != "" && deps.RemoveCustomer != nil {
			if rmErr := deps.RemoveCustomer(ctx, account.BillingCustomerID); rmErr != nil {
				deps.Warn("orphaned billing customer", "customer_id", account.BillingCustomerID, "error", rmErr)
			}
		}
		if errors.Is(err, credential.ErrEmailTaken) {
			deps.MetricInc(deps.Metrics.Duplicate)
			deps.EmitAudit(ctx, deps.Events.Duplicate, false, "", nil, nil)
			return RegisterResult{Failure: RegisterFailureExists}
		}
		return fail(RegisterFailureBackend, "create_failed", err)
	}

	if deps.SendVerification != nil {
		if err := deps.SendVerification(ctx, email, verifyToken); err != nil {
			deps.Warn("verification email failed", "account_id", account.ID, "error", err)
		}
	}

	account.PasswordHash = ""
	account.VerificationToken = ""

	tokens, err := deps.IssueTokens(ctx, account)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureIssue, Err: err, Account: account}
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, account.ID, nil, nil)
	return RegisterResult{Account: account, Tokens: tokens}
}

// SoftDeleteStore is the store subset used by account deletion.
type SoftDeleteStore interface {
	FindByID(ctx context.Context, id string, fields credential.Fields) (*credential.Account, error)
	SoftDelete(ctx context.Context, id string, now time.Time) error
}

// DeleteAccountDeps captures account deletion dependencies.
type DeleteAccountDeps struct {
	Hooks
	Store          SoftDeleteStore
	VerifyPassword func(ctx context.Context, password, hash string) (bool, error)
	RemoveCustomer func(ctx context.Context, customerID string) error

	Metric int
	Event  string
}

// DeleteFailureKind classifies account deletion failures.
type DeleteFailureKind int

const (
	DeleteFailureNone DeleteFailureKind = iota
	DeleteFailureNotFound
	DeleteFailurePassword
	DeleteFailureBackend
)

// RunDeleteAccount soft-deletes an account after re-checking its password.
// Refresh tokens are revoked with the delete; the billing customer is removed
// afterwards and a failure there does not undo the delete.
func RunDeleteAccount(ctx context.Context, accountID, password string, deps DeleteAccountDeps) (DeleteFailureKind, error) {
	deps.normalize()

	account, err := deps.Store.FindByID(ctx, accountID, credential.FieldPasswordHash)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return DeleteFailureNotFound, err
		}
		return DeleteFailureBackend, err
	}
	if account.Deleted {
		return DeleteFailureNotFound, credential.ErrNotFound
	}

	ok, err := deps.VerifyPassword(ctx, password, account.PasswordHash)
	if err != nil && ctx.Err() != nil {
		return DeleteFailureBackend, err
	}
	if !ok {
		deps.EmitAudit(ctx, deps.Event, false, accountID, nil, reason("bad_password"))
		return DeleteFailurePassword, nil
	}

	if err := deps.Store.SoftDelete(ctx, accountID, deps.Now()); err != nil {
		return DeleteFailureBackend, err
	}
	if account.BillingCustomerID != "" && deps.RemoveCustomer != nil {
		if err := deps.RemoveCustomer(ctx, account.BillingCustomerID); err != nil {
			deps.Warn("billing customer removal failed", "account_id", accountID, "error", err)
		}
	}

	deps.MetricInc(deps.Metric)
	deps.EmitAudit(ctx, deps.Event, true, accountID, nil, nil)
	return DeleteFailureNone, nil
}
