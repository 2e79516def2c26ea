package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `
	id::text, email, first_name, last_name, phone,
	addr_line1, addr_line2, addr_city, addr_state, addr_postal_code, addr_country,
	email_verified, active, deleted, deleted_at, COALESCE(billing_customer_id, ''),
	last_login, created_at, updated_at,
	password_hash, refresh_tokens, login_attempts, lock_until,
	COALESCE(verification_token, ''), COALESCE(reset_token_hash, ''), reset_expires`

// PostgresStore is the relational Store. Lockout and rotation are single
// conditional UPDATE statements; the row lock serialises concurrent callers.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore returns a Store backed by db. Run [Migrate] first.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, a *Account) error {
	if a == nil || a.ID == "" {
		return errors.New("account id required")
	}
	a.Email = NormalizeEmail(a.Email)

	query := `
		INSERT INTO accounts (
			id, email, password_hash, first_name, last_name, phone,
			addr_line1, addr_line2, addr_city, addr_state, addr_postal_code, addr_country,
			email_verified, verification_token, active, billing_customer_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, ''), $15, NULLIF($16, ''))
		RETURNING created_at, updated_at`

	err := s.db.QueryRow(ctx, query,
		a.ID, a.Email, a.PasswordHash, a.FirstName, a.LastName, a.Phone,
		a.Address.Line1, a.Address.Line2, a.Address.City, a.Address.State, a.Address.PostalCode, a.Address.Country,
		a.EmailVerified, a.VerificationToken, a.Active, a.BillingCustomerID,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return unavailable(err)
	}
	return nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string, fields Fields) (*Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = $1`, NormalizeEmail(email))
	return scanAccount(row, fields)
}

func (s *PostgresStore) FindByID(ctx context.Context, id string, fields Fields) (*Account, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1::uuid`, id)
	return scanAccount(row, fields)
}

// RecordFailedAttempt evaluates every CASE against the pre-update row, so the
// reset, increment and lock decisions all see the same snapshot.
func (s *PostgresStore) RecordFailedAttempt(ctx context.Context, id string, policy LockoutPolicy, now time.Time) (LockoutState, error) {
	if !validID(id) {
		return LockoutState{}, ErrNotFound
	}
	query := `
		UPDATE accounts SET
			login_attempts = CASE
				WHEN lock_until IS NOT NULL AND lock_until <= $2 THEN 1
				ELSE login_attempts + 1
			END,
			lock_until = CASE
				WHEN lock_until IS NOT NULL AND lock_until <= $2 THEN NULL
				WHEN lock_until IS NULL AND login_attempts + 1 >= $3 THEN $4::timestamptz
				ELSE lock_until
			END,
			updated_at = $2
		WHERE id = $1::uuid
		RETURNING login_attempts, lock_until`

	var (
		state LockoutState
		lock  *time.Time
	)
	err := s.db.QueryRow(ctx, query, id, now, policy.Threshold, now.Add(policy.Duration)).Scan(&state.Attempts, &lock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LockoutState{}, ErrNotFound
		}
		return LockoutState{}, unavailable(err)
	}
	if lock != nil {
		state.LockUntil = *lock
	}
	return state, nil
}

func (s *PostgresStore) RecordSuccess(ctx context.Context, id string, now time.Time) error {
	return s.execOne(ctx, `
		UPDATE accounts SET login_attempts = 0, lock_until = NULL, last_login = $2, updated_at = $2
		WHERE id = $1::uuid`, id, now)
}

func (s *PostgresStore) PushRefreshToken(ctx context.Context, id, token string, max int) error {
	if max <= 0 {
		max = DefaultRefreshTokenCap
	}
	return s.execOne(ctx, `
		UPDATE accounts SET refresh_tokens = `+keepNewest(`array_append(refresh_tokens, $2)`, "$3")+`, updated_at = now()
		WHERE id = $1::uuid`, id, token, max)
}

// RotateRefreshToken matches only while old is still in the array. A second
// concurrent rotation re-checks the WHERE clause after the first commits and
// updates nothing.
func (s *PostgresStore) RotateRefreshToken(ctx context.Context, id, oldToken, newToken string, max int) error {
	if max <= 0 {
		max = DefaultRefreshTokenCap
	}
	if !validID(id) {
		return ErrRefreshNotLive
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET refresh_tokens = `+keepNewest(`array_append(array_remove(refresh_tokens, $2), $3)`, "$4")+`, updated_at = now()
		WHERE id = $1::uuid AND $2 = ANY(refresh_tokens)`, id, oldToken, newToken, max)
	if err != nil {
		return unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRefreshNotLive
	}
	return nil
}

func (s *PostgresStore) RemoveRefreshToken(ctx context.Context, id, token string) error {
	return s.execOne(ctx, `
		UPDATE accounts SET refresh_tokens = array_remove(refresh_tokens, $2), updated_at = now()
		WHERE id = $1::uuid`, id, token)
}

func (s *PostgresStore) ClearRefreshTokens(ctx context.Context, id string) error {
	return s.execOne(ctx, `UPDATE accounts SET refresh_tokens = '{}', updated_at = now() WHERE id = $1::uuid`, id)
}

func (s *PostgresStore) SetPasswordHash(ctx context.Context, id, hash string, revokeSessions bool) error {
	return s.execOne(ctx, `
		UPDATE accounts SET
			password_hash = $2,
			refresh_tokens = CASE WHEN $3 THEN '{}'::text[] ELSE refresh_tokens END,
			updated_at = now()
		WHERE id = $1::uuid`, id, hash, revokeSessions)
}

func (s *PostgresStore) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	return s.execOne(ctx, `
		UPDATE accounts SET reset_token_hash = $2, reset_expires = $3, updated_at = now()
		WHERE id = $1::uuid`, id, tokenHash, expires)
}

// ConsumeResetToken clears the token in the same statement that matches it.
func (s *PostgresStore) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		UPDATE accounts SET reset_token_hash = NULL, reset_expires = NULL, updated_at = now()
		WHERE reset_token_hash = $1 AND reset_expires > $2
		RETURNING id::text`, tokenHash, now).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrTokenNotFound
		}
		return "", unavailable(err)
	}
	return id, nil
}

func (s *PostgresStore) SetVerificationToken(ctx context.Context, id, token string) error {
	return s.execOne(ctx, `
		UPDATE accounts SET verification_token = $2, updated_at = now()
		WHERE id = $1::uuid`, id, token)
}

func (s *PostgresStore) ConsumeVerificationToken(ctx context.Context, token string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		UPDATE accounts SET verification_token = NULL, email_verified = TRUE, updated_at = now()
		WHERE verification_token = $1
		RETURNING id::text`, token).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrTokenNotFound
		}
		return "", unavailable(err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, p Profile) error {
	return s.execOne(ctx, `
		UPDATE accounts SET
			first_name = $2, last_name = $3, phone = $4,
			addr_line1 = $5, addr_line2 = $6, addr_city = $7,
			addr_state = $8, addr_postal_code = $9, addr_country = $10,
			updated_at = now()
		WHERE id = $1::uuid`,
		id, p.FirstName, p.LastName, p.Phone,
		p.Address.Line1, p.Address.Line2, p.Address.City,
		p.Address.State, p.Address.PostalCode, p.Address.Country,
	)
}

func (s *PostgresStore) SetBillingCustomer(ctx context.Context, id, customerID string) error {
	return s.execOne(ctx, `
		UPDATE accounts SET billing_customer_id = $2, updated_at = now()
		WHERE id = $1::uuid`, id, customerID)
}

func (s *PostgresStore) ClearBillingCustomer(ctx context.Context, customerID string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		UPDATE accounts SET billing_customer_id = NULL, updated_at = now()
		WHERE billing_customer_id = $1
		RETURNING id::text`, customerID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", unavailable(err)
	}
	return id, nil
}

func (s *PostgresStore) SoftDelete(ctx context.Context, id string, now time.Time) error {
	return s.execOne(ctx, `
		UPDATE accounts SET active = FALSE, deleted = TRUE, deleted_at = $2,
			refresh_tokens = '{}', updated_at = $2
		WHERE id = $1::uuid`, id, now)
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET reset_token_hash = NULL, reset_expires = NULL
		WHERE reset_expires IS NOT NULL AND reset_expires <= $1`, now)
	if err != nil {
		return 0, unavailable(err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *PostgresStore) execOne(ctx context.Context, query string, id string, args ...any) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := s.db.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// keepNewest trims an array expression to its last n elements, preserving
// order.
func keepNewest(arrayExpr, n string) string {
	return fmt.Sprintf(`(
		SELECT COALESCE(array_agg(t ORDER BY ord), '{}'::text[]) FROM (
			SELECT t, ord FROM unnest(%s) WITH ORDINALITY AS x(t, ord)
			ORDER BY ord DESC LIMIT %s
		) kept
	)`, arrayExpr, n)
}

func scanAccount(row pgx.Row, fields Fields) (*Account, error) {
	var (
		a                                  Account
		deletedAt, lastLogin, lock, expire *time.Time
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.Phone,
		&a.Address.Line1, &a.Address.Line2, &a.Address.City, &a.Address.State, &a.Address.PostalCode, &a.Address.Country,
		&a.EmailVerified, &a.Active, &a.Deleted, &deletedAt, &a.BillingCustomerID,
		&lastLogin, &a.CreatedAt, &a.UpdatedAt,
		&a.PasswordHash, &a.RefreshTokens, &a.LoginAttempts, &lock,
		&a.VerificationToken, &a.ResetTokenHash, &expire,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	a.DeletedAt = deref(deletedAt)
	a.LastLogin = deref(lastLogin)
	a.LockUntil = deref(lock)
	a.ResetTokenExpires = deref(expire)
	return scrub(&a, fields), nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
