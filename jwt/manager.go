package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType is the purpose discriminator embedded in every token.
type TokenType string

const (
	// TypeAccess marks short-lived request credentials.
	TypeAccess TokenType = "access"
	// TypeRefresh marks rotating refresh credentials.
	TypeRefresh TokenType = "refresh"
)

const minSecretBytes = 32

var (
	// ErrTokenExpired is returned when exp is in the past (after leeway).
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers malformed tokens, bad signatures and claim failures.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenType is returned when a token minted for one purpose is presented for another.
	ErrTokenType = errors.New("token type mismatch")
)

// Config configures a [Manager]. Access and refresh tokens use separate
// secrets.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
}

// Manager signs and verifies access and refresh tokens with independent
// secrets and lifetimes.
type Manager struct {
	config Config
	now    func() time.Time
}

// Claims is the signed payload shared by both token types.
type Claims struct {
	AccountID string    `json:"userId"`
	Email     string    `json:"email"`
	Type      TokenType `json:"type"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a token manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if len(cfg.AccessSecret) < minSecretBytes {
		return nil, fmt.Errorf("access secret must be at least %d bytes", minSecretBytes)
	}
	if len(cfg.RefreshSecret) < minSecretBytes {
		return nil, fmt.Errorf("refresh secret must be at least %d bytes", minSecretBytes)
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)

	return &Manager{config: cfg, now: time.Now}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (j *Manager) AccessTTL() time.Duration {
	return j.config.AccessTTL
}

// Issue signs a token of the given type for the account and returns it with
// its expiry.
func (j *Manager) Issue(kind TokenType, accountID, email string) (string, time.Time, error) {
	secret, ttl, err := j.params(kind)
	if err != nil {
		return "", time.Time{}, err
	}
	if accountID == "" {
		return "", time.Time{}, errors.New("account id required")
	}

	now := j.now()
	expires := now.Add(ttl)
	claims := Claims{
		AccountID: accountID,
		Email:     email,
		Type:      kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Parse verifies signature, expiry, issuer/audience and the type
// discriminator. A refresh token is never accepted where an access token is
// expected and vice versa, even though each is checked against its own secret.
func (j *Manager) Parse(kind TokenType, tokenStr string) (*Claims, error) {
	secret, _, err := j.params(kind)
	if err != nil {
		return nil, err
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Type != kind {
		return nil, ErrTokenType
	}
	if claims.AccountID == "" {
		return nil, ErrTokenInvalid
	}
	if claims.IssuedAt != nil && j.config.MaxFutureIAT > 0 {
		if claims.IssuedAt.Time.After(j.now().Add(j.config.MaxFutureIAT)) {
			return nil, fmt.Errorf("%w: iat too far in the future", ErrTokenInvalid)
		}
	}

	return claims, nil
}

func (j *Manager) params(kind TokenType) ([]byte, time.Duration, error) {
	switch kind {
	case TypeAccess:
		return j.config.AccessSecret, j.config.AccessTTL, nil
	case TypeRefresh:
		return j.config.RefreshSecret, j.config.RefreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("unsupported token type %q", kind)
	}
}
