package goAccount

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/credential"
	"github.com/MrEthical07/goAccount/password"
)

// Config is the engine configuration. Start from [DefaultConfig].
type Config struct {
	JWT               JWTConfig
	Password          PasswordConfig
	Lockout           LockoutConfig
	Session           SessionConfig
	PasswordReset     PasswordResetConfig
	EmailVerification EmailVerificationConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
	ProductionMode    bool
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the independent access and refresh signing parameters.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hash algorithm and its cost.
type PasswordConfig struct {
	Algorithm      string // "bcrypt" (default) or "argon2id"
	BcryptCost     int
	Argon2         password.Argon2Config
	MaxConcurrency int64
	MinLength      int
	UpgradeOnLogin bool
}

// LockoutConfig configures automatic lockout after repeated failed logins.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	Duration  time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig bounds live refresh tokens per account and sets the
// verification requirement for session resolution.
type SessionConfig struct {
	RefreshTokenCap      int
	RequireVerifiedEmail bool
}

// PasswordResetConfig controls reset token lifetime and request throttling.
type PasswordResetConfig struct {
	TokenTTL      time.Duration
	MaxRequests   int
	RequestWindow time.Duration
}

// EmailVerificationConfig controls verification email throttling.
type EmailVerificationConfig struct {
	MaxRequests   int
	RequestWindow time.Duration
}

// AuditConfig controls asynchronous audit delivery.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the engine defaults. Secrets are left empty and must
// be supplied by the caller.
func DefaultConfig() Config {
	policy := credential.DefaultLockoutPolicy()
	return Config{
		JWT: JWTConfig{
			AccessTTL:  7 * 24 * time.Hour,
			RefreshTTL: 30 * 24 * time.Hour,
			Issuer:     "goaccount",
		},
		Password: PasswordConfig{
			Algorithm:  string(password.AlgorithmBcrypt),
			BcryptCost: password.DefaultBcryptCost,
			Argon2: password.Argon2Config{
				Memory:      65536,
				Time:        3,
				Parallelism: 2,
				SaltLength:  16,
				KeyLength:   32,
			},
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		Lockout: LockoutConfig{
			Enabled:   true,
			Threshold: policy.Threshold,
			Duration:  policy.Duration,
		},
		Session: SessionConfig{
			RefreshTokenCap:      credential.DefaultRefreshTokenCap,
			RequireVerifiedEmail: false,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:      time.Hour,
			MaxRequests:   5,
			RequestWindow: time.Hour,
		},
		EmailVerification: EmailVerificationConfig{
			MaxRequests:   5,
			RequestWindow: time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if len(c.JWT.AccessSecret) < 32 || len(c.JWT.RefreshSecret) < 32 {
		return errors.New("JWT secrets must be at least 32 bytes")
	}
	if string(c.JWT.AccessSecret) == string(c.JWT.RefreshSecret) {
		return errors.New("JWT access and refresh secrets must differ")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}

	// Password
	switch password.Algorithm(c.Password.Algorithm) {
	case password.AlgorithmBcrypt, "":
	case password.AlgorithmArgon2id:
		if c.Password.Argon2.Memory < 8*1024 {
			return errors.New("Password Argon2 Memory must be >= 8192 KB")
		}
	default:
		return fmt.Errorf("unsupported Password Algorithm %q", c.Password.Algorithm)
	}
	if c.Password.BcryptCost != 0 && (c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31) {
		return errors.New("Password BcryptCost must be between 4 and 31")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	// Lockout
	if c.Lockout.Enabled {
		if c.Lockout.Threshold <= 0 {
			return errors.New("Lockout Threshold must be > 0")
		}
		if c.Lockout.Duration <= 0 {
			return errors.New("Lockout Duration must be > 0")
		}
	}

	// Session
	if c.Session.RefreshTokenCap <= 0 {
		return errors.New("Session RefreshTokenCap must be > 0")
	}

	// Password reset / verification
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}
	if c.PasswordReset.MaxRequests < 0 || c.EmailVerification.MaxRequests < 0 {
		return errors.New("challenge MaxRequests must be >= 0")
	}
	if c.PasswordReset.MaxRequests > 0 && c.PasswordReset.RequestWindow <= 0 {
		return errors.New("PasswordReset RequestWindow must be > 0 when throttled")
	}
	if c.EmailVerification.MaxRequests > 0 && c.EmailVerification.RequestWindow <= 0 {
		return errors.New("EmailVerification RequestWindow must be > 0 when throttled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.ProductionMode {
		return c.validateProduction()
	}
	return nil
}

func (c *Config) validateProduction() error {
	if !c.Lockout.Enabled {
		return errors.New("production mode requires Lockout")
	}
	if password.Algorithm(c.Password.Algorithm) != password.AlgorithmArgon2id && c.Password.BcryptCost != 0 && c.Password.BcryptCost < 10 {
		return errors.New("production mode requires BcryptCost >= 10")
	}
	if c.JWT.AccessTTL > 30*24*time.Hour {
		return errors.New("production mode requires AccessTTL <= 30 days")
	}
	return nil
}
