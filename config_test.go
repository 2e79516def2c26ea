package goAccount

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigNeedsOnlySecrets(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without secrets to be invalid")
	}
	cfg.JWT.AccessSecret = []byte(strings.Repeat("a", 32))
	cfg.JWT.RefreshSecret = []byte(strings.Repeat("b", 32))
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if cfg.Lockout.Threshold != 5 || cfg.Lockout.Duration != 2*time.Hour {
		t.Fatalf("unexpected lockout defaults: %+v", cfg.Lockout)
	}
	if cfg.Session.RefreshTokenCap != 5 {
		t.Fatalf("unexpected refresh cap %d", cfg.Session.RefreshTokenCap)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "jwt leeway valid",
			mutate:    func(c *Config) { c.JWT.Leeway = 45 * time.Second },
			wantValid: true,
		},
		{
			name:   "jwt leeway invalid",
			mutate: func(c *Config) { c.JWT.Leeway = 3 * time.Minute },
		},
		{
			name:   "jwt audience blank invalid",
			mutate: func(c *Config) { c.JWT.Audience = "   " },
		},
		{
			name:   "short secret",
			mutate: func(c *Config) { c.JWT.AccessSecret = []byte("short") },
		},
		{
			name: "identical secrets",
			mutate: func(c *Config) {
				c.JWT.RefreshSecret = cloneBytes(c.JWT.AccessSecret)
			},
		},
		{
			name:   "refresh shorter than access",
			mutate: func(c *Config) { c.JWT.RefreshTTL = time.Hour },
		},
		{
			name: "argon2id valid",
			mutate: func(c *Config) {
				c.Password.Algorithm = "argon2id"
			},
			wantValid: true,
		},
		{
			name:   "unknown algorithm",
			mutate: func(c *Config) { c.Password.Algorithm = "md5" },
		},
		{
			name:   "bcrypt cost out of range",
			mutate: func(c *Config) { c.Password.BcryptCost = 40 },
		},
		{
			name:   "min length below eight",
			mutate: func(c *Config) { c.Password.MinLength = 6 },
		},
		{
			name:   "lockout without threshold",
			mutate: func(c *Config) { c.Lockout.Threshold = 0 },
		},
		{
			name: "lockout disabled ignores threshold",
			mutate: func(c *Config) {
				c.Lockout.Enabled = false
				c.Lockout.Threshold = 0
			},
			wantValid: true,
		},
		{
			name:   "zero refresh cap",
			mutate: func(c *Config) { c.Session.RefreshTokenCap = 0 },
		},
		{
			name:   "throttle without window",
			mutate: func(c *Config) { c.PasswordReset.RequestWindow = 0 },
		},
		{
			name: "throttle off without window",
			mutate: func(c *Config) {
				c.EmailVerification.MaxRequests = 0
				c.EmailVerification.RequestWindow = 0
			},
			wantValid: true,
		},
		{
			name: "production rejects cheap bcrypt",
			mutate: func(c *Config) {
				c.ProductionMode = true
			},
		},
		{
			name: "production accepts default cost",
			mutate: func(c *Config) {
				c.ProductionMode = true
				c.Password.BcryptCost = 12
			},
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestWithConfigCopiesSecrets(t *testing.T) {
	cfg := testConfig()
	b := New().WithConfig(cfg)
	cfg.JWT.AccessSecret[0] = 'x'
	if b.config.JWT.AccessSecret[0] == 'x' {
		t.Fatal("builder must not alias caller secrets")
	}
}
