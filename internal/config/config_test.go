package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("JWT_SECRET", strings.Repeat("a", 32))
	t.Setenv("JWT_REFRESH_SECRET", strings.Repeat("r", 32))
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != 3000 || cfg.APIPrefix != "/api/v1" {
		t.Fatalf("unexpected app defaults: port=%d prefix=%q", cfg.Port, cfg.APIPrefix)
	}
	if cfg.StripeAPIVersion != "2023-10-16" {
		t.Fatalf("stripe api version=%q", cfg.StripeAPIVersion)
	}
	if cfg.RateLimitWindow() != 15*time.Minute || cfg.RateLimitMaxRequests != 100 {
		t.Fatalf("rate limit defaults: %v/%d", cfg.RateLimitWindow(), cfg.RateLimitMaxRequests)
	}
	if cfg.RedisAddr() != "localhost:6379" {
		t.Fatalf("redis addr=%q", cfg.RedisAddr())
	}
}

func TestLoadEnvironmentOverridesDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_PORT", "8081")
	t.Setenv("CORS_ORIGIN", "https://a.example, https://b.example")
	t.Setenv("RATE_LIMIT_SKIP_SUCCESSFUL_REQUESTS", "true")

	cfg, err := Load(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8081" {
		t.Fatalf("addr=%q", cfg.Addr())
	}
	origins := cfg.CORSOrigins()
	if len(origins) != 2 || origins[1] != "https://b.example" {
		t.Fatalf("origins=%v", origins)
	}
	if !cfg.RateLimitSkipSuccessful {
		t.Fatal("expected skip successful from env")
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("REDIS_HOST=cache.internal\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("REDIS_HOST") })

	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.RedisHost != "cache.internal" {
		t.Fatalf("redis host=%q", cfg.RedisHost)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	setRequiredEnv(t)
	file := filepath.Join(t.TempDir(), "accountd.yaml")
	if err := os.WriteFile(file, []byte("APP_NAME: billing-accounts\nDB_POOL_SIZE: 25\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(t.TempDir(), file)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.AppName != "billing-accounts" || cfg.DBPoolSize != 25 {
		t.Fatalf("config file not applied: name=%q pool=%d", cfg.AppName, cfg.DBPoolSize)
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "short")

	_, err := Load(t.TempDir(), "")
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}
}

func TestLoadRejectsUnknownEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "staging")

	if _, err := Load(t.TempDir(), ""); err == nil {
		t.Fatal("expected APP_ENV error")
	}
}

func TestEngineConfig(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_EXPIRES_IN", "15m")
	t.Setenv("BCRYPT_ROUNDS", "10")

	cfg, err := Load(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	ec, err := cfg.Engine()
	if err != nil {
		t.Fatalf("Engine returned error: %v", err)
	}
	if ec.JWT.AccessTTL != 15*time.Minute || ec.JWT.RefreshTTL != 30*24*time.Hour {
		t.Fatalf("ttls: %v %v", ec.JWT.AccessTTL, ec.JWT.RefreshTTL)
	}
	if ec.Password.BcryptCost != 10 {
		t.Fatalf("bcrypt cost=%d", ec.Password.BcryptCost)
	}
	if ec.Session.RequireVerifiedEmail {
		t.Fatal("verified email must only be required in production")
	}
}

func TestEngineConfigProductionRequiresVerifiedEmail(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")

	cfg, err := Load(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	ec, err := cfg.Engine()
	if err != nil {
		t.Fatalf("Engine returned error: %v", err)
	}
	if !ec.Session.RequireVerifiedEmail || !ec.ProductionMode {
		t.Fatalf("production flags not set: %+v", ec.Session)
	}
}

func TestEngineConfigPasswordAlgorithm(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PasswordAlgorithm != "bcrypt" {
		t.Fatalf("default algorithm=%q", cfg.PasswordAlgorithm)
	}

	t.Setenv("PASSWORD_ALGORITHM", "argon2id")
	cfg, err = Load(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	ec, err := cfg.Engine()
	if err != nil {
		t.Fatalf("Engine returned error: %v", err)
	}
	if ec.Password.Algorithm != "argon2id" || ec.Password.Argon2.Memory < 8*1024 {
		t.Fatalf("argon2id not selected: %+v", ec.Password)
	}

	t.Setenv("PASSWORD_ALGORITHM", "md5")
	if _, err := Load(t.TempDir(), ""); err == nil || !strings.Contains(err.Error(), "PASSWORD_ALGORITHM") {
		t.Fatalf("expected PASSWORD_ALGORITHM error, got %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "7d", want: 7 * 24 * time.Hour},
		{in: "90m", want: 90 * time.Minute},
		{in: "900000", want: 15 * time.Minute},
		{in: "", wantErr: true},
		{in: "0d", wantErr: true},
		{in: "-1h", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseDuration(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %v, %v", tc.in, got, err)
		}
	}
}
