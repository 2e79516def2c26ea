package password

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashAndVerify(t *testing.T) {
	b, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}

	hash, err := b.Hash("Str0ng!Pass")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Fatalf("unexpected bcrypt prefix: %s", hash)
	}

	if ok, err := b.Verify("Str0ng!Pass", hash); err != nil || !ok {
		t.Fatalf("Verify: ok=%v err=%v", ok, err)
	}
	if ok, err := b.Verify("wrong", hash); err != nil || ok {
		t.Fatalf("mismatch should be false without error: ok=%v err=%v", ok, err)
	}
}

func TestBcryptRejectsOverlongPassword(t *testing.T) {
	b, _ := NewBcrypt(bcrypt.MinCost)
	if _, err := b.Hash(strings.Repeat("x", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestBcryptCostBounds(t *testing.T) {
	if _, err := NewBcrypt(2); err == nil {
		t.Fatal("expected cost below minimum to be rejected")
	}
	if _, err := NewBcrypt(40); err == nil {
		t.Fatal("expected cost above maximum to be rejected")
	}
}

func TestBcryptNeedsUpgrade(t *testing.T) {
	low, _ := NewBcrypt(bcrypt.MinCost)
	high, _ := NewBcrypt(bcrypt.MinCost + 1)

	hash, err := low.Hash("Str0ng!Pass")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if up, err := high.NeedsUpgrade(hash); err != nil || !up {
		t.Fatalf("expected upgrade for lower cost: up=%v err=%v", up, err)
	}
	if up, err := low.NeedsUpgrade(hash); err != nil || up {
		t.Fatalf("expected no upgrade at same cost: up=%v err=%v", up, err)
	}
}

func TestServiceVerifiesEitherEncoding(t *testing.T) {
	bcryptSvc, err := New(Config{Algorithm: AlgorithmBcrypt, BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("New(bcrypt) error: %v", err)
	}
	argonSvc, err := New(Config{Algorithm: AlgorithmArgon2id, BcryptCost: bcrypt.MinCost, Argon2: testArgon2Config()})
	if err != nil {
		t.Fatalf("New(argon2id) error: %v", err)
	}

	ctx := context.Background()
	bHash, err := bcryptSvc.Hash(ctx, "Str0ng!Pass")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	aHash, err := argonSvc.Hash(ctx, "Str0ng!Pass")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	for _, svc := range []*Service{bcryptSvc, argonSvc} {
		for _, h := range []string{bHash, aHash} {
			ok, err := svc.Verify(ctx, "Str0ng!Pass", h)
			if err != nil || !ok {
				t.Fatalf("Verify(%q): ok=%v err=%v", h[:8], ok, err)
			}
		}
	}

	if up, _ := argonSvc.NeedsUpgrade(bHash); !up {
		t.Fatal("expected bcrypt hash to need upgrade after switching to argon2id")
	}
}

func TestServiceMaxBytes(t *testing.T) {
	bcryptSvc, err := New(Config{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("New(bcrypt) error: %v", err)
	}
	if got := bcryptSvc.MaxBytes(); got != BcryptMaxBytes {
		t.Fatalf("bcrypt MaxBytes = %d, want %d", got, BcryptMaxBytes)
	}
	argonSvc, err := New(Config{Algorithm: AlgorithmArgon2id, BcryptCost: bcrypt.MinCost, Argon2: testArgon2Config()})
	if err != nil {
		t.Fatalf("New(argon2id) error: %v", err)
	}
	if got := argonSvc.MaxBytes(); got != 0 {
		t.Fatalf("argon2id MaxBytes = %d, want 0", got)
	}
}

func TestServiceUnknownEncoding(t *testing.T) {
	svc, err := New(Config{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, err := svc.Verify(context.Background(), "pw", "plaintext"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
}

func TestServiceUnsupportedAlgorithm(t *testing.T) {
	if _, err := New(Config{Algorithm: "md5"}); err == nil {
		t.Fatal("expected unsupported algorithm to be rejected")
	}
}

func TestServiceHashHonoursContext(t *testing.T) {
	svc, err := New(Config{BcryptCost: bcrypt.MinCost, MaxConcurrency: 1})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	// Hold the only slot.
	if err := svc.gate.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	defer svc.gate.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := svc.Hash(ctx, "Str0ng!Pass"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while gate is full, got %v", err)
	}
}
