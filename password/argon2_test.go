package password

import (
	"errors"
	"strings"
	"testing"
)

func testArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      8192,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestArgon2HashAndVerify(t *testing.T) {
	hasher, err := NewArgon2(testArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=2,p=2$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil || !ok {
		t.Fatalf("Verify: ok=%v err=%v", ok, err)
	}

	ok, err = hasher.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	weak := testArgon2Config()
	weak.Time = 1
	oldHasher, err := NewArgon2(weak)
	if err != nil {
		t.Fatalf("NewArgon2(old) error: %v", err)
	}
	hash, err := oldHasher.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	hasher, err := NewArgon2(testArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	if up, err := hasher.NeedsUpgrade(hash); err != nil || !up {
		t.Fatalf("weaker hash: upgrade=%v err=%v", up, err)
	}

	current, _ := hasher.Hash("test-password")
	if up, err := hasher.NeedsUpgrade(current); err != nil || up {
		t.Fatalf("current hash: upgrade=%v err=%v", up, err)
	}

	if up, _ := hasher.NeedsUpgrade("$2a$12$abcdefghijklmnopqrstuv"); !up {
		t.Fatal("expected bcrypt hash to need upgrade under argon2")
	}
}

func TestArgon2VerifyMalformed(t *testing.T) {
	hasher, err := NewArgon2(testArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	if _, err := hasher.Verify("password", "not-a-phc-hash"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}

	hash, err := hasher.Hash("version-test")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	for name, bad := range map[string]string{
		"version":      strings.Replace(hash, "$v=19$", "$v=18$", 1),
		"low memory":   strings.Replace(hash, "m=8192,", "m=1024,", 1),
		"extra param":  strings.Replace(hash, "p=2$", "p=2,x=1$", 1),
		"padded salt":  strings.Replace(hash, "$argon2id$v=19$m=8192,t=2,p=2$", "$argon2id$v=19$m=8192,t=2,p=2$==", 1),
		"missing part": hash[:strings.LastIndex(hash, "$")],
	} {
		if _, err := hasher.Verify("version-test", bad); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%s: expected ErrMalformedHash, got %v", name, err)
		}
	}
}

func TestArgon2HashEmptyPassword(t *testing.T) {
	hasher, err := NewArgon2(testArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	if _, err := hasher.Hash(""); err != ErrEmptyPassword {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestArgon2ConfigValidation(t *testing.T) {
	cfg := testArgon2Config()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected low memory to be rejected")
	}
	cfg = testArgon2Config()
	cfg.SaltLength = 8
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected short salt to be rejected")
	}
}
