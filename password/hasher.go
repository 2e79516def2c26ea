package password

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong is returned when the algorithm cannot represent the input.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrUnknownAlgorithm is returned for hashes no configured algorithm recognises.
	ErrUnknownAlgorithm = errors.New("unknown password hash algorithm")
)

// Algorithm selects the hash used for new passwords.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// Config describes the hashing policy. Verification accepts both encodings
// regardless of Algorithm so stored hashes keep working after a switch.
type Config struct {
	Algorithm      Algorithm
	BcryptCost     int
	Argon2         Argon2Config
	MaxConcurrency int64
}

// Hasher is implemented by every algorithm in this package.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Service hashes new passwords with the configured algorithm, verifies any
// supported encoding, and bounds how many hashes run at once so CPU-heavy
// work cannot starve request handling.
type Service struct {
	primary Hasher
	bcrypt  *Bcrypt
	argon2  *Argon2
	gate    *semaphore.Weighted
}

// New builds a Service from cfg.
func New(cfg Config) (*Service, error) {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultBcryptCost
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = int64(runtime.GOMAXPROCS(0))
	}

	b, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	s := &Service{bcrypt: b, gate: semaphore.NewWeighted(cfg.MaxConcurrency)}

	switch cfg.Algorithm {
	case "", AlgorithmBcrypt:
		s.primary = b
		if cfg.Argon2.Memory > 0 {
			if s.argon2, err = NewArgon2(cfg.Argon2); err != nil {
				return nil, err
			}
		}
	case AlgorithmArgon2id:
		if s.argon2, err = NewArgon2(cfg.Argon2); err != nil {
			return nil, err
		}
		s.primary = s.argon2
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}
	return s, nil
}

// MaxBytes is the longest password the primary algorithm accepts, or zero
// when it has no limit.
func (s *Service) MaxBytes() int {
	if _, ok := s.primary.(*Bcrypt); ok {
		return BcryptMaxBytes
	}
	return 0
}

// Hash hashes password once a concurrency slot is available.
func (s *Service) Hash(ctx context.Context, password string) (string, error) {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.gate.Release(1)
	return s.primary.Hash(password)
}

// Verify never reports a mismatch as an error.
func (s *Service) Verify(ctx context.Context, password, encodedHash string) (bool, error) {
	h, err := s.hasherFor(encodedHash)
	if err != nil {
		return false, err
	}
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer s.gate.Release(1)
	return h.Verify(password, encodedHash)
}

// NeedsUpgrade reports whether encodedHash should be replaced on next login.
func (s *Service) NeedsUpgrade(encodedHash string) (bool, error) {
	return s.primary.NeedsUpgrade(encodedHash)
}

func (s *Service) hasherFor(encodedHash string) (Hasher, error) {
	switch {
	case isBcryptHash(encodedHash):
		return s.bcrypt, nil
	case isArgon2Hash(encodedHash):
		if s.argon2 == nil {
			// Parameters are read from the hash itself, so a default instance verifies any PHC string.
			return &Argon2{}, nil
		}
		return s.argon2, nil
	default:
		return nil, ErrUnknownAlgorithm
	}
}
