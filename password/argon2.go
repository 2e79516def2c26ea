package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Prefix = "$argon2id$"

// ErrMalformedHash is returned for an Argon2id hash that cannot be decoded.
var ErrMalformedHash = errors.New("malformed argon2id hash")

// Argon2Config holds Argon2id cost parameters. Memory is in KiB.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Floors below which a configuration or a stored hash is rejected.
var argon2Floor = Argon2Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}

func (c Argon2Config) validate() error {
	switch {
	case c.Memory < argon2Floor.Memory:
		return fmt.Errorf("argon2 memory must be >= %d KiB", argon2Floor.Memory)
	case c.Time < argon2Floor.Time:
		return errors.New("argon2 time must be >= 1")
	case c.Parallelism < argon2Floor.Parallelism:
		return errors.New("argon2 parallelism must be >= 1")
	case c.SaltLength < argon2Floor.SaltLength:
		return fmt.Errorf("argon2 salt length must be >= %d", argon2Floor.SaltLength)
	case c.KeyLength < argon2Floor.KeyLength:
		return fmt.Errorf("argon2 key length must be >= %d", argon2Floor.KeyLength)
	}
	return nil
}

// Argon2 hashes passwords with Argon2id into PHC strings:
//
//	$argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>
//
// Salt and key are unpadded standard base64.
type Argon2 struct {
	config Argon2Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash returns an encoded Argon2id hash with a fresh random salt. The
// password bytes are used as given.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	c := a.config
	key := argon2.IDKey([]byte(password), salt, c.Time, c.Memory, c.Parallelism, c.KeyLength)
	return encodeArgon2(c, salt, key), nil
}

// Verify compares password against an encoded hash in constant time.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	c, salt, key, err := decodeArgon2(encodedHash)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), salt, c.Time, c.Memory, c.Parallelism, c.KeyLength)
	return subtle.ConstantTimeCompare(got, key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash is not Argon2id or was produced
// with cheaper parameters or another key length than the current ones.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	if !isArgon2Hash(encodedHash) {
		return true, nil
	}
	c, _, _, err := decodeArgon2(encodedHash)
	if err != nil {
		return false, err
	}
	cur := a.config
	return cur.Memory > c.Memory || cur.Time > c.Time ||
		cur.Parallelism > c.Parallelism || cur.KeyLength != c.KeyLength, nil
}

func isArgon2Hash(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, argon2Prefix)
}

func encodeArgon2(c Argon2Config, salt, key []byte) string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s", argon2Prefix, argon2.Version,
		c.Memory, c.Time, c.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

// decodeArgon2 returns the parameters, salt and key of an encoded hash.
// Parameters below the configuration floors are rejected.
func decodeArgon2(encodedHash string) (Argon2Config, []byte, []byte, error) {
	var c Argon2Config
	rest, ok := strings.CutPrefix(encodedHash, argon2Prefix)
	if !ok {
		return c, nil, nil, fmt.Errorf("%w: not argon2id", ErrMalformedHash)
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return c, nil, nil, fmt.Errorf("%w: want 4 fields, got %d", ErrMalformedHash, len(fields))
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil {
		return c, nil, nil, fmt.Errorf("%w: version", ErrMalformedHash)
	}
	if version != argon2.Version {
		return c, nil, nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedHash, version)
	}

	var m, t, p uint32
	if n, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil || n != 3 ||
		fields[1] != fmt.Sprintf("m=%d,t=%d,p=%d", m, t, p) || p > 255 {
		return c, nil, nil, fmt.Errorf("%w: parameters %q", ErrMalformedHash, fields[1])
	}
	c.Memory, c.Time, c.Parallelism = m, t, uint8(p)

	salt, err := base64.RawStdEncoding.DecodeString(fields[2])
	if err != nil {
		return c, nil, nil, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	key, err := base64.RawStdEncoding.DecodeString(fields[3])
	if err != nil || len(key) == 0 {
		return c, nil, nil, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	c.SaltLength, c.KeyLength = uint32(len(salt)), uint32(len(key))

	// stored hashes must still satisfy the floors, key length aside
	floor := c
	floor.KeyLength = argon2Floor.KeyLength
	if err := floor.validate(); err != nil {
		return c, nil, nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return c, salt, key, nil
}
