package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const secretSize = 32

// NewSecret returns a random one-time secret, hex encoded. Used for
// verification and password-reset tokens.
func NewSecret() (string, error) {
	var raw [secretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// DigestToken maps a bearer secret to the form persisted by the stores.
// Refresh tokens and reset tokens are only ever stored as digests.
func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
