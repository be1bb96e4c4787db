package random

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Random provides secret generation that can be mocked for testing
type Random interface {
	// Secret returns n random bytes encoded as unpadded base64url
	Secret(n int) (string, error)
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Secret returns n cryptographically random bytes encoded as base64url
func (r *CryptoRandom) Secret(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
