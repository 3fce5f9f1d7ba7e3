// Package token provides random, URL-safe identifiers for stored objects.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// DefaultSize is the number of random bytes behind a token.
const DefaultSize = 32

// ErrInvalidSize is returned when a non-positive size is requested.
var ErrInvalidSize = errors.New("token size must be positive")

// Generate returns a token built from DefaultSize random bytes.
// Example: 3q2-7wG0d0a9Xh1s4vQk2m8R6bN5cJ7yT0uW1eZ4pLg
func Generate() (string, error) {
	return GenerateN(DefaultSize)
}

// GenerateN returns a token built from n bytes read from crypto/rand and
// encoded with unpadded base64url.
func GenerateN(n int) (string, error) {
	if n <= 0 {
		return "", ErrInvalidSize
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
