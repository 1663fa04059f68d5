package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// SaltSize is the random salt prefixed to password-protected blobs.
	SaltSize = 16
	// PBKDF2Iterations is the iteration count for password-derived keys.
	PBKDF2Iterations = 100000
)

// ParseKeyHex decodes a 64-character hex string into a 32-byte key.
// Surrounding whitespace (e.g. a trailing newline from a key file) is ignored.
func ParseKeyHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("asset key hex decode: %w", err)
	}
	if len(b) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyLength, len(b), KeySize)
	}
	return b, nil
}

// GenerateKey returns a fresh random 32-byte key.
func GenerateKey() ([]byte, error) {
	return generateRandomBytes(KeySize)
}

// DeriveKey stretches a password into an AES-256 key with PBKDF2-HMAC-SHA256.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// MustRandom returns n random bytes or panics.
func MustRandom(n int) []byte {
	b, err := generateRandomBytes(n)
	if err != nil {
		panic(err)
	}
	return b
}

// generateRandomBytes generates a slice of random bytes of the given length.
func generateRandomBytes(length int) ([]byte, error) {
	b := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}
