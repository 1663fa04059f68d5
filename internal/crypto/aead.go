// Package crypto implements the authenticated encryption used for body-model
// assets and password-protected backups.
//
// Asset blobs are laid out as nonce(12) ‖ ciphertext ‖ tag(16). Password blobs
// prefix a 16-byte PBKDF2 salt to the same layout.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

const (
	// NonceSize is the GCM nonce length.
	NonceSize = 12
	// TagSize is the GCM authentication tag length.
	TagSize = 16
	// MinBlobSize is the shortest valid asset blob (empty plaintext).
	MinBlobSize = NonceSize + TagSize
	// MinSaltedBlobSize is the shortest valid password-protected blob.
	MinSaltedBlobSize = SaltSize + MinBlobSize
)

var (
	// ErrInvalidKeyLength is returned when the provided key length is invalid.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length")
	// ErrFormat is returned when a blob is shorter than the minimum layout.
	ErrFormat = errors.New("crypto: malformed blob")
	// ErrAuthentication is returned when the GCM tag does not verify.
	ErrAuthentication = errors.New("crypto: authentication failed")
)

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyLength, len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext with AES-256-GCM under a fresh random nonce.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce, err := generateRandomBytes(gcm.NonceSize())
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt.
func Decrypt(key, blob []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < MinBlobSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrFormat, len(blob), MinBlobSize)
	}
	nonce, sealed := blob[:NonceSize], blob[NonceSize:]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plain, nil
}

// EncryptWithPassword derives a key from password and a random salt, then
// seals plaintext. The salt is prefixed to the returned blob.
func EncryptWithPassword(password string, plaintext []byte) ([]byte, error) {
	salt, err := generateRandomBytes(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	sealed, err := Encrypt(DeriveKey(password, salt), plaintext)
	if err != nil {
		return nil, err
	}
	return append(salt, sealed...), nil
}

// DecryptWithPassword opens a blob produced by EncryptWithPassword. A wrong
// password surfaces as ErrAuthentication.
func DecryptWithPassword(password string, blob []byte) ([]byte, error) {
	if len(blob) < MinSaltedBlobSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrFormat, len(blob), MinSaltedBlobSize)
	}
	salt, sealed := blob[:SaltSize], blob[SaltSize:]
	return Decrypt(DeriveKey(password, salt), sealed)
}
