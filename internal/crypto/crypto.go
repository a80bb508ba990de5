// Package crypto provides the authenticated encryption primitives for JuMan.
// It implements AES-256-GCM for file encryption and PBKDF2-HMAC-SHA256 for
// deriving the key-wrapping key from a user password.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the size of AES-256 keys in bytes.
	KeySize = 32

	// NonceSize is the size of GCM nonces in bytes.
	NonceSize = 12

	// TagSize is the size of GCM authentication tags in bytes.
	TagSize = 16

	// SaltSize is the size of key-derivation salts in bytes.
	SaltSize = 16

	// DefaultIterations is the default PBKDF2 iteration count.
	DefaultIterations = 200_000
)

var (
	// ErrInvalidKeySize is returned when a key has an incorrect size.
	ErrInvalidKeySize = errors.New("key must be 32 bytes")

	// ErrInvalidSaltSize is returned when a salt has an incorrect size.
	ErrInvalidSaltSize = errors.New("salt must be 16 bytes")

	// ErrCiphertextShort is returned when a blob is too short to even hold
	// a nonce and a tag.
	ErrCiphertextShort = errors.New("ciphertext too short")

	// ErrIntegrity is returned when authenticated decryption fails, either
	// because the key is wrong or because the blob was tampered with.
	ErrIntegrity = errors.New("integrity check failed")
)

// Encrypt encrypts plaintext using AES-256-GCM under key.
// It draws a random nonce and prepends it, so the result is:
// nonce (12 bytes) + ciphertext + tag (16 bytes).
//
// Random 96-bit nonces carry a birthday bound: past roughly 2^32
// encryptions under one key the collision risk stops being negligible.
// A vault holds nowhere near that many blobs, but callers reusing a key
// at that scale must rotate it.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	// Seal appends to the nonce slice, producing nonce||ct||tag.
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts a nonce-prefixed AES-256-GCM blob. It returns
// ErrIntegrity on any authentication failure and never returns
// partially decrypted data.
func Decrypt(key, blob []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	if len(blob) < NonceSize+TagSize {
		return nil, ErrCiphertextShort
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, blob[:NonceSize], blob[NonceSize:], nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

// DeriveKey derives a 32-byte wrapping key from a password using
// PBKDF2-HMAC-SHA256. The salt must be 16 bytes.
func DeriveKey(password, salt []byte, iterations int) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, ErrInvalidSaltSize
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return pbkdf2.Key(password, salt, iterations, KeySize, sha256.New), nil
}

// GenerateKey generates a cryptographically secure random 32-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// GenerateSalt generates a cryptographically secure random 16-byte salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// GenerateToken generates length random bytes from the CSPRNG.
func GenerateToken(length int) ([]byte, error) {
	token := make([]byte, length)
	if _, err := rand.Read(token); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ZeroBytes overwrites a byte slice with zeros. Use it to clear key
// material as soon as an operation is done with it.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
