// Package crypto implements the cryptographic primitives shared by the
// end-to-end and hop encryption layers (C3): AES-256-GCM sealing, X25519
// key agreement, HKDF session-key derivation, and an at-rest key store.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// NonceSize is the GCM nonce length in bytes.
const NonceSize = 12

var (
	// ErrAuthenticationFailed is returned when a ciphertext fails GCM tag
	// verification — a bit-flipped, truncated, or forged blob.
	ErrAuthenticationFailed = errors.New("crypto: authentication failed")
	// ErrCiphertextTooShort is returned when a sealed blob is shorter than
	// a nonce, so it cannot possibly be valid.
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
	// ErrInvalidKeySize is returned when a key is not exactly KeySize bytes.
	ErrInvalidKeySize = errors.New("crypto: key must be 32 bytes")
)

// Seal encrypts plaintext under key with a fresh random nonce, binding aad
// (sent in the clear, e.g. orig_type||seq) into the authentication tag. The
// returned blob is nonce || ciphertext || tag, suitable for writing
// directly into an envelope's opaque field.
func Seal(key, plaintext, aad []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

// Open verifies and decrypts a blob produced by Seal under the same key
// and aad. Any tampering with ciphertext, nonce, or aad yields
// ErrAuthenticationFailed.
func Open(key, blob, aad []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}

	if len(blob) < gcm.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}
