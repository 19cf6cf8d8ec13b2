package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// sessionInfoPrefix namespaces the HKDF info parameter so a session key
// derived for one conversation can never collide with one derived for
// another, even from the same raw ECDH output (§4.3).
const sessionInfoPrefix = "TchatsApp/v1/session|"

// ErrNonContributory is returned when an ECDH peer public key produces an
// all-zero shared secret (a low-order point on the curve). Per the X25519
// contributory-behavior guidance, such a result must never be used as a key.
var ErrNonContributory = errors.New("crypto: non-contributory ECDH result")

// Identity is an X25519 key pair used for both the end-to-end handshake
// and the server hop handshake.
type Identity struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateIdentity creates a fresh X25519 key pair.
func GenerateIdentity() (*Identity, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, fmt.Errorf("crypto: generate identity: %w", err)
	}

	var pub [32]byte
	curve25519.ScalarBaseMult(&pub, &priv)

	return &Identity{Private: priv, Public: pub}, nil
}

// DeriveShared runs X25519 ECDH between a local private key and a peer's
// public key.
func DeriveShared(private, peerPublic [32]byte) ([32]byte, error) {
	var shared [32]byte
	curve25519.ScalarMult(&shared, &private, &peerPublic)

	var zero [32]byte
	if shared == zero {
		return zero, ErrNonContributory
	}
	return shared, nil
}

// DeriveSessionKey expands a raw ECDH shared secret into a 32-byte AES-256
// key via HKDF-SHA-256, salted per-handshake and bound to the conversation
// it is for.
func DeriveSessionKey(shared [32]byte, salt [16]byte, conversationID string) ([]byte, error) {
	info := []byte(sessionInfoPrefix + conversationID)
	r := hkdf.New(sha256.New, shared[:], salt[:], info)

	key := make([]byte, KeySize)
	if _, err := r.Read(key); err != nil {
		return nil, fmt.Errorf("crypto: derive session key: %w", err)
	}
	return key, nil
}
