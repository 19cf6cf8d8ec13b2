package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2Iterations matches the iteration count the rest of the corpus
// uses for password-based key derivation (100,000 is the recommended
// floor for SHA-256).
const pbkdf2Iterations = 100000

// DeriveMasterKey derives the 32-byte key store master key from a
// passphrase and a per-store salt. It is deterministic: the same
// passphrase and salt always yield the same master key, so the store can
// be reopened across restarts.
func DeriveMasterKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, KeySize, sha256.New)
}

// passwordHashSalt is fixed rather than per-account: CreateUserMessage's
// PasswordHash travels to the relay over the hop-encrypted channel, and
// account storage (where a real per-user salt would live) is explicitly
// out of scope (§1 Non-goals) — this only needs to keep a plaintext
// password from ever going out on the wire.
var passwordHashSalt = []byte("tchatsapp-password-hash")

// HashPassword derives the value a client sends in place of a plaintext
// password, so CreateUserMessage/ConnectUserMessage never carry one.
func HashPassword(password string) []byte {
	return pbkdf2.Key([]byte(password), passwordHashSalt, pbkdf2Iterations, KeySize, sha256.New)
}

// ErrKeyNotFound is returned when a requested identity has no entry in
// the store.
var ErrKeyNotFound = errors.New("crypto: key not found")

// KeyStore persists identity key pairs at rest, each as its own file
// encrypted under the store's master key, written atomically (§4.6).
type KeyStore struct {
	dir       string
	masterKey []byte
}

// OpenKeyStore opens (creating if necessary) a key store rooted at dir,
// unlocked with masterKey.
func OpenKeyStore(dir string, masterKey []byte) (*KeyStore, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidKeySize
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("crypto: keystore dir: %w", err)
	}
	return &KeyStore{dir: dir, masterKey: masterKey}, nil
}

func (ks *KeyStore) pathFor(name string) string {
	h := sha256.Sum256([]byte(name))
	return filepath.Join(ks.dir, hex.EncodeToString(h[:])+".key")
}

// Save encrypts and atomically writes an identity under name. The write
// goes to a temp file in the same directory, fsynced, then renamed over
// any previous entry — a crash can never leave a half-written key file.
func (ks *KeyStore) Save(name string, id *Identity) error {
	plaintext := make([]byte, 64)
	copy(plaintext[0:32], id.Private[:])
	copy(plaintext[32:64], id.Public[:])

	blob, err := Seal(ks.masterKey, plaintext, []byte(name))
	if err != nil {
		return fmt.Errorf("crypto: seal identity: %w", err)
	}

	path := ks.pathFor(name)
	tmp, err := os.CreateTemp(ks.dir, "keystore-*.tmp")
	if err != nil {
		return fmt.Errorf("crypto: keystore temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("crypto: keystore write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("crypto: keystore fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("crypto: keystore close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("crypto: keystore rename: %w", err)
	}
	return nil
}

// Load decrypts and returns the identity stored under name.
func (ks *KeyStore) Load(name string) (*Identity, error) {
	path := ks.pathFor(name)
	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("crypto: keystore read: %w", err)
	}

	plaintext, err := Open(ks.masterKey, blob, []byte(name))
	if err != nil {
		return nil, err
	}
	if len(plaintext) != 64 {
		return nil, fmt.Errorf("crypto: corrupt identity record for %q", name)
	}

	id := &Identity{}
	copy(id.Private[:], plaintext[0:32])
	copy(id.Public[:], plaintext[32:64])
	return id, nil
}

// Delete securely erases the identity stored under name: the file is
// overwritten three times with fresh random bytes of its full length
// before removal,
// so the ciphertext does not simply linger as recoverable free space.
func (ks *KeyStore) Delete(name string) error {
	path := ks.pathFor(name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("crypto: keystore stat: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("crypto: keystore open for wipe: %w", err)
	}
	defer f.Close()

	size := info.Size()
	for pass := 0; pass < 3; pass++ {
		if _, err := f.Seek(0, 0); err != nil {
			return fmt.Errorf("crypto: keystore wipe seek: %w", err)
		}
		junk := make([]byte, size)
		if _, err := rand.Read(junk); err != nil {
			return fmt.Errorf("crypto: keystore wipe pass %d: random fill: %w", pass, err)
		}
		if _, err := f.Write(junk); err != nil {
			return fmt.Errorf("crypto: keystore wipe pass %d: %w", pass, err)
		}
		if err := f.Sync(); err != nil {
			return fmt.Errorf("crypto: keystore wipe sync: %w", err)
		}
	}
	f.Close()

	return os.Remove(path)
}
