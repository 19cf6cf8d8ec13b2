package crypto

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeyStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	master := DeriveMasterKey("correct horse battery staple", []byte("fixed-test-salt"))

	ks, err := OpenKeyStore(dir, master)
	if err != nil {
		t.Fatalf("OpenKeyStore: %v", err)
	}

	id, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}

	if err := ks.Save("alice", id); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := ks.Load("alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Private != id.Private || loaded.Public != id.Public {
		t.Fatal("loaded identity does not match saved identity")
	}
}

func TestKeyStoreLoadMissingReturnsErrKeyNotFound(t *testing.T) {
	dir := t.TempDir()
	master := DeriveMasterKey("pw", []byte("salt"))
	ks, err := OpenKeyStore(dir, master)
	if err != nil {
		t.Fatalf("OpenKeyStore: %v", err)
	}

	if _, err := ks.Load("nobody"); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestKeyStoreWrongMasterKeyFailsToOpen(t *testing.T) {
	dir := t.TempDir()
	ks, err := OpenKeyStore(dir, DeriveMasterKey("pw-a", []byte("salt")))
	if err != nil {
		t.Fatalf("OpenKeyStore: %v", err)
	}
	id, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	if err := ks.Save("bob", id); err != nil {
		t.Fatalf("Save: %v", err)
	}

	wrongKs, err := OpenKeyStore(dir, DeriveMasterKey("pw-b", []byte("salt")))
	if err != nil {
		t.Fatalf("OpenKeyStore: %v", err)
	}
	if _, err := wrongKs.Load("bob"); err == nil {
		t.Fatal("expected decryption failure with wrong master key")
	}
}

func TestKeyStoreDeleteRemovesFile(t *testing.T) {
	dir := t.TempDir()
	master := DeriveMasterKey("pw", []byte("salt"))
	ks, err := OpenKeyStore(dir, master)
	if err != nil {
		t.Fatalf("OpenKeyStore: %v", err)
	}
	id, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	if err := ks.Save("carol", id); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := ks.Delete("carol"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := ks.Load("carol"); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound after delete, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("leftover temp file: %s", e.Name())
		}
	}
}

func TestHashPasswordIsDeterministicAndNeverPlaintext(t *testing.T) {
	h1 := HashPassword("hunter2")
	h2 := HashPassword("hunter2")
	if string(h1) != string(h2) {
		t.Fatal("expected HashPassword to be deterministic for the same input")
	}
	if string(h1) == "hunter2" {
		t.Fatal("HashPassword must not return the plaintext password")
	}

	other := HashPassword("different")
	if string(h1) == string(other) {
		t.Fatal("expected different passwords to hash differently")
	}
}
