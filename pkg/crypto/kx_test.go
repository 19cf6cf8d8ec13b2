package crypto

import (
	"bytes"
	"testing"
)

func TestECDHAgreement(t *testing.T) {
	alice, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	bob, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}

	aliceShared, err := DeriveShared(alice.Private, bob.Public)
	if err != nil {
		t.Fatalf("DeriveShared (alice): %v", err)
	}
	bobShared, err := DeriveShared(bob.Private, alice.Public)
	if err != nil {
		t.Fatalf("DeriveShared (bob): %v", err)
	}

	if aliceShared != bobShared {
		t.Fatal("alice and bob derived different shared secrets")
	}
}

func TestDeriveSessionKeyIsDeterministicAndConversationBound(t *testing.T) {
	var shared [32]byte
	for i := range shared {
		shared[i] = byte(i)
	}
	var salt [16]byte
	for i := range salt {
		salt[i] = byte(i * 3)
	}

	k1, err := DeriveSessionKey(shared, salt, "conversation-a")
	if err != nil {
		t.Fatalf("DeriveSessionKey: %v", err)
	}
	k2, err := DeriveSessionKey(shared, salt, "conversation-a")
	if err != nil {
		t.Fatalf("DeriveSessionKey: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("same inputs produced different session keys")
	}

	k3, err := DeriveSessionKey(shared, salt, "conversation-b")
	if err != nil {
		t.Fatalf("DeriveSessionKey: %v", err)
	}
	if bytes.Equal(k1, k3) {
		t.Fatal("different conversation ids produced the same session key")
	}

	if len(k1) != KeySize {
		t.Fatalf("got key length %d, want %d", len(k1), KeySize)
	}
}

func TestDeriveSharedRejectsNonContributoryPeer(t *testing.T) {
	alice, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}

	var lowOrderPoint [32]byte // the all-zero point multiplies to all-zero output

	_, err = DeriveShared(alice.Private, lowOrderPoint)
	if err != ErrNonContributory {
		t.Fatalf("expected ErrNonContributory, got %v", err)
	}
}
