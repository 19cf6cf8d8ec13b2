package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandshakeEstablishesSharedKey(t *testing.T) {
	alice := NewManager(1, StrictMonotonic)
	bob := NewManager(2, StrictMonotonic)

	alicePub, salt, err := alice.BeginHandshake(2)
	if err != nil {
		t.Fatalf("alice BeginHandshake: %v", err)
	}

	bobPub, shouldReply, err := bob.HandleHello(1, alicePub, salt)
	if err != nil {
		t.Fatalf("bob HandleHello: %v", err)
	}
	if !shouldReply {
		t.Fatal("bob expected to reply to a fresh HELLO")
	}

	if err := alice.HandleHelloResponse(2, bobPub); err != nil {
		t.Fatalf("alice HandleHelloResponse: %v", err)
	}

	if alice.Status(2) != Established {
		t.Fatalf("alice status = %s, want ESTABLISHED", alice.Status(2))
	}
	if bob.Status(1) != Established {
		t.Fatalf("bob status = %s, want ESTABLISHED", bob.Status(1))
	}
}

func TestCrossedHelloTiebreakLargerFromIDWins(t *testing.T) {
	// Peer 5 and peer 9 both send HELLO at the same time.
	small := NewManager(5, StrictMonotonic)
	large := NewManager(9, StrictMonotonic)

	smallPub, smallSalt, err := small.BeginHandshake(9)
	if err != nil {
		t.Fatalf("small BeginHandshake: %v", err)
	}
	largePub, largeSalt, err := large.BeginHandshake(5)
	if err != nil {
		t.Fatalf("large BeginHandshake: %v", err)
	}

	// Large delivers its HELLO to small: small must concede (9 > 5) and reply.
	smallReply, shouldReply, err := small.HandleHello(9, largePub, largeSalt)
	if err != nil {
		t.Fatalf("small HandleHello: %v", err)
	}
	if !shouldReply {
		t.Fatal("smaller from_id must concede and reply")
	}

	// Small delivers its HELLO to large: large wins and keeps its own HELLO outstanding.
	_, shouldReplyLarge, err := large.HandleHello(5, smallPub, smallSalt)
	if err != nil {
		t.Fatalf("large HandleHello: %v", err)
	}
	if shouldReplyLarge {
		t.Fatal("larger from_id must win the tiebreak and not reply to the loser's HELLO")
	}

	// Large completes as initiator once it gets small's concession reply.
	if err := large.HandleHelloResponse(5, smallReply); err != nil {
		t.Fatalf("large HandleHelloResponse: %v", err)
	}

	if small.Status(9) != Established {
		t.Fatalf("small status = %s, want ESTABLISHED", small.Status(9))
	}
	if large.Status(5) != Established {
		t.Fatalf("large status = %s, want ESTABLISHED", large.Status(5))
	}
}

func TestEncryptBeforeHandshakeFails(t *testing.T) {
	m := NewManager(1, StrictMonotonic)
	if _, err := m.Encrypt(2, 0, []byte("hi")); err != ErrSessionNotEstablished {
		t.Fatalf("expected ErrSessionNotEstablished, got %v", err)
	}
}

func establishedPair(t *testing.T) (alice, bob *Manager) {
	t.Helper()
	alice = NewManager(1, StrictMonotonic)
	bob = NewManager(2, StrictMonotonic)

	pub, salt, err := alice.BeginHandshake(2)
	if err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	bobPub, _, err := bob.HandleHello(1, pub, salt)
	if err != nil {
		t.Fatalf("HandleHello: %v", err)
	}
	if err := alice.HandleHelloResponse(2, bobPub); err != nil {
		t.Fatalf("HandleHelloResponse: %v", err)
	}
	return alice, bob
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	alice, bob := establishedPair(t)

	env, err := alice.Encrypt(2, 42, []byte("hello bob"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	origType, plaintext, err := bob.Decrypt(1, env)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if origType != 42 {
		t.Fatalf("got origType %d, want 42", origType)
	}
	if string(plaintext) != "hello bob" {
		t.Fatalf("got %q", plaintext)
	}
}

func TestDecryptRejectsReplayedSequence(t *testing.T) {
	alice, bob := establishedPair(t)

	env, err := alice.Encrypt(2, 1, []byte("first"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, _, err := bob.Decrypt(1, env); err != nil {
		t.Fatalf("first decrypt: %v", err)
	}
	if _, _, err := bob.Decrypt(1, env); err != ErrReplay {
		t.Fatalf("expected ErrReplay on replayed packet, got %v", err)
	}
}

func TestDecryptRejectsOutOfOrderUnderStrictMonotonic(t *testing.T) {
	alice, bob := establishedPair(t)

	first, err := alice.Encrypt(2, 1, []byte("one"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	second, err := alice.Encrypt(2, 1, []byte("two"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, _, err := bob.Decrypt(1, second); err != nil {
		t.Fatalf("decrypt second: %v", err)
	}
	if _, _, err := bob.Decrypt(1, first); err != ErrReplay {
		t.Fatalf("expected ErrReplay for a sequence number below the high-water mark, got %v", err)
	}
}

// TestDecryptRejectsMismatchedPeer covers §4.3's AAD binding: an envelope
// opened with the wrong remote id rebuilds a different from/to pair than
// the one it was sealed under, so authentication must fail even though
// the ciphertext and sequence are untouched.
func TestDecryptRejectsMismatchedPeer(t *testing.T) {
	alice, bob := establishedPair(t)

	carol := NewManager(3, StrictMonotonic)
	pub, salt, err := carol.BeginHandshake(2)
	require.NoError(t, err)
	bobPub, _, err := bob.HandleHello(3, pub, salt)
	require.NoError(t, err)
	require.NoError(t, carol.HandleHelloResponse(2, bobPub))

	env, err := alice.Encrypt(2, 1, []byte("to bob, not carol"))
	require.NoError(t, err)

	_, _, err = bob.Decrypt(3, env)
	require.Error(t, err, "decrypting alice's envelope as if it came from carol must fail")
}
