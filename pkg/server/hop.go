package server

import (
	"fmt"

	tcrypto "github.com/tchatsapp/core/pkg/crypto"
	"github.com/tchatsapp/core/pkg/session"
)

// hopSession is the per-connection key material and replay state for the
// SERVER_ENCRYPTED hop layer between one client and the relay (§4.5). It
// is distinct from pkg/session.Manager's end-to-end state machine: the
// hop handshake is always client-initiated with the server as the sole
// responder, so there is no crossed-HELLO case to arbitrate.
type hopSession struct {
	key         []byte
	outgoingSeq uint64
	replay      session.ReplayGuard
}

// completeHopHandshake derives the hop session key as the responder: the
// server generates a fresh identity per connection, combines it with the
// client's public key via ECDH, and expands the result with HKDF bound to
// this specific connection id. There is no handshake salt — the
// connection id alone is enough to keep every connection's derived key
// distinct, since each connection also gets a fresh ECDH keypair.
func completeHopHandshake(clientPublic [32]byte, connID uint32) (serverPublic [32]byte, hs *hopSession, err error) {
	identity, err := tcrypto.GenerateIdentity()
	if err != nil {
		return serverPublic, nil, fmt.Errorf("server: hop identity: %w", err)
	}

	shared, err := tcrypto.DeriveShared(identity.Private, clientPublic)
	if err != nil {
		return serverPublic, nil, fmt.Errorf("server: hop ecdh: %w", err)
	}

	var zeroSalt [16]byte
	key, err := tcrypto.DeriveSessionKey(shared, zeroSalt, fmt.Sprintf("hop:%d", connID))
	if err != nil {
		return serverPublic, nil, fmt.Errorf("server: hop kdf: %w", err)
	}

	return identity.Public, &hopSession{key: key, replay: session.NewStrictMonotonicGuard()}, nil
}

// seal wraps plaintext (an inner packet's Encode output) for sending as a
// ServerEncrypted payload.
func (hs *hopSession) seal(origType uint32, plaintext []byte) (*tcrypto.Envelope, error) {
	seq := hs.outgoingSeq
	hs.outgoingSeq++
	return tcrypto.SealEnvelope(hs.key, origType, seq, plaintext, tcrypto.HopAAD(origType, seq))
}

// open verifies and decrypts an incoming ServerEncrypted envelope,
// enforcing the hop's replay window.
func (hs *hopSession) open(env *tcrypto.Envelope) (origType uint32, plaintext []byte, err error) {
	plaintext, err = env.Open(hs.key, tcrypto.HopAAD(env.OrigType, env.Seq))
	if err != nil {
		return 0, nil, err
	}
	if err := hs.replay.Accept(env.Seq); err != nil {
		return 0, nil, err
	}
	return env.OrigType, plaintext, nil
}
