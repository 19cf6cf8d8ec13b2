package session

import (
	"crypto/rand"
	"errors"
	"fmt"

	tcrypto "github.com/tchatsapp/core/pkg/crypto"
)

// HandshakeStatus is a node in the end-to-end handshake state machine (§4.3): IDLE -> SENT_HELLO / RECEIVED_HELLO -> ESTABLISHED,
// with FAILED as the only terminal error state.
type HandshakeStatus uint8

const (
	Idle HandshakeStatus = iota
	SentHello
	ReceivedHello
	Established
	Failed
)

func (s HandshakeStatus) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case SentHello:
		return "SENT_HELLO"
	case ReceivedHello:
		return "RECEIVED_HELLO"
	case Established:
		return "ESTABLISHED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrHandshakeFailed is returned for any operation attempted on a
	// handshake already in the FAILED state.
	ErrHandshakeFailed = errors.New("session: handshake failed")
	// ErrUnexpectedHandshakeMessage is returned when a HELLO or its
	// response arrives in a state that does not expect it.
	ErrUnexpectedHandshakeMessage = errors.New("session: unexpected handshake message for current state")
)

// Handshake drives one side of a single conversation's key agreement. It
// is not safe for concurrent use; the owning Manager entry's lock
// serializes access.
type Handshake struct {
	Status HandshakeStatus

	localID  uint32
	remoteID uint32

	localIdentity *tcrypto.Identity
	remotePublic  [32]byte
	salt          [16]byte

	SessionKey []byte
}

// NewHandshake creates a handshake for the conversation between localID
// (us) and remoteID (the peer).
func NewHandshake(localID, remoteID uint32) *Handshake {
	return &Handshake{Status: Idle, localID: localID, remoteID: remoteID}
}

// StartHello generates a fresh identity and salt and transitions to
// SENT_HELLO, returning the public key and salt to send as a HELLO.
func (h *Handshake) StartHello() (pub [32]byte, salt [16]byte, err error) {
	if h.Status != Idle {
		return pub, salt, fmt.Errorf("session: cannot start hello from state %s", h.Status)
	}

	id, err := tcrypto.GenerateIdentity()
	if err != nil {
		h.Status = Failed
		return pub, salt, fmt.Errorf("session: generate identity: %w", err)
	}
	if _, err := rand.Read(salt[:]); err != nil {
		h.Status = Failed
		return pub, salt, fmt.Errorf("session: generate salt: %w", err)
	}

	h.localIdentity = id
	h.salt = salt
	h.Status = SentHello

	return id.Public, salt, nil
}

// ReceiveHello processes an incoming HELLO from the peer. If we have not
// sent our own HELLO yet, this transitions IDLE -> RECEIVED_HELLO and the
// caller must still reply. If we have already sent a HELLO (a crossed
// handshake — both sides initiated at once), the ids break the tie: the
// side with the larger id keeps its own HELLO outstanding, sends no reply
// and completes as initiator once the peer's response arrives; the side
// with the smaller id discards its local HELLO and answers as responder.
// The larger id never takes the responder role in a crossed handshake.
func (h *Handshake) ReceiveHello(remotePub [32]byte, remoteSalt [16]byte) (shouldReply bool, err error) {
	switch h.Status {
	case Idle:
		h.remotePublic = remotePub
		h.salt = remoteSalt
		h.Status = ReceivedHello
		return true, nil

	case SentHello:
		// Crossed hello: the larger id wins and stays initiator; the
		// smaller id concedes and replies to the winner as responder.
		if h.localID > h.remoteID {
			// We win; keep our own outstanding HELLO, ignore theirs.
			return false, nil
		}
		// We lose the tiebreak: adopt their HELLO and answer it.
		h.remotePublic = remotePub
		h.salt = remoteSalt
		h.Status = ReceivedHello
		return true, nil

	default:
		return false, fmt.Errorf("%w: ReceiveHello in state %s", ErrUnexpectedHandshakeMessage, h.Status)
	}
}

// CompleteAsResponder finishes the handshake after ReceiveHello returned
// shouldReply=true: it generates our own identity, derives the session
// key, and returns our public key to send back as the HELLO response.
func (h *Handshake) CompleteAsResponder(conversationID string) (pub [32]byte, err error) {
	if h.Status != ReceivedHello {
		return pub, fmt.Errorf("session: cannot complete as responder from state %s", h.Status)
	}

	id, err := tcrypto.GenerateIdentity()
	if err != nil {
		h.Status = Failed
		return pub, fmt.Errorf("session: generate identity: %w", err)
	}
	h.localIdentity = id

	if err := h.deriveSessionKey(conversationID); err != nil {
		h.Status = Failed
		return pub, err
	}

	h.Status = Established
	return id.Public, nil
}

// CompleteAsInitiator finishes the handshake after we sent the first
// HELLO (StartHello) and have received the peer's response.
func (h *Handshake) CompleteAsInitiator(remotePub [32]byte, conversationID string) error {
	if h.Status != SentHello {
		return fmt.Errorf("session: cannot complete as initiator from state %s", h.Status)
	}

	h.remotePublic = remotePub
	if err := h.deriveSessionKey(conversationID); err != nil {
		h.Status = Failed
		return err
	}

	h.Status = Established
	return nil
}

func (h *Handshake) deriveSessionKey(conversationID string) error {
	shared, err := tcrypto.DeriveShared(h.localIdentity.Private, h.remotePublic)
	if err != nil {
		return fmt.Errorf("session: derive shared secret: %w", err)
	}
	key, err := tcrypto.DeriveSessionKey(shared, h.salt, conversationID)
	if err != nil {
		return fmt.Errorf("session: derive session key: %w", err)
	}
	h.SessionKey = key
	return nil
}

// Fail marks the handshake as terminally failed; any session key derived
// so far is discarded.
func (h *Handshake) Fail() {
	h.Status = Failed
	h.SessionKey = nil
}
