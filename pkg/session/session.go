// Package session owns per-conversation key agreement, replay-protected
// encrypt/decrypt pipelines, group key distribution, and encrypted file
// transfer bookkeeping (C4).
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	tcrypto "github.com/tchatsapp/core/pkg/crypto"
	"github.com/tchatsapp/core/pkg/registry"
)

// ErrSessionNotEstablished is returned by Encrypt/Decrypt when no
// ESTABLISHED session exists yet for a conversation.
var ErrSessionNotEstablished = errors.New("session: no established session for this conversation")

// ReplayMode selects which ReplayGuard implementation new sessions use.
type ReplayMode uint8

const (
	StrictMonotonic ReplayMode = iota
	SlidingWindow
)

func newGuard(mode ReplayMode) ReplayGuard {
	if mode == SlidingWindow {
		return NewSlidingWindowGuard()
	}
	return NewStrictMonotonicGuard()
}

// SessionState is the live key material and bookkeeping for one
// established conversation.
type SessionState struct {
	Key           []byte
	OutgoingSeq   uint64
	Replay        ReplayGuard
	EstablishedAt time.Time
	RotatedAt     *time.Time
	RotationCount int
}

// entry bundles one conversation's handshake and (once established)
// session state behind its own lock, so unrelated conversations never
// contend with each other.
type entry struct {
	mu        sync.Mutex
	handshake *Handshake
	state     *SessionState
}

// conversationID returns a stable, order-independent key for the
// conversation between two peer ids.
func conversationID(a, b uint32) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// Manager holds every conversation's handshake/session state for one
// local identity: a client's end-to-end conversations. The server's
// per-connection hop sessions are kept separately, not in a Manager.
type Manager struct {
	localID uint32
	mode    ReplayMode

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewManager creates a session manager for localID. mode selects the
// replay-window behavior new sessions use once established.
func NewManager(localID uint32, mode ReplayMode) *Manager {
	return &Manager{localID: localID, mode: mode, entries: make(map[string]*entry)}
}

func (m *Manager) entryFor(remoteID uint32) *entry {
	key := conversationID(m.localID, remoteID)

	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return e
	}
	e = &entry{}
	m.entries[key] = e
	return e
}

// Status reports the handshake status of a conversation, or IDLE if none
// has started.
func (m *Manager) Status(remoteID uint32) HandshakeStatus {
	e := m.entryFor(remoteID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handshake == nil {
		return Idle
	}
	return e.handshake.Status
}

// BeginHandshake starts (or restarts) a handshake with remoteID as
// initiator, returning the public key and salt to send in a HELLO.
func (m *Manager) BeginHandshake(remoteID uint32) (pub [32]byte, salt [16]byte, err error) {
	e := m.entryFor(remoteID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.handshake = NewHandshake(m.localID, remoteID)
	return e.handshake.StartHello()
}

// HandleHello processes an incoming HELLO from remoteID. If the caller
// must send a response, shouldReply is true, reply carries the public key
// to send back, and the session is already established on our side. If
// we win a crossed-handshake tiebreak, shouldReply is false, nothing is
// sent, and the session stays unestablished until the peer's response to
// our own in-flight HELLO arrives.
func (m *Manager) HandleHello(remoteID uint32, remotePub [32]byte, salt [16]byte) (reply [32]byte, shouldReply bool, err error) {
	e := m.entryFor(remoteID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handshake == nil {
		e.handshake = NewHandshake(m.localID, remoteID)
	}

	shouldReply, err = e.handshake.ReceiveHello(remotePub, salt)
	if err != nil {
		return reply, false, err
	}
	if !shouldReply {
		return reply, false, nil
	}

	reply, err = e.handshake.CompleteAsResponder(conversationID(m.localID, remoteID))
	if err != nil {
		return reply, false, err
	}

	e.state = &SessionState{
		Key:           e.handshake.SessionKey,
		Replay:        newGuard(m.mode),
		EstablishedAt: now(),
	}
	return reply, true, nil
}

// HandleHelloResponse completes a handshake we initiated with
// BeginHandshake, once the peer's response arrives.
func (m *Manager) HandleHelloResponse(remoteID uint32, remotePub [32]byte) error {
	e := m.entryFor(remoteID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handshake == nil {
		return fmt.Errorf("%w: no handshake in progress with %d", ErrUnexpectedHandshakeMessage, remoteID)
	}

	if err := e.handshake.CompleteAsInitiator(remotePub, conversationID(m.localID, remoteID)); err != nil {
		return err
	}

	e.state = &SessionState{
		Key:           e.handshake.SessionKey,
		Replay:        newGuard(m.mode),
		EstablishedAt: now(),
	}
	return nil
}

// Encrypt seals plaintext (an inner message's Encode output) for
// remoteID, assigning the next outgoing sequence number. The caller is
// responsible for actually sending the resulting envelope wrapped as a
// registry.Encrypted packet.
func (m *Manager) Encrypt(remoteID uint32, origType registry.MessageType, plaintext []byte) (*tcrypto.Envelope, error) {
	e := m.entryFor(remoteID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		return nil, ErrSessionNotEstablished
	}

	seq := e.state.OutgoingSeq
	e.state.OutgoingSeq++

	aad := tcrypto.EndToEndAAD(m.localID, remoteID, seq)
	return tcrypto.SealEnvelope(e.state.Key, uint32(origType), seq, plaintext, aad)
}

// Decrypt opens an incoming envelope from remoteID, enforcing the
// conversation's replay policy before returning the recovered plaintext
// and its original message type.
func (m *Manager) Decrypt(remoteID uint32, env *tcrypto.Envelope) (registry.MessageType, []byte, error) {
	e := m.entryFor(remoteID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		return registry.NONE, nil, ErrSessionNotEstablished
	}

	aad := tcrypto.EndToEndAAD(remoteID, m.localID, env.Seq)
	plaintext, err := env.Open(e.state.Key, aad)
	if err != nil {
		return registry.NONE, nil, err
	}

	if err := e.state.Replay.Accept(env.Seq); err != nil {
		return registry.NONE, nil, err
	}

	return registry.MessageType(env.OrigType), plaintext, nil
}

// now is split out so it is the one place that would need to change if
// tests ever needed to freeze time; today it is a thin wrapper.
func now() time.Time { return time.Now() }
