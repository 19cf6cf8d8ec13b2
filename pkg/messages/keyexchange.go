package messages

import (
	"fmt"

	"github.com/tchatsapp/core/pkg/registry"
)

// HandshakeRole tags which side of a handshake a HELLO was sent from.
// The crossed-HELLO tiebreak compares peer ids and does not read it.
type HandshakeRole uint8

const (
	RoleUnspecified HandshakeRole = iota
	RoleInitiator
	RoleResponder
)

// KeyExchangeMessage is the end-to-end HELLO exchanged between two chat
// peers to establish (or rotate) their shared session key (§4.3).
type KeyExchangeMessage struct {
	PublicKey [32]byte
	Salt      [16]byte
	Role      HandshakeRole
}

func (m *KeyExchangeMessage) Encode() []byte {
	w := &writer{}
	w.raw(m.PublicKey[:])
	w.raw(m.Salt[:])
	w.u8(uint8(m.Role))
	return w.bytes()
}

func decodeKeyExchangeBody(payload []byte) (KeyExchangeMessage, error) {
	r := &reader{buf: payload}
	pub, err := r.fixed(32)
	if err != nil {
		return KeyExchangeMessage{}, fmt.Errorf("key exchange public key: %w", err)
	}
	salt, err := r.fixed(16)
	if err != nil {
		return KeyExchangeMessage{}, fmt.Errorf("key exchange salt: %w", err)
	}
	role, err := r.u8()
	if err != nil {
		return KeyExchangeMessage{}, fmt.Errorf("key exchange role: %w", err)
	}
	var m KeyExchangeMessage
	copy(m.PublicKey[:], pub)
	copy(m.Salt[:], salt)
	m.Role = HandshakeRole(role)
	return m, nil
}

func DecodeKeyExchange(payload []byte) (registry.Message, error) {
	m, err := decodeKeyExchangeBody(payload)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// KeyExchangeResponseMessage completes the HELLO exchange. It is the same
// wire shape as KeyExchangeMessage but is registered as a distinct
// message_type so the handshake state machine can tell request from reply.
type KeyExchangeResponseMessage struct {
	PublicKey [32]byte
	Salt      [16]byte
	Role      HandshakeRole
}

func (m *KeyExchangeResponseMessage) Encode() []byte {
	w := &writer{}
	w.raw(m.PublicKey[:])
	w.raw(m.Salt[:])
	w.u8(uint8(m.Role))
	return w.bytes()
}

func DecodeKeyExchangeResponse(payload []byte) (registry.Message, error) {
	m, err := decodeKeyExchangeBody(payload)
	if err != nil {
		return nil, err
	}
	return &KeyExchangeResponseMessage{PublicKey: m.PublicKey, Salt: m.Salt, Role: m.Role}, nil
}

// ServerKeyExchangeMessage is the client-side half of the hop handshake
// against the server (§4.5). It carries no salt: the hop session key is
// derived from the ECDH shared secret alone, keyed to the connection.
type ServerKeyExchangeMessage struct {
	PublicKey [32]byte
}

func (m *ServerKeyExchangeMessage) Encode() []byte {
	w := &writer{}
	w.raw(m.PublicKey[:])
	return w.bytes()
}

func DecodeServerKeyExchange(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	pub, err := r.fixed(32)
	if err != nil {
		return nil, err
	}
	var m ServerKeyExchangeMessage
	copy(m.PublicKey[:], pub)
	return &m, nil
}

// ServerKeyExchangeResponseMessage is the server's half of the hop
// handshake.
type ServerKeyExchangeResponseMessage struct {
	PublicKey [32]byte
}

func (m *ServerKeyExchangeResponseMessage) Encode() []byte {
	w := &writer{}
	w.raw(m.PublicKey[:])
	return w.bytes()
}

func DecodeServerKeyExchangeResponse(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	pub, err := r.fixed(32)
	if err != nil {
		return nil, err
	}
	var m ServerKeyExchangeResponseMessage
	copy(m.PublicKey[:], pub)
	return &m, nil
}
