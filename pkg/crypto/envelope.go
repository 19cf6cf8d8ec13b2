package crypto

import (
	"encoding/binary"
	"fmt"
)

// Envelope is the wire shape shared by both the end-to-end Encrypted
// message and the server hop's ServerEncrypted message (§4.4/§4.5): an
// inner message tag and replay sequence number sent in the clear, plus
// an opaque AEAD-sealed blob (nonce || ciphertext || tag). Which of the
// clear fields the seal authenticates depends on the associated data the
// caller builds: HopAAD binds both, EndToEndAAD and GroupAAD bind only
// the sequence number.
type Envelope struct {
	// OrigType is the registry.MessageType of the message Sealed decrypts
	// to, so the receiver knows how to dispatch it once opened.
	OrigType uint32
	// Seq is the sender's monotonic per-conversation sequence number,
	// used by the replay window (§4.4.3).
	Seq uint64
	// Sealed is nonce || ciphertext || tag as produced by Seal.
	Sealed []byte
}

// EndToEndAAD builds the associated data for the end-to-end channel per
// §4.3: from_id(4) ‖ to_id(4) ‖ sequence(8). The sender binds its own id
// as from and the peer's as to; the receiver rebuilds it with the
// peer's id as from and its own as to, so a packet rerouted to a
// different conversation (or with its sequence edited) fails to open
// even though the seal itself is untouched.
func EndToEndAAD(fromID, toID uint32, seq uint64) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint32(b[0:4], fromID)
	binary.BigEndian.PutUint32(b[4:8], toID)
	binary.BigEndian.PutUint64(b[8:16], seq)
	return b
}

// HopAAD builds the associated data for the server-hop channel (§4.5):
// orig_type(4) ‖ sequence(8). The hop key is already scoped to a single
// connection, so binding the wrapped type and sequence is enough to
// catch a tampered header without needing from/to ids of its own.
func HopAAD(origType uint32, seq uint64) []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint32(b[0:4], origType)
	binary.BigEndian.PutUint64(b[4:12], seq)
	return b
}

// GroupAAD builds the associated data for group-keyed envelopes
// (§4.4.1): group_id(4) ‖ sequence(8). Replay protection for these is
// scoped per (group, sender) rather than per pair, so binding the
// group id rather than a from/to pair is enough to keep one group's
// ciphertexts from being replayed into another.
func GroupAAD(groupID uint32, seq uint64) []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint32(b[0:4], groupID)
	binary.BigEndian.PutUint64(b[4:12], seq)
	return b
}

// SealEnvelope encrypts plaintext (the inner message's own Encode output)
// under key and returns a ready-to-send Envelope, sealed with the given
// associated data (build it with EndToEndAAD, HopAAD or GroupAAD).
func SealEnvelope(key []byte, origType uint32, seq uint64, plaintext []byte, aad []byte) (*Envelope, error) {
	e := &Envelope{OrigType: origType, Seq: seq}
	sealed, err := Seal(key, plaintext, aad)
	if err != nil {
		return nil, err
	}
	e.Sealed = sealed
	return e, nil
}

// Open verifies and decrypts the envelope under key against aad,
// returning the inner message's plaintext bytes.
func (e *Envelope) Open(key []byte, aad []byte) ([]byte, error) {
	return Open(key, e.Sealed, aad)
}

// Encode renders the envelope as: orig_type(4) seq(8) sealed_len(4) sealed.
func (e *Envelope) Encode() []byte {
	buf := make([]byte, 16+len(e.Sealed))
	binary.BigEndian.PutUint32(buf[0:4], e.OrigType)
	binary.BigEndian.PutUint64(buf[4:12], e.Seq)
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(e.Sealed)))
	copy(buf[16:], e.Sealed)
	return buf
}

// DecodeEnvelope parses the bytes produced by Encode.
func DecodeEnvelope(payload []byte) (*Envelope, error) {
	if len(payload) < 16 {
		return nil, fmt.Errorf("crypto: envelope header truncated")
	}
	origType := binary.BigEndian.Uint32(payload[0:4])
	seq := binary.BigEndian.Uint64(payload[4:12])
	sealedLen := binary.BigEndian.Uint32(payload[12:16])

	if uint32(len(payload)-16) != sealedLen {
		return nil, fmt.Errorf("crypto: envelope sealed-length mismatch")
	}

	sealed := make([]byte, sealedLen)
	copy(sealed, payload[16:])

	return &Envelope{OrigType: origType, Seq: seq, Sealed: sealed}, nil
}
