// Package wire implements the length-prefixed packet framing used between
// every client and the server (C1). It knows nothing about message
// semantics or encryption; it only moves bytes in and out of a reliable
// stream with a fixed header.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

// HeaderSize is the size in bytes of the fixed packet header:
// payload_length(4) + message_type(4) + from_id(4) + to_id(4).
const HeaderSize = 16

// MaxPacketBytes bounds the payload of a single packet. A declared
// payload_length above this causes the stream to be rejected.
const MaxPacketBytes = 16 * 1024 * 1024

var (
	ErrOversizePacket = errors.New("wire: packet exceeds MaxPacketBytes")
	ErrNegativeLength = errors.New("wire: negative payload length")
	ErrShortHeader    = errors.New("wire: truncated header")
	ErrShortPayload   = errors.New("wire: truncated payload")
)

// Packet is the wire unit: a fixed header plus an opaque payload. Once
// framed, a Packet is treated as immutable by callers.
type Packet struct {
	MessageType uint32
	FromID      uint32
	ToID        uint32
	Payload     []byte
}

// ServerID is the reserved from_id/to_id denoting the server itself.
const ServerID uint32 = 0

// Encode renders the packet (header + payload) as wire bytes.
func (p *Packet) Encode() []byte {
	buf := make([]byte, HeaderSize+len(p.Payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(p.Payload)))
	binary.BigEndian.PutUint32(buf[4:8], p.MessageType)
	binary.BigEndian.PutUint32(buf[8:12], p.FromID)
	binary.BigEndian.PutUint32(buf[12:16], p.ToID)
	copy(buf[HeaderSize:], p.Payload)
	return buf
}

// Write writes the packet to w as header followed by payload. No
// inspection of MessageType happens here — that is the registry's job.
func Write(w io.Writer, p *Packet) error {
	if len(p.Payload) > MaxPacketBytes {
		return ErrOversizePacket
	}
	_, err := w.Write(p.Encode())
	return err
}

// Read blocks until a full packet (header + declared payload) is
// available, or returns an error if the stream ends mid-frame. A
// truncated header or payload is a fatal stream error: the caller should
// close the connection.
func Read(r io.Reader) (*Packet, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortHeader
		}
		return nil, err
	}

	rawLen := binary.BigEndian.Uint32(hdr[0:4])
	// A declared length with the high bit set is a negative length when
	// interpreted as signed; reject it outright.
	if rawLen&0x80000000 != 0 {
		return nil, ErrNegativeLength
	}
	if rawLen > MaxPacketBytes {
		return nil, ErrOversizePacket
	}

	p := &Packet{
		MessageType: binary.BigEndian.Uint32(hdr[4:8]),
		FromID:      binary.BigEndian.Uint32(hdr[8:12]),
		ToID:        binary.BigEndian.Uint32(hdr[12:16]),
	}

	if rawLen == 0 {
		p.Payload = nil
		return p, nil
	}

	p.Payload = make([]byte, rawLen)
	if _, err := io.ReadFull(r, p.Payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, ErrShortPayload
		}
		return nil, err
	}

	return p, nil
}
