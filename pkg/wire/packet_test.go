package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestPacketEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		packet *Packet
	}{
		{
			name:   "text message",
			packet: &Packet{MessageType: 0x10, FromID: 5, ToID: 7, Payload: []byte("hello")},
		},
		{
			name:   "zero length payload (keep-alive)",
			packet: &Packet{MessageType: 0x00, FromID: 0, ToID: 0, Payload: nil},
		},
		{
			name:   "server originated",
			packet: &Packet{MessageType: 0x05, FromID: ServerID, ToID: 9, Payload: []byte{1, 2, 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, tt.packet); err != nil {
				t.Fatalf("Write: %v", err)
			}

			got, err := Read(&buf)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}

			if got.MessageType != tt.packet.MessageType || got.FromID != tt.packet.FromID || got.ToID != tt.packet.ToID {
				t.Fatalf("header mismatch: got %+v, want %+v", got, tt.packet)
			}
			if !bytes.Equal(got.Payload, tt.packet.Payload) {
				t.Fatalf("payload mismatch: got %v, want %v", got.Payload, tt.packet.Payload)
			}
			if !bytes.Equal(got.Encode(), tt.packet.Encode()) {
				t.Fatalf("serialize(deserialize(P)) != P")
			}
		})
	}
}

func TestReadRejectsOversizePacket(t *testing.T) {
	p := &Packet{MessageType: 1, Payload: make([]byte, MaxPacketBytes+1)}
	buf := bytes.NewBuffer(p.Encode())

	_, err := Read(buf)
	if !errors.Is(err, ErrOversizePacket) {
		t.Fatalf("expected ErrOversizePacket, got %v", err)
	}
}

func TestWriteRejectsOversizePacket(t *testing.T) {
	p := &Packet{MessageType: 1, Payload: make([]byte, MaxPacketBytes+1)}
	var buf bytes.Buffer

	if err := Write(&buf, p); !errors.Is(err, ErrOversizePacket) {
		t.Fatalf("expected ErrOversizePacket, got %v", err)
	}
}

func TestReadRejectsNegativeLength(t *testing.T) {
	hdr := make([]byte, HeaderSize)
	hdr[0] = 0x80 // high bit set on payload_length
	buf := bytes.NewBuffer(hdr)

	_, err := Read(buf)
	if !errors.Is(err, ErrNegativeLength) {
		t.Fatalf("expected ErrNegativeLength, got %v", err)
	}
}

func TestReadRejectsTruncatedHeader(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x00, 0x00, 0x00})
	_, err := Read(buf)
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadRejectsTruncatedPayload(t *testing.T) {
	p := &Packet{MessageType: 1, Payload: []byte("hello world")}
	full := p.Encode()
	buf := bytes.NewBuffer(full[:len(full)-3])

	_, err := Read(buf)
	if !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}

func TestReadBlocksUntilFullPacketAvailable(t *testing.T) {
	pr, pw := io.Pipe()
	p := &Packet{MessageType: 2, FromID: 1, ToID: 2, Payload: []byte("chunked")}
	full := p.Encode()

	done := make(chan *Packet, 1)
	go func() {
		got, err := Read(pr)
		if err != nil {
			t.Errorf("Read: %v", err)
		}
		done <- got
	}()

	// Write the frame in two dribbles to exercise the blocking read.
	go func() {
		pw.Write(full[:5])
		pw.Write(full[5:])
	}()

	got := <-done
	if string(got.Payload) != "chunked" {
		t.Fatalf("got payload %q", got.Payload)
	}
}
