// Package messages defines the concrete logical message bodies exchanged
// over the wire and registers their codecs with a registry.Registry (C2).
package messages

import (
	"encoding/binary"
	"fmt"
)

// writer accumulates a message body the same way the teacher's per-type
// Encode methods do — big-endian fixed fields followed by length-prefixed
// variable fields — but factored once instead of repeated per type.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = append(w.buf, be32(v)...) }
func (w *writer) u64(v uint64) { w.buf = append(w.buf, be64(v)...) }

func (w *writer) bytes16(b []byte) {
	w.buf = append(w.buf, be16(uint16(len(b)))...)
	w.buf = append(w.buf, b...)
}

func (w *writer) bytes32(b []byte) {
	w.buf = append(w.buf, be32(uint32(len(b)))...)
	w.buf = append(w.buf, b...)
}

func (w *writer) str32(s string) { w.bytes32([]byte(s)) }

func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) bytes() []byte { return w.buf }

// reader consumes a message body in the same field order it was written.
type reader struct {
	buf []byte
	off int
}

var errShort = fmt.Errorf("messages: buffer too short")

func (r *reader) need(n int) error {
	if len(r.buf)-r.off < n {
		return errShort
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *reader) fixed(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.buf[r.off:r.off+n])
	r.off += n
	return b, nil
}

func (r *reader) bytes16() ([]byte, error) {
	if err := r.need(2); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(r.buf[r.off:]))
	r.off += 2
	return r.fixed(n)
}

func (r *reader) bytes32() ([]byte, error) {
	if err := r.need(4); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	return r.fixed(n)
}

func (r *reader) str32() (string, error) {
	b, err := r.bytes32()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
