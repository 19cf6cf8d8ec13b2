package session

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
)

// DefaultChunkSize is the chunk size a sender should use unless told
// otherwise by the application; MaxChunkSize is the hard ceiling a
// receiver will accept per chunk (§4.4.2).
const (
	DefaultChunkSize = 64 * 1024
	MaxChunkSize     = 1024 * 1024
)

var (
	ErrChunkTooLarge        = errors.New("session: chunk exceeds MaxChunkSize")
	ErrChunkIndexOutOfRange = errors.New("session: chunk index out of range")
	ErrTransferIncomplete   = errors.New("session: not all chunks received")
	ErrIntegrityMismatch    = errors.New("session: reassembled file does not match its announced checksum")
)

// IncomingTransfer tracks one in-progress chunked file transfer
// announced by a FileTransferStart message. It is not safe for
// concurrent use; the caller serializes access per file_id.
type IncomingTransfer struct {
	FileID    uint64
	Filename  string
	TotalSize uint64
	NumChunks uint32
	SHA256    [32]byte

	chunks   map[uint32][]byte
	received uint32
}

// NewIncomingTransfer begins tracking a transfer per its announcement.
func NewIncomingTransfer(fileID uint64, filename string, totalSize uint64, numChunks uint32, sha [32]byte) *IncomingTransfer {
	return &IncomingTransfer{
		FileID:    fileID,
		Filename:  filename,
		TotalSize: totalSize,
		NumChunks: numChunks,
		SHA256:    sha,
		chunks:    make(map[uint32][]byte, numChunks),
	}
}

// AddChunk records one received chunk. complete reports whether every
// chunk announced by the transfer's NumChunks has now arrived.
func (t *IncomingTransfer) AddChunk(index uint32, data []byte) (complete bool, err error) {
	if index >= t.NumChunks {
		return false, fmt.Errorf("%w: index %d, numChunks %d", ErrChunkIndexOutOfRange, index, t.NumChunks)
	}
	if len(data) > MaxChunkSize {
		return false, ErrChunkTooLarge
	}

	if _, dup := t.chunks[index]; !dup {
		t.received++
	}
	t.chunks[index] = data

	return t.received == t.NumChunks, nil
}

// Assemble concatenates chunks 0..NumChunks-1 in order and verifies the
// result against the announced SHA-256. A missing chunk or a checksum
// mismatch (a corrupted chunk slipped past transport integrity, or a
// malicious sender) both fail the transfer rather than handing back
// partial or tampered bytes.
func (t *IncomingTransfer) Assemble() ([]byte, error) {
	if t.received != t.NumChunks {
		return nil, ErrTransferIncomplete
	}

	var buf bytes.Buffer
	for i := uint32(0); i < t.NumChunks; i++ {
		chunk, ok := t.chunks[i]
		if !ok {
			return nil, fmt.Errorf("%w: missing chunk %d", ErrTransferIncomplete, i)
		}
		buf.Write(chunk)
	}

	data := buf.Bytes()
	sum := sha256.Sum256(data)
	if sum != t.SHA256 {
		return nil, ErrIntegrityMismatch
	}
	return data, nil
}

// SplitIntoChunks divides data into chunkSize-sized pieces (the last one
// possibly shorter) and computes the whole-file SHA-256 a
// FileTransferStart announces up front.
func SplitIntoChunks(data []byte, chunkSize uint32) (chunks [][]byte, sha [32]byte, err error) {
	if chunkSize == 0 || chunkSize > MaxChunkSize {
		return nil, sha, fmt.Errorf("session: invalid chunk size %d", chunkSize)
	}

	sha = sha256.Sum256(data)

	for offset := 0; offset < len(data); offset += int(chunkSize) {
		end := offset + int(chunkSize)
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[offset:end])
	}
	if len(data) == 0 {
		chunks = [][]byte{{}}
	}

	return chunks, sha, nil
}
