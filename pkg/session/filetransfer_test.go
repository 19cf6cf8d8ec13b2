package session

import (
	"bytes"
	"errors"
	"testing"
)

func TestFileTransferRoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte("0123456789"), 1000) // 10000 bytes
	chunks, sha, err := SplitIntoChunks(original, 4096)
	if err != nil {
		t.Fatalf("SplitIntoChunks: %v", err)
	}

	transfer := NewIncomingTransfer(1, "data.bin", uint64(len(original)), uint32(len(chunks)), sha)

	for i, chunk := range chunks {
		complete, err := transfer.AddChunk(uint32(i), chunk)
		if err != nil {
			t.Fatalf("AddChunk(%d): %v", i, err)
		}
		wantComplete := i == len(chunks)-1
		if complete != wantComplete {
			t.Fatalf("AddChunk(%d) complete=%v, want %v", i, complete, wantComplete)
		}
	}

	reassembled, err := transfer.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !bytes.Equal(reassembled, original) {
		t.Fatal("reassembled file does not match original")
	}
}

func TestFileTransferOutOfOrderChunks(t *testing.T) {
	original := []byte("the quick brown fox jumps over the lazy dog")
	chunks, sha, err := SplitIntoChunks(original, 8)
	if err != nil {
		t.Fatalf("SplitIntoChunks: %v", err)
	}

	transfer := NewIncomingTransfer(1, "f.txt", uint64(len(original)), uint32(len(chunks)), sha)

	for i := len(chunks) - 1; i >= 0; i-- {
		if _, err := transfer.AddChunk(uint32(i), chunks[i]); err != nil {
			t.Fatalf("AddChunk(%d): %v", i, err)
		}
	}

	reassembled, err := transfer.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !bytes.Equal(reassembled, original) {
		t.Fatal("reassembled file does not match original")
	}
}

func TestFileTransferCorruptedChunkFailsIntegrityCheck(t *testing.T) {
	original := bytes.Repeat([]byte{0xAB}, 5000)
	chunks, sha, err := SplitIntoChunks(original, 1024)
	if err != nil {
		t.Fatalf("SplitIntoChunks: %v", err)
	}

	transfer := NewIncomingTransfer(1, "f.bin", uint64(len(original)), uint32(len(chunks)), sha)

	for i, chunk := range chunks {
		corrupted := append([]byte(nil), chunk...)
		if i == 1 {
			corrupted[0] ^= 0xFF
		}
		if _, err := transfer.AddChunk(uint32(i), corrupted); err != nil {
			t.Fatalf("AddChunk(%d): %v", i, err)
		}
	}

	if _, err := transfer.Assemble(); err != ErrIntegrityMismatch {
		t.Fatalf("expected ErrIntegrityMismatch, got %v", err)
	}
}

func TestFileTransferIncompleteRejected(t *testing.T) {
	original := []byte("short file")
	chunks, sha, err := SplitIntoChunks(original, 4)
	if err != nil {
		t.Fatalf("SplitIntoChunks: %v", err)
	}

	transfer := NewIncomingTransfer(1, "f.txt", uint64(len(original)), uint32(len(chunks)), sha)
	// Deliberately withhold the last chunk.
	for i := 0; i < len(chunks)-1; i++ {
		if _, err := transfer.AddChunk(uint32(i), chunks[i]); err != nil {
			t.Fatalf("AddChunk(%d): %v", i, err)
		}
	}

	if _, err := transfer.Assemble(); err != ErrTransferIncomplete {
		t.Fatalf("expected ErrTransferIncomplete, got %v", err)
	}
}

func TestAddChunkRejectsOutOfRangeIndex(t *testing.T) {
	transfer := NewIncomingTransfer(1, "f.txt", 10, 2, [32]byte{})
	if _, err := transfer.AddChunk(5, []byte("x")); !errors.Is(err, ErrChunkIndexOutOfRange) {
		t.Fatalf("expected ErrChunkIndexOutOfRange, got %v", err)
	}
}

func TestAddChunkRejectsOversizeChunk(t *testing.T) {
	transfer := NewIncomingTransfer(1, "f.txt", 10, 2, [32]byte{})
	if _, err := transfer.AddChunk(0, make([]byte, MaxChunkSize+1)); err != ErrChunkTooLarge {
		t.Fatalf("expected ErrChunkTooLarge, got %v", err)
	}
}
