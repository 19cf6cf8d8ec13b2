package messages

import "github.com/tchatsapp/core/pkg/registry"

// FileTransferStartMessage announces an incoming chunked file transfer
// before any FileChunk arrives (§4.4.2). The recipient uses NumChunks and
// SHA256 to know when it has the whole file and whether it reassembled
// correctly.
type FileTransferStartMessage struct {
	FileID    uint64
	Filename  string
	TotalSize uint64
	NumChunks uint32
	SHA256    [32]byte
}

func (m *FileTransferStartMessage) Encode() []byte {
	w := &writer{}
	w.u64(m.FileID)
	w.str32(m.Filename)
	w.u64(m.TotalSize)
	w.u32(m.NumChunks)
	w.raw(m.SHA256[:])
	return w.bytes()
}

func DecodeFileTransferStart(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	id, err := r.u64()
	if err != nil {
		return nil, err
	}
	name, err := r.str32()
	if err != nil {
		return nil, err
	}
	size, err := r.u64()
	if err != nil {
		return nil, err
	}
	numChunks, err := r.u32()
	if err != nil {
		return nil, err
	}
	sum, err := r.fixed(32)
	if err != nil {
		return nil, err
	}
	m := &FileTransferStartMessage{FileID: id, Filename: name, TotalSize: size, NumChunks: numChunks}
	copy(m.SHA256[:], sum)
	return m, nil
}

// FileChunkMessage carries one chunk of a transfer announced by a prior
// FileTransferStart. Each chunk is its own Encrypted envelope with its own
// replay-protected sequence number, not a sub-field of a larger envelope.
type FileChunkMessage struct {
	FileID     uint64
	ChunkIndex uint32
	Data       []byte
}

func (m *FileChunkMessage) Encode() []byte {
	w := &writer{}
	w.u64(m.FileID)
	w.u32(m.ChunkIndex)
	w.bytes32(m.Data)
	return w.bytes()
}

func DecodeFileChunk(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	id, err := r.u64()
	if err != nil {
		return nil, err
	}
	idx, err := r.u32()
	if err != nil {
		return nil, err
	}
	data, err := r.bytes32()
	if err != nil {
		return nil, err
	}
	return &FileChunkMessage{FileID: id, ChunkIndex: idx, Data: data}, nil
}
