package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeSealOpenRoundTrip(t *testing.T) {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	aad := EndToEndAAD(1, 2, 42)

	env, err := SealEnvelope(key, 7, 42, []byte("hello there"), aad)
	require.NoError(t, err)

	encoded := env.Encode()
	decoded, err := DecodeEnvelope(encoded)
	require.NoError(t, err)
	require.Equal(t, uint32(7), decoded.OrigType)
	require.Equal(t, uint64(42), decoded.Seq)

	plaintext, err := decoded.Open(key, aad)
	require.NoError(t, err)
	require.Equal(t, []byte("hello there"), plaintext)
}

func TestEnvelopeOpenRejectsSeqTamper(t *testing.T) {
	key := make([]byte, KeySize)
	aad := EndToEndAAD(1, 2, 10)
	env, err := SealEnvelope(key, 1, 10, []byte("payload"), aad)
	require.NoError(t, err)

	env.Seq = 11 // claim a different sequence number than was authenticated

	_, err = env.Open(key, EndToEndAAD(1, 2, env.Seq))
	require.Error(t, err, "expected authentication failure after seq tamper")
}

func TestDecodeEnvelopeRejectsTruncated(t *testing.T) {
	_, err := DecodeEnvelope([]byte{1, 2, 3})
	require.Error(t, err, "expected error decoding truncated envelope")
}

// TestEnvelopeScenarioS1 is the spec's literal round-trip vector: a zero
// key, aad = from_id(1) ‖ to_id(2) ‖ seq(5), and a flipped ciphertext
// byte must surface as an authentication failure.
func TestEnvelopeScenarioS1(t *testing.T) {
	key := make([]byte, KeySize)
	aad := EndToEndAAD(1, 2, 5)
	require.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 5}, aad)

	sealed, err := Seal(key, []byte("Hello Bob!"), aad)
	require.NoError(t, err)

	plaintext, err := Open(key, sealed, aad)
	require.NoError(t, err)
	require.Equal(t, []byte("Hello Bob!"), plaintext)

	tampered := append([]byte(nil), sealed...)
	tampered[NonceSize] ^= 0xFF
	_, err = Open(key, tampered, aad)
	require.Error(t, err)
}
