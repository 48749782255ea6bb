package cryptobind

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAESStreamRoundTripPerChunk(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 32)
	nonce := bytes.Repeat([]byte{0x22}, 16)
	plain := bytes.Repeat([]byte("pcompress chunk payload "), 100)

	enc, err := Stream(AES, key, nonce, 7)
	require.NoError(t, err)
	cipherText := make([]byte, len(plain))
	enc.XORKeyStream(cipherText, plain)

	dec, err := Stream(AES, key, nonce, 7)
	require.NoError(t, err)
	got := make([]byte, len(plain))
	dec.XORKeyStream(got, cipherText)

	require.Equal(t, plain, got)
}

func TestAESStreamDiffersByChunkID(t *testing.T) {
	key := bytes.Repeat([]byte{0x33}, 16)
	nonce := bytes.Repeat([]byte{0x44}, 16)
	plain := bytes.Repeat([]byte("x"), 64)

	a, err := Stream(AES, key, nonce, 0)
	require.NoError(t, err)
	outA := make([]byte, len(plain))
	a.XORKeyStream(outA, plain)

	b, err := Stream(AES, key, nonce, 1)
	require.NoError(t, err)
	outB := make([]byte, len(plain))
	b.XORKeyStream(outB, plain)

	require.NotEqual(t, outA, outB)
}

func TestXSalsa20StreamRoundTripPerChunk(t *testing.T) {
	key := bytes.Repeat([]byte{0x55}, 32)
	nonce := bytes.Repeat([]byte{0x66}, 24)
	plain := bytes.Repeat([]byte("another chunk payload for xsalsa20 "), 50)

	enc, err := Stream(XSalsa20, key, nonce, 3)
	require.NoError(t, err)
	cipherText := make([]byte, len(plain))
	enc.XORKeyStream(cipherText, plain)

	dec, err := Stream(XSalsa20, key, nonce, 3)
	require.NoError(t, err)
	got := make([]byte, len(plain))
	dec.XORKeyStream(got, cipherText)

	require.Equal(t, plain, got)
}

func TestXSalsa20RejectsBadKeyOrNonceLength(t *testing.T) {
	_, err := Stream(XSalsa20, make([]byte, 16), make([]byte, 24), 0)
	require.Error(t, err)

	_, err = Stream(XSalsa20, make([]byte, 32), make([]byte, 12), 0)
	require.Error(t, err)
}
