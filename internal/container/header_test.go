package container

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-pcompress/pcompress/internal/digest"
)

func algoTag(s string) [8]byte {
	var t [8]byte
	copy(t[:], s+"        ")
	return t
}

func TestHeaderRoundTripNonCrypto(t *testing.T) {
	h := &Header{
		AlgoTag:   algoTag("zstd"),
		Version:   CurrentVersion,
		Flags:     uint16(0x0400), // SHA256
		ChunkSize: 1 << 20,
		Level:     6,
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, h, nil))

	known := map[[8]byte]bool{h.AlgoTag: true}
	got, err := Read(&buf, known, 0, nil)
	require.NoError(t, err)
	require.Equal(t, h.Version, got.Version)
	require.Equal(t, h.ChunkSize, got.ChunkSize)
}

func TestHeaderRejectsUnknownTag(t *testing.T) {
	h := &Header{AlgoTag: algoTag("zstd"), Version: CurrentVersion, Flags: 0x0400}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, h, nil))

	_, err := Read(&buf, map[[8]byte]bool{algoTag("lz4"): true}, 0, nil)
	require.ErrorIs(t, err, ErrFormatMismatch)
}

func TestHeaderRejectsOldVersion(t *testing.T) {
	h := &Header{AlgoTag: algoTag("zstd"), Version: CurrentVersion - 4, Flags: 0x0400}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, h, nil))

	_, err := Read(&buf, map[[8]byte]bool{h.AlgoTag: true}, 0, nil)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestHeaderRejectsOversizeChunk(t *testing.T) {
	h := &Header{AlgoTag: algoTag("zstd"), Version: CurrentVersion, Flags: 0x0400, ChunkSize: 1 << 40}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, h, nil))

	_, err := Read(&buf, map[[8]byte]bool{h.AlgoTag: true}, 1<<40, nil)
	require.ErrorIs(t, err, ErrOversizeChunk)
}

func TestHeaderTamperDetected(t *testing.T) {
	h := &Header{AlgoTag: algoTag("zstd"), Version: CurrentVersion, Flags: 0x0400, ChunkSize: 1 << 20}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, h, nil))

	raw := buf.Bytes()
	raw[10] ^= 0xFF // flip a flags byte, inside the CRC-covered region

	_, err := Read(bytes.NewReader(raw), map[[8]byte]bool{h.AlgoTag: true}, 0, nil)
	require.ErrorIs(t, err, ErrTampered)
}

func TestHeaderCryptoRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	h := &Header{
		AlgoTag:   algoTag("zstd"),
		Version:   CurrentVersion,
		Flags:     uint16(0x0400) | CryptoAES,
		ChunkSize: 1 << 20,
		Salt:      []byte("saltsaltsaltsalt"),
		Nonce:     make([]byte, 8),
		KeyLen:    32,
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, h, key))

	derive := func(salt []byte, keyLen uint32, cksumID digest.ID) ([]byte, error) { return key, nil }
	known := map[[8]byte]bool{h.AlgoTag: true}
	got, err := Read(&buf, known, 0, derive)
	require.NoError(t, err)
	require.Equal(t, h.ChunkSize, got.ChunkSize)

	// Wrong key must fail.
	var buf2 bytes.Buffer
	require.NoError(t, Write(&buf2, h, key))
	wrongDerive := func(salt []byte, keyLen uint32, cksumID digest.ID) ([]byte, error) {
		return []byte("wrongwrongwrongwrongwrongwrong!!"), nil
	}
	_, err = Read(&buf2, known, 0, wrongDerive)
	require.ErrorIs(t, err, ErrTampered)
}
