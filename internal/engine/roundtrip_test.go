package engine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-pcompress/pcompress/internal/cryptobind"
)

func writeTempInput(t *testing.T, dir string, size int) string {
	t.Helper()
	path := filepath.Join(dir, "input.bin")
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 7 % 251)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	dir := t.TempDir()
	input := writeTempInput(t, dir, 200_000)
	want, err := os.ReadFile(input)
	require.NoError(t, err)

	outPath := filepath.Join(dir, "input.pcz")
	o := &Options{
		Compress:  true,
		Algo:      "zstd",
		ChunkSize: 64 << 10,
		Level:     3,
		Threads:   2,
		Checksum:  checksumNames["crc64"],
		Input:     input,
		Output:    outPath,
	}
	log := NewLogger(false)
	require.NoError(t, Compress(o, log))

	_, err = os.Stat(outPath)
	require.NoError(t, err)

	decPath := filepath.Join(dir, "roundtrip.out")
	d := &Options{
		Decompress: true,
		Threads:    2,
		Input:      outPath,
		Output:     decPath,
	}
	require.NoError(t, Decompress(d, log))

	got, err := os.ReadFile(decPath)
	require.NoError(t, err)
	require.True(t, bytes.Equal(want, got))
}

func TestCompressDecompressRoundTripWithDedupAndLZP(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.bin")
	chunk := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog"), 500)
	data := append(append([]byte{}, chunk...), chunk...)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	outPath := filepath.Join(dir, "input.pcz")
	o := &Options{
		Compress:  true,
		Algo:      "s2",
		ChunkSize: 32 << 10,
		Level:     1,
		Threads:   3,
		Dedup:     DedupRabin,
		LZP:       true,
		Checksum:  checksumNames["sha256"],
		Input:     path,
		Output:    outPath,
	}
	log := NewLogger(false)
	require.NoError(t, Compress(o, log))

	decPath := filepath.Join(dir, "roundtrip.out")
	d := &Options{
		Decompress: true,
		Threads:    3,
		Input:      outPath,
		Output:     decPath,
	}
	require.NoError(t, Decompress(d, log))

	got, err := os.ReadFile(decPath)
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, got))
}

func TestCompressDecompressRoundTripEncrypted(t *testing.T) {
	dir := t.TempDir()
	input := writeTempInput(t, dir, 80_000)
	want, err := os.ReadFile(input)
	require.NoError(t, err)

	pwPath := filepath.Join(dir, "pw.txt")
	require.NoError(t, os.WriteFile(pwPath, []byte("correct horse battery staple"), 0o600))

	outPath := filepath.Join(dir, "input.pcz")
	o := &Options{
		Compress:     true,
		Algo:         "zstd",
		ChunkSize:    32 << 10,
		Level:        3,
		Threads:      2,
		Checksum:     checksumNames["sha256"],
		Encrypt:      true,
		CipherAlg:    cryptobind.AES,
		PasswordFile: pwPath,
		KeyLen:       32,
		Input:        input,
		Output:       outPath,
	}
	log := NewLogger(false)
	require.NoError(t, Compress(o, log))

	decPath := filepath.Join(dir, "roundtrip.out")
	d := &Options{
		Decompress:   true,
		Threads:      2,
		PasswordFile: pwPath,
		Input:        outPath,
		Output:       decPath,
	}
	require.NoError(t, Decompress(d, log))

	got, err := os.ReadFile(decPath)
	require.NoError(t, err)
	require.True(t, bytes.Equal(want, got))
}
