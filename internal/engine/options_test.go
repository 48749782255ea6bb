package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-pcompress/pcompress/internal/cryptobind"
	"github.com/go-pcompress/pcompress/internal/digest"
)

func TestParseArgsCompressDefaults(t *testing.T) {
	o, err := ParseArgs([]string{"-c", "zstd", "input.bin"})
	require.NoError(t, err)
	require.True(t, o.Compress)
	require.False(t, o.Decompress)
	require.Equal(t, "zstd", o.Algo)
	require.Equal(t, uint64(4<<20), o.ChunkSize)
	require.Equal(t, 6, o.Level)
	require.Equal(t, digest.CRC64, o.Checksum)
	require.Equal(t, "input.bin", o.Input)
	require.Equal(t, "", o.Output)
}

func TestParseArgsRequiresExactlyOneDirection(t *testing.T) {
	_, err := ParseArgs([]string{"input.bin"})
	require.ErrorIs(t, err, ErrBadArgs)

	_, err = ParseArgs([]string{"-c", "zstd", "-d", "input.bin"})
	require.ErrorIs(t, err, ErrBadArgs)
}

func TestParseArgsSizeSuffixes(t *testing.T) {
	cases := map[string]uint64{
		"512":  512,
		"4k":   4 << 10,
		"4K":   4 << 10,
		"16m":  16 << 20,
		"1g":   1 << 30,
	}
	for in, want := range cases {
		o, err := ParseArgs([]string{"-c", "zstd", "-s", in, "input.bin"})
		require.NoError(t, err, in)
		require.Equal(t, want, o.ChunkSize, in)
	}
}

func TestParseArgsRejectsOutOfRangeLevel(t *testing.T) {
	_, err := ParseArgs([]string{"-c", "zstd", "-l", "99", "input.bin"})
	require.ErrorIs(t, err, ErrBadArgs)
}

func TestParseArgsRejectsConflictingDedupModes(t *testing.T) {
	_, err := ParseArgs([]string{"-c", "zstd", "-D", "-F", "input.bin"})
	require.ErrorIs(t, err, ErrBadArgs)
}

func TestParseArgsGlobalDedupRequiresDedupMode(t *testing.T) {
	_, err := ParseArgs([]string{"-c", "zstd", "-G", "input.bin"})
	require.ErrorIs(t, err, ErrBadArgs)

	o, err := ParseArgs([]string{"-c", "zstd", "-D", "-G", "input.bin"})
	require.NoError(t, err)
	require.Equal(t, DedupRabin, o.Dedup)
	require.True(t, o.GlobalDedup)
}

func TestParseArgsUnknownChecksumRejected(t *testing.T) {
	_, err := ParseArgs([]string{"-c", "zstd", "-S", "md5", "input.bin"})
	require.ErrorIs(t, err, ErrBadArgs)
}

func TestParseArgsEncryptionRequiresPasswordFileAndValidKeyLen(t *testing.T) {
	_, err := ParseArgs([]string{"-c", "zstd", "-e", "AES", "input.bin"})
	require.ErrorIs(t, err, ErrBadArgs)

	_, err = ParseArgs([]string{"-c", "zstd", "-e", "AES", "-w", "pw.txt", "-k", "24", "input.bin"})
	require.ErrorIs(t, err, ErrBadArgs)

	o, err := ParseArgs([]string{"-c", "zstd", "-e", "SALSA20", "-w", "pw.txt", "-k", "32", "input.bin"})
	require.NoError(t, err)
	require.True(t, o.Encrypt)
	require.Equal(t, cryptobind.XSalsa20, o.CipherAlg)
	require.Equal(t, 32, o.KeyLen)
}

func TestParseArgsUnknownCipherRejected(t *testing.T) {
	_, err := ParseArgs([]string{"-c", "zstd", "-e", "ROT13", "-w", "pw.txt", "input.bin"})
	require.ErrorIs(t, err, ErrBadArgs)
}

func TestParseArgsForcePermParsesOctal(t *testing.T) {
	o, err := ParseArgs([]string{"-d", "-m", "0755", "archive.pcz"})
	require.NoError(t, err)
	require.Equal(t, uint32(0755), o.ForcePerm)
}

func TestParseArgsMissingInputRejectedUnlessPiped(t *testing.T) {
	_, err := ParseArgs([]string{"-c", "zstd"})
	require.ErrorIs(t, err, ErrBadArgs)

	o, err := ParseArgs([]string{"-c", "zstd", "-p"})
	require.NoError(t, err)
	require.True(t, o.Pipe)
	require.Equal(t, "", o.Input)
}

func TestParseArgsOutputPositional(t *testing.T) {
	o, err := ParseArgs([]string{"-c", "zstd", "in.bin", "out.pcz"})
	require.NoError(t, err)
	require.Equal(t, "in.bin", o.Input)
	require.Equal(t, "out.pcz", o.Output)
}

func TestExitCodeMapping(t *testing.T) {
	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, 2, ExitCode(ErrBadArgs))
	require.Equal(t, 2, ExitCode(fmt.Errorf("wrapped: %w", ErrBadArgs)))
	require.Equal(t, 1, ExitCode(ErrTampered))
}
