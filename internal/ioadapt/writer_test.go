package ioadapt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-pcompress/pcompress/internal/container"
)

func TestFrameWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)

	frames := []*container.Frame{
		{DigestOrZero: []byte{1, 2, 3, 4}, MacOrCRC: []byte{5, 6, 7, 8}, Flags: 0, Payload: []byte("hello")},
		{DigestOrZero: []byte{9, 9, 9, 9}, MacOrCRC: []byte{0, 0, 0, 0}, Flags: 1, Payload: []byte("world"), HasOriginal: true, OriginalLen: 5},
	}
	for _, f := range frames {
		require.NoError(t, fw.WriteFrame(f))
	}
	require.NoError(t, fw.WriteTrailer())

	fr := NewFrameReader(&buf, 4, 4, 1<<20)
	for i, want := range frames {
		id, got, ok, err := fr.Next()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(i), id)
		require.Equal(t, want.Payload, got.Payload)
		require.Equal(t, want.Flags, got.Flags)
		require.Equal(t, want.HasOriginal, got.HasOriginal)
		require.Equal(t, want.OriginalLen, got.OriginalLen)
	}
	_, _, ok, err := fr.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestChunkWriterWritesInOrder(t *testing.T) {
	var buf bytes.Buffer
	cw := NewChunkWriter(&buf)
	require.NoError(t, cw.WriteChunk(0, []byte("abc")))
	require.NoError(t, cw.WriteChunk(1, []byte("def")))
	require.Equal(t, "abcdef", buf.String())
}
