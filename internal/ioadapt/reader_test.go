package ioadapt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixedChunkReaderSplitsEvenly(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3, 4}, 1000) // 4000 bytes
	r := NewFixedChunkReader(bytes.NewReader(data), 1000)

	var got []byte
	var ids []uint64
	for {
		id, chunk, ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, id)
		got = append(got, chunk...)
	}
	require.Equal(t, data, got)
	require.Equal(t, []uint64{0, 1, 2, 3}, ids)
}

func TestFixedChunkReaderUnevenLastChunk(t *testing.T) {
	data := make([]byte, 2500)
	for i := range data {
		data[i] = byte(i)
	}
	r := NewFixedChunkReader(bytes.NewReader(data), 1000)

	var sizes []int
	var got []byte
	for {
		_, chunk, ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		sizes = append(sizes, len(chunk))
		got = append(got, chunk...)
	}
	require.Equal(t, []int{1000, 1000, 500}, sizes)
	require.Equal(t, data, got)
}

func TestRabinChunkReaderReassemblesExactly(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 2000)
	r := NewRabinChunkReader(bytes.NewReader(data), 4096)

	var got []byte
	prevID := uint64(0)
	first := true
	for {
		id, chunk, ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		if !first {
			require.Equal(t, prevID+1, id)
		}
		first = false
		prevID = id
		require.LessOrEqual(t, len(chunk), 4096)
		got = append(got, chunk...)
	}
	require.Equal(t, data, got)
}

func TestRabinChunkReaderEmptySource(t *testing.T) {
	r := NewRabinChunkReader(bytes.NewReader(nil), 4096)
	_, _, ok, err := r.Next()
	require.NoError(t, err)
	require.False(t, ok)
}
