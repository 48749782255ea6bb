package transform

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-pcompress/pcompress/internal/codec"
	"github.com/go-pcompress/pcompress/internal/dedupe"
)

func TestTransposeIndexRoundTrip(t *testing.T) {
	index := []uint32{0, 1, 1, 2, 3, 2, 4, 5, 5, 5}
	buf := transposeIndex(index)
	require.Equal(t, len(index)*4, len(buf))
	require.Equal(t, index, untransposeIndex(buf, len(index)))
}

func TestApplyDedupRoundTrip(t *testing.T) {
	c, err := codec.New("zstd")
	require.NoError(t, err)
	require.NoError(t, c.Init(3))
	defer c.Deinit()

	block := bytes.Repeat([]byte("ABCDEFGH"), 512)
	var buf bytes.Buffer
	for i := 0; i < 30; i++ {
		buf.Write(block)
	}
	raw := buf.Bytes()

	engine := dedupe.NewFixed(2)
	out, used, err := applyDedup(raw, engine, c)
	require.NoError(t, err)
	require.True(t, used)
	require.Less(t, len(out), len(raw))

	got, err := reverseDedup(out, engine, c)
	require.NoError(t, err)
	require.Equal(t, raw, got)
}

func TestApplyDedupSkipsNonRepetitive(t *testing.T) {
	c, err := codec.New("store")
	require.NoError(t, err)
	require.NoError(t, c.Init(0))
	defer c.Deinit()

	engine := &dedupe.Fixed{BlockSize: 4096}
	raw := []byte("no repetition whatsoever in this short input string")

	out, used, err := applyDedup(raw, engine, c)
	require.NoError(t, err)
	require.False(t, used)
	require.Equal(t, raw, out)
}

func TestApplyDedupWithAdaptiveCodec(t *testing.T) {
	c, err := codec.New("adapt")
	require.NoError(t, err)
	require.NoError(t, c.Init(3))
	defer c.Deinit()

	block := bytes.Repeat([]byte("0123456789abcdef"), 256)
	var buf bytes.Buffer
	for i := 0; i < 40; i++ {
		buf.Write(block)
	}
	raw := buf.Bytes()

	engine := dedupe.NewRabin(2)
	out, used, err := applyDedup(raw, engine, c)
	require.NoError(t, err)
	require.True(t, used)

	got, err := reverseDedup(out, engine, c)
	require.NoError(t, err)
	require.Equal(t, raw, got)
}
