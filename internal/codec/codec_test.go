package codec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecsRoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)

	for _, name := range []string{"store", "zstd", "s2", "lz4"} {
		name := name
		t.Run(name, func(t *testing.T) {
			c, err := New(name)
			require.NoError(t, err)
			require.NoError(t, c.Init(3))
			defer c.Deinit()

			compressed, err := c.Compress(src)
			require.NoError(t, err)

			got, err := c.Decompress(compressed, len(src))
			require.NoError(t, err)
			require.Equal(t, src, got)
		})
	}
}

func TestAliasesResolve(t *testing.T) {
	for alias, canon := range aliases {
		c, err := New(alias)
		require.NoError(t, err)
		require.Equal(t, canon, c.Props().Name)
	}
}

func TestUnknownAlgo(t *testing.T) {
	_, err := New("does-not-exist")
	require.Error(t, err)
}

func TestAdaptiveRecordsWinnerAndRejectsZero(t *testing.T) {
	c := newAdaptive().(*adaptiveCodec)
	require.NoError(t, c.Init(3))

	src := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(src)
	for i := range src {
		src[i] = byte(i % 7) // compressible
	}

	compressed, err := c.Compress(src)
	require.NoError(t, err)
	require.NotZero(t, c.LastWinner())

	got, err := c.DecompressWith(c.LastWinner(), compressed, len(src))
	require.NoError(t, err)
	require.Equal(t, src, got)

	_, err = c.DecompressWith(0, compressed, len(src))
	require.Error(t, err)
}
