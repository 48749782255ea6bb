package transform

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDelta2RoundTrip(t *testing.T) {
	raw := make([]byte, 1000)
	for i := range raw {
		raw[i] = byte(i * 3 % 251)
	}
	for _, span := range []int{1, 2, 4, 8} {
		enc := delta2Encode(raw, span)
		got := delta2Decode(enc, span)
		require.Equal(t, raw, got, "span=%d", span)
	}
}

func TestDelta2ShortInput(t *testing.T) {
	raw := []byte{1, 2, 3}
	enc := delta2Encode(raw, 8)
	require.Equal(t, raw, enc) // span exceeds input length: head copy covers everything

	got := delta2Decode(enc, 8)
	require.Equal(t, raw, got)
}

func TestDelta2FlattensSteppedData(t *testing.T) {
	raw := bytes.Repeat([]byte{10, 20, 30, 40}, 50) // period-4 stepped pattern
	enc := delta2Encode(raw, 4)
	for i := 4; i < len(enc); i++ {
		require.Zero(t, enc[i])
	}
}
