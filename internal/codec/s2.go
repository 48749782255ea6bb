package codec

import "github.com/klauspost/compress/s2"

// s2Codec wraps klauspost/compress/s2 (Snappy-family), adopted the way
// arloliu/mebo's compress/s2.go uses it: stateless Encode (or EncodeBetter
// at level >= 5) and Decode calls, no encoder pooling needed since s2
// allocates cheaply per call.
type s2Codec struct {
	better bool
}

func newS2() Codec { return &s2Codec{} }

func (c *s2Codec) Init(level int) error {
	c.better = level >= 5
	return nil
}

func (c *s2Codec) Deinit() {}

func (c *s2Codec) Compress(src []byte) ([]byte, error) {
	if c.better {
		return s2.EncodeBetter(nil, src), nil
	}
	return s2.Encode(nil, src), nil
}

func (c *s2Codec) Decompress(src []byte, dstLen int) ([]byte, error) {
	return s2.Decode(nil, src)
}

func (c *s2Codec) Stats() string { return "s2" }

func (c *s2Codec) Props() Props {
	return Props{Name: "s2", AlgoTag: tag("s2"), HasLevel: true, MaxLevel: 9, AdaptiveID: 1}
}
