package codec

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

// lz4Codec wraps pierrec/lz4/v4, adopted from arloliu/mebo's
// compress/lz4.go and the teacher's own indirect dependency on the same
// module via its _tests submodules.
type lz4Codec struct {
	level lz4.CompressionLevel
}

func newLZ4() Codec { return &lz4Codec{level: lz4.Fast} }

func (c *lz4Codec) Init(level int) error {
	if level >= 9 {
		c.level = lz4.Level9
	} else if level > 0 {
		// lz4.Level1..Level9 are successive powers of two, not 1..9.
		c.level = lz4.Level1 << uint(level-1)
	}
	return nil
}

func (c *lz4Codec) Deinit() {}

func (c *lz4Codec) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(c.level)); err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *lz4Codec) Decompress(src []byte, dstLen int) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(src))
	out := make([]byte, dstLen)
	if _, err := io.ReadFull(r, out); err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return out, nil
}

func (c *lz4Codec) Stats() string { return "lz4" }

func (c *lz4Codec) Props() Props {
	return Props{Name: "lz4", AlgoTag: tag("lz4"), HasLevel: true, MaxLevel: 9, AdaptiveID: 3}
}
