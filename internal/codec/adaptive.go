package codec

import "fmt"

// adaptiveCodec is the "adapt" composite from spec §9: it runs each child
// codec on the chunk and keeps the smallest output, recording the winner's
// 1-based index in the flag byte's 2-bit sub-algo field. Children are
// ordered s2, zstd, lz4 so their AdaptiveID (1, 2, 3) matches their index+1.
type adaptiveCodec struct {
	children []Codec
	lastWin  uint8
}

func newAdaptive() Codec {
	return &adaptiveCodec{children: []Codec{newS2(), newZstd(), newLZ4()}}
}

func (c *adaptiveCodec) Init(level int) error {
	for _, ch := range c.children {
		if err := ch.Init(level); err != nil {
			return err
		}
	}
	return nil
}

func (c *adaptiveCodec) Deinit() {
	for _, ch := range c.children {
		ch.Deinit()
	}
}

func (c *adaptiveCodec) Compress(src []byte) ([]byte, error) {
	var best []byte
	var bestID uint8
	for i, ch := range c.children {
		out, err := ch.Compress(src)
		if err != nil {
			continue
		}
		if best == nil || len(out) < len(best) {
			best = out
			bestID = uint8(i + 1)
		}
	}
	if best == nil {
		return nil, fmt.Errorf("codec: adapt: all child codecs failed")
	}
	c.lastWin = bestID
	return best, nil
}

// LastWinner returns the 1-based child index chosen by the most recent
// Compress call, for the caller to encode into the chunk flag byte.
func (c *adaptiveCodec) LastWinner() uint8 { return c.lastWin }

// DecompressWith decompresses src using the child identified by subAlgo
// (1=s2, 2=zstd, 3=lz4), as recorded in the chunk flag byte. subAlgo==0 is
// rejected as corrupt per spec §9's Open Question resolution.
func (c *adaptiveCodec) DecompressWith(subAlgo uint8, src []byte, dstLen int) ([]byte, error) {
	if subAlgo == 0 || int(subAlgo) > len(c.children) {
		return nil, fmt.Errorf("codec: adapt: invalid sub-algo id %d", subAlgo)
	}
	return c.children[subAlgo-1].Decompress(src, dstLen)
}

func (c *adaptiveCodec) Decompress(src []byte, dstLen int) ([]byte, error) {
	return nil, fmt.Errorf("codec: adapt: Decompress requires DecompressWith(subAlgo, ...)")
}

func (c *adaptiveCodec) Stats() string { return fmt.Sprintf("adapt: winner=%d", c.lastWin) }

func (c *adaptiveCodec) Props() Props {
	return Props{Name: "adapt", AlgoTag: tag("adapt")}
}
