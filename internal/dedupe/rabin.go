package dedupe

import "github.com/cespare/xxhash/v2"

// anchorWindow is the width of the sliding window hashed at each candidate
// cut point when looking for a content-defined boundary.
const anchorWindow = 48

// Rabin is the content-defined chunking Engine (CLI `-D`): block
// boundaries fall where a rolling xxhash of the trailing anchorWindow
// bytes matches a fixed bit pattern, so identical byte runs anywhere in
// the chunk tend to produce identical block boundaries around them.
type Rabin struct {
	Min, Max, Avg int
}

// NewRabin builds a Rabin engine for the given `-B` block-size class.
func NewRabin(blockSizeClass int) *Rabin {
	avg := blockSizeFor(blockSizeClass)
	return &Rabin{Min: avg / 4, Max: avg * 4, Avg: avg}
}

func nextPow2(n int) uint64 {
	if n <= 1 {
		return 1
	}
	v := uint64(n - 1)
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return v + 1
}

func (r *Rabin) boundaries(raw []byte) []int {
	mask := nextPow2(r.Avg) - 1
	var bounds []int
	start := 0
	for start < len(raw) {
		end := start + r.Max
		if end > len(raw) {
			end = len(raw)
		}
		cut := end
		for i := start + r.Min; i < end; i++ {
			if i < anchorWindow {
				continue
			}
			h := xxhash.Sum64(raw[i-anchorWindow : i])
			if h&mask == 0 {
				cut = i
				break
			}
		}
		bounds = append(bounds, cut)
		start = cut
	}
	return bounds
}

func splitAt(raw []byte, bounds []int) [][]byte {
	blocks := make([][]byte, 0, len(bounds))
	start := 0
	for _, b := range bounds {
		blocks = append(blocks, raw[start:b])
		start = b
	}
	return blocks
}

func (r *Rabin) Dedup(raw []byte) ([]byte, []uint32, []byte, bool, error) {
	if len(raw) == 0 {
		return newHeader(0, 0), nil, nil, false, nil
	}
	blocks := splitAt(raw, r.boundaries(raw))
	index, data, numUnique := buildIndex(blocks)
	ok := numUnique < len(blocks)
	return newHeader(len(index), len(raw)), index, data, ok, nil
}

func (r *Rabin) Rebuild(hdr []byte, index []uint32, data []byte) ([]byte, error) {
	return rebuildCommon(hdr, index, data)
}

func (r *Rabin) HeaderSize() int { return HeaderSize }
