package dedupe

import (
	"bytes"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Global is the cross-chunk dedup Engine (CLI `-G`): unlike Rabin/Fixed,
// which rebuild a from-scratch block table on every call, Global keeps one
// block table alive for the life of the stream, so a block introduced in
// chunk 3 can be referenced (and never re-stored) by chunk 900 (spec.md
// §4.5 scenario 5: "a shared dedup index mutated in strict chunk-id
// order"). Each chunk's data blob carries only the blocks that table has
// not seen before; index entries may point at blocks from any earlier
// chunk.
//
// A Global instance is not safe for concurrent use: callers must serialize
// Dedup/Rebuild calls in strictly ascending chunk-id order. The scheduler's
// per-worker IndexSem ring already provides this when -G is active, since
// it wraps each worker's entire TransformStack call, not just the dedup
// stage.
type Global struct {
	split func(raw []byte) [][]byte

	hashToIDs map[uint64][]uint32
	unique    [][]byte

	rebuilt [][]byte
}

// NewGlobalRabin builds a Global engine using Rabin's content-defined block
// boundaries for the given `-B` block-size class.
func NewGlobalRabin(blockSizeClass int) *Global {
	r := NewRabin(blockSizeClass)
	return newGlobal(func(raw []byte) [][]byte {
		return splitAt(raw, r.boundaries(raw))
	})
}

// NewGlobalFixed builds a Global engine using Fixed's fixed-size block
// boundaries for the given `-B` block-size class.
func NewGlobalFixed(blockSizeClass int) *Global {
	f := NewFixed(blockSizeClass)
	return newGlobal(f.split)
}

func newGlobal(split func([]byte) [][]byte) *Global {
	return &Global{
		split:     split,
		hashToIDs: make(map[uint64][]uint32),
	}
}

func (g *Global) HeaderSize() int { return HeaderSize }

// Dedup splits raw into blocks and resolves each against the engine's
// whole-stream table, appending only newly-seen blocks to data. ok is true
// whenever at least one block matched something already in the table
// (whether first seen in this chunk or an earlier one).
func (g *Global) Dedup(raw []byte) (header []byte, index []uint32, data []byte, ok bool, err error) {
	if len(raw) == 0 {
		return newHeader(0, 0), nil, nil, false, nil
	}

	blocks := g.split(raw)
	index = make([]uint32, len(blocks))

	var buf bytes.Buffer
	newBlocks := 0
	for i, b := range blocks {
		id, found := g.lookup(b)
		if !found {
			id = uint32(len(g.unique))
			g.remember(b, id)

			var lenBuf [4]byte
			binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
			buf.Write(lenBuf[:])
			buf.Write(b)
			newBlocks++
		}
		index[i] = id
	}

	ok = newBlocks < len(blocks)
	return newHeader(len(blocks), len(raw)), index, buf.Bytes(), ok, nil
}

func (g *Global) lookup(b []byte) (uint32, bool) {
	h := xxhash.Sum64(b)
	for _, cand := range g.hashToIDs[h] {
		if bytes.Equal(g.unique[cand], b) {
			return cand, true
		}
	}
	return 0, false
}

func (g *Global) remember(b []byte, id uint32) {
	h := xxhash.Sum64(b)
	cp := append([]byte(nil), b...)
	g.unique = append(g.unique, cp)
	g.hashToIDs[h] = append(g.hashToIDs[h], id)
}

// Rebuild appends this chunk's newly-introduced blocks (data) to the
// engine's whole-stream table, then resolves index against that table.
// Callers must invoke Rebuild in strictly ascending chunk-id order so the
// table's positions line up with the ids Dedup assigned on encode.
func (g *Global) Rebuild(hdr []byte, index []uint32, data []byte) ([]byte, error) {
	if len(hdr) < HeaderSize {
		return nil, ErrShortHeader
	}
	origLen := binary.BigEndian.Uint64(hdr[4:12])

	off := 0
	for off < len(data) {
		if off+4 > len(data) {
			return nil, ErrTruncatedBlock
		}
		l := binary.BigEndian.Uint32(data[off : off+4])
		off += 4
		if off+int(l) > len(data) {
			return nil, ErrTruncatedBlock
		}
		block := make([]byte, l)
		copy(block, data[off:off+int(l)])
		g.rebuilt = append(g.rebuilt, block)
		off += int(l)
	}

	out := make([]byte, 0, origLen)
	for _, id := range index {
		if int(id) >= len(g.rebuilt) {
			return nil, ErrIndexOutOfRange
		}
		out = append(out, g.rebuilt[id]...)
	}
	if uint64(len(out)) != origLen {
		return nil, ErrLengthMismatch
	}
	return out, nil
}
