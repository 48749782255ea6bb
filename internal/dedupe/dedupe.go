// Package dedupe implements the DedupeEngine collaborator spec.md §1/§4.2
// describes as an external interface: block-level deduplication that
// recognizes repeated byte ranges within a chunk and replaces them with
// references into a table of unique blocks.
package dedupe

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/cespare/xxhash/v2"
)

// Engine is the narrow external collaborator TransformStack calls. A chunk
// is "valid" for dedup (the ok return) only when splitting it actually
// finds repeated blocks; otherwise the dedup stage is skipped entirely.
type Engine interface {
	Dedup(raw []byte) (header []byte, index []uint32, data []byte, ok bool, err error)
	Rebuild(header []byte, index []uint32, data []byte) ([]byte, error)
	HeaderSize() int
}

// HeaderSize is RABIN_HDR_SIZE (spec §4.2): 4 bytes block count, 8 bytes
// original length, 4 bytes raw (pre-compression) data-blob length, 4 bytes
// compressed-data size, 4 bytes compressed-index size, 1 byte of
// data/index-compressed flags, and 2 bytes recording which adaptive-codec
// child (if any) compressed the index/data blobs. The compressed-size/
// flag/sub-algo fields start zeroed here and are filled in by
// internal/transform's dedup stage once it knows whether index/data
// compression paid off, per spec's "written back into the dedup header
// before framing."
const HeaderSize = 27

var (
	ErrShortHeader    = errors.New("dedupe: header shorter than HeaderSize")
	ErrTruncatedBlock = errors.New("dedupe: truncated block in data blob")
	ErrIndexOutOfRange = errors.New("dedupe: index entry references unknown block")
	ErrLengthMismatch = errors.New("dedupe: rebuilt length does not match original")
)

func newHeader(numBlocks, origLen int) []byte {
	h := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(h[0:4], uint32(numBlocks))
	binary.BigEndian.PutUint64(h[4:12], uint64(origLen))
	return h
}

// buildIndex assigns each block the id of the first identical block seen
// (verified by content, not just hash, so an xxhash collision can never
// silently merge two different blocks), and returns the index array plus
// the concatenated unique-block data blob (each block length-prefixed so
// Rebuild can recover block boundaries without external bookkeeping).
func buildIndex(blocks [][]byte) (index []uint32, data []byte, numUnique int) {
	hashToIDs := make(map[uint64][]uint32)
	var unique [][]byte
	index = make([]uint32, len(blocks))

	for i, b := range blocks {
		h := xxhash.Sum64(b)
		id := uint32(0)
		found := false
		for _, cand := range hashToIDs[h] {
			if bytes.Equal(unique[cand], b) {
				id = cand
				found = true
				break
			}
		}
		if !found {
			id = uint32(len(unique))
			unique = append(unique, b)
			hashToIDs[h] = append(hashToIDs[h], id)
		}
		index[i] = id
	}

	var buf bytes.Buffer
	for _, b := range unique {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
		buf.Write(lenBuf[:])
		buf.Write(b)
	}
	return index, buf.Bytes(), len(unique)
}

// rebuildCommon reverses buildIndex: it is shared by every Engine
// implementation since block splitting differs (content-defined vs
// fixed-size) but reassembly from (header, index, data) does not.
func rebuildCommon(hdr []byte, index []uint32, data []byte) ([]byte, error) {
	if len(hdr) < HeaderSize {
		return nil, ErrShortHeader
	}
	origLen := binary.BigEndian.Uint64(hdr[4:12])

	var blocks [][]byte
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
		blocks = append(blocks, data[off:off+int(l)])
		off += int(l)
	}

	out := make([]byte, 0, origLen)
	for _, id := range index {
		if int(id) >= len(blocks) {
			return nil, ErrIndexOutOfRange
		}
		out = append(out, blocks[id]...)
	}
	if uint64(len(out)) != origLen {
		return nil, ErrLengthMismatch
	}
	return out, nil
}

// blockSizeFor maps the CLI's `-B 0..5` dedup block-size class onto an
// average/fixed block size in bytes (spec §6).
func blockSizeFor(class int) int {
	switch {
	case class <= 0:
		return 2048
	case class == 1:
		return 4096
	case class == 2:
		return 8192
	case class == 3:
		return 16384
	case class == 4:
		return 32768
	default:
		return 65536
	}
}
