// Package ioadapt adapts plain io.Reader/io.Writer sources and sinks to
// the scheduler package's ChunkReader/FrameWriter/FrameReader/ChunkWriter
// interfaces: splitting a source into chunks on the compress side, and
// framing/unframing the container format on the wire side.
package ioadapt

import (
	"io"

	"github.com/cespare/xxhash/v2"

	"github.com/go-pcompress/pcompress/internal/container"
)

// anchorWindow mirrors internal/dedupe's rolling-hash window width: the
// reader's rabin-split uses the same content-defined-boundary technique to
// pick a chunk cut point, just scanning a read buffer instead of splitting
// dedup blocks.
const anchorWindow = 48

// FixedChunkReader reads chunkSize-byte chunks straight off src. The final
// chunk may be shorter (spec.md §3: raw_len may be < chunksize for the
// last chunk).
type FixedChunkReader struct {
	src       io.Reader
	chunkSize uint64
	nextID    uint64
	buf       []byte
}

// NewFixedChunkReader builds a reader splitting src into chunkSize chunks.
func NewFixedChunkReader(src io.Reader, chunkSize uint64) *FixedChunkReader {
	return &FixedChunkReader{src: src, chunkSize: chunkSize, buf: make([]byte, chunkSize)}
}

// Next implements scheduler.ChunkReader.
func (r *FixedChunkReader) Next() (uint64, []byte, bool, error) {
	n, err := io.ReadFull(r.src, r.buf)
	if n == 0 {
		if err == io.EOF {
			return 0, nil, false, nil
		}
		if err != nil {
			return 0, nil, false, err
		}
	}
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	if err != nil {
		return 0, nil, false, err
	}
	chunk := make([]byte, n)
	copy(chunk, r.buf[:n])
	id := r.nextID
	r.nextID++
	return id, chunk, true, nil
}

// RabinChunkReader performs content-defined chunk splitting on the
// compress side (spec.md §4.5): it reads up to chunkSize bytes, then
// backs off to the nearest content-defined boundary found by scanning for
// a rolling-hash hit over the trailing anchorWindow bytes at each
// candidate cut point, carrying the remainder forward into the next read.
type RabinChunkReader struct {
	src       io.Reader
	chunkSize uint64
	min, max  uint64
	mask      uint64
	nextID    uint64
	carry     []byte
	eof       bool
}

// NewRabinChunkReader builds a rabin-split reader targeting chunkSize as
// the average/maximum cut distance.
func NewRabinChunkReader(src io.Reader, chunkSize uint64) *RabinChunkReader {
	min := chunkSize / 4
	if min == 0 {
		min = 1
	}
	return &RabinChunkReader{
		src:       src,
		chunkSize: chunkSize,
		min:       min,
		max:       chunkSize,
		mask:      nextPow2(chunkSize) - 1,
	}
}

func nextPow2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	v := n - 1
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return v + 1
}

// Next implements scheduler.ChunkReader.
func (r *RabinChunkReader) Next() (uint64, []byte, bool, error) {
	for uint64(len(r.carry)) < r.max && !r.eof {
		need := r.max - uint64(len(r.carry))
		buf := make([]byte, need)
		n, err := r.src.Read(buf)
		if n > 0 {
			r.carry = append(r.carry, buf[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				r.eof = true
				break
			}
			return 0, nil, false, err
		}
		if n == 0 {
			r.eof = true
			break
		}
	}

	if len(r.carry) == 0 {
		return 0, nil, false, nil
	}

	cut := r.findCut(r.carry)
	chunk := make([]byte, cut)
	copy(chunk, r.carry[:cut])
	r.carry = append([]byte(nil), r.carry[cut:]...)

	id := r.nextID
	r.nextID++
	return id, chunk, true, nil
}

// findCut returns the boundary index within buf, per the same
// rolling-hash-hit rule internal/dedupe/rabin.go uses for dedup block
// splitting (spec.md doesn't mandate a shared implementation, but reusing
// the rule keeps chunk boundaries and dedup boundaries consistent in
// spirit). If no hit falls in [min, max) — or buf is the final, short
// tail — the cut is simply len(buf).
func (r *RabinChunkReader) findCut(buf []byte) int {
	if uint64(len(buf)) < r.max && r.eof {
		return len(buf)
	}
	end := len(buf)
	if uint64(end) > r.max {
		end = int(r.max)
	}
	for i := int(r.min); i < end; i++ {
		if i < anchorWindow {
			continue
		}
		h := xxhash.Sum64(buf[i-anchorWindow : i])
		if h&r.mask == 0 {
			return i
		}
	}
	return end
}

// MaxCmpLen returns the decode-side sanity bound for a frame's cmp_len
// field (spec.md §4.6: cmp_len must not exceed chunksize + 256).
func MaxCmpLen(chunkSize uint64) uint64 { return chunkSize + 256 }

// FrameReader reads framed ChunkFrames off src until the 8-zero-byte
// trailer, implementing scheduler.FrameReader for the decompress side.
type FrameReader struct {
	src        io.Reader
	cksumBytes int
	macBytes   int
	maxCmpLen  uint64
	nextID     uint64
}

// NewFrameReader builds a FrameReader bound to one stream's header-derived
// field widths.
func NewFrameReader(src io.Reader, cksumBytes, macBytes int, chunkSize uint64) *FrameReader {
	return &FrameReader{src: src, cksumBytes: cksumBytes, macBytes: macBytes, maxCmpLen: MaxCmpLen(chunkSize)}
}

// Next implements scheduler.FrameReader.
func (r *FrameReader) Next() (uint64, *container.Frame, bool, error) {
	f, isTrailer, err := container.ReadFrame(r.src, r.cksumBytes, r.macBytes, r.maxCmpLen)
	if err != nil {
		return 0, nil, false, err
	}
	if isTrailer {
		return 0, nil, false, nil
	}
	id := r.nextID
	r.nextID++
	return id, f, true, nil
}
