package transform

import (
	"encoding/binary"
	"errors"

	"github.com/go-pcompress/pcompress/internal/codec"
	"github.com/go-pcompress/pcompress/internal/dedupe"
)

// indexCompressThreshold is the 90-byte floor below which the transposed
// index is stored verbatim rather than compressed (spec §4.2).
const indexCompressThreshold = 90

var ErrDedupHeaderTooShort = errors.New("transform: dedup header shorter than HeaderSize")

// transposeIndex lays out a uint32 index column-major: all the entries'
// most-significant bytes first, then their second bytes, and so on. Index
// values tend to cluster (repeated/adjacent blocks get nearby ids), so the
// byte planes compress better split apart than interleaved.
func transposeIndex(index []uint32) []byte {
	n := len(index)
	out := make([]byte, n*4)
	for i, v := range index {
		out[0*n+i] = byte(v >> 24)
		out[1*n+i] = byte(v >> 16)
		out[2*n+i] = byte(v >> 8)
		out[3*n+i] = byte(v)
	}
	return out
}

func untransposeIndex(buf []byte, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(buf[0*n+i])<<24 | uint32(buf[1*n+i])<<16 | uint32(buf[2*n+i])<<8 | uint32(buf[3*n+i])
	}
	return out
}

// dedupFlagData / dedupFlagIndex mark, in the header's trailing flags
// byte, whether the data/index blob is stored codec-compressed.
const (
	dedupFlagData  byte = 1 << 0
	dedupFlagIndex byte = 1 << 1
)

// dedupCompress compresses src with c, returning the compressed bytes and
// (for an adaptive codec) the winning child's sub-algo id, so the caller
// can reverse it with dedupDecompress without going through the plain
// Codec.Decompress method adaptiveCodec deliberately errors on.
func dedupCompress(c codec.Codec, src []byte) (out []byte, subAlgo uint8, err error) {
	out, err = c.Compress(src)
	if err != nil {
		return nil, 0, err
	}
	if ac, ok := c.(codec.Adaptive); ok {
		subAlgo = ac.LastWinner()
	}
	return out, subAlgo, nil
}

func dedupDecompress(c codec.Codec, src []byte, subAlgo uint8, dstLen int) ([]byte, error) {
	if ac, ok := c.(codec.Adaptive); ok {
		return ac.DecompressWith(subAlgo, src, dstLen)
	}
	return c.Decompress(src, dstLen)
}

// applyDedup runs the dedup stage of TransformStack's encode order: split
// raw into blocks via engine, matrix-transpose the index, independently
// codec-compress the index (only above indexCompressThreshold) and the
// data blob so the data codec's dictionary isn't polluted by the index,
// and write the resulting sizes/flags back into the header (spec §4.2).
// used reports whether the engine judged the chunk dedup-worthy; when
// false the stage is a no-op and raw passes through unchanged.
func applyDedup(raw []byte, engine dedupe.Engine, c codec.Codec) (out []byte, used bool, err error) {
	hdr, index, data, ok, err := engine.Dedup(raw)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return raw, false, nil
	}
	if len(hdr) < dedupe.HeaderSize {
		return nil, false, ErrDedupHeaderTooShort
	}

	transposed := transposeIndex(index)
	indexPayload := transposed
	var flags byte
	var indexSubAlgo, dataSubAlgo uint8
	if len(transposed) >= indexCompressThreshold {
		if cmp, sub, cerr := dedupCompress(c, transposed); cerr == nil && len(cmp) < len(transposed) {
			indexPayload = cmp
			indexSubAlgo = sub
			flags |= dedupFlagIndex
		}
	}

	dataPayload := data
	if len(data) > 0 {
		if cmp, sub, cerr := dedupCompress(c, data); cerr == nil && len(cmp) < len(data) {
			dataPayload = cmp
			dataSubAlgo = sub
			flags |= dedupFlagData
		}
	}

	binary.BigEndian.PutUint32(hdr[12:16], uint32(len(data)))
	binary.BigEndian.PutUint32(hdr[16:20], uint32(len(dataPayload)))
	binary.BigEndian.PutUint32(hdr[20:24], uint32(len(indexPayload)))
	hdr[24] = flags
	hdr[25] = indexSubAlgo
	hdr[26] = dataSubAlgo

	out = make([]byte, 0, len(hdr)+len(indexPayload)+len(dataPayload))
	out = append(out, hdr...)
	out = append(out, indexPayload...)
	out = append(out, dataPayload...)
	return out, true, nil
}

// reverseDedup undoes applyDedup, given the same engine and codec used to
// produce buf.
func reverseDedup(buf []byte, engine dedupe.Engine, c codec.Codec) ([]byte, error) {
	if len(buf) < dedupe.HeaderSize {
		return nil, ErrDedupHeaderTooShort
	}
	hdr := buf[:dedupe.HeaderSize]
	numBlocks := int(binary.BigEndian.Uint32(hdr[0:4]))
	rawDataLen := int(binary.BigEndian.Uint32(hdr[12:16]))
	cmpDataSize := int(binary.BigEndian.Uint32(hdr[16:20]))
	cmpIndexSize := int(binary.BigEndian.Uint32(hdr[20:24]))
	flags := hdr[24]
	indexSubAlgo := hdr[25]
	dataSubAlgo := hdr[26]

	rest := buf[dedupe.HeaderSize:]
	if len(rest) < cmpIndexSize+cmpDataSize {
		return nil, ErrDedupHeaderTooShort
	}
	indexPayload := rest[:cmpIndexSize]
	dataPayload := rest[cmpIndexSize : cmpIndexSize+cmpDataSize]

	transposed := indexPayload
	if flags&dedupFlagIndex != 0 {
		got, err := dedupDecompress(c, indexPayload, indexSubAlgo, numBlocks*4)
		if err != nil {
			return nil, err
		}
		transposed = got
	}
	index := untransposeIndex(transposed, numBlocks)

	data := dataPayload
	if flags&dedupFlagData != 0 {
		got, err := dedupDecompress(c, dataPayload, dataSubAlgo, rawDataLen)
		if err != nil {
			return nil, err
		}
		data = got
	}

	return engine.Rebuild(hdr, index, data)
}
