package transform

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/cespare/xxhash/v2"
)

// lzpOrder is the context width (in bytes) hashed to predict the next
// byte run; lzpMinMatch is the shortest run worth encoding as a match
// rather than literal bytes.
const (
	lzpOrder    = 4
	lzpMinMatch = 4
	lzpMaxMatch = 1 << 20
	lzpEscape   = 0xFF
)

var ErrLZPCorrupt = errors.New("transform: lzp stream references an unknown context")

func lzpMatchLen(raw []byte, p, i, max int) int {
	n := len(raw)
	l := 0
	for i+l < n && p+l < n && l < max && raw[p+l] == raw[i+l] {
		l++
	}
	return l
}

// lzpEncode implements LZP (Lempel-Ziv Prediction): a rolling hash of the
// last lzpOrder bytes predicts where the same context last occurred: if
// the bytes starting there still match, the run is replaced by a length
// instead of literal bytes.
func lzpEncode(raw []byte) []byte {
	table := make(map[uint64]int)
	var out bytes.Buffer
	n := len(raw)
	var varintBuf [binary.MaxVarintLen64]byte

	for i := 0; i < n; {
		matched := false
		if i >= lzpOrder {
			h := xxhash.Sum64(raw[i-lzpOrder : i])
			if p, ok := table[h]; ok {
				if l := lzpMatchLen(raw, p, i, lzpMaxMatch); l >= lzpMinMatch {
					out.WriteByte(lzpEscape)
					vn := binary.PutUvarint(varintBuf[:], uint64(l))
					out.Write(varintBuf[:vn])
					table[h] = i
					i += l
					matched = true
				}
			}
			if !matched {
				table[h] = i
			}
		}
		if matched {
			continue
		}
		b := raw[i]
		if b == lzpEscape {
			out.WriteByte(lzpEscape)
			out.WriteByte(0)
		} else {
			out.WriteByte(b)
		}
		i++
	}
	return out.Bytes()
}

// lzpDecode reverses lzpEncode. It rebuilds the same context table the
// encoder used, keyed off the output it has produced so far (which is,
// byte for byte, the same sequence the encoder hashed).
func lzpDecode(enc []byte) ([]byte, error) {
	table := make(map[uint64]int)
	var out []byte
	r := bytes.NewReader(enc)

	for r.Len() > 0 {
		i := len(out)
		haveCtx := i >= lzpOrder
		var h uint64
		if haveCtx {
			h = xxhash.Sum64(out[i-lzpOrder : i])
		}

		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == lzpEscape {
			l, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, err
			}
			if l == 0 {
				out = append(out, lzpEscape)
				if haveCtx {
					table[h] = i
				}
				continue
			}
			if !haveCtx {
				return nil, ErrLZPCorrupt
			}
			p, ok := table[h]
			if !ok {
				return nil, ErrLZPCorrupt
			}
			for k := uint64(0); k < l; k++ {
				out = append(out, out[p+int(k)])
			}
			table[h] = i
			continue
		}

		out = append(out, b)
		if haveCtx {
			table[h] = i
		}
	}
	return out, nil
}
