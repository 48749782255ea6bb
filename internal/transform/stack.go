// Package transform implements TransformStack, the per-chunk pipeline
// spec.md §4.2 describes: dedup, LZP, Delta2, codec, cipher, applied in a
// fixed order on encode and unwound in reverse on decode.
package transform

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"

	"github.com/go-pcompress/pcompress/internal/codec"
	"github.com/go-pcompress/pcompress/internal/container"
	"github.com/go-pcompress/pcompress/internal/cryptobind"
	"github.com/go-pcompress/pcompress/internal/dedupe"
	"github.com/go-pcompress/pcompress/internal/digest"
	"github.com/go-pcompress/pcompress/internal/integrity"
)

var (
	ErrInvalidPreprocFlags = errors.New("transform: invalid preprocessing flags")
	ErrDigestMismatch      = errors.New("transform: recomputed chunk digest does not match stored digest")
	ErrShortPayload        = errors.New("transform: chunk payload shorter than wrapper header")
)

// Options configures one stream's TransformStack. A nil Dedup disables
// the dedup stage; Delta2Span == 0 disables Delta2; LZP toggles the LZP
// stage. Codec, ChecksumID, and (in crypto mode) the cipher fields are
// fixed for the life of the stream.
type Options struct {
	Dedup      dedupe.Engine
	Codec      codec.Codec
	LZP        bool
	Delta2Span int
	ChecksumID digest.ID

	Crypto      bool
	CipherAlg   cryptobind.Algorithm
	StreamKey   []byte
	StreamNonce []byte

	MAC integrity.Policy
}

// Stack runs the encode/decode pipeline for one stream's chunks.
type Stack struct {
	opts Options
}

func New(opts Options) *Stack { return &Stack{opts: opts} }

// Close releases the stack's codec state (spec.md §3 Lifecycle).
func (s *Stack) Close() {
	if s.opts.Codec != nil {
		s.opts.Codec.Deinit()
	}
}

// Encode runs the full TransformStack over one chunk's raw bytes and
// produces a fully-sealed, optionally-encrypted container.Frame. chunkSize
// is the stream's nominal chunk size, used to detect the uneven last chunk.
func (s *Stack) Encode(chunkID uint64, raw []byte, chunkSize uint64) (*container.Frame, error) {
	o := &s.opts

	var rawDigest []byte
	if !o.Crypto {
		d, err := digest.Sum(o.ChecksumID, raw)
		if err != nil {
			return nil, err
		}
		rawDigest = d
	} else {
		size, err := digest.Size(o.ChecksumID)
		if err != nil {
			return nil, err
		}
		rawDigest = make([]byte, size)
	}

	current := raw
	usedDedup := false
	if o.Dedup != nil {
		deduped, used, err := applyDedup(raw, o.Dedup, o.Codec)
		if err != nil {
			return nil, err
		}
		current = deduped
		usedDedup = used
	}

	var typ uint8
	if o.LZP {
		lzpOut := lzpEncode(current)
		if len(lzpOut) < len(current) {
			current = lzpOut
			typ |= container.PreprocLZP
		}
	}
	if o.Delta2Span > 0 {
		current = delta2Encode(current, o.Delta2Span)
		typ |= container.PreprocDelta2
	}
	preprocLen := uint64(len(current))

	var flags byte
	if usedDedup {
		flags |= container.ChunkDedup
	}
	if typ != 0 {
		flags |= container.ChunkPreproc
	}

	var spanByte []byte
	if typ&container.PreprocDelta2 != 0 {
		spanByte = []byte{delta2SpanByte(o.Delta2Span)}
	}

	var payload []byte
	cmpOut, cerr := o.Codec.Compress(current)
	if cerr == nil && len(cmpOut) < len(current) {
		payload = make([]byte, 0, 1+len(spanByte)+9+len(cmpOut))
		payload = append(payload, typ)
		payload = append(payload, spanByte...)
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], preprocLen)
		payload = append(payload, lenBuf[:]...)
		payload = append(payload, cmpOut...)
		flags |= container.ChunkCompressed
		if ac, ok := o.Codec.(codec.Adaptive); ok {
			flags = container.WithSubAlgo(flags, ac.LastWinner())
		}
	} else {
		payload = make([]byte, 0, 1+len(spanByte)+len(current))
		payload = append(payload, typ)
		payload = append(payload, spanByte...)
		payload = append(payload, current...)
	}

	hasOriginal := uint64(len(raw)) < chunkSize
	if hasOriginal {
		flags |= container.ChunkSizeMask
	}

	f := &container.Frame{
		DigestOrZero: rawDigest,
		Flags:        flags,
		Payload:      payload,
		HasOriginal:  hasOriginal,
		OriginalLen:  uint64(len(raw)),
	}

	if o.Crypto {
		stream, err := cryptobind.Stream(o.CipherAlg, o.StreamKey, o.StreamNonce, chunkID)
		if err != nil {
			return nil, err
		}
		stream.XORKeyStream(f.Payload, f.Payload)
	}

	if err := o.MAC.Seal(f, chunkID); err != nil {
		return nil, err
	}
	return f, nil
}

// Decode reverses Encode: verifies the frame's MAC/CRC, decrypts, undoes
// the codec/Delta2/LZP/dedup stages in reverse order, and (non-crypto
// mode) verifies the recomputed chunk digest.
func (s *Stack) Decode(chunkID uint64, f *container.Frame) ([]byte, error) {
	o := &s.opts

	if err := o.MAC.Verify(f, chunkID); err != nil {
		return nil, err
	}

	payload := make([]byte, len(f.Payload))
	copy(payload, f.Payload)
	if o.Crypto {
		stream, err := cryptobind.Stream(o.CipherAlg, o.StreamKey, o.StreamNonce, chunkID)
		if err != nil {
			return nil, err
		}
		stream.XORKeyStream(payload, payload)
	}
	if len(payload) < 1 {
		return nil, ErrShortPayload
	}
	typ := payload[0]
	rest := payload[1:]

	hasPreprocFlag := f.Flags&container.ChunkPreproc != 0
	if (typ != 0) != hasPreprocFlag {
		return nil, ErrInvalidPreprocFlags
	}

	delta2Span := o.Delta2Span
	if typ&container.PreprocDelta2 != 0 {
		if len(rest) < 1 {
			return nil, ErrShortPayload
		}
		delta2Span = delta2SpanFromByte(rest[0])
		rest = rest[1:]
	}

	var current []byte
	if f.Flags&container.ChunkCompressed != 0 {
		if len(rest) < 8 {
			return nil, ErrShortPayload
		}
		preprocLen := binary.BigEndian.Uint64(rest[:8])
		cmpBytes := rest[8:]
		var decErr error
		if ac, ok := o.Codec.(codec.Adaptive); ok {
			current, decErr = ac.DecompressWith(container.SubAlgo(f.Flags), cmpBytes, int(preprocLen))
		} else {
			current, decErr = o.Codec.Decompress(cmpBytes, int(preprocLen))
		}
		if decErr != nil {
			return nil, decErr
		}
	} else {
		current = rest
	}

	if typ&container.PreprocDelta2 != 0 {
		current = delta2Decode(current, delta2Span)
	}
	if typ&container.PreprocLZP != 0 {
		decoded, err := lzpDecode(current)
		if err != nil {
			return nil, err
		}
		current = decoded
	}

	var raw []byte
	if f.Flags&container.ChunkDedup != 0 {
		if o.Dedup == nil {
			return nil, errors.New("transform: frame marked deduped but stream has no dedup engine configured")
		}
		rebuilt, err := reverseDedup(current, o.Dedup, o.Codec)
		if err != nil {
			return nil, err
		}
		raw = rebuilt
	} else {
		raw = current
	}

	if f.HasOriginal && uint64(len(raw)) != f.OriginalLen {
		return nil, errors.New("transform: decoded length does not match recorded original length")
	}

	if !o.Crypto {
		want, err := digest.Sum(o.ChecksumID, raw)
		if err != nil {
			return nil, err
		}
		if len(want) != len(f.DigestOrZero) || subtle.ConstantTimeCompare(want, f.DigestOrZero) != 1 {
			return nil, ErrDigestMismatch
		}
	}

	return raw, nil
}
