package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrShortFrame is returned when cmp_len is too small to hold the mandatory
// digest/MAC/flags fields.
var ErrShortFrame = errors.New("container: chunk frame shorter than header fields")

// Frame is the on-wire encoding of one Chunk (spec §3/§6).
type Frame struct {
	CmpLen        uint64
	DigestOrZero  []byte // cksumBytes wide
	MacOrCRC      []byte // macBytes wide
	Flags         byte
	Payload       []byte
	OriginalLen   uint64
	HasOriginal   bool
}

// WriteTrailer writes the 8 zero bytes that signal EOF.
func WriteTrailer(w io.Writer) error {
	var z [8]byte
	_, err := w.Write(z[:])
	return err
}

// WriteFrame serializes a Frame in the exact field order of spec §3/§6.
// cmp_len is computed here from the other fields rather than trusted from
// the caller, so it can never disagree with what's actually written.
func WriteFrame(w io.Writer, f *Frame) error {
	body := 1 + len(f.MacOrCRC) + len(f.DigestOrZero) + len(f.Payload)
	if f.HasOriginal {
		body += 8
	}
	var hdr [8]byte
	binary.BigEndian.PutUint64(hdr[:], uint64(body))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.Write(f.DigestOrZero); err != nil {
		return err
	}
	if _, err := w.Write(f.MacOrCRC); err != nil {
		return err
	}
	if _, err := w.Write([]byte{f.Flags}); err != nil {
		return err
	}
	if _, err := w.Write(f.Payload); err != nil {
		return err
	}
	if f.HasOriginal {
		var olen [8]byte
		binary.BigEndian.PutUint64(olen[:], f.OriginalLen)
		if _, err := w.Write(olen[:]); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame parses one Frame from src. maxCmpLen bounds cmp_len (spec
// §4.6: decode rejects cmp_len > chunksize + 256). Returns (nil, true, nil)
// when the trailer (cmp_len == 0) is read instead of a frame.
func ReadFrame(src io.Reader, cksumBytes, macBytes int, maxCmpLen uint64) (*Frame, bool, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(src, hdr[:]); err != nil {
		return nil, false, err
	}
	cmpLen := binary.BigEndian.Uint64(hdr[:])
	if cmpLen == 0 {
		return nil, true, nil
	}
	if cmpLen > maxCmpLen {
		return nil, false, fmt.Errorf("container: cmp_len %d exceeds bound %d", cmpLen, maxCmpLen)
	}
	minBody := uint64(1 + cksumBytes + macBytes)
	if cmpLen < minBody {
		return nil, false, ErrShortFrame
	}

	f := &Frame{CmpLen: cmpLen}
	f.DigestOrZero = make([]byte, cksumBytes)
	if _, err := io.ReadFull(src, f.DigestOrZero); err != nil {
		return nil, false, err
	}
	f.MacOrCRC = make([]byte, macBytes)
	if _, err := io.ReadFull(src, f.MacOrCRC); err != nil {
		return nil, false, err
	}
	var flagByte [1]byte
	if _, err := io.ReadFull(src, flagByte[:]); err != nil {
		return nil, false, err
	}
	f.Flags = flagByte[0]
	f.HasOriginal = f.Flags&ChunkSizeMask != 0

	payloadLen := int64(cmpLen) - 1 - int64(macBytes) - int64(cksumBytes)
	if f.HasOriginal {
		payloadLen -= 8
	}
	if payloadLen < 0 {
		return nil, false, ErrShortFrame
	}
	f.Payload = make([]byte, payloadLen)
	if _, err := io.ReadFull(src, f.Payload); err != nil {
		return nil, false, err
	}

	if f.HasOriginal {
		var olen [8]byte
		if _, err := io.ReadFull(src, olen[:]); err != nil {
			return nil, false, err
		}
		f.OriginalLen = binary.BigEndian.Uint64(olen[:])
	}

	return f, false, nil
}

// MACRegion reconstructs the exact byte range that integrity.Policy
// computes the frame CRC/HMAC over: cmp_len, digest_or_zero, a zero-filled
// mac_bytes region, flags, payload, and the optional original-length
// suffix (spec §4.3).
func MACRegion(f *Frame) []byte {
	body := 1 + len(f.MacOrCRC) + len(f.DigestOrZero) + len(f.Payload)
	if f.HasOriginal {
		body += 8
	}
	buf := make([]byte, 8+body)
	binary.BigEndian.PutUint64(buf[:8], uint64(body))
	off := 8
	off += copy(buf[off:], f.DigestOrZero)
	off += len(f.MacOrCRC) // left zero
	buf[off] = f.Flags
	off++
	off += copy(buf[off:], f.Payload)
	if f.HasOriginal {
		binary.BigEndian.PutUint64(buf[off:], f.OriginalLen)
	}
	return buf
}
