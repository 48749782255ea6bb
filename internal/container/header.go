package container

import (
	"bytes"
	"crypto/hmac"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/go-pcompress/pcompress/internal/digest"
)

// CurrentVersion is the container format version this implementation writes.
// Readers accept [CurrentVersion-3, CurrentVersion] per spec §4.1.
const CurrentVersion uint16 = 8

// MaxLevel is the highest accepted codec level (CLI `-l 0..14`).
const MaxLevel = 14

var (
	ErrFormatMismatch     = errors.New("container: unknown algorithm tag")
	ErrUnsupportedVersion = errors.New("container: unsupported container version")
	ErrTampered           = errors.New("container: header integrity check failed")
	ErrOversizeChunk      = errors.New("container: chunk size exceeds host memory bound")
	ErrBadLevel           = errors.New("container: compression level out of range")
)

// Header carries the fields of the on-wire FileHeader (spec §3/§6).
type Header struct {
	AlgoTag   [8]byte
	Version   uint16
	Flags     uint16
	ChunkSize uint64
	Level     int32

	// Present iff Flags&MaskCryptoAlg != 0.
	Salt   []byte
	Nonce  []byte
	KeyLen uint32 // only meaningful/serialized for Version >= 7
}

func (h *Header) crypto() bool { return h.Flags&MaskCryptoAlg != 0 }

func (h *Header) checksumID() digest.ID {
	return digest.ID(h.Flags & CksumMask)
}

// Crypto reports whether this header carries a crypto suffix.
func (h *Header) Crypto() bool { return h.crypto() }

// CksumID returns the chunk-digest/header-checksum family this header
// selects, decoded from its flag bits.
func (h *Header) CksumID() digest.ID { return h.checksumID() }

// MacBytes is the exported form of macBytes, for callers outside this
// package that need the on-wire MAC/CRC field width (e.g. internal/ioadapt
// when constructing a FrameReader).
func (h *Header) MacBytes() (int, error) { return h.macBytes() }

// macBytes returns the width of the trailing MAC/CRC region for this header,
// per the version-gated rules in spec §4.1's "Version compatibility" note.
func (h *Header) macBytes() (int, error) {
	if h.Version <= 5 {
		return 0, nil
	}
	if h.crypto() {
		return digest.Size(h.checksumID())
	}
	return 4, nil
}

// KeyDeriver derives the HMAC/cipher key for a header from its salt and
// the checksum family selected by the header's own flags, used only when
// the crypto flag is set. Implemented by internal/cryptobind.
type KeyDeriver func(salt []byte, keyLen uint32, cksumID digest.ID) ([]byte, error)

// Write serializes the header in the exact field order of spec §6 and
// appends either a header CRC-32 or an HMAC of everything written so far.
func Write(w io.Writer, h *Header, hmacKey []byte) error {
	if h.Level < 0 || h.Level > MaxLevel {
		return ErrBadLevel
	}
	var buf bytes.Buffer
	buf.Write(h.AlgoTag[:])
	_ = binary.Write(&buf, binary.BigEndian, h.Version)
	_ = binary.Write(&buf, binary.BigEndian, h.Flags)
	_ = binary.Write(&buf, binary.BigEndian, h.ChunkSize)
	_ = binary.Write(&buf, binary.BigEndian, h.Level)

	if h.crypto() {
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(h.Salt)))
		buf.Write(h.Salt)
		buf.Write(h.Nonce)
		if h.Version >= 7 {
			_ = binary.Write(&buf, binary.BigEndian, h.KeyLen)
		}
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}

	mb, err := h.macBytes()
	if err != nil {
		return err
	}
	if mb == 0 {
		return nil
	}

	if h.crypto() {
		sum, err := hmacSum(h.checksumID(), hmacKey, buf.Bytes())
		if err != nil {
			return err
		}
		_, err = w.Write(sum)
		return err
	}

	crc := crc32.ChecksumIEEE(buf.Bytes())
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crc)
	_, err = w.Write(crcBuf[:])
	return err
}

// hmacSum computes HMAC(key, data) using the hash family named by id.
func hmacSum(id digest.ID, key, data []byte) ([]byte, error) {
	factory, err := digest.Factory(id)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(factory, key)
	mac.Write(data)
	return mac.Sum(nil), nil
}

// ReadResult wraps a parsed, verified header. It carries no count of the
// bytes consumed.
type ReadResult struct {
	Header Header
}

// Read parses and verifies a FileHeader from src, rejecting unknown
// algorithm tags, out-of-range versions/levels, oversize chunk sizes, and
// tampered CRC/HMAC trailers. totalRAM bounds the chunksize sanity check
// (spec: chunksize must not exceed 0.8 * total_ram).
func Read(src io.Reader, knownAlgoTags map[[8]byte]bool, totalRAM uint64, derive KeyDeriver) (*Header, error) {
	var h Header
	if _, err := io.ReadFull(src, h.AlgoTag[:]); err != nil {
		return nil, err
	}
	if knownAlgoTags != nil && !knownAlgoTags[h.AlgoTag] {
		return nil, ErrFormatMismatch
	}

	var fixed bytes.Buffer
	fixed.Write(h.AlgoTag[:])

	lr := io.TeeReader(src, &fixed)
	if err := binary.Read(lr, binary.BigEndian, &h.Version); err != nil {
		return nil, err
	}
	if h.Version > CurrentVersion || h.Version+3 < CurrentVersion {
		return nil, ErrUnsupportedVersion
	}
	if err := binary.Read(lr, binary.BigEndian, &h.Flags); err != nil {
		return nil, err
	}
	if err := binary.Read(lr, binary.BigEndian, &h.ChunkSize); err != nil {
		return nil, err
	}
	if totalRAM > 0 && h.ChunkSize > uint64(float64(totalRAM)*0.8) {
		return nil, ErrOversizeChunk
	}
	if err := binary.Read(lr, binary.BigEndian, &h.Level); err != nil {
		return nil, err
	}
	if h.Level < 0 || h.Level > MaxLevel {
		return nil, ErrBadLevel
	}

	if h.crypto() {
		var saltLen uint32
		if err := binary.Read(lr, binary.BigEndian, &saltLen); err != nil {
			return nil, err
		}
		h.Salt = make([]byte, saltLen)
		if _, err := io.ReadFull(lr, h.Salt); err != nil {
			return nil, err
		}
		nonceLen := 8
		if h.Flags&CryptoSalsa20 != 0 {
			nonceLen = 24
		}
		h.Nonce = make([]byte, nonceLen)
		if _, err := io.ReadFull(lr, h.Nonce); err != nil {
			return nil, err
		}
		if h.Version >= 7 {
			if err := binary.Read(lr, binary.BigEndian, &h.KeyLen); err != nil {
				return nil, err
			}
		} else {
			h.KeyLen = 16
		}
	}

	mb, err := h.macBytes()
	if err != nil {
		return nil, err
	}
	if mb == 0 {
		return &h, nil
	}

	stored := make([]byte, mb)
	if _, err := io.ReadFull(src, stored); err != nil {
		return nil, err
	}

	if h.crypto() {
		if derive == nil {
			return nil, fmt.Errorf("container: crypto header requires a key deriver")
		}
		key, err := derive(h.Salt, h.KeyLen, h.checksumID())
		if err != nil {
			return nil, err
		}
		want, err := hmacSum(h.checksumID(), key, fixed.Bytes())
		if err != nil {
			return nil, err
		}
		if subtle.ConstantTimeCompare(stored, want) != 1 {
			return nil, ErrTampered
		}
		return &h, nil
	}

	crc := crc32.ChecksumIEEE(fixed.Bytes())
	var want [4]byte
	binary.BigEndian.PutUint32(want[:], crc)
	if subtle.ConstantTimeCompare(stored, want[:]) != 1 {
		return nil, ErrTampered
	}
	return &h, nil
}
