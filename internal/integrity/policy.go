// Package integrity implements the two per-chunk authentication modes
// (non-crypto CRC-32, crypto HMAC) over the exact zeroed-MAC-region byte
// range spec.md §4.3 defines, with constant-time tamper detection.
package integrity

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/go-pcompress/pcompress/internal/container"
	"github.com/go-pcompress/pcompress/internal/cryptobind"
	"github.com/go-pcompress/pcompress/internal/digest"
)

// ErrAuthFailed is returned by Verify for a crypto-mode (HMAC) mismatch,
// distinct from container.ErrTampered which covers the non-crypto CRC
// case and the file header (spec.md §7: AuthFailed vs Tampered are
// separate error kinds).
var ErrAuthFailed = errors.New("integrity: per-chunk HMAC verification failed")

// Policy seals and verifies ChunkFrame MAC/CRC regions for one stream.
// A zero-value Policy (Crypto == false) is CRC-32 mode.
type Policy struct {
	Crypto    bool
	ChecksumID digest.ID
	StreamKey  []byte // only meaningful when Crypto
}

// Width returns the byte width of the MAC/CRC region this policy produces,
// matching container.Header.macBytes' version-gated rule for version >= 6.
func (p Policy) Width() (int, error) {
	if !p.Crypto {
		return 4, nil
	}
	return digest.Size(p.ChecksumID)
}

// Seal computes the frame's CRC/MAC over container.MACRegion(f) (which
// zeroes the MAC field itself) and writes it into f.MacOrCRC.
func (p Policy) Seal(f *container.Frame, chunkID uint64) error {
	width, err := p.Width()
	if err != nil {
		return err
	}
	if len(f.MacOrCRC) != width {
		f.MacOrCRC = make([]byte, width)
	} else {
		for i := range f.MacOrCRC {
			f.MacOrCRC[i] = 0
		}
	}
	region := container.MACRegion(f)

	if !p.Crypto {
		crc := crc32.ChecksumIEEE(region)
		binary.BigEndian.PutUint32(f.MacOrCRC, crc)
		return nil
	}

	mac, err := cryptobind.ChunkMAC(p.ChecksumID, p.StreamKey, chunkID)
	if err != nil {
		return err
	}
	mac.Write(region)
	sum := mac.Sum(nil)
	if len(sum) != width {
		return fmt.Errorf("integrity: mac width mismatch: got %d want %d", len(sum), width)
	}
	copy(f.MacOrCRC, sum)
	return nil
}

// Verify recomputes the frame's CRC/MAC and compares it against the stored
// value in constant time. A mismatch returns ErrAuthFailed in crypto (HMAC)
// mode, or container.ErrTampered in non-crypto (CRC) mode.
func (p Policy) Verify(f *container.Frame, chunkID uint64) error {
	stored := make([]byte, len(f.MacOrCRC))
	copy(stored, f.MacOrCRC)

	if err := p.Seal(f, chunkID); err != nil {
		return err
	}
	ok := subtle.ConstantTimeCompare(stored, f.MacOrCRC) == 1
	copy(f.MacOrCRC, stored)
	if !ok {
		if p.Crypto {
			return ErrAuthFailed
		}
		return container.ErrTampered
	}
	return nil
}
