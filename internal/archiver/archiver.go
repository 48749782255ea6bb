// Package archiver implements the `-a` archive mode: a narrow Source/Sink
// collaborator pair plus a self-delimited (name, mode, size, data) wire
// sequence that lets a directory tree flow through the same chunk pipeline
// as a single file (spec.md §1's "filesystem archive walker... that
// feeds/drains a byte stream through a pipe").
package archiver

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// ErrMemberTooLarge guards the name-length field against corrupt input.
var ErrMemberTooLarge = errors.New("archiver: member name exceeds maximum length")

const maxNameLen = 1 << 16

// Member describes one file to be archived. Open is called at most once,
// immediately before the member's bytes are copied into the archive
// stream, so large trees never hold more than one file open at a time.
type Member struct {
	Name string
	Size int64
	Mode os.FileMode
	Open func() (io.ReadCloser, error)
}

// Source enumerates the members of one archive, in the order they should
// be written. Implemented by fswalk.Writer.
type Source interface {
	Members() ([]Member, error)
}

// Sink receives extracted members in the order WriteArchive wrote them.
// Returning a nil Writer (with a nil error) skips the member without
// treating it as an error: ReadArchive reads the member's bytes and
// discards them.
type Sink interface {
	CreateMember(name string, size int64, mode os.FileMode) (io.WriteCloser, error)
}

// WriteArchive serializes every member of src into w as a back-to-back
// sequence of (namelen u32 | name | mode u32 | size u64 | data) records,
// terminated by a zero namelen. The resulting stream is what the chunk
// splitter reads exactly as it would a plain file.
func WriteArchive(w io.Writer, src Source) error {
	members, err := src.Members()
	if err != nil {
		return err
	}
	for _, m := range members {
		if len(m.Name) > maxNameLen {
			return ErrMemberTooLarge
		}
		if err := writeRecordHeader(w, m.Name, uint32(m.Mode), uint64(m.Size)); err != nil {
			return err
		}
		rc, err := m.Open()
		if err != nil {
			return err
		}
		_, err = io.CopyN(w, rc, m.Size)
		closeErr := rc.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return closeErr
		}
	}
	return writeTerminator(w)
}

// ReadArchive parses WriteArchive's wire format from r, streaming each
// member's bytes into dst.
func ReadArchive(r io.Reader, dst Sink) error {
	for {
		name, mode, size, end, err := readRecordHeader(r)
		if err != nil {
			return err
		}
		if end {
			return nil
		}
		wc, err := dst.CreateMember(name, int64(size), os.FileMode(mode))
		if err != nil {
			return err
		}
		if wc == nil {
			if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
				return err
			}
			continue
		}
		_, err = io.CopyN(wc, r, int64(size))
		closeErr := wc.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return closeErr
		}
	}
}

func writeRecordHeader(w io.Writer, name string, mode uint32, size uint64) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(name)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, name); err != nil {
		return err
	}
	var modeBuf [4]byte
	binary.BigEndian.PutUint32(modeBuf[:], mode)
	if _, err := w.Write(modeBuf[:]); err != nil {
		return err
	}
	var sizeBuf [8]byte
	binary.BigEndian.PutUint64(sizeBuf[:], size)
	_, err := w.Write(sizeBuf[:])
	return err
}

func writeTerminator(w io.Writer) error {
	var zero [4]byte
	_, err := w.Write(zero[:])
	return err
}

func readRecordHeader(r io.Reader) (name string, mode uint32, size uint64, end bool, err error) {
	var lenBuf [4]byte
	if _, err = io.ReadFull(r, lenBuf[:]); err != nil {
		return
	}
	nameLen := binary.BigEndian.Uint32(lenBuf[:])
	if nameLen == 0 {
		end = true
		return
	}
	if nameLen > maxNameLen {
		err = ErrMemberTooLarge
		return
	}
	nameBuf := make([]byte, nameLen)
	if _, err = io.ReadFull(r, nameBuf); err != nil {
		return
	}
	name = string(nameBuf)

	var modeBuf [4]byte
	if _, err = io.ReadFull(r, modeBuf[:]); err != nil {
		return
	}
	mode = binary.BigEndian.Uint32(modeBuf[:])

	var sizeBuf [8]byte
	if _, err = io.ReadFull(r, sizeBuf[:]); err != nil {
		return
	}
	size = binary.BigEndian.Uint64(sizeBuf[:])
	return
}
