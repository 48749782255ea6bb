package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/go-pcompress/pcompress/internal/archiver"
	"github.com/go-pcompress/pcompress/internal/archiver/fswalk"
	"github.com/go-pcompress/pcompress/internal/codec"
	"github.com/go-pcompress/pcompress/internal/container"
	"github.com/go-pcompress/pcompress/internal/cryptobind"
	"github.com/go-pcompress/pcompress/internal/digest"
	"github.com/go-pcompress/pcompress/internal/integrity"
	"github.com/go-pcompress/pcompress/internal/ioadapt"
	"github.com/go-pcompress/pcompress/internal/scheduler"
	"github.com/go-pcompress/pcompress/internal/transform"
)

// Decompress runs one full decompress invocation: parse and verify the
// file header, derive the stream context, fan out across N workers, and
// write (or unpack, in archive mode) the reconstructed bytes.
func Decompress(o *Options, log *logrus.Logger) error {
	src, srcCloser, err := openDecompressSource(o)
	if err != nil {
		return err
	}
	if srcCloser != nil {
		defer srcCloser()
	}

	var password []byte
	if o.PasswordFile != "" {
		password, err = cryptobind.ReadPasswordFile(o.PasswordFile)
		if err != nil {
			return fmt.Errorf("engine: reading password file: %w", err)
		}
		defer cryptobind.Zero(password)
	}

	var derive container.KeyDeriver
	if password != nil {
		derive = cryptobind.KeyDeriverFor(password)
	}

	h, err := container.Read(src, codec.KnownAlgoTags(), TotalRAM(), derive)
	if err != nil {
		return translateStreamErr(err)
	}

	ctx, err := NewContextFromHeader(o, log, *h, password)
	if err != nil {
		return err
	}

	n := ctx.ThreadCount()
	stacks, err := ctx.NewStacks(n)
	if err != nil {
		return err
	}
	defer func() {
		for _, st := range stacks {
			st.Close()
		}
	}()

	macBytes, err := h.MacBytes()
	if err != nil {
		return err
	}
	// digest_or_zero is always cksum_bytes wide on the wire, zero-padded
	// in crypto mode rather than omitted (spec.md §3/§6), so the reader
	// must size it off the checksum family regardless of crypto mode.
	cksumBytes, err := digest.Size(h.CksumID())
	if err != nil {
		return err
	}

	frameSrc := ioadapt.NewFrameReader(src, cksumBytes, macBytes, h.ChunkSize)

	outPath := o.Output
	if outPath == "" && !o.Archive {
		outPath = o.Input + ".out"
	}

	var dst io.Writer
	var finalize func(ok bool) error
	switch {
	case o.Archive:
		e := &fswalk.Extractor{Root: o.Output, ForcePerm: os.FileMode(o.ForcePerm)}
		pr, pw := io.Pipe()
		dst = pw
		done := make(chan error, 1)
		go func() { done <- archiver.ReadArchive(pr, e) }()
		finalize = func(bool) error {
			closeErr := pw.Close()
			if extractErr := <-done; extractErr != nil {
				return extractErr
			}
			return closeErr
		}
	case o.Pipe && outPath == "":
		dst = os.Stdout
		finalize = func(bool) error { return nil }
	default:
		tmpPath := filepath.Join(filepath.Dir(outPath), "."+uuid.NewString()+".tmp")
		f, err := os.Create(tmpPath)
		if err != nil {
			return err
		}
		dst = f
		finalize = func(ok bool) error {
			closeErr := f.Close()
			if !ok {
				os.Remove(tmpPath)
				return closeErr
			}
			if err := os.Rename(tmpPath, outPath); err != nil {
				return err
			}
			return closeErr
		}
	}

	chunkDst := ioadapt.NewChunkWriter(dst)
	sched := scheduler.New(stacks, h.ChunkSize, o.GlobalDedup)
	runErr := translateStreamErr(sched.RunDecompress(frameSrc, chunkDst))

	if finErr := finalize(runErr == nil); finErr != nil && runErr == nil {
		runErr = finErr
	}
	return runErr
}

func openDecompressSource(o *Options) (io.Reader, func(), error) {
	if o.Pipe && o.Input == "" {
		return os.Stdin, nil, nil
	}
	f, err := os.Open(o.Input)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: opening input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// translateStreamErr maps the sentinel errors produced anywhere in the
// decode path (header parse, per-chunk MAC/CRC verification, digest
// recheck) onto this package's engine.Err* sentinels (spec.md §7), so
// callers and ExitCode only ever need to know this package's error kinds.
func translateStreamErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, container.ErrFormatMismatch):
		return ErrFormatMismatch
	case errors.Is(err, container.ErrUnsupportedVersion):
		return ErrUnsupportedVersion
	case errors.Is(err, container.ErrOversizeChunk):
		return ErrOversizeChunk
	case errors.Is(err, integrity.ErrAuthFailed):
		return ErrAuthFailed
	case errors.Is(err, transform.ErrDigestMismatch):
		return ErrDigestMismatch
	case errors.Is(err, container.ErrTampered):
		return ErrTampered
	default:
		return err
	}
}
