package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/go-pcompress/pcompress/internal/archiver"
	"github.com/go-pcompress/pcompress/internal/archiver/fswalk"
	"github.com/go-pcompress/pcompress/internal/container"
	"github.com/go-pcompress/pcompress/internal/ioadapt"
	"github.com/go-pcompress/pcompress/internal/scheduler"
)

// Compress runs one full compress invocation: resolve source/sink, derive
// the stream context, fan out across N workers, and atomically publish the
// result (spec.md §7: "writes to a temp file and renames on success; on
// failure it unlinks").
func Compress(o *Options, log *logrus.Logger) error {
	ctx, err := NewContext(o, log)
	if err != nil {
		return err
	}

	src, srcCloser, err := openCompressSource(o)
	if err != nil {
		return err
	}
	if srcCloser != nil {
		defer srcCloser()
	}

	outPath := o.Output
	if outPath == "" && !o.Pipe {
		outPath = o.Input + "." + o.Algo
	}

	var dst io.Writer
	var finalize func(ok bool) error
	if o.Pipe && outPath == "" {
		dst = os.Stdout
		finalize = func(bool) error { return nil }
	} else {
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

	n := ctx.ThreadCount()
	stacks, err := ctx.NewStacks(n)
	if err != nil {
		finalize(false)
		return err
	}
	defer func() {
		for _, st := range stacks {
			st.Close()
		}
	}()

	var hmacKey []byte
	if o.Encrypt {
		hmacKey = ctx.streamKey
	}
	if err := container.Write(dst, &ctx.Header, hmacKey); err != nil {
		finalize(false)
		return err
	}

	var chunkSrc scheduler.ChunkReader
	if o.Dedup != DedupNone {
		chunkSrc = ioadapt.NewRabinChunkReader(src, o.ChunkSize)
	} else {
		chunkSrc = ioadapt.NewFixedChunkReader(src, o.ChunkSize)
	}
	frameDst := ioadapt.NewFrameWriter(dst)

	sched := scheduler.New(stacks, o.ChunkSize, o.GlobalDedup)
	runErr := sched.RunCompress(chunkSrc, frameDst)

	if finErr := finalize(runErr == nil); finErr != nil && runErr == nil {
		runErr = finErr
	}
	return runErr
}

func openCompressSource(o *Options) (io.Reader, func(), error) {
	if o.Archive {
		pr, pw := io.Pipe()
		w := &fswalk.Writer{Root: o.Input, Sort: !o.NoSort, NoOverwriteNewer: o.NoOverwriteNewer}
		go func() {
			err := archiver.WriteArchive(pw, w)
			pw.CloseWithError(err)
		}()
		return pr, func() { pr.Close() }, nil
	}
	if o.Pipe && o.Input == "" {
		return os.Stdin, nil, nil
	}
	f, err := os.Open(o.Input)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: opening input: %w", err)
	}
	return f, func() { f.Close() }, nil
}
