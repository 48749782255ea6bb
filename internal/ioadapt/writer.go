package ioadapt

import (
	"io"

	"github.com/go-pcompress/pcompress/internal/container"
)

// FrameWriter writes framed ChunkFrames to dst and terminates the stream
// with the 8-zero-byte trailer, implementing scheduler.FrameWriter for the
// compress side.
type FrameWriter struct {
	dst io.Writer
}

// NewFrameWriter wraps dst as a scheduler.FrameWriter.
func NewFrameWriter(dst io.Writer) *FrameWriter {
	return &FrameWriter{dst: dst}
}

// WriteFrame implements scheduler.FrameWriter.
func (w *FrameWriter) WriteFrame(f *container.Frame) error {
	return container.WriteFrame(w.dst, f)
}

// WriteTrailer implements scheduler.FrameWriter.
func (w *FrameWriter) WriteTrailer() error {
	return container.WriteTrailer(w.dst)
}

// ChunkWriter writes decoded chunk bytes to dst in the order the scheduler
// delivers them (which is always ascending id, per spec.md §4.5's ordering
// guarantee), implementing scheduler.ChunkWriter for the decompress side.
type ChunkWriter struct {
	dst io.Writer
}

// NewChunkWriter wraps dst as a scheduler.ChunkWriter.
func NewChunkWriter(dst io.Writer) *ChunkWriter {
	return &ChunkWriter{dst: dst}
}

// WriteChunk implements scheduler.ChunkWriter.
func (w *ChunkWriter) WriteChunk(_ uint64, raw []byte) error {
	_, err := w.dst.Write(raw)
	return err
}
