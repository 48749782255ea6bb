package scheduler

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-pcompress/pcompress/internal/codec"
	"github.com/go-pcompress/pcompress/internal/container"
	"github.com/go-pcompress/pcompress/internal/dedupe"
	"github.com/go-pcompress/pcompress/internal/digest"
	"github.com/go-pcompress/pcompress/internal/integrity"
	"github.com/go-pcompress/pcompress/internal/transform"
)

func newStacks(t *testing.T, n int) []*transform.Stack {
	t.Helper()
	stacks := make([]*transform.Stack, n)
	for i := 0; i < n; i++ {
		c, err := codec.New("zstd")
		require.NoError(t, err)
		stacks[i] = transform.New(transform.Options{
			Dedup:      dedupe.NewFixed(0),
			Codec:      c,
			ChecksumID: digest.CRC64,
			MAC:        integrity.Policy{ChecksumID: digest.CRC64},
		})
	}
	return stacks
}

type memChunkSource struct {
	mu     sync.Mutex
	chunks [][]byte
	next   uint64
	failAt int
}

func (s *memChunkSource) Next() (uint64, []byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt >= 0 && int(s.next) == s.failAt {
		return 0, nil, false, errors.New("injected read failure")
	}
	if int(s.next) >= len(s.chunks) {
		return 0, nil, false, nil
	}
	id := s.next
	raw := s.chunks[id]
	s.next++
	return id, raw, true, nil
}

type memFrameSink struct {
	mu      sync.Mutex
	frames  map[uint64]*container.Frame
	order   []uint64
	trailer bool
}

func (s *memFrameSink) WriteFrame(f *container.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames == nil {
		s.frames = make(map[uint64]*container.Frame)
	}
	id := uint64(len(s.order))
	s.order = append(s.order, id)
	s.frames[id] = f
	return nil
}

func (s *memFrameSink) WriteTrailer() error {
	s.trailer = true
	return nil
}

func makeChunks(n int, size int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		buf := make([]byte, size)
		for j := range buf {
			buf[j] = byte((i*7 + j) % 256)
		}
		out[i] = buf
	}
	return out
}

func TestSchedulerCompressWritesEveryFrameAndTrailer(t *testing.T) {
	stacks := newStacks(t, 4)
	sched := New(stacks, 4096, false)

	chunks := makeChunks(20, 512)
	src := &memChunkSource{chunks: chunks, failAt: -1}
	sink := &memFrameSink{}

	err := sched.RunCompress(src, sink)
	require.NoError(t, err)
	require.True(t, sink.trailer)
	require.Len(t, sink.frames, 20)
	for i := 0; i < 20; i++ {
		require.NotNil(t, sink.frames[uint64(i)])
	}
}

func TestSchedulerCompressPropagatesReadError(t *testing.T) {
	stacks := newStacks(t, 3)
	sched := New(stacks, 4096, false)

	chunks := makeChunks(10, 256)
	src := &memChunkSource{chunks: chunks, failAt: 5}
	sink := &memFrameSink{}

	err := sched.RunCompress(src, sink)
	require.Error(t, err)
}

type memFrameSource struct {
	mu     sync.Mutex
	frames []*container.Frame
	next   uint64
}

func (s *memFrameSource) Next() (uint64, *container.Frame, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(s.next) >= len(s.frames) {
		return 0, nil, false, nil
	}
	id := s.next
	f := s.frames[id]
	s.next++
	return id, f, true, nil
}

type memChunkSink struct {
	mu   sync.Mutex
	data map[uint64][]byte
}

func (s *memChunkSink) WriteChunk(id uint64, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[uint64][]byte)
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	s.data[id] = cp
	return nil
}

func TestSchedulerRoundTripCompressDecompress(t *testing.T) {
	encStacks := newStacks(t, 4)
	decStacks := newStacks(t, 4)

	chunks := makeChunks(16, 300)
	src := &memChunkSource{chunks: chunks, failAt: -1}
	sink := &memFrameSink{}

	require.NoError(t, New(encStacks, 4096, false).RunCompress(src, sink))

	frames := make([]*container.Frame, len(sink.frames))
	for i := range frames {
		frames[i] = sink.frames[uint64(i)]
	}
	fsrc := &memFrameSource{frames: frames}
	fsink := &memChunkSink{}

	require.NoError(t, New(decStacks, 4096, false).RunDecompress(fsrc, fsink))

	require.Len(t, fsink.data, len(chunks))
	for i, want := range chunks {
		require.Equal(t, want, fsink.data[uint64(i)], "chunk %d", i)
	}
}
