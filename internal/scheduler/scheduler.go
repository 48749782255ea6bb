// Package scheduler implements the ordered-parallelism scheduling model
// spec.md §4.5 describes: chunks dispatched round-robin to N workers, a
// writer draining them in the same order so output frames appear in
// strictly ascending id, and a cancellation protocol that unsticks every
// worker on a fatal error.
package scheduler

import (
	"sync/atomic"

	"github.com/go-pcompress/pcompress/internal/container"
	"github.com/go-pcompress/pcompress/internal/transform"
	"github.com/go-pcompress/pcompress/internal/worker"
)

// ChunkReader is the narrow collaborator the producer drains for
// compression (implemented by internal/ioadapt's rabin/fixed readers).
type ChunkReader interface {
	// Next returns the next chunk. ok is false once the source is exhausted.
	Next() (id uint64, raw []byte, ok bool, err error)
}

// FrameWriter is the narrow collaborator the writer drains into.
type FrameWriter interface {
	WriteFrame(f *container.Frame) error
	WriteTrailer() error
}

// FrameReader is the narrow collaborator the producer drains for
// decompression.
type FrameReader interface {
	Next() (id uint64, f *container.Frame, ok bool, err error)
}

// ChunkWriter is the narrow collaborator the writer drains into on decompress.
type ChunkWriter interface {
	WriteChunk(id uint64, raw []byte) error
}

// Scheduler owns N workers and drives the producer/writer goroutines that
// feed and drain them in round-robin order.
type Scheduler struct {
	workers     []*worker.Worker
	cancel      atomic.Bool
	globalDedup bool
}

// New builds a Scheduler over one transform.Stack per worker (spec.md
// §4.4: codec/dedup/HMAC state is per-worker, not shared). globalDedup
// primes the index_sem ring (spec.md §4.5); it is a no-op unless the
// stream's DedupeEngine actually shares state across chunks.
func New(stacks []*transform.Stack, chunkSize uint64, globalDedup bool) *Scheduler {
	n := len(stacks)
	s := &Scheduler{globalDedup: globalDedup}
	s.workers = make([]*worker.Worker, n)
	for i, st := range stacks {
		w := worker.New(i, st, chunkSize)
		w.WriteDone <- struct{}{} // initial producer credit, spec.md §4.5
		s.workers[i] = w
	}
	if globalDedup && n > 0 {
		for i := range s.workers {
			s.workers[i].IndexSem = make(chan struct{}, 1)
		}
		for i := range s.workers {
			s.workers[i].NextIndexSem = s.workers[(i+1)%n].IndexSem
		}
		s.workers[0].IndexSem <- struct{}{} // worker 0 proceeds first
	}
	return s
}

// unstickPeers propagates cancellation: sets main_cancel and posts both
// start and write_done to every worker so each wakes, observes cancel at
// its next semaphore wait, posts an EOF result, and exits (spec.md §5's
// "Cancellation" note).
func (s *Scheduler) unstickPeers() {
	s.cancel.Store(true)
	for _, w := range s.workers {
		select {
		case w.WriteDone <- struct{}{}:
		default:
		}
		select {
		case w.Start <- struct{}{}:
		default:
		}
	}
}

// RunCompress drives N workers over src, writing ordered frames to dst.
// It returns the first fatal error encountered, if any.
func (s *Scheduler) RunCompress(src ChunkReader, dst FrameWriter) error {
	n := len(s.workers)
	if n == 0 {
		return dst.WriteTrailer()
	}
	for _, w := range s.workers {
		go w.RunCompress(&s.cancel)
	}

	var producerErr, writerErr error
	done := make(chan struct{})

	go func() {
		defer close(done)
		i := 0
		for {
			w := s.workers[i%n]
			<-w.WriteDone
			if s.cancel.Load() {
				return
			}
			id, raw, ok, err := src.Next()
			if err != nil {
				producerErr = err
				s.unstickPeers()
				return
			}
			if !ok {
				w.SetJob(worker.Job{EOF: true})
				w.Start <- struct{}{}
				return
			}
			w.SetJob(worker.Job{ChunkID: id, Raw: raw})
			w.Start <- struct{}{}
			i++
		}
	}()

	j := 0
	for {
		w := s.workers[j%n]
		<-w.Done
		res := w.Result()
		if res.EOF {
			if !s.cancel.Load() {
				s.unstickPeers()
			}
			break
		}
		if res.Err != nil {
			writerErr = res.Err
			s.unstickPeers()
			w.WriteDone <- struct{}{}
			break
		}
		if err := dst.WriteFrame(res.Frame); err != nil {
			writerErr = err
			s.unstickPeers()
			w.WriteDone <- struct{}{}
			break
		}
		w.WriteDone <- struct{}{}
		j++
	}
	<-done
	s.drainRemaining(j, n)

	if writerErr != nil {
		return writerErr
	}
	if producerErr != nil {
		return producerErr
	}
	return dst.WriteTrailer()
}

// RunDecompress is RunCompress's mirror for the decompress direction.
func (s *Scheduler) RunDecompress(src FrameReader, dst ChunkWriter) error {
	n := len(s.workers)
	if n == 0 {
		return nil
	}
	for _, w := range s.workers {
		go w.RunDecompress(&s.cancel)
	}

	var producerErr, writerErr error
	done := make(chan struct{})

	go func() {
		defer close(done)
		i := 0
		for {
			w := s.workers[i%n]
			<-w.WriteDone
			if s.cancel.Load() {
				return
			}
			id, f, ok, err := src.Next()
			if err != nil {
				producerErr = err
				s.unstickPeers()
				return
			}
			if !ok {
				w.SetJob(worker.Job{EOF: true})
				w.Start <- struct{}{}
				return
			}
			w.SetJob(worker.Job{ChunkID: id, Frame: f})
			w.Start <- struct{}{}
			i++
		}
	}()

	j := 0
	for {
		w := s.workers[j%n]
		<-w.Done
		res := w.Result()
		if res.EOF {
			if !s.cancel.Load() {
				s.unstickPeers()
			}
			break
		}
		if res.Err != nil {
			writerErr = res.Err
			s.unstickPeers()
			w.WriteDone <- struct{}{}
			break
		}
		if err := dst.WriteChunk(res.ChunkID, res.Raw); err != nil {
			writerErr = err
			s.unstickPeers()
			w.WriteDone <- struct{}{}
			break
		}
		w.WriteDone <- struct{}{}
		j++
	}
	<-done
	s.drainRemaining(j, n)

	if writerErr != nil {
		return writerErr
	}
	return producerErr
}

// drainRemaining collects the done credit from any worker the writer loop
// broke out of before reaching, so every goroutine spawned for this run
// has posted its terminal result and returned.
func (s *Scheduler) drainRemaining(from, n int) {
	for k := from; k < from+n; k++ {
		w := s.workers[k%n]
		select {
		case <-w.Done:
		default:
		}
	}
}
