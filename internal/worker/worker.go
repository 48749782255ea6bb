// Package worker implements the per-thread pipeline state spec.md §4.4
// describes: a worker owns its own codec/dedup/cipher state (via its
// transform.Stack) and a fixed, small control surface the Scheduler drives
// through the start/done/write_done semaphore contract (spec.md §4.5).
package worker

import (
	"sync/atomic"

	"github.com/go-pcompress/pcompress/internal/container"
	"github.com/go-pcompress/pcompress/internal/transform"
)

// Job is the unit of work the scheduler hands a worker. For compression
// Raw carries the chunk bytes; for decompression Frame carries the parsed
// ChunkFrame. EOF marks the stream-end sentinel (spec.md §4.4 step 3).
type Job struct {
	ChunkID uint64
	EOF     bool
	Raw     []byte
	Frame   *container.Frame
}

// Result is what a worker posts to done. Exactly one of Frame/Raw is set,
// depending on direction, unless EOF or Err is set.
type Result struct {
	ChunkID uint64
	EOF     bool
	Frame   *container.Frame
	Raw     []byte
	Err     error
}

// Worker is one of the N parallel threads. Start/Done/WriteDone are
// 1-buffered channels used as binary semaphores: this lock-step protocol
// never has more than one outstanding credit per worker at a time, so a
// buffered channel is the idiomatic Go counting semaphore here (the
// teacher's own worker pool uses plain channels for the same reason).
type Worker struct {
	ID int

	Start     chan struct{}
	Done      chan struct{}
	WriteDone chan struct{}

	// IndexSem/NextIndexSem form the global-dedup ring (spec.md §4.5): a
	// worker waits on its own IndexSem before mutating the shared dedup
	// index and posts to NextIndexSem ((i+1) mod N) afterward. Both are
	// nil outside global-dedup mode.
	IndexSem     chan struct{}
	NextIndexSem chan struct{}

	Stack     *transform.Stack
	ChunkSize uint64

	job    Job
	result Result
}

// New builds a Worker bound to its own Stack (and therefore its own codec
// and dedup engine instances — spec.md §4.4: "codec state" and "dedup
// context" are per-worker, not shared).
func New(id int, stack *transform.Stack, chunkSize uint64) *Worker {
	return &Worker{
		ID:        id,
		Start:     make(chan struct{}, 1),
		Done:      make(chan struct{}, 1),
		WriteDone: make(chan struct{}, 1),
		Stack:     stack,
		ChunkSize: chunkSize,
	}
}

// SetJob stores the job a subsequent Start credit will process. Only the
// scheduler goroutine holding this worker's write_done credit may call it.
func (w *Worker) SetJob(j Job) { w.job = j }

// Result returns the most recently posted result, valid only after the
// scheduler has received this worker's done credit.
func (w *Worker) Result() Result { return w.result }

func (w *Worker) postEOFOrCancel() {
	w.result = Result{ChunkID: w.job.ChunkID, EOF: true}
	w.Done <- struct{}{}
}

// RunCompress is the worker main loop for the compress direction
// (spec.md §4.4): wait for start, check cancel, check EOF, run
// TransformStack, post done. It returns once it has posted an EOF or
// cancellation result, mirroring the teacher's one-goroutine-per-worker
// lifecycle in compressBlocks' worker loop.
func (w *Worker) RunCompress(cancel *atomic.Bool) {
	for {
		<-w.Start
		if cancel.Load() {
			w.postEOFOrCancel()
			return
		}
		if w.job.EOF {
			w.postEOFOrCancel()
			return
		}
		if w.IndexSem != nil {
			<-w.IndexSem
		}
		f, err := w.Stack.Encode(w.job.ChunkID, w.job.Raw, w.ChunkSize)
		if w.NextIndexSem != nil {
			w.NextIndexSem <- struct{}{}
		}
		w.result = Result{ChunkID: w.job.ChunkID, Frame: f, Err: err}
		w.Done <- struct{}{}
	}
}

// RunDecompress is the worker main loop for the decompress direction.
func (w *Worker) RunDecompress(cancel *atomic.Bool) {
	for {
		<-w.Start
		if cancel.Load() {
			w.postEOFOrCancel()
			return
		}
		if w.job.EOF {
			w.postEOFOrCancel()
			return
		}
		if w.IndexSem != nil {
			<-w.IndexSem
		}
		raw, err := w.Stack.Decode(w.job.ChunkID, w.job.Frame)
		if w.NextIndexSem != nil {
			w.NextIndexSem <- struct{}{}
		}
		w.result = Result{ChunkID: w.job.ChunkID, Raw: raw, Err: err}
		w.Done <- struct{}{}
	}
}
