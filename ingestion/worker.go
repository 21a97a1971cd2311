package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/metrics"
)

// WorkerState is the lifecycle state of a pipeline worker.
type WorkerState int32

const (
	// WorkerRunning consumes chunks from the dispatch queue.
	WorkerRunning WorkerState = iota
	// WorkerDraining saw the run cancelled and discards queued chunks until
	// its stop sentinel arrives.
	WorkerDraining
	// WorkerStopped exited after a stop sentinel.
	WorkerStopped
	// WorkerDead exited after a handler panic.
	WorkerDead
)

func (s WorkerState) String() string {
	switch s {
	case WorkerRunning:
		return "running"
	case WorkerDraining:
		return "draining"
	case WorkerStopped:
		return "stopped"
	case WorkerDead:
		return "dead"
	}
	return fmt.Sprintf("WorkerState(%d)", int32(s))
}

// WorkerStatus is a point-in-time view of one worker.
type WorkerStatus struct {
	ID        int
	State     WorkerState
	Lines     int64 // lines handled
	Malformed int64 // lines that failed to parse or were oversized
}

// Alive reports whether the worker can still consume chunks.
func (s WorkerStatus) Alive() bool {
	return s.State == WorkerRunning || s.State == WorkerDraining
}

type worker struct {
	id        int
	state     atomic.Int32
	lines     atomic.Int64
	malformed atomic.Int64
	oversized atomic.Int64
	lostLines atomic.Int64 // lines of the chunk held when the worker died
}

func newWorker(id int) *worker {
	return &worker{id: id}
}

func (w *worker) setState(s WorkerState) {
	w.state.Store(int32(s))
}

func (w *worker) getState() WorkerState {
	return WorkerState(w.state.Load())
}

func (w *worker) status() WorkerStatus {
	return WorkerStatus{
		ID:        w.id,
		State:     w.getState(),
		Lines:     w.lines.Load(),
		Malformed: w.malformed.Load(),
	}
}

// chunkResult carries a worker's output for one chunk to the accumulator.
type chunkResult[T any] struct {
	seq   int64
	items []T
}

// runWorker consumes chunks until it receives a stop sentinel. A panic in
// the handler is recovered and leaves the worker Dead; the chunk it was
// holding is abandoned and stays in flight for the resume cursor.
func runWorker[T any](
	ctx context.Context,
	w *worker,
	queue <-chan *chunk,
	results chan<- chunkResult[T],
	handler Handler[T],
	logger *slog.Logger,
	m *metrics.Pass,
) (died bool) {
	logger = logger.With("worker", w.id)
	var current *chunk

	defer func() {
		if r := recover(); r != nil {
			w.setState(WorkerDead)
			if current != nil {
				w.lostLines.Add(int64(len(current.lines)))
			}
			m.WorkerDied()
			logger.Error("worker died", "panic", r, "stack", string(debug.Stack()))
			died = true
		}
	}()

	w.setState(WorkerRunning)
	for c := range queue {
		if c == nil {
			w.setState(WorkerStopped)
			return false
		}
		// Chunks queued after cancellation are left in flight for resume.
		if ctx.Err() != nil {
			w.setState(WorkerDraining)
			continue
		}

		current = c
		res := processChunk(ctx, w, c, handler, logger)
		m.Malformed(int(res.malformed))
		results <- chunkResult[T]{seq: c.seq, items: res.items}
		current = nil
	}
	w.setState(WorkerStopped)
	return false
}

type processed[T any] struct {
	items     []T
	malformed int64
}

// processChunk parses every line of c and collects handler output.
// Lines that fail to parse are passed to the handler as nil.
func processChunk[T any](ctx context.Context, w *worker, c *chunk, handler Handler[T], logger *slog.Logger) processed[T] {
	var res processed[T]
	for _, line := range c.lines {
		var entity *core.Entity
		switch {
		case line.Oversized:
			res.malformed++
			w.oversized.Add(1)
			logger.Debug("oversized line", "cursor", line.Cursor)
		default:
			var err error
			entity, err = core.ParseEntity(line.Data)
			if err != nil {
				res.malformed++
				entity = nil
				logger.Debug("malformed line", "cursor", line.Cursor, "error", err)
			}
		}

		res.items = append(res.items, handler(ctx, entity)...)
		w.lines.Add(1)
	}
	w.malformed.Add(res.malformed)
	return res
}
