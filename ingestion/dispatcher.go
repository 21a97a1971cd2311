package ingestion

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/poiesic/wikidump/metrics"
)

// chunk is a group of consecutive lines queued as one unit of work.
// A nil *chunk on the queue is the stop sentinel.
type chunk struct {
	seq   int64
	start int64 // raw lines consumed before the first line
	end   int64 // raw lines consumed through the last line
	lines []Line
}

// dispatcher is the single producer feeding the worker queue.
type dispatcher struct {
	src           *Source
	queue         chan<- *chunk
	batchSize     int
	maxIterations int64
	workers       int
	exited        <-chan struct{} // closed once every worker has returned
	tracker       *cursorTracker
	logger        *slog.Logger
	metrics       *metrics.Pass

	dispatched atomic.Int64
	capped     atomic.Bool
}

// run reads the source until it is exhausted, the iteration cap is reached,
// ctx is cancelled, or no worker is left. It always finishes by sending one
// stop sentinel per worker.
func (d *dispatcher) run(ctx context.Context, start int64) error {
	defer d.stopWorkers()

	var seq int64
	current := &chunk{seq: seq, start: start, end: start}
	for line, err := range d.src.Lines() {
		if err != nil {
			d.logger.Error("source read failed", "error", err, "cursor", line.Cursor)
			if len(current.lines) > 0 {
				d.send(ctx, current)
			}
			return err
		}
		if d.maxIterations > 0 && d.dispatched.Load() >= d.maxIterations {
			d.capped.Store(true)
			break
		}

		current.lines = append(current.lines, line)
		current.end = line.Cursor
		d.dispatched.Add(1)

		if len(current.lines) >= d.batchSize {
			if !d.send(ctx, current) {
				return nil
			}
			seq++
			current = &chunk{seq: seq, start: current.end, end: current.end}
		}
	}

	if len(current.lines) > 0 {
		d.send(ctx, current)
	}
	return nil
}

// send queues c, blocking while the queue is full. It gives up when ctx is
// cancelled or every worker has exited.
func (d *dispatcher) send(ctx context.Context, c *chunk) bool {
	d.tracker.dispatched(c.seq, c.start, c.end)
	select {
	case d.queue <- c:
		d.metrics.LinesRead(len(c.lines))
		return true
	case <-ctx.Done():
		d.logger.Info("dispatch cancelled", "cursor", c.start)
		return false
	case <-d.exited:
		d.logger.Error("no live workers, stopping dispatch", "cursor", c.start)
		return false
	}
}

// stopWorkers sends one sentinel per worker.
func (d *dispatcher) stopWorkers() {
	for range d.workers {
		select {
		case d.queue <- nil:
		case <-d.exited:
			return
		}
	}
}
