package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/storage"
	"golang.org/x/sync/errgroup"
)

// Handler turns one parsed record into zero or more items for the sink.
// It is called once per dispatched line, with a nil entity when the line
// could not be parsed. Handlers run concurrently on all workers.
type Handler[T any] func(ctx context.Context, e *core.Entity) []T

// RunOptions holds optional parameters for a run.
type RunOptions struct {
	MaxIterations int64 // cap on dispatched lines; 0 means no cap
	Verbose       bool  // log progress reports at Info level
}

// Stats summarises a finished run.
type Stats struct {
	RunID         string
	StartCursor   int64 // raw lines skipped before the first dispatched line
	Cursor        int64 // resume cursor after the run
	Dispatched    int64 // non-empty lines sent to workers
	Processed     int64 // lines handled by workers
	Malformed     int64 // unparseable or oversized lines
	Oversized     int64
	Produced      int64 // items returned by the handler
	Flushed       int64 // items durably written
	Flushes       int64
	FailedFlushes int64
	LiveWorkers   int
	DeadWorkers   int
	LostLines     int64 // lines held by workers when they died
	Capped        bool  // stopped by MaxIterations
	Duration      time.Duration
}

// Run streams the pipeline's source through handler into sink.
//
// Run returns once every dispatched chunk has been handled or abandoned and
// the buffer has been drained. Stats are returned even when err is non-nil.
// Cancelling ctx stops dispatch; output already produced is still flushed.
func Run[T any](ctx context.Context, p *Pipeline, handler Handler[T], sink storage.BulkWriter[T], opts RunOptions) (*Stats, error) {
	started := time.Now()
	runID := uuid.NewString()
	stats := &Stats{RunID: runID}
	if handler == nil {
		return stats, ErrHandlerRequired
	}
	if sink == nil {
		return stats, ErrSinkRequired
	}
	logger := p.logger.With("run", runID)

	skip, err := p.ResumeCursor(ctx)
	if err != nil {
		return stats, err
	}
	stats.StartCursor, stats.Cursor = skip, skip
	src, err := OpenSource(p.source, skip, p.maxLineSize)
	if err != nil {
		stats.Duration = time.Since(started)
		return stats, err
	}
	defer src.Close()

	workers := make([]*worker, p.poolSize)
	for i := range workers {
		workers[i] = newWorker(i)
	}
	if err := p.begin(workers); err != nil {
		stats.Duration = time.Since(started)
		return stats, err
	}
	defer p.end()

	m := p.collector.Pass(p.pass)
	queue := make(chan *chunk, p.queueSize)
	results := make(chan chunkResult[T], p.poolSize)
	exited := make(chan struct{})
	tracker := newCursorTracker(skip)

	logger.Info("run started",
		"source", p.source,
		"skip", skip,
		"workers", p.poolSize,
		"batch_size", p.batchSize,
		"queue_size", p.queueSize,
		"push_threshold", p.pushThreshold,
		"max_iterations", opts.MaxIterations,
	)

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			runWorker(ctx, w, queue, results, handler, logger, m)
		}
		if err := p.pool.Submit(task); err != nil {
			w.setState(WorkerDead)
			wg.Done()
			logger.Error("worker could not be started", "worker", w.id, "error", err)
		}
	}
	m.LiveWorkers(countAlive(workers))
	go func() {
		wg.Wait()
		close(exited)
		close(results)
	}()

	d := &dispatcher{
		src:           src,
		queue:         queue,
		batchSize:     p.batchSize,
		maxIterations: opts.MaxIterations,
		workers:       len(workers),
		exited:        exited,
		tracker:       tracker,
		logger:        logger.With("component", "dispatcher"),
		metrics:       m,
	}
	acc := &accumulator[T]{
		sink:        sink,
		threshold:   p.pushThreshold,
		backoff:     p.drainBackoff,
		tracker:     tracker,
		logger:      logger.With("component", "accumulator"),
		metrics:     m,
		checkpoints: p.checkpoints,
		pass:        p.pass,
		source:      core.SourceFingerprint(p.source),
		savedCursor: skip,
	}

	var g errgroup.Group
	accDone := make(chan struct{})
	g.Go(func() error {
		return d.run(ctx, skip)
	})
	g.Go(func() error {
		defer close(accDone)
		return acc.run(ctx, results)
	})
	if opts.Verbose || p.collector != nil {
		snapshot := func() progress {
			var processed, malformed int64
			for _, w := range workers {
				processed += w.lines.Load()
				malformed += w.malformed.Load()
			}
			return progress{
				Processed:  processed,
				Malformed:  malformed,
				Buffered:   acc.buffered.Load(),
				Flushed:    acc.flushedItems.Load(),
				Live:       countAlive(workers),
				QueueDepth: len(queue),
				Cursor:     tracker.cursor(),
			}
		}
		rep := newReporter(p.reportInterval, opts.Verbose, snapshot, logger, m)
		g.Go(func() error {
			return rep.run(accDone)
		})
	}
	runErr := g.Wait()

	*stats = Stats{
		RunID:         runID,
		StartCursor:   skip,
		Cursor:        tracker.cursor(),
		Dispatched:    d.dispatched.Load(),
		Produced:      acc.produced.Load(),
		Flushed:       acc.flushedItems.Load(),
		Flushes:       acc.flushes.Load(),
		FailedFlushes: acc.failedFlushes.Load(),
		Capped:        d.capped.Load(),
		Duration:      time.Since(started),
	}
	for _, w := range workers {
		stats.Processed += w.lines.Load()
		stats.Malformed += w.malformed.Load()
		stats.Oversized += w.oversized.Load()
		stats.LostLines += w.lostLines.Load()
		if w.getState() == WorkerDead {
			stats.DeadWorkers++
		} else {
			stats.LiveWorkers++
		}
	}
	m.LiveWorkers(0)

	logger.Info("run finished",
		"dispatched", stats.Dispatched,
		"malformed", stats.Malformed,
		"flushed", stats.Flushed,
		"flushes", stats.Flushes,
		"failed_flushes", stats.FailedFlushes,
		"dead_workers", stats.DeadWorkers,
		"cursor", stats.Cursor,
		"duration", stats.Duration.Round(time.Millisecond),
	)

	switch {
	case runErr != nil:
		return stats, runErr
	case stats.DeadWorkers == len(workers):
		return stats, fmt.Errorf("%w: %d workers died", ErrNoLiveWorkers, stats.DeadWorkers)
	case ctx.Err() != nil:
		return stats, ctx.Err()
	}
	if stats.DeadWorkers > 0 {
		logger.Error("run finished with dead workers", "dead", stats.DeadWorkers, "lost_lines", stats.LostLines)
	}
	return stats, nil
}

func countAlive(workers []*worker) int {
	alive := 0
	for _, w := range workers {
		if w.status().Alive() {
			alive++
		}
	}
	return alive
}
