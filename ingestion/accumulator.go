package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/metrics"
	"github.com/poiesic/wikidump/storage"
)

// checkpointInterval bounds how long an advancing cursor goes unsaved when
// no flush happens.
const checkpointInterval = 10 * time.Second

// entry is a buffered item tagged with the chunk that produced it.
type entry[T any] struct {
	seq  int64
	item T
}

// accumulator owns the batch buffer. Only its run goroutine touches buffer;
// workers hand results over the results channel.
type accumulator[T any] struct {
	sink      storage.BulkWriter[T]
	threshold int
	backoff   time.Duration
	tracker   *cursorTracker
	logger    *slog.Logger
	metrics   *metrics.Pass

	checkpoints storage.CheckpointRepository
	pass        string
	source      core.ID
	savedCursor int64
	lastSave    time.Time

	buffer []entry[T]

	buffered      atomic.Int64
	produced      atomic.Int64
	flushes       atomic.Int64
	failedFlushes atomic.Int64
	flushedItems  atomic.Int64
}

// run consumes worker results until the channel is closed, then drains.
// Draining ignores cancellation of ctx so buffered output is not dropped.
func (a *accumulator[T]) run(ctx context.Context, results <-chan chunkResult[T]) error {
	for res := range results {
		a.add(ctx, res)
	}
	return a.drain(context.WithoutCancel(ctx))
}

// add appends a chunk result and flushes full batches.
func (a *accumulator[T]) add(ctx context.Context, res chunkResult[T]) {
	for _, item := range res.items {
		a.buffer = append(a.buffer, entry[T]{seq: res.seq, item: item})
	}
	a.tracker.completed(res.seq, len(res.items))
	a.produced.Add(int64(len(res.items)))
	a.metrics.ItemsProduced(len(res.items))
	a.publishBuffered()

	for len(a.buffer) > a.threshold {
		// A failed flush keeps the buffer and is retried on the next append.
		if err := a.flush(ctx, a.threshold); err != nil {
			return
		}
	}
	if time.Since(a.lastSave) >= checkpointInterval {
		a.saveCheckpoint(ctx)
	}
}

// flush writes the first n buffered items. On success they are removed from
// the buffer; on failure the buffer is unchanged.
func (a *accumulator[T]) flush(ctx context.Context, n int) error {
	batch := make([]T, n)
	for i := range n {
		batch[i] = a.buffer[i].item
	}

	started := time.Now()
	err := a.sink.BulkUpsert(ctx, batch)
	a.metrics.Flush(n, time.Since(started), err)
	if err != nil {
		a.failedFlushes.Add(1)
		a.logger.Warn("flush failed", "items", n, "buffered", len(a.buffer), "error", err,
			"contention", errors.Is(err, storage.ErrContention))
		return err
	}

	perChunk := make(map[int64]int)
	for _, e := range a.buffer[:n] {
		perChunk[e.seq]++
	}
	for seq, count := range perChunk {
		a.tracker.flushed(seq, count)
	}

	rest := copy(a.buffer, a.buffer[n:])
	clear(a.buffer[rest:])
	a.buffer = a.buffer[:rest]

	a.flushes.Add(1)
	a.flushedItems.Add(int64(n))
	a.publishBuffered()
	a.logger.Debug("flushed", "items", n, "buffered", rest)
	a.saveCheckpoint(ctx)
	return nil
}

// drain flushes the whole remainder, retrying with a fixed backoff until it
// succeeds. It only gives up when the store has been closed.
func (a *accumulator[T]) drain(ctx context.Context) error {
	for len(a.buffer) > 0 {
		err := a.flush(ctx, len(a.buffer))
		if err == nil {
			break
		}
		if errors.Is(err, storage.ErrStorageClosed) {
			a.logger.Error("store closed while draining, buffered items lost", "items", len(a.buffer))
			return err
		}
		time.Sleep(a.backoff)
	}
	a.saveCheckpoint(ctx)
	return nil
}

// saveCheckpoint persists the resume cursor when it has advanced.
func (a *accumulator[T]) saveCheckpoint(ctx context.Context) {
	a.lastSave = time.Now()
	cursor := a.tracker.cursor()
	a.metrics.Cursor(cursor)
	if a.checkpoints == nil || cursor <= a.savedCursor {
		return
	}
	err := a.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		Pass:   a.pass,
		Source: a.source,
		Cursor: cursor,
	})
	if err != nil {
		a.logger.Warn("checkpoint save failed", "cursor", cursor, "error", err)
		return
	}
	a.savedCursor = cursor
}

func (a *accumulator[T]) publishBuffered() {
	a.buffered.Store(int64(len(a.buffer)))
	a.metrics.Buffered(len(a.buffer))
}
