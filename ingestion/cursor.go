package ingestion

import "sync"

// chunkState tracks one dispatched chunk until its output is durable.
type chunkState struct {
	start    int64 // raw lines consumed before the chunk's first line
	inFlight bool  // not yet handed back by a worker
	buffered int   // items still waiting in the unflushed buffer
}

// cursorTracker computes the resume cursor.
//
// The cursor is the start of the oldest chunk that is still in flight or
// still has unflushed output. When nothing is outstanding it is the end of
// the last dispatched chunk. Resuming from it never skips unpersisted output,
// though lines after it may be processed twice.
type cursorTracker struct {
	mu      sync.Mutex
	chunks  map[int64]*chunkState
	lastEnd int64
}

func newCursorTracker(start int64) *cursorTracker {
	return &cursorTracker{
		chunks:  make(map[int64]*chunkState),
		lastEnd: start,
	}
}

// dispatched registers a chunk before it is queued.
func (t *cursorTracker) dispatched(seq, start, end int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunks[seq] = &chunkState{start: start, inFlight: true}
	t.lastEnd = end
}

// completed records that a worker finished a chunk producing items outputs.
func (t *cursorTracker) completed(seq int64, items int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.chunks[seq]
	if !ok {
		return
	}
	c.inFlight = false
	c.buffered += items
	if c.buffered == 0 {
		delete(t.chunks, seq)
	}
}

// flushed records that n buffered items of a chunk are durable.
func (t *cursorTracker) flushed(seq int64, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.chunks[seq]
	if !ok {
		return
	}
	c.buffered -= n
	if c.buffered <= 0 && !c.inFlight {
		delete(t.chunks, seq)
	}
}

// cursor returns the current resume cursor.
func (t *cursorTracker) cursor() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	cursor := t.lastEnd
	for _, c := range t.chunks {
		if c.start < cursor {
			cursor = c.start
		}
	}
	return cursor
}
