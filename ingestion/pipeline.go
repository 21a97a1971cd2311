package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/metrics"
	"github.com/poiesic/wikidump/storage"
)

// Defaults applied by NewPipeline.
const (
	DefaultBatchSize      = 1000
	DefaultQueueSize      = 64
	DefaultPushThreshold  = 1000
	DefaultDrainBackoff   = time.Second
	DefaultReportInterval = 3 * time.Second
)

// Pipeline streams a dump archive through a pool of workers into a batched sink.
// A Pipeline is configured once and may be Run several times, one run at a time.
type Pipeline struct {
	source         string
	poolSize       int
	batchSize      int
	queueSize      int
	skipLines      int64
	pushThreshold  int
	drainBackoff   time.Duration
	maxLineSize    int
	reportInterval time.Duration
	logger         *slog.Logger
	collector      *metrics.Collector
	checkpoints    storage.CheckpointRepository
	pass           string
	resume         bool

	pool *ants.Pool

	mu      sync.Mutex
	running bool
	workers []*worker
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithSource sets the archive path.
func WithSource(path string) Option {
	return func(p *Pipeline) error {
		p.source = path
		return nil
	}
}

// WithPoolSize sets the number of workers.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.poolSize = size
		return nil
	}
}

// WithBatchSize sets the number of lines grouped into one queued chunk.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size %d", ErrInvalidOption, size)
		}
		p.batchSize = size
		return nil
	}
}

// WithQueueSize sets the dispatch queue capacity in chunks.
func WithQueueSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: queue size %d", ErrInvalidOption, size)
		}
		p.queueSize = size
		return nil
	}
}

// WithSkipLines skips the first n raw lines of the archive.
func WithSkipLines(n int64) Option {
	return func(p *Pipeline) error {
		if n < 0 {
			return fmt.Errorf("%w: skip lines %d", ErrInvalidOption, n)
		}
		p.skipLines = n
		return nil
	}
}

// WithPushThreshold sets the buffer size above which a flush is attempted.
func WithPushThreshold(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("%w: push threshold %d", ErrInvalidOption, n)
		}
		p.pushThreshold = n
		return nil
	}
}

// WithDrainBackoff sets the pause between failed flushes while draining.
func WithDrainBackoff(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d < 0 {
			return fmt.Errorf("%w: drain backoff %s", ErrInvalidOption, d)
		}
		p.drainBackoff = d
		return nil
	}
}

// WithMaxLineSize sets the longest accepted line in bytes.
func WithMaxLineSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("%w: max line size %d", ErrInvalidOption, n)
		}
		p.maxLineSize = n
		return nil
	}
}

// WithReportInterval sets how often verbose runs report progress.
func WithReportInterval(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d <= 0 {
			return fmt.Errorf("%w: report interval %s", ErrInvalidOption, d)
		}
		p.reportInterval = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithMetrics records pipeline metrics on collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(p *Pipeline) error {
		p.collector = collector
		return nil
	}
}

// WithCheckpoints persists the resume cursor of the named pass after every
// successful flush.
func WithCheckpoints(repo storage.CheckpointRepository, pass string) Option {
	return func(p *Pipeline) error {
		if repo != nil && pass == "" {
			return core.ErrEmptyPass
		}
		p.checkpoints = repo
		p.pass = pass
		return nil
	}
}

// WithResume starts each run from the stored checkpoint when it is further
// along than the configured skip count. Requires WithCheckpoints.
func WithResume(resume bool) Option {
	return func(p *Pipeline) error {
		p.resume = resume
		return nil
	}
}

// NewPipeline creates a new dump pipeline.
func NewPipeline(opts ...Option) (*Pipeline, error) {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	p := &Pipeline{
		poolSize:       poolSize,
		batchSize:      DefaultBatchSize,
		queueSize:      DefaultQueueSize,
		pushThreshold:  DefaultPushThreshold,
		drainBackoff:   DefaultDrainBackoff,
		maxLineSize:    DefaultMaxLineSize,
		reportInterval: DefaultReportInterval,
		logger:         slog.Default(),
		pass:           "default",
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.source == "" {
		return nil, ErrSourceRequired
	}

	// Fail fast on an unreadable archive before any worker starts.
	src, err := OpenSource(p.source, 0, p.maxLineSize)
	if err != nil {
		return nil, err
	}
	src.Close()

	pool, err := ants.NewPool(p.poolSize, ants.WithPanicHandler(func(r any) {
		p.logger.Error("worker panic escaped recovery", "panic", r)
	}))
	if err != nil {
		return nil, err
	}
	p.pool = pool
	p.logger = p.logger.With("component", "pipeline", "pass", p.pass)

	return p, nil
}

// Source returns the configured archive path.
func (p *Pipeline) Source() string {
	return p.source
}

// Pass returns the pass name used for checkpoints and metrics.
func (p *Pipeline) Pass() string {
	return p.pass
}

// Workers returns a snapshot of worker states of the current or last run.
func (p *Pipeline) Workers() []WorkerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]WorkerStatus, len(p.workers))
	for i, w := range p.workers {
		statuses[i] = w.status()
	}
	return statuses
}

// ResumeCursor returns the raw line count a run would start from.
func (p *Pipeline) ResumeCursor(ctx context.Context) (int64, error) {
	skip := p.skipLines
	if !p.resume || p.checkpoints == nil {
		return skip, nil
	}
	checkpoint, err := p.checkpoints.LoadCheckpoint(ctx, p.pass, core.SourceFingerprint(p.source))
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	if checkpoint != nil && checkpoint.Cursor > skip {
		skip = checkpoint.Cursor
	}
	return skip, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// begin marks the pipeline as running. Runs never overlap.
func (p *Pipeline) begin(workers []*worker) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("%w: pipeline is already running", ErrInvalidOption)
	}
	p.running = true
	p.workers = workers
	return nil
}

func (p *Pipeline) end() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}
