package ingestion

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/poiesic/wikidump/metrics"
	"github.com/shirou/gopsutil/v3/process"
)

// progress is a snapshot of a running pipeline.
type progress struct {
	Processed  int64
	Malformed  int64
	Buffered   int64
	Flushed    int64
	Live       int
	QueueDepth int
	Cursor     int64
}

// reporter periodically logs throughput and memory usage and refreshes
// gauges. It logs at Info level for verbose runs and Debug otherwise.
type reporter struct {
	interval time.Duration
	snapshot func() progress
	logger   *slog.Logger
	level    slog.Level
	metrics  *metrics.Pass
	proc     *process.Process
	started  time.Time
}

func newReporter(interval time.Duration, verbose bool, snapshot func() progress, logger *slog.Logger, m *metrics.Pass) *reporter {
	level := slog.LevelDebug
	if verbose {
		level = slog.LevelInfo
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Debug("memory sampling unavailable", "error", err)
		proc = nil
	}
	return &reporter{
		interval: interval,
		snapshot: snapshot,
		logger:   logger,
		level:    level,
		metrics:  m,
		proc:     proc,
		started:  time.Now(),
	}
}

// run reports every interval until done is closed, then reports once more.
func (r *reporter) run(done <-chan struct{}) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.report()
		case <-done:
			r.report()
			return nil
		}
	}
}

func (r *reporter) report() {
	p := r.snapshot()
	elapsed := time.Since(r.started)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.Processed) / elapsed.Seconds()
	}

	var rss uint64
	if r.proc != nil {
		if mem, err := r.proc.MemoryInfo(); err == nil {
			rss = mem.RSS
		}
	}

	r.metrics.LiveWorkers(p.Live)
	r.metrics.QueueDepth(p.QueueDepth)
	r.metrics.ResidentBytes(rss)

	r.logger.Log(context.Background(), r.level, "progress",
		"processed", p.Processed,
		"rate", int64(rate),
		"malformed", p.Malformed,
		"buffered", p.Buffered,
		"flushed", p.Flushed,
		"live_workers", p.Live,
		"queue_depth", p.QueueDepth,
		"cursor", p.Cursor,
		"rss_mb", rss>>20,
		"elapsed", elapsed.Round(time.Second),
	)
}
