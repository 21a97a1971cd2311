package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/extract"
	"github.com/poiesic/wikidump/storage"
)

// Config holds configuration for a reconciliation run.
type Config struct {
	// BatchSize is the number of entities fetched per scan
	BatchSize int

	// CheckSize is how many referenced identifiers are collected before
	// they are looked up in the identifier index
	CheckSize int

	// ReportInterval is how often to report progress (number of entities)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each store call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		CheckSize:      10000,
		ReportInterval: 10000,
		MaxRetries:     3,
		RetryDelay:     time.Second,
	}
}

// Result summarises a reconciliation run.
type Result struct {
	Scanned   int      // entities read
	Checked   int      // distinct referenced identifiers looked up
	Malformed int      // entities whose stored claims could not be decoded
	Missing   []string // referenced identifiers without a fetched record, sorted
	Duration  time.Duration
}

// Reconciler scans stored entities for references to unfetched identifiers.
type Reconciler struct {
	entities    storage.EntityRepository
	identifiers storage.IdentifierRepository
	config      *Config
	progress    io.Writer
	logger      *slog.Logger
}

// NewReconciler creates a new reconciler.
// progress: where to write progress output (typically os.Stderr), may be nil
func NewReconciler(entities storage.EntityRepository, identifiers storage.IdentifierRepository, config *Config, progress io.Writer, logger *slog.Logger) (*Reconciler, error) {
	if entities == nil || identifiers == nil {
		return nil, ErrRepositoryRequired
	}
	cfg := DefaultConfig()
	if config != nil {
		c := *config
		cfg = &c
	}
	if cfg.CheckSize <= 0 {
		cfg.CheckSize = DefaultConfig().CheckSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if progress == nil {
		progress = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		entities:    entities,
		identifiers: identifiers,
		config:      cfg,
		progress:    progress,
		logger:      logger.With("component", "reconciler"),
	}, nil
}

// Run scans every stored entity and returns the identifiers it references
// that are unknown to the index or not yet fetched.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	total, err := r.entities.CountEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}
	result := &Result{}
	if total == 0 {
		fmt.Fprintf(r.progress, "No entities found in database (0 entities)\n")
		result.Duration = time.Since(started)
		return result, nil
	}

	fmt.Fprintf(r.progress, "Reconciling %d entities (batch size: %d)\n", total, r.config.BatchSize)
	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	iter := NewEntityIterator(r.entities, r.config.BatchSize)
	iter.maxRetries = r.config.MaxRetries
	iter.retryDelay = r.config.RetryDelay

	missing := make(map[string]struct{})
	checked := make(map[string]struct{})
	pending := make([]string, 0, r.config.CheckSize)

	check := func() error {
		if len(pending) == 0 {
			return nil
		}
		var found []string
		err := RetryWithBackoff(ctx, func() error {
			var err error
			found, err = r.identifiers.Missing(ctx, pending)
			return err
		}, r.config.MaxRetries, r.config.RetryDelay)
		if err != nil {
			return fmt.Errorf("failed to look up identifiers: %w", err)
		}
		for _, id := range found {
			missing[id] = struct{}{}
		}
		pending = pending[:0]
		return nil
	}

	err = iter.ForEach(ctx, func(page []*core.EntityRecord) error {
		for _, e := range page {
			ids, err := extract.ReferencedIDs(e.Claims)
			if err != nil {
				result.Malformed++
				r.logger.Warn("stored claims unreadable", "id", e.ID, "error", err)
				continue
			}
			for _, id := range ids {
				if _, seen := checked[id]; seen {
					continue
				}
				checked[id] = struct{}{}
				pending = append(pending, id)
			}
		}
		if len(pending) >= r.config.CheckSize {
			if err := check(); err != nil {
				return err
			}
		}
		result.Scanned += len(page)
		tracker.Increment(len(page), len(missing))
		return nil
	})
	if err == nil {
		err = check()
	}
	if err != nil {
		return nil, err
	}
	tracker.Finish(len(missing))

	result.Checked = len(checked)
	result.Missing = make([]string, 0, len(missing))
	for id := range missing {
		result.Missing = append(result.Missing, id)
	}
	slices.Sort(result.Missing)
	result.Duration = time.Since(started)

	r.logger.Info("reconciliation finished",
		"scanned", result.Scanned,
		"checked", result.Checked,
		"missing", len(result.Missing),
		"malformed", result.Malformed,
		"duration", result.Duration.Round(time.Millisecond),
	)
	return result, nil
}
