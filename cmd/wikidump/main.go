// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/wikidump"
	"github.com/poiesic/wikidump/config"
	"github.com/poiesic/wikidump/extract"
	"github.com/poiesic/wikidump/ingestion"
	"github.com/poiesic/wikidump/reconcile"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "wikidump",
		Usage: "Load a Wikidata JSON dump into a local identifier and entity store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"WIKIDUMP_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Storage backend (badger, sqlite)",
				Value: config.BackendBadger,
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the database (directory for badger, file for sqlite)",
				Value:   "wikidump.db",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address, e.g. :9090",
			},
		},
		Before: setupConfig,
		Commands: []*cli.Command{
			{
				Name:   "ids",
				Usage:  "Index corpus-linked records and the identifiers they reference",
				Action: passCommand(extract.PassIdentifiers),
				Flags:  passFlags(),
			},
			{
				Name:   "entities",
				Usage:  "Store normalized records for every indexed identifier",
				Action: passCommand(extract.PassEntities),
				Flags:  passFlags(),
			},
			{
				Name:   "labels",
				Usage:  "Store labels and descriptions of every record in all languages",
				Action: passCommand(extract.PassLabels),
				Flags:  passFlags(),
			},
			{
				Name:   "reconcile",
				Usage:  "List identifiers referenced by stored entities but never fetched",
				Action: reconcileCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write missing identifiers to this file instead of stdout",
					},
					&cli.IntFlag{
						Name:  "scan-batch-size",
						Usage: "Number of entities to scan per batch",
						Value: reconcile.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "check-size",
						Usage: "Number of referenced identifiers looked up at once",
						Value: 10000,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for each store call",
						Value: 3,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show stored record counts and pass checkpoints",
				Action: statsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Dump archive whose checkpoints are shown",
						EnvVars: []string{"FILEPATH"},
					},
				},
			},
		},
	}
}

func passFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Path to the dump archive (.json, .gz, .bz2, .zst, .lz4)",
			EnvVars: []string{"FILEPATH"},
		},
		&cli.StringFlag{
			Name:    "language",
			Usage:   "Target language code",
			Value:   "en",
			EnvVars: []string{"LANGUAGE"},
		},
		&cli.IntFlag{
			Name:    "batch-size",
			Usage:   "Number of lines handed to a worker at a time",
			Value:   ingestion.DefaultBatchSize,
			EnvVars: []string{"BATCH_SIZE"},
		},
		&cli.IntFlag{
			Name:    "queue-size",
			Usage:   "Number of batches waiting for a worker",
			Value:   ingestion.DefaultQueueSize,
			EnvVars: []string{"QUEUE_SIZE"},
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Number of parsing workers (default: half the CPUs)",
			EnvVars: []string{"NUM_PROCESSES"},
		},
		&cli.Int64Flag{
			Name:    "skip-lines",
			Usage:   "Number of raw lines to skip",
			EnvVars: []string{"SKIPLINES"},
		},
		&cli.IntFlag{
			Name:  "push-threshold",
			Usage: "Buffered item count above which a flush is attempted",
			Value: ingestion.DefaultPushThreshold,
		},
		&cli.BoolFlag{
			Name:  "resume",
			Usage: "Resume from the stored checkpoint of this pass",
		},
		&cli.Int64Flag{
			Name:  "max-iterations",
			Usage: "Stop after this many lines (0 for no limit)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Log progress reports at info level",
		},
	}
}

// setupConfig loads the configuration file, applies global flags and
// configures the default logger.
func setupConfig(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	overrideString(c, "log-level", &cfg.LogLevel)
	overrideString(c, "backend", &cfg.Backend)
	overrideString(c, "db", &cfg.Database)
	overrideString(c, "metrics-addr", &cfg.MetricsAddr)
	if err := setupLogger(cfg.LogLevel); err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func setupLogger(levelStr string) error {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

// commandConfig returns the configuration with command flags applied.
func commandConfig(c *cli.Context) (*config.Config, error) {
	cfg, ok := c.App.Metadata[configKey].(*config.Config)
	if !ok {
		return nil, errors.New("configuration not loaded")
	}
	overrideString(c, "file", &cfg.Source)
	overrideString(c, "language", &cfg.Language)
	overrideInt(c, "batch-size", &cfg.BatchSize)
	overrideInt(c, "queue-size", &cfg.QueueSize)
	overrideInt(c, "workers", &cfg.Workers)
	overrideInt(c, "push-threshold", &cfg.PushThreshold)
	if c.IsSet("skip-lines") {
		cfg.SkipLines = c.Int64("skip-lines")
	}
	if c.IsSet("resume") {
		cfg.Resume = c.Bool("resume")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

func overrideInt(c *cli.Context, name string, dst *int) {
	if c.IsSet(name) {
		*dst = c.Int(name)
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (*wikidump.Database, error) {
	db, err := wikidump.NewDatabase(ctx, cfg.Backend, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// signalContext is cancelled on SIGINT or SIGTERM. Cancelling a pass stops
// dispatch and flushes everything already produced.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
}

func passCommand(pass string) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := commandConfig(c)
		if err != nil {
			return err
		}
		if cfg.Source == "" {
			return errors.New("dump file is required (--file or FILEPATH)")
		}

		ctx, stop := signalContext(c)
		defer stop()

		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		collector, shutdown, err := startMetrics(cfg.MetricsAddr)
		if err != nil {
			return err
		}
		defer shutdown()

		opts := append(cfg.PipelineOptions(), ingestion.WithMetrics(collector))
		p, err := db.NewPipeline(pass, opts...)
		if err != nil {
			return fmt.Errorf("failed to create pipeline: %w", err)
		}
		defer p.Release()

		fmt.Fprintf(os.Stderr, "Dump: %s\n", cfg.Source)
		fmt.Fprintf(os.Stderr, "Database: %s (%s)\n", cfg.Database, cfg.Backend)
		fmt.Fprintf(os.Stderr, "Language: %s\n", cfg.Language)
		fmt.Fprintln(os.Stderr)

		runOpts := ingestion.RunOptions{
			MaxIterations: c.Int64("max-iterations"),
			Verbose:       c.Bool("verbose"),
		}
		var stats *ingestion.Stats
		switch pass {
		case extract.PassIdentifiers:
			stats, err = db.RunIdentifierPass(ctx, p, cfg.Language, runOpts)
		case extract.PassLabels:
			stats, err = db.RunLabelPass(ctx, p, runOpts)
		default:
			stats, err = db.RunEntityPass(ctx, p, cfg.Language, runOpts)
		}
		if stats != nil {
			printStats(os.Stderr, pass, stats)
		}
		if err != nil {
			return fmt.Errorf("%s pass failed: %w", pass, err)
		}
		return nil
	}
}

func printStats(w io.Writer, pass string, stats *ingestion.Stats) {
	fmt.Fprintf(w, "Pass %q finished in %v\n", pass, stats.Duration.Round(time.Second))
	fmt.Fprintf(w, "  lines:    %d dispatched, %d malformed\n", stats.Dispatched, stats.Malformed)
	fmt.Fprintf(w, "  items:    %d produced, %d flushed in %d flushes (%d failed)\n",
		stats.Produced, stats.Flushed, stats.Flushes, stats.FailedFlushes)
	fmt.Fprintf(w, "  workers:  %d live, %d dead\n", stats.LiveWorkers, stats.DeadWorkers)
	fmt.Fprintf(w, "  resume:   --skip-lines %d\n", stats.Cursor)
}

func reconcileCommand(c *cli.Context) error {
	cfg, err := commandConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(c)
	defer stop()

	reconcileConfig := reconcile.DefaultConfig()
	reconcileConfig.BatchSize = c.Int("scan-batch-size")
	reconcileConfig.CheckSize = c.Int("check-size")
	reconcileConfig.MaxRetries = c.Int("max-retries")
	if reconcileConfig.BatchSize <= 0 {
		return fmt.Errorf("scan-batch-size must be greater than 0")
	}
	if reconcileConfig.CheckSize <= 0 {
		return fmt.Errorf("check-size must be greater than 0")
	}
	if reconcileConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	r, err := db.NewReconciler(reconcileConfig, os.Stderr)
	if err != nil {
		return err
	}
	result, err := r.Run(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	out := c.App.Writer
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	for _, id := range result.Missing {
		fmt.Fprintln(out, id)
	}
	fmt.Fprintf(os.Stderr, "Scanned %d entities, %d missing identifiers\n", result.Scanned, len(result.Missing))
	return nil
}

func statsCommand(c *cli.Context) error {
	cfg, err := commandConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(c.Context, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := db.Counts(c.Context)
	if err != nil {
		return err
	}
	out := c.App.Writer
	fmt.Fprintf(out, "backend:     %s\n", db.Backend())
	fmt.Fprintf(out, "identifiers: %d\n", counts.Identifiers)
	fmt.Fprintf(out, "entities:    %d\n", counts.Entities)
	fmt.Fprintf(out, "labels:      %d\n", counts.Labels)

	if cfg.Source == "" {
		return nil
	}
	for _, pass := range []string{extract.PassIdentifiers, extract.PassEntities, extract.PassLabels} {
		p, err := db.NewPipeline(pass, ingestion.WithSource(cfg.Source), ingestion.WithResume(true))
		if err != nil {
			return err
		}
		cursor, err := p.ResumeCursor(c.Context)
		p.Release()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s checkpoint: %d lines\n", pass, cursor)
	}
	return nil
}
