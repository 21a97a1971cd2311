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

package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/poiesic/wikidump/ingestion"
)

// Supported storage backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Config holds the settings of a wikidump run.
type Config struct {
	// Source is the path of the dump archive.
	// Example: "latest-all.json.bz2"
	Source string `yaml:"source"`

	// Language selects labels, descriptions, aliases and the sitelink
	// ("<language>wiki") that marks a record as corpus-linked.
	// Default: "en"
	Language string `yaml:"language"`

	// Backend is the storage engine, "badger" or "sqlite".
	Backend string `yaml:"backend"`

	// Database is the path of the store. A directory for badger, a file for sqlite.
	Database string `yaml:"database"`

	// Workers is the number of parsing workers.
	// Default: half the CPUs, at least 1
	Workers int `yaml:"workers"`

	// BatchSize is the number of lines handed to a worker at a time.
	BatchSize int `yaml:"batch_size"`

	// QueueSize bounds the number of batches waiting for a worker.
	QueueSize int `yaml:"queue_size"`

	// PushThreshold is the buffered item count above which a flush is attempted.
	PushThreshold int `yaml:"push_threshold"`

	// SkipLines is the number of raw lines skipped before processing.
	SkipLines int64 `yaml:"skip_lines"`

	// Resume starts from the stored checkpoint when it is ahead of SkipLines.
	Resume bool `yaml:"resume"`

	// MaxLineSize is the longest line in bytes parsed as a record.
	MaxLineSize int `yaml:"max_line_size"`

	// DrainBackoff is the pause between retries of the final flush.
	DrainBackoff time.Duration `yaml:"drain_backoff"`

	// ReportInterval is how often progress is logged.
	ReportInterval time.Duration `yaml:"report_interval"`

	// MetricsAddr, when set, serves Prometheus metrics on this address.
	// Example: ":9090"
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithSource sets the dump archive path.
func WithSource(path string) ConfigOption {
	return func(c *Config) {
		c.Source = path
	}
}

// WithLanguage sets the target language.
func WithLanguage(language string) ConfigOption {
	return func(c *Config) {
		c.Language = language
	}
}

// WithBackend sets the storage engine and its path.
func WithBackend(backend, database string) ConfigOption {
	return func(c *Config) {
		c.Backend = backend
		c.Database = database
	}
}

// WithWorkers sets the number of parsing workers.
func WithWorkers(n int) ConfigOption {
	return func(c *Config) {
		c.Workers = n
	}
}

// DefaultConfig returns a Config with the pipeline defaults and a badger
// store in the working directory.
func DefaultConfig() *Config {
	return &Config{
		Language:       "en",
		Backend:        BackendBadger,
		Database:       "wikidump.db",
		Workers:        max(runtime.NumCPU()/2, 1),
		BatchSize:      ingestion.DefaultBatchSize,
		QueueSize:      ingestion.DefaultQueueSize,
		PushThreshold:  ingestion.DefaultPushThreshold,
		MaxLineSize:    ingestion.DefaultMaxLineSize,
		DrainBackoff:   ingestion.DefaultDrainBackoff,
		ReportInterval: ingestion.DefaultReportInterval,
		LogLevel:       "info",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//		WithSource("latest-all.json.gz"),
//		WithBackend(BackendSQLite, "wikidata.sqlite"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize puts names into canonical form.
func (c *Config) Normalize() {
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Source = strings.TrimSpace(c.Source)
}

// Validate checks that the configuration is complete.
// It normalizes the configuration first. The source is not required here
// because only the dump passes read it.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Language == "" {
		return errors.New("config: Language is required")
	}
	switch c.Backend {
	case BackendBadger, BackendSQLite:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.Database == "" {
		return errors.New("config: Database is required")
	}
	if c.Workers < 1 {
		return errors.New("config: Workers must be at least 1")
	}
	if c.BatchSize < 1 {
		return errors.New("config: BatchSize must be at least 1")
	}
	if c.QueueSize < 1 {
		return errors.New("config: QueueSize must be at least 1")
	}
	if c.PushThreshold < 1 {
		return errors.New("config: PushThreshold must be at least 1")
	}
	if c.SkipLines < 0 {
		return errors.New("config: SkipLines cannot be negative")
	}
	if c.MaxLineSize < 1 {
		return errors.New("config: MaxLineSize must be at least 1")
	}
	if c.DrainBackoff < 0 || c.ReportInterval <= 0 {
		return errors.New("config: DrainBackoff and ReportInterval must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

// PipelineOptions converts the configuration into pipeline options.
func (c *Config) PipelineOptions() []ingestion.Option {
	return []ingestion.Option{
		ingestion.WithSource(c.Source),
		ingestion.WithPoolSize(c.Workers),
		ingestion.WithBatchSize(c.BatchSize),
		ingestion.WithQueueSize(c.QueueSize),
		ingestion.WithPushThreshold(c.PushThreshold),
		ingestion.WithSkipLines(c.SkipLines),
		ingestion.WithMaxLineSize(c.MaxLineSize),
		ingestion.WithDrainBackoff(c.DrainBackoff),
		ingestion.WithReportInterval(c.ReportInterval),
		ingestion.WithResume(c.Resume),
	}
}
