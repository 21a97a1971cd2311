package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/wikidump/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, BackendBadger, cfg.Backend)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.Equal(t, ingestion.DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, ingestion.DefaultPushThreshold, cfg.PushThreshold)
}

func TestNewConfig_Options(t *testing.T) {
	cfg := NewConfig(
		WithSource("dump.json.gz"),
		WithLanguage("de"),
		WithBackend(BackendSQLite, "w.sqlite"),
		WithWorkers(3),
	)
	assert.Equal(t, "dump.json.gz", cfg.Source)
	assert.Equal(t, "de", cfg.Language)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "w.sqlite", cfg.Database)
	assert.Equal(t, 3, cfg.Workers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"empty language", func(c *Config) { c.Language = " " }, "Language is required"},
		{"unknown backend", func(c *Config) { c.Backend = "postgres" }, "unknown backend"},
		{"empty database", func(c *Config) { c.Database = "" }, "Database is required"},
		{"no workers", func(c *Config) { c.Workers = 0 }, "Workers"},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, "BatchSize"},
		{"zero queue", func(c *Config) { c.QueueSize = 0 }, "QueueSize"},
		{"zero threshold", func(c *Config) { c.PushThreshold = 0 }, "PushThreshold"},
		{"negative skip", func(c *Config) { c.SkipLines = -1 }, "SkipLines"},
		{"zero line size", func(c *Config) { c.MaxLineSize = 0 }, "MaxLineSize"},
		{"zero report interval", func(c *Config) { c.ReportInterval = 0 }, "ReportInterval"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_Normalizes(t *testing.T) {
	cfg := NewConfig(WithLanguage(" EN "), WithBackend("SQLite", "x.db"))
	cfg.LogLevel = "DEBUG"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad(t *testing.T) {
	t.Setenv("WIKIDUMP_TEST_DIR", "/data")
	path := filepath.Join(t.TempDir(), "wikidump.yaml")
	content := `source: ${WIKIDUMP_TEST_DIR}/latest-all.json.bz2
language: fr
backend: sqlite
database: ${WIKIDUMP_TEST_DIR}/wikidata.sqlite
workers: 6
push_threshold: 5000
skip_lines: 120
resume: true
drain_backoff: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/data/latest-all.json.bz2", cfg.Source)
	assert.Equal(t, "fr", cfg.Language)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "/data/wikidata.sqlite", cfg.Database)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, 5000, cfg.PushThreshold)
	assert.Equal(t, int64(120), cfg.SkipLines)
	assert.True(t, cfg.Resume)
	assert.Equal(t, 2*time.Second, cfg.DrainBackoff)
	// Untouched keys keep their defaults.
	assert.Equal(t, ingestion.DefaultBatchSize, cfg.BatchSize)
}

func TestLoad_EmptyPathAndEmptyFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workerz: 3\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := NewConfig(WithSource("dump.json"), WithWorkers(2))
	cfg.ReportInterval = 5 * time.Second
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPipelineOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.json")
	require.NoError(t, os.WriteFile(path, []byte("[\n]\n"), 0o644))

	cfg := NewConfig(WithSource(path), WithWorkers(2))
	p, err := ingestion.NewPipeline(cfg.PipelineOptions()...)
	require.NoError(t, err)
	defer p.Release()
	assert.Equal(t, path, p.Source())
}
