// Package config holds the run configuration shared by the CLI commands.
//
// Values come from DefaultConfig, then an optional YAML file (Load), then
// command line flags and environment variables applied by the caller.
//
//	source: /data/latest-all.json.bz2
//	language: en
//	backend: sqlite
//	database: /data/wikidata.sqlite
//	workers: 8
//	push_threshold: 5000
//	drain_backoff: 2s
package config
