//go:build !cgo_sqlite

package sqlite

// Compiled by default. Uses the pure Go SQLite implementation, so no C
// compiler is required.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
