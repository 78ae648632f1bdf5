//go:build !sqlite_cgo

package sqlite

// Default build: pure Go SQLite, no C toolchain needed.

import (
	_ "modernc.org/sqlite"
)

const (
	DriverName = "sqlite"
	BuildMode  = "purego"
)
