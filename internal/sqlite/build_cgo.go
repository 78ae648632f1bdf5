//go:build sqlite_cgo

package sqlite

// Built with -tags sqlite_cgo (CGO_ENABLED=1) to use the C SQLite library.

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverName = "sqlite3"
	BuildMode  = "cgo"
)
