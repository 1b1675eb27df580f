// Package config holds the defaults and helpers shared by the CLI and the
// migration pipeline, independent of how configuration is loaded.
package config

import (
	"runtime"
	"time"
)

// Default configuration values.
const (
	DefaultOutputDir     = "vizmigrate-out"
	DefaultStateFile     = ".vizmigrate/state.db"
	DefaultFormat        = "json"
	DefaultOutput        = "auto" // TTY=text, otherwise markdown
	DefaultDialect       = "dax"
	DefaultFlagBelow     = 0.5
	DefaultMaxEntrySize  = 256 << 20
	DefaultWatchDebounce = 500 * time.Millisecond
	DefaultHistoryLimit  = 20
)

// DefaultWorkers is the worker count used when none is configured.
func DefaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}
