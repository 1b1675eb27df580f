// Package config loads vizmigrate CLI configuration.
//
// Values are layered, lowest to highest: built-in defaults, the project's
// vizmigrate.yaml, VIZMIGRATE_* environment variables, then explicitly set
// command-line flags.
package config

import (
	"time"

	intconfig "github.com/leapstack-labs/vizmigrate/internal/config"
	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
)

// Config is the resolved CLI configuration.
type Config struct {
	OutputDir        string           `koanf:"output_dir"`
	StatePath        string           `koanf:"state_path"`
	NoHistory        bool             `koanf:"no_history"`
	Workers          int              `koanf:"workers"`
	Format           string           `koanf:"format"`
	OutputFormat     string           `koanf:"output"`
	Verbose          bool             `koanf:"verbose"`
	SaveIntermediate bool             `koanf:"save_intermediate"`
	MaxEntrySize     int64            `koanf:"max_entry_size"`
	FlagBelow        float64          `koanf:"flag_below"`
	Dialect          string           `koanf:"dialect"`
	RulesFile        string           `koanf:"rules_file"`
	Rules            []map[string]any `koanf:"rules"`
	Watch            WatchConfig      `koanf:"watch"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
}

// WatchConfig configures migrate --watch.
type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
}

// BuildDialect resolves the configured translation target with any extra
// rules applied.
func (c *Config) BuildDialect() (*dialect.Dialect, error) {
	return intconfig.BuildDialect(c.Dialect, c.RulesFile, c.Rules)
}

// HistoryEnabled reports whether runs should be recorded.
func (c *Config) HistoryEnabled() bool {
	return !c.NoHistory && c.StatePath != ""
}
