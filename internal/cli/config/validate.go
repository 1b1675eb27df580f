package config

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/vizmigrate/internal/cli/output"
	"github.com/leapstack-labs/vizmigrate/pkg/report"
)

// Validate checks value ranges and enumerations. Dialect names and rules
// are checked when the dialect is built.
func (c *Config) Validate() error {
	var errs []error
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		errs = append(errs, fmt.Errorf("format: %w", err))
	}
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		errs = append(errs, fmt.Errorf("output: %w", err))
	}
	if c.FlagBelow < 0 || c.FlagBelow > 1 {
		errs = append(errs, fmt.Errorf("flag_below must be within [0, 1], got %g", c.FlagBelow))
	}
	if c.MaxEntrySize <= 0 {
		errs = append(errs, fmt.Errorf("max_entry_size must be positive, got %d", c.MaxEntrySize))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce))
	}
	if c.Dialect == "" {
		errs = append(errs, errors.New("dialect is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
