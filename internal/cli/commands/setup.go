package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/vizmigrate/internal/cli/config"
	"github.com/leapstack-labs/vizmigrate/internal/cli/output"
	intconfig "github.com/leapstack-labs/vizmigrate/internal/config"
	"github.com/leapstack-labs/vizmigrate/internal/state"
	"github.com/leapstack-labs/vizmigrate/pkg/canonical"
	"github.com/leapstack-labs/vizmigrate/pkg/translate"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := getConfig(ctx)
	logger := config.GetLogger(ctx)
	r, ok := output.FromContext(ctx)
	if !ok {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or defaults when commands
// run without the root command's pre-run hook.
func getConfig(ctx context.Context) *config.Config {
	if cfg := config.FromContext(ctx); cfg != nil {
		return cfg
	}
	return &config.Config{
		OutputDir:    intconfig.DefaultOutputDir,
		StatePath:    intconfig.DefaultStateFile,
		Format:       intconfig.DefaultFormat,
		OutputFormat: intconfig.DefaultOutput,
		MaxEntrySize: intconfig.DefaultMaxEntrySize,
		FlagBelow:    intconfig.DefaultFlagBelow,
		Dialect:      intconfig.DefaultDialect,
		Watch:        config.WatchConfig{Debounce: intconfig.DefaultWatchDebounce},
	}
}

// OpenStore opens the run history database. It returns nil when history is
// disabled.
func (c *CommandContext) OpenStore() (*state.SQLiteStore, error) {
	if !c.Cfg.HistoryEnabled() {
		return nil, nil
	}
	if err := ensureStateDir(c.Cfg.StatePath); err != nil {
		return nil, err
	}
	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return store, nil
}

// NewTransformer builds a transformer for the configured dialect.
func (c *CommandContext) NewTransformer() (*canonical.Transformer, error) {
	d, err := c.Cfg.BuildDialect()
	if err != nil {
		return nil, err
	}
	return canonical.NewTransformer(
		canonical.WithDialect(d),
		canonical.WithWorkers(c.Cfg.Workers),
		canonical.WithFlagBelow(c.Cfg.FlagBelow),
		canonical.WithLogger(c.Logger),
	), nil
}

// NewTranslator builds a translator for the configured dialect.
func (c *CommandContext) NewTranslator() (*translate.Translator, error) {
	d, err := c.Cfg.BuildDialect()
	if err != nil {
		return nil, err
	}
	return translate.New(d, translate.WithLogger(c.Logger)), nil
}

func ensureStateDir(statePath string) error {
	if statePath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(statePath)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}
