package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/vizmigrate/internal/cli/output"
	intconfig "github.com/leapstack-labs/vizmigrate/internal/config"
	"github.com/leapstack-labs/vizmigrate/internal/pipeline"
	"github.com/leapstack-labs/vizmigrate/pkg/report"
)

// ErrMigrationFailed is returned when at least one file of a batch failed.
var ErrMigrationFailed = errors.New("migration failed")

// MigrateOptions holds options for the migrate command.
type MigrateOptions struct {
	Watch bool
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	opts := &MigrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate <path>...",
		Short: "Convert workbooks to the canonical schema",
		Long: `Convert Tableau workbooks (.twb or .twbx) into canonical schema documents.

Each path may be a workbook file or a directory, searched recursively.
Every workbook gets its own folder under the output directory holding the
canonical schema and its migration report; a batch summary is written to
migration_report.json at the output root.

A workbook that cannot be read is reported as failed without stopping the
rest of the batch. The command exits non-zero when any file failed.`,
		Example: `  # Migrate one workbook
  vizmigrate migrate Sales.twbx

  # Migrate a folder of workbooks as YAML
  vizmigrate migrate ./workbooks --format yaml -d out

  # Re-migrate whenever a workbook changes
  vizmigrate migrate ./workbooks --watch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, args, opts)
		},
	}

	cmd.Flags().StringP("output-dir", "d", intconfig.DefaultOutputDir, "Output directory")
	cmd.Flags().StringP("format", "f", intconfig.DefaultFormat, "Schema and report format (json|yaml)")
	cmd.Flags().IntP("workers", "w", 0, "Parallel workers (0 = number of CPUs)")
	cmd.Flags().Bool("save-intermediate", false, "Also write each workbook's source model")
	cmd.Flags().Float64("flag-below", intconfig.DefaultFlagBelow, "Flag measures translated below this confidence")
	cmd.Flags().Int64("max-entry-size", intconfig.DefaultMaxEntrySize, "Largest workbook entry read from a package, in bytes")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Watch inputs and re-migrate on change")
	cmd.Flags().Duration("debounce", intconfig.DefaultWatchDebounce, "Quiet period before a watch run")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string, opts *MigrateOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	files, err := pipeline.Discover(args)
	if err != nil {
		return err
	}
	if len(files) == 0 && !opts.Watch {
		return fmt.Errorf("no workbook files found in %v", args)
	}

	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	transformer, err := cmdCtx.NewTransformer()
	if err != nil {
		return err
	}

	store, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	pcfg := pipeline.Config{
		OutputDir:        cfg.OutputDir,
		Format:           format,
		Workers:          cfg.Workers,
		SaveIntermediate: cfg.SaveIntermediate,
		MaxEntrySize:     cfg.MaxEntrySize,
		Transformer:      transformer,
		Logger:           cmdCtx.Logger,
	}
	if store != nil {
		defer func() { _ = store.Close() }()
		pcfg.Store = store
	}
	p := pipeline.New(pcfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var failed bool
	if len(files) > 0 {
		res, err := p.Run(ctx, files)
		if err != nil {
			return err
		}
		if err := renderMigration(r, res); err != nil {
			return err
		}
		failed = res.Batch.Failed > 0
	}

	if opts.Watch {
		if r.EffectiveMode() != output.ModeJSON {
			r.Muted(fmt.Sprintf("Watching %d path(s) for changes, Ctrl+C to stop", len(args)))
		}
		return p.Watch(ctx, args, cfg.Watch.Debounce, func(_ []string, res *pipeline.Result, err error) {
			if err != nil {
				r.Error(err.Error())
				return
			}
			_ = renderMigration(r, res)
		})
	}

	if failed {
		return fmt.Errorf("%w: see %s", ErrMigrationFailed, filepath.Join(cfg.OutputDir, pipeline.ReportFile+format.Ext()))
	}
	return nil
}

func renderMigration(r *output.Renderer, res *pipeline.Result) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(res.Batch)
	case output.ModeMarkdown:
		migrationMarkdown(r, res)
	default:
		migrationText(r, res)
	}
	return nil
}

func migrationText(r *output.Renderer, res *pipeline.Result) {
	b := res.Batch
	r.Header(1, "migration summary")
	for _, m := range b.Migrations {
		if !m.Success {
			r.StatusLine(m.SourceFile, "failed", errorMessage(m))
			continue
		}
		r.StatusLine(m.SourceFile, "success", fileDetail(m))
	}
	r.Println("")

	msg := fmt.Sprintf("%d of %d workbooks migrated", b.Successful, b.TotalFiles)
	if b.Failed > 0 {
		r.Error(msg)
	} else {
		r.Success(msg)
	}
	r.Muted("Report: " + res.ReportPath)
	if res.RunID != "" {
		r.Muted("Run: " + res.RunID)
	}
}

func migrationMarkdown(r *output.Renderer, res *pipeline.Result) {
	b := res.Batch
	r.Header(1, "Migration Summary")
	r.KeyValue("Files", strconv.Itoa(b.TotalFiles))
	r.KeyValue("Successful", strconv.Itoa(b.Successful))
	r.KeyValue("Failed", strconv.Itoa(b.Failed))
	r.KeyValue("Report", res.ReportPath)
	if res.RunID != "" {
		r.KeyValue("Run", res.RunID)
	}
	r.Println("")

	rows := make([][]string, 0, len(b.Migrations))
	for _, m := range b.Migrations {
		status := "ok"
		if !m.Success {
			status = "failed: " + errorMessage(m)
		}
		rows = append(rows, []string{
			m.SourceFile,
			status,
			strconv.Itoa(m.Summary.VisualsMigrated),
			strconv.Itoa(m.Summary.MeasuresTranslated),
			strconv.Itoa(m.Summary.MeasuresFlagged),
		})
	}
	r.Table([]string{"File", "Status", "Visuals", "Measures", "Flagged"}, rows)
}

func fileDetail(m *report.Report) string {
	s := m.Summary
	return fmt.Sprintf("%d visuals, %d measures, %d flagged", s.VisualsMigrated, s.MeasuresTranslated, s.MeasuresFlagged)
}

func errorMessage(m *report.Report) string {
	if m.ErrorMessage == nil {
		return ""
	}
	return *m.ErrorMessage
}
