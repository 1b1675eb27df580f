// Package pipeline runs batch migrations. Each input workbook is loaded,
// transformed to the canonical schema and written to its own output folder
// with a migration report; a batch summary lands at the output root.
//
// A file that fails to load or transform yields a failed report and never
// stops the rest of the batch.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/vizmigrate/internal/state"
	"github.com/leapstack-labs/vizmigrate/pkg/canonical"
	"github.com/leapstack-labs/vizmigrate/pkg/report"
	"github.com/leapstack-labs/vizmigrate/pkg/workbook"
)

// Output file names.
const (
	ReportFile      = "migration_report"
	SchemaSuffix    = ".canonical"
	IntermediateDir = "intermediate"
)

// Config holds pipeline configuration.
type Config struct {
	// OutputDir is the root of all output folders.
	OutputDir string
	// Format is the encoding of schema and report files.
	Format report.Format
	// Workers bounds how many files migrate at once. Defaults to GOMAXPROCS.
	Workers int
	// SaveIntermediate also writes the source-object model of each workbook
	// under OutputDir/intermediate.
	SaveIntermediate bool
	// MaxEntrySize caps the size of the markup entry read from an archive.
	MaxEntrySize int64
	// Transformer converts workbooks. Defaults to canonical.NewTransformer().
	Transformer *canonical.Transformer
	// Store records run history (optional).
	Store state.Store
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
	// Now is the clock used for report timestamps (optional).
	Now func() time.Time
}

// Pipeline migrates batches of workbooks.
type Pipeline struct {
	outputDir        string
	format           report.Format
	workers          int
	saveIntermediate bool
	maxEntrySize     int64
	transformer      *canonical.Transformer
	store            state.Store
	logger           *slog.Logger
	now              func() time.Time
}

// New creates a pipeline from cfg.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		outputDir:        cfg.OutputDir,
		format:           cfg.Format,
		workers:          cfg.Workers,
		saveIntermediate: cfg.SaveIntermediate,
		maxEntrySize:     cfg.MaxEntrySize,
		transformer:      cfg.Transformer,
		store:            cfg.Store,
		logger:           cfg.Logger,
		now:              cfg.Now,
	}
	if p.format == "" {
		p.format = report.FormatJSON
	}
	if p.workers < 1 {
		p.workers = runtime.GOMAXPROCS(0)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.transformer == nil {
		p.transformer = canonical.NewTransformer(canonical.WithLogger(p.logger))
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Result is the outcome of one batch run.
type Result struct {
	RunID      string // empty without a store
	Batch      *report.Batch
	ReportPath string
	Schemas    []*canonical.Schema // nil entries for failed files
}

// outcome is the migration of one file.
type outcome struct {
	report   *report.Report
	schema   *canonical.Schema
	duration time.Duration
}

// Run migrates files in parallel and writes the batch summary. Reports
// keep the order of files. Per-file failures are reported, not returned;
// Run returns an error only for output failures or cancellation.
func (p *Pipeline) Run(ctx context.Context, files []string) (*Result, error) {
	if err := os.MkdirAll(p.outputDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var run *state.Run
	if p.store != nil {
		var err error
		if run, err = p.store.CreateRun(ctx, len(files)); err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
	}

	p.logger.Info("starting migration", "files", len(files), "workers", p.workers)

	folders := outputFolders(files)
	outcomes := make([]outcome, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = p.migrate(gctx, file, filepath.Join(p.outputDir, folders[i]))
			if run != nil {
				if err := p.store.RecordFile(gctx, fileResult(run.ID, outcomes[i])); err != nil {
					p.logger.Warn("failed to record file result", "file", file, "error", err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		p.completeRun(ctx, run, state.RunStatusCancelled, err.Error())
		return nil, err
	}

	res := &Result{Schemas: make([]*canonical.Schema, len(files))}
	reports := make([]*report.Report, len(files))
	for i, o := range outcomes {
		reports[i] = o.report
		res.Schemas[i] = o.schema
	}
	res.Batch = report.NewBatch(reports, p.now().UTC())
	res.ReportPath = filepath.Join(p.outputDir, ReportFile+p.format.Ext())

	if err := writeDoc(res.ReportPath, res.Batch, p.format); err != nil {
		p.completeRun(ctx, run, state.RunStatusFailed, err.Error())
		return nil, fmt.Errorf("failed to write batch report: %w", err)
	}

	if run != nil {
		res.RunID = run.ID
		p.completeRun(ctx, run, state.RunStatusCompleted, "")
	}

	p.logger.Info("migration complete",
		"total", res.Batch.TotalFiles,
		"successful", res.Batch.Successful,
		"failed", res.Batch.Failed)
	return res, nil
}

func (p *Pipeline) completeRun(ctx context.Context, run *state.Run, status state.RunStatus, msg string) {
	if run == nil {
		return
	}
	if err := p.store.CompleteRun(context.WithoutCancel(ctx), run.ID, status, msg); err != nil {
		p.logger.Warn("failed to complete run", "run_id", run.ID, "error", err)
	}
}

// migrate loads, transforms and writes one file. Every error ends up in
// the report.
func (p *Pipeline) migrate(ctx context.Context, path, folder string) outcome {
	start := p.now()
	o := outcome{}

	schema, err := p.migrateFile(ctx, path, folder)
	if err != nil {
		p.logger.Warn("migration failed", "file", path, "error", err)
		o.report = report.Failed(path, folder, err)
	} else {
		o.schema = schema
		o.report = report.FromSchema(path, folder, schema)
		err = writeDoc(filepath.Join(folder, ReportFile+p.format.Ext()), o.report, p.format)
		if err != nil {
			o.report = report.Failed(path, folder, err)
			o.schema = nil
		}
	}
	o.duration = p.now().Sub(start)
	return o
}

func (p *Pipeline) migrateFile(ctx context.Context, path, folder string) (*canonical.Schema, error) {
	wb, err := workbook.LoadFile(path, workbook.LoadOptions{
		MaxEntrySize: p.maxEntrySize,
		Logger:       p.logger,
	})
	if err != nil {
		return nil, err
	}

	schema, err := p.transformer.Transform(ctx, wb)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	schema.Source.File = path

	if err := os.MkdirAll(folder, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}
	name := filepath.Base(folder)
	if err := writeDoc(filepath.Join(folder, name+SchemaSuffix+p.format.Ext()), schema, p.format); err != nil {
		return nil, err
	}

	if p.saveIntermediate {
		dir := filepath.Join(p.outputDir, IntermediateDir)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create intermediate directory: %w", err)
		}
		if err := writeDoc(filepath.Join(dir, name+"_source"+p.format.Ext()), wb, p.format); err != nil {
			return nil, err
		}
	}
	return schema, nil
}

// outputFolders names one folder per file after its workbook name, adding
// _2, _3 when two inputs share a name.
func outputFolders(files []string) []string {
	used := make(map[string]int, len(files))
	folders := make([]string, len(files))
	for i, f := range files {
		base := canonical.Sanitize(workbook.WorkbookName(f))
		key := strings.ToLower(base)
		used[key]++
		name := base
		if n := used[key]; n > 1 {
			name = base + "_" + strconv.Itoa(n)
		}
		folders[i] = name
	}
	return folders
}

func fileResult(runID string, o outcome) *state.FileResult {
	r := &state.FileResult{
		RunID:      runID,
		SourceFile: o.report.SourceFile,
		Success:    o.report.Success,
		Duration:   o.duration,
	}
	if o.report.ErrorMessage != nil {
		r.Error = *o.report.ErrorMessage
	}
	if o.schema != nil {
		r.Fingerprint = o.schema.Source.Fingerprint
		r.MeasuresTranslated = o.report.Summary.MeasuresTranslated
		r.MeasuresFlagged = o.report.Summary.MeasuresFlagged
		r.VisualsMapped = o.report.Summary.VisualsMigrated
		r.Unsupported = len(o.schema.Unsupported)
	}
	return r
}

func writeDoc(path string, v any, f report.Format) error {
	data, err := report.Marshal(v, f)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
