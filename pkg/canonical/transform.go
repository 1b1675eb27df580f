package canonical

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
	"github.com/leapstack-labs/vizmigrate/pkg/dialects/dax"
	"github.com/leapstack-labs/vizmigrate/pkg/translate"
	"github.com/leapstack-labs/vizmigrate/pkg/workbook"
)

// DefaultFlagBelow is the confidence under which a translated measure is
// still emitted but counted as flagged for review.
const DefaultFlagBelow = 0.5

// Transformer turns a source-object model into a Schema.
type Transformer struct {
	translator *translate.Translator
	dialect    *dialect.Dialect
	workers    int
	flagBelow  float64
	logger     *slog.Logger
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithWorkers bounds the number of formulas and worksheets processed at
// once. Values below one mean runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(t *Transformer) { t.workers = n }
}

// WithDialect sets the translation target. The default is DAX.
func WithDialect(d *dialect.Dialect) Option {
	return func(t *Transformer) {
		if d != nil {
			t.dialect = d
		}
	}
}

// WithFlagBelow sets the low-confidence threshold.
func WithFlagBelow(v float64) Option {
	return func(t *Transformer) { t.flagBelow = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transformer) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTransformer creates a Transformer.
func NewTransformer(opts ...Option) *Transformer {
	t := &Transformer{
		dialect:   dax.DAX,
		flagBelow: DefaultFlagBelow,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.workers < 1 {
		t.workers = runtime.GOMAXPROCS(0)
	}
	t.translator = translate.New(t.dialect, translate.WithLogger(t.logger))
	return t
}

// Translator returns the formula translator the transformer uses.
func (t *Transformer) Translator() *translate.Translator {
	return t.translator
}

// Transform builds the canonical schema for wb. Individual fields and
// worksheets that cannot be mapped are recorded as unsupported features or
// warnings; the only error is cancellation of ctx.
func (t *Transformer) Transform(ctx context.Context, wb *workbook.Workbook) (*Schema, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &Schema{
		Name: wb.Name,
		Source: SourceInfo{
			File:        wb.Name,
			Format:      string(wb.Format),
			Version:     wb.Version,
			Fingerprint: wb.Fingerprint,
		},
		Dataset:     Dataset{Name: wb.Name},
		Visuals:     []VisualDefinition{},
		Pages:       []Page{},
		Unsupported: []UnsupportedFeatureRecord{},
		Warnings:    make([]Warning, 0, len(wb.Warnings)),
	}
	for _, w := range wb.Warnings {
		s.Warnings = append(s.Warnings, Warning{Kind: string(w.Kind), ID: w.ID, Reason: w.Reason})
	}

	m := newModel(wb)
	s.Dataset.Tables = m.tables
	if m.placeholder {
		s.Warnings = append(s.Warnings, Warning{
			Kind:   WarnPlaceholderTable,
			ID:     placeholderTable,
			Reason: "workbook has no table metadata",
		})
	}
	s.Dataset.Parameters = m.parameters()

	if err := t.translateFields(ctx, wb, m, s); err != nil {
		return nil, err
	}
	if err := t.mapVisuals(ctx, wb, m, s); err != nil {
		return nil, err
	}
	buildPages(wb, s)

	s.Summary.TablesCreated = len(s.Dataset.Tables)
	s.Summary.WorksheetsProcessed = len(wb.Worksheets)
	s.Summary.DashboardsProcessed = len(wb.Dashboards)
	s.Summary.VisualsMapped = len(s.Visuals)

	t.logger.Debug("transformed workbook",
		"name", s.Name,
		"tables", s.Summary.TablesCreated,
		"measures", len(s.Dataset.Measures),
		"unsupported", len(s.Unsupported),
		"visuals", s.Summary.VisualsMapped,
		"warnings", len(s.Warnings),
	)
	return s, nil
}

// parallel runs fn for every index in [0, n) on at most workers goroutines.
// Callers write into slot i so results keep source order.
func parallel(ctx context.Context, n, workers int, fn func(i int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// gctx is always done once Wait returns; check the caller's.
	return ctx.Err()
}
