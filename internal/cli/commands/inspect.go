package commands

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/vizmigrate/internal/cli/output"
	"github.com/leapstack-labs/vizmigrate/pkg/translate"
	"github.com/leapstack-labs/vizmigrate/pkg/workbook"
)

// InspectOptions holds options for the inspect command.
type InspectOptions struct {
	Fields bool // List calculated fields with their translation verdict
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	opts := &InspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect <workbook>",
		Short: "Summarize a workbook without migrating it",
		Long: `Read a workbook and summarize its source model: datasources and tables,
calculated fields, parameters, worksheets and dashboards, plus any warnings
raised while building the model.

With run history enabled, inspect also reports whether the workbook changed
since it was last migrated successfully.`,
		Example: `  # Summarize a packaged workbook
  vizmigrate inspect Sales.twbx

  # Include every calculated field and how it translates
  vizmigrate inspect Sales.twbx --fields`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Fields, "fields", false, "List calculated fields and their translation")

	return cmd
}

// inspection is the JSON shape of an inspected workbook.
type inspection struct {
	Name             string           `json:"name"`
	File             string           `json:"file"`
	Format           string           `json:"format"`
	Version          string           `json:"version,omitempty"`
	Fingerprint      string           `json:"fingerprint"`
	Changed          *bool            `json:"changed_since_last_run,omitempty"`
	Datasources      []datasourceInfo `json:"datasources"`
	CalculatedFields int              `json:"calculated_fields"`
	Parameters       int              `json:"parameters"`
	Worksheets       []string         `json:"worksheets"`
	Dashboards       []string         `json:"dashboards"`
	Warnings         []string         `json:"warnings,omitempty"`
	Fields           []translation    `json:"fields,omitempty"`
	FieldLevels      [][]string       `json:"field_levels,omitempty"`
}

type datasourceInfo struct {
	ID         string `json:"id"`
	Caption    string `json:"caption,omitempty"`
	Connection string `json:"connection,omitempty"`
	Tables     int    `json:"tables"`
	Columns    int    `json:"columns"`
}

func runInspect(cmd *cobra.Command, path string, opts *InspectOptions) error {
	cmdCtx := NewCommandContext(cmd)
	path = filepath.Clean(path)

	wb, err := workbook.LoadFile(path, workbook.LoadOptions{
		MaxEntrySize: cmdCtx.Cfg.MaxEntrySize,
		Logger:       cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	info := newInspection(path, wb)

	if store, err := cmdCtx.OpenStore(); err != nil {
		cmdCtx.Logger.Warn("run history unavailable", "error", err)
	} else if store != nil {
		defer func() { _ = store.Close() }()
		last, found, err := store.LastFingerprint(cmd.Context(), path)
		if err != nil {
			return err
		}
		if found {
			changed := last != wb.Fingerprint
			info.Changed = &changed
		}
	}

	var results []translate.Result
	if opts.Fields {
		tr, err := cmdCtx.NewTranslator()
		if err != nil {
			return err
		}
		for _, cf := range wb.CalculatedFields {
			res := tr.Translate(cf.Formula, nil)
			results = append(results, res)
			t := newTranslation(res, false)
			t.Formula = cf.DisplayName() + " = " + cf.Formula
			info.Fields = append(info.Fields, t)
		}
		if levels, err := wb.Dependencies().Levels(); err == nil {
			info.FieldLevels = levels
		}
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(info)
	}
	renderInspection(r, info, wb, results)
	return nil
}

func newInspection(path string, wb *workbook.Workbook) inspection {
	info := inspection{
		Name:             wb.Name,
		File:             path,
		Format:           string(wb.Format),
		Version:          wb.Version,
		Fingerprint:      wb.Fingerprint,
		CalculatedFields: len(wb.CalculatedFields),
		Parameters:       len(wb.Parameters),
		Worksheets:       []string{},
		Dashboards:       []string{},
	}
	for _, ds := range wb.Datasources {
		d := datasourceInfo{
			ID:         ds.ID,
			Caption:    ds.Caption,
			Connection: ds.ConnectionKind,
			Tables:     len(ds.Tables),
		}
		for _, t := range ds.Tables {
			d.Columns += len(t.Columns)
		}
		info.Datasources = append(info.Datasources, d)
	}
	for _, ws := range wb.Worksheets {
		info.Worksheets = append(info.Worksheets, ws.Name)
	}
	for _, db := range wb.Dashboards {
		info.Dashboards = append(info.Dashboards, db.Name)
	}
	for _, w := range wb.Warnings {
		info.Warnings = append(info.Warnings, w.String())
	}
	return info
}

func renderInspection(r *output.Renderer, info inspection, wb *workbook.Workbook, results []translate.Result) {
	r.Header(1, info.Name)
	r.KeyValue("File", info.File)
	r.KeyValue("Format", info.Format)
	if info.Version != "" {
		r.KeyValue("Version", info.Version)
	}
	r.KeyValue("Fingerprint", info.Fingerprint)
	if info.Changed != nil {
		if *info.Changed {
			r.KeyValue("History", "changed since last migration")
		} else {
			r.KeyValue("History", "unchanged since last migration")
		}
	}
	r.KeyValue("Calculated fields", strconv.Itoa(info.CalculatedFields))
	r.KeyValue("Parameters", strconv.Itoa(info.Parameters))
	r.KeyValue("Worksheets", strconv.Itoa(len(info.Worksheets)))
	r.KeyValue("Dashboards", strconv.Itoa(len(info.Dashboards)))
	r.Println("")

	r.Header(2, "datasources")
	rows := make([][]string, 0, len(info.Datasources))
	for _, d := range info.Datasources {
		rows = append(rows, []string{d.ID, d.Caption, d.Connection, strconv.Itoa(d.Tables), strconv.Itoa(d.Columns)})
	}
	r.Table([]string{"ID", "Caption", "Connection", "Tables", "Columns"}, rows)

	if len(wb.Worksheets) > 0 {
		r.Println("")
		r.Header(2, "worksheets")
		rows = rows[:0]
		for _, ws := range wb.Worksheets {
			dual := ""
			if ws.DualAxis {
				dual = "dual axis"
			}
			rows = append(rows, []string{ws.Name, ws.VisualHint, ws.DatasourceID, strconv.Itoa(len(ws.Filters)), dual})
		}
		r.Table([]string{"Worksheet", "Mark", "Datasource", "Filters", "Note"}, rows)
	}

	if len(results) > 0 {
		r.Println("")
		r.Header(2, "calculated fields")
		depth := make(map[string]int)
		for level, ids := range info.FieldLevels {
			for _, id := range ids {
				depth[id] = level
			}
		}
		rows = rows[:0]
		for i, res := range results {
			cf := wb.CalculatedFields[i]
			verdict := formatConfidence(res.Confidence)
			if !res.Supported() {
				verdict = string(res.Category)
			}
			rows = append(rows, []string{cf.DisplayName(), res.Expression, verdict, strconv.Itoa(depth[cf.ID])})
		}
		r.Table([]string{"Field", "Expression", "Confidence", "Depth"}, rows)
	}

	if len(info.Warnings) > 0 {
		r.Println("")
		r.Warning(fmt.Sprintf("%d warning(s) while building the model", len(info.Warnings)))
		for _, w := range info.Warnings {
			r.Muted("  " + w)
		}
	}
}
