// Package report builds the migration report for one workbook and the
// summary for a batch of them.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/vizmigrate/pkg/canonical"
	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
)

// Unsupported feature group names, in report order.
const (
	FeatureLod       = "lod_expressions"
	FeatureTableCalc = "table_calculations"
	FeatureScript    = "script_functions"
	FeatureDualAxis  = "dual_axis_charts"
	FeatureOther     = "other"
)

var featureOrder = []string{FeatureLod, FeatureTableCalc, FeatureScript, FeatureDualAxis, FeatureOther}

var featureByCategory = map[dialect.Category]string{
	dialect.CategoryLod:       FeatureLod,
	dialect.CategoryTableCalc: FeatureTableCalc,
	dialect.CategoryScript:    FeatureScript,
	dialect.CategoryOther:     FeatureOther,
}

// Report is the migration report of one source file.
type Report struct {
	SourceFile          string         `json:"source_file" yaml:"source_file"`
	OutputFolder        string         `json:"output_folder" yaml:"output_folder"`
	Summary             Summary        `json:"summary" yaml:"summary"`
	TranslatedMeasures  []MeasureEntry `json:"translated_measures" yaml:"translated_measures"`
	FlaggedMeasures     []MeasureEntry `json:"flagged_measures" yaml:"flagged_measures"`
	UnsupportedFeatures []FeatureGroup `json:"unsupported_features" yaml:"unsupported_features"`
	FidelityGaps        []FidelityGap  `json:"fidelity_gaps" yaml:"fidelity_gaps"`
	Warnings            []string       `json:"warnings" yaml:"warnings"`
	Success             bool           `json:"success" yaml:"success"`
	ErrorMessage        *string        `json:"error_message" yaml:"error_message"`
}

// Summary holds the report counters.
type Summary struct {
	DashboardsMigrated int `json:"dashboards_migrated" yaml:"dashboards_migrated"`
	WorksheetsMigrated int `json:"worksheets_migrated" yaml:"worksheets_migrated"`
	VisualsMigrated    int `json:"visuals_migrated" yaml:"visuals_migrated"`
	TablesCreated      int `json:"tables_created" yaml:"tables_created"`
	MeasuresTranslated int `json:"measures_translated" yaml:"measures_translated"`
	MeasuresFlagged    int `json:"measures_flagged" yaml:"measures_flagged"`
}

// MeasureEntry is one calculated field in the translated or flagged list.
// Untranslated fields carry a category and reason and no expression.
type MeasureEntry struct {
	Name          string           `json:"name" yaml:"name"`
	Table         string           `json:"table,omitempty" yaml:"table,omitempty"`
	Expression    string           `json:"expression,omitempty" yaml:"expression,omitempty"`
	SourceFormula string           `json:"source_formula" yaml:"source_formula"`
	Confidence    float64          `json:"confidence" yaml:"confidence"`
	Caveats       []string         `json:"caveats,omitempty" yaml:"caveats,omitempty"`
	Category      dialect.Category `json:"category,omitempty" yaml:"category,omitempty"`
	Reason        string           `json:"reason,omitempty" yaml:"reason,omitempty"`
	SourceID      string           `json:"source_id" yaml:"source_id"`
}

// FeatureGroup lists the items of one unsupported feature type.
type FeatureGroup struct {
	Type  string   `json:"type" yaml:"type"`
	Items []string `json:"items" yaml:"items"`
}

// FidelityGap is an approximation a reviewer should check.
type FidelityGap struct {
	Type   string `json:"type" yaml:"type"`
	Item   string `json:"item" yaml:"item"`
	Detail string `json:"detail" yaml:"detail"`
}

func empty(source, output string) *Report {
	return &Report{
		SourceFile:          source,
		OutputFolder:        output,
		TranslatedMeasures:  []MeasureEntry{},
		FlaggedMeasures:     []MeasureEntry{},
		UnsupportedFeatures: []FeatureGroup{},
		FidelityGaps:        []FidelityGap{},
		Warnings:            []string{},
	}
}

// Failed returns the report of a file that could not be migrated.
func Failed(source, output string, err error) *Report {
	r := empty(source, output)
	msg := err.Error()
	r.ErrorMessage = &msg
	return r
}

// FromSchema builds the report of a successful migration.
func FromSchema(source, output string, s *canonical.Schema) *Report {
	r := empty(source, output)
	r.Success = true
	r.Summary = Summary{
		DashboardsMigrated: s.Summary.DashboardsProcessed,
		WorksheetsMigrated: s.Summary.WorksheetsProcessed,
		VisualsMigrated:    s.Summary.VisualsMapped,
		TablesCreated:      s.Summary.TablesCreated,
		MeasuresTranslated: s.Summary.MeasuresTranslated,
		MeasuresFlagged:    s.Summary.MeasuresFlagged,
	}

	lowConfidence := make(map[string]bool)
	for _, w := range s.Warnings {
		if w.Kind == canonical.WarnLowConfidence {
			lowConfidence[w.ID] = true
		}
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s %s: %s", w.Kind, w.ID, w.Reason))
	}

	for _, m := range s.Dataset.Measures {
		e := MeasureEntry{
			Name:          m.DisplayName,
			Table:         m.Table,
			Expression:    m.Expression,
			SourceFormula: m.SourceFormula,
			Confidence:    m.Confidence,
			Caveats:       m.Caveats,
			SourceID:      m.SourceID,
		}
		if lowConfidence[m.SourceID] {
			r.FlaggedMeasures = append(r.FlaggedMeasures, e)
		} else {
			r.TranslatedMeasures = append(r.TranslatedMeasures, e)
		}
		for _, c := range m.Caveats {
			r.FidelityGaps = append(r.FidelityGaps, FidelityGap{
				Type:   c,
				Item:   m.DisplayName,
				Detail: fmt.Sprintf("measure translated with confidence %.2f", m.Confidence),
			})
		}
	}

	groups := make(map[string][]string)
	for _, u := range s.Unsupported {
		r.FlaggedMeasures = append(r.FlaggedMeasures, MeasureEntry{
			Name:          u.Item,
			SourceFormula: u.Formula,
			Category:      u.Category,
			Reason:        u.Reason,
			SourceID:      u.OriginID,
		})
		feature, ok := featureByCategory[u.Category]
		if !ok {
			feature = FeatureOther
		}
		groups[feature] = append(groups[feature], u.Item)
	}

	for _, v := range s.Visuals {
		for _, c := range v.Caveats {
			if c == canonical.CaveatDualAxis {
				groups[FeatureDualAxis] = append(groups[FeatureDualAxis], v.Title)
			}
			r.FidelityGaps = append(r.FidelityGaps, FidelityGap{
				Type:   c,
				Item:   v.Title,
				Detail: fmt.Sprintf("%q rendered as %s", v.NativeType, v.VisualType),
			})
		}
	}

	for _, feature := range featureOrder {
		if items := groups[feature]; len(items) > 0 {
			r.UnsupportedFeatures = append(r.UnsupportedFeatures, FeatureGroup{Type: feature, Items: items})
		}
	}
	return r
}

// Batch summarizes every file of a run.
type Batch struct {
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	TotalFiles  int       `json:"total_files" yaml:"total_files"`
	Successful  int       `json:"successful" yaml:"successful"`
	Failed      int       `json:"failed" yaml:"failed"`
	Migrations  []*Report `json:"migrations" yaml:"migrations"`
}

// NewBatch builds the summary of reports, kept in the given order.
func NewBatch(reports []*Report, generatedAt time.Time) *Batch {
	b := &Batch{
		GeneratedAt: generatedAt,
		TotalFiles:  len(reports),
		Migrations:  reports,
	}
	if b.Migrations == nil {
		b.Migrations = []*Report{}
	}
	for _, r := range reports {
		if r.Success {
			b.Successful++
		} else {
			b.Failed++
		}
	}
	return b
}

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Ext returns the file extension of the format, with the dot.
func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatYAML:
		return Format(s), nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want json or yaml)", s)
}

// Encode writes v to w in the given format.
func Encode(w io.Writer, v any, f Format) error {
	if f == FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Marshal encodes v in the given format.
func Marshal(v any, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, v, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
