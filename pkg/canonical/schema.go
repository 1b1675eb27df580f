// Package canonical defines the platform-neutral schema a workbook is
// migrated into, and the transformer that produces it.
//
// A Schema is built once per workbook and is read-only afterwards. Every
// encoding names a column or measure present in its Dataset, every measure
// confidence is within [0, 1], and every calculated field that could not be
// translated appears in Unsupported with its raw formula.
package canonical

import (
	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
	"github.com/leapstack-labs/vizmigrate/pkg/workbook"
)

// SemanticType is the target data type of a column.
type SemanticType string

const (
	TypeString   SemanticType = "string"
	TypeInt64    SemanticType = "int64"
	TypeDouble   SemanticType = "double"
	TypeDate     SemanticType = "date"
	TypeDateTime SemanticType = "datetime"
	TypeBoolean  SemanticType = "boolean"
)

// SemanticTypeOf maps a source data kind. Unknown kinds become strings.
func SemanticTypeOf(k workbook.DataKind) SemanticType {
	switch k {
	case workbook.KindInteger:
		return TypeInt64
	case workbook.KindReal:
		return TypeDouble
	case workbook.KindDate:
		return TypeDate
	case workbook.KindDateTime:
		return TypeDateTime
	case workbook.KindBoolean:
		return TypeBoolean
	}
	return TypeString
}

// Schema is the canonical form of one workbook.
type Schema struct {
	Name        string                     `json:"name" yaml:"name"`
	Source      SourceInfo                 `json:"source" yaml:"source"`
	Dataset     Dataset                    `json:"dataset" yaml:"dataset"`
	Visuals     []VisualDefinition         `json:"visuals" yaml:"visuals"`
	Pages       []Page                     `json:"pages" yaml:"pages"`
	Unsupported []UnsupportedFeatureRecord `json:"unsupported" yaml:"unsupported"`
	Warnings    []Warning                  `json:"warnings" yaml:"warnings"`
	Summary     Summary                    `json:"summary" yaml:"summary"`
}

// SourceInfo identifies the workbook a schema came from.
type SourceInfo struct {
	File        string `json:"file" yaml:"file"`
	Format      string `json:"format" yaml:"format"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
}

// Dataset is the semantic model: tables, measures and parameters.
type Dataset struct {
	Name       string      `json:"name" yaml:"name"`
	Tables     []Table     `json:"tables" yaml:"tables"`
	Measures   []Measure   `json:"measures" yaml:"measures"`
	Parameters []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Table is a canonical table.
type Table struct {
	Name        string   `json:"name" yaml:"name"`
	DisplayName string   `json:"display_name" yaml:"display_name"`
	SourceID    string   `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	Placeholder bool     `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Columns     []Column `json:"columns" yaml:"columns"`
}

// Column is a canonical column.
type Column struct {
	Name         string       `json:"name" yaml:"name"`
	DisplayName  string       `json:"display_name" yaml:"display_name"`
	SemanticType SemanticType `json:"semantic_type" yaml:"semantic_type"`
	IsMeasure    bool         `json:"is_measure" yaml:"is_measure"`
	Hidden       bool         `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	SourceID     string       `json:"source_id,omitempty" yaml:"source_id,omitempty"`
}

// Measure is a translated calculated field.
type Measure struct {
	Name          string   `json:"name" yaml:"name"`
	DisplayName   string   `json:"display_name" yaml:"display_name"`
	Table         string   `json:"table" yaml:"table"`
	Expression    string   `json:"expression" yaml:"expression"`
	SourceFormula string   `json:"source_formula" yaml:"source_formula"`
	Confidence    float64  `json:"confidence" yaml:"confidence"`
	Caveats       []string `json:"caveats,omitempty" yaml:"caveats,omitempty"`
	Aggregation   string   `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	SourceID      string   `json:"source_id" yaml:"source_id"`
}

// Parameter is a workbook parameter surfaced as a constant measure.
type Parameter struct {
	Name         string       `json:"name" yaml:"name"`
	DisplayName  string       `json:"display_name" yaml:"display_name"`
	Table        string       `json:"table" yaml:"table"`
	SemanticType SemanticType `json:"semantic_type" yaml:"semantic_type"`
	Expression   string       `json:"expression" yaml:"expression"`
	Domain       string       `json:"domain" yaml:"domain"`
	Values       []string     `json:"values,omitempty" yaml:"values,omitempty"`
	Min          string       `json:"min,omitempty" yaml:"min,omitempty"`
	Max          string       `json:"max,omitempty" yaml:"max,omitempty"`
	SourceID     string       `json:"source_id" yaml:"source_id"`
}

// Encoding roles.
const (
	RoleCategory = "category"
	RoleValues   = "values"
	RoleSeries   = "series"
	RoleSize     = "size"
	RoleTooltips = "tooltips"
	RoleDetails  = "details"
)

// Encoding binds a dataset field to a visual role.
type Encoding struct {
	Role        string `json:"role" yaml:"role"`
	Field       string `json:"field" yaml:"field"`
	Table       string `json:"table" yaml:"table"`
	IsMeasure   bool   `json:"is_measure" yaml:"is_measure"`
	Aggregation string `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
}

// Placement is where a visual sits on a page.
type Placement struct {
	DashboardID string        `json:"dashboard_id" yaml:"dashboard_id"`
	ZoneID      string        `json:"zone_id" yaml:"zone_id"`
	Rect        workbook.Rect `json:"rect" yaml:"rect"`
}

// VisualDefinition is a mapped worksheet.
type VisualDefinition struct {
	ID          string      `json:"id" yaml:"id"`
	WorksheetID string      `json:"worksheet_id" yaml:"worksheet_id"`
	Title       string      `json:"title" yaml:"title"`
	VisualType  string      `json:"visual_type" yaml:"visual_type"`
	NativeType  string      `json:"native_type" yaml:"native_type"`
	Encodings   []Encoding  `json:"encodings" yaml:"encodings"`
	Placements  []Placement `json:"placements,omitempty" yaml:"placements,omitempty"`
	Caveats     []string    `json:"caveats,omitempty" yaml:"caveats,omitempty"`
}

// Page is a dashboard, or a single worksheet when the workbook has none.
type Page struct {
	DashboardID string   `json:"dashboard_id,omitempty" yaml:"dashboard_id,omitempty"`
	Name        string   `json:"name" yaml:"name"`
	DisplayName string   `json:"display_name" yaml:"display_name"`
	Width       int      `json:"width" yaml:"width"`
	Height      int      `json:"height" yaml:"height"`
	Visuals     []string `json:"visuals" yaml:"visuals"`
}

// UnsupportedFeatureRecord is a calculated field that was not translated.
type UnsupportedFeatureRecord struct {
	Category dialect.Category `json:"category" yaml:"category"`
	OriginID string           `json:"origin_id" yaml:"origin_id"`
	Item     string           `json:"item" yaml:"item"`
	Reason   string           `json:"reason" yaml:"reason"`
	Formula  string           `json:"formula" yaml:"formula"`
}

// Warning kinds added by the transformer. Build warnings keep their own.
const (
	WarnDroppedEncoding  = "dropped_encoding"
	WarnPlaceholderTable = "placeholder_table"
	WarnLowConfidence    = "low_confidence"
)

// Warning is a non-fatal diagnostic.
type Warning struct {
	Kind   string `json:"kind" yaml:"kind"`
	ID     string `json:"id" yaml:"id"`
	Reason string `json:"reason" yaml:"reason"`
}

// Summary counts what the transformation produced.
type Summary struct {
	TablesCreated       int `json:"tables_created" yaml:"tables_created"`
	MeasuresTranslated  int `json:"measures_translated" yaml:"measures_translated"`
	MeasuresFlagged     int `json:"measures_flagged" yaml:"measures_flagged"`
	WorksheetsProcessed int `json:"worksheets_processed" yaml:"worksheets_processed"`
	DashboardsProcessed int `json:"dashboards_processed" yaml:"dashboards_processed"`
	VisualsMapped       int `json:"visuals_mapped" yaml:"visuals_mapped"`
}
