// Package workbook reads Tableau workbooks into a typed source-object model.
//
// Loading runs in three stages. ReadArchive unwraps packaged (.twbx) or flat
// (.twb) input into the markup payload, ParseMarkup turns that payload into a
// generic attributed tree, and Build walks the tree in two passes: first
// every datasource, table, column, calculated field, worksheet and dashboard
// is registered by ID, then cross references are resolved. Entities whose
// references cannot be resolved are dropped and recorded as warnings; the
// build only fails when the document is not a workbook at all.
//
// The returned model is never mutated after Build returns.
package workbook

// SourceFormat tells packaged archives from flat markup files.
type SourceFormat string

const (
	FormatFlat     SourceFormat = "flat"
	FormatPackaged SourceFormat = "packaged"
)

// DataKind is the normalized data type of a column.
type DataKind string

const (
	KindString   DataKind = "string"
	KindInteger  DataKind = "integer"
	KindReal     DataKind = "real"
	KindDate     DataKind = "date"
	KindDateTime DataKind = "datetime"
	KindBoolean  DataKind = "boolean"
	KindUnknown  DataKind = "unknown"
)

// Role is the analytical role of a field.
type Role string

const (
	RoleDimension Role = "dimension"
	RoleMeasure   Role = "measure"
)

// Workbook is the root of the source-object model.
type Workbook struct {
	Name        string
	Version     string
	Format      SourceFormat
	Fingerprint string // xxh3 of the markup payload, hex

	Datasources      []*Datasource
	CalculatedFields []*CalculatedField
	Worksheets       []*Worksheet
	Dashboards       []*Dashboard
	Parameters       []*Parameter

	Warnings []BuildWarning

	datasources map[string]*Datasource
	worksheets  map[string]*Worksheet
	fields      map[string]*Field
	captions    map[string]map[string]string // datasource -> caption -> field ID
	deps        *FieldGraph
}

// Datasource is a named connection with its logical tables.
type Datasource struct {
	ID             string
	Caption        string
	ConnectionKind string
	Tables         []*Table
}

// Table groups the physical columns of one source table.
type Table struct {
	ID           string // datasource.table
	DatasourceID string
	Name         string
	Columns      []*Column
}

// Column is a physical column.
type Column struct {
	ID                 string // datasource.[name]
	TableID            string
	Name               string
	Caption            string
	DataKind           DataKind
	Role               Role
	DefaultAggregation string
	Hidden             bool
}

// DisplayName returns the caption, or the name when there is none.
func (c *Column) DisplayName() string {
	if c.Caption != "" {
		return c.Caption
	}
	return c.Name
}

// CalculatedField is a named formula owned by a datasource.
type CalculatedField struct {
	ID           string // datasource.[name]
	DatasourceID string
	Name         string
	Caption      string
	Formula      string
	DataKind     DataKind
	Role         Role
	References   []string // resolved column, calculated field or parameter IDs
}

// DisplayName returns the caption, or the name when there is none.
func (f *CalculatedField) DisplayName() string {
	if f.Caption != "" {
		return f.Caption
	}
	return f.Name
}

// ShelfKind names a worksheet shelf or mark encoding channel.
type ShelfKind string

const (
	ShelfRows    ShelfKind = "rows"
	ShelfColumns ShelfKind = "columns"
	ShelfColor   ShelfKind = "color"
	ShelfSize    ShelfKind = "size"
	ShelfLabel   ShelfKind = "label"
	ShelfText    ShelfKind = "text"
	ShelfTooltip ShelfKind = "tooltip"
	ShelfDetail  ShelfKind = "detail"
	ShelfShape   ShelfKind = "shape"
	ShelfPages   ShelfKind = "pages"
)

// Shelf is one placement channel with its fields in order.
type Shelf struct {
	Kind   ShelfKind
	Fields []FieldUse
}

// FieldUse is a resolved field on a shelf.
type FieldUse struct {
	FieldID     string
	Aggregation string // lowercase, "" when none
}

// Worksheet is a single visualization.
type Worksheet struct {
	ID           string
	Name         string
	Title        string
	DatasourceID string
	Shelves      []Shelf
	VisualHint   string // native mark class, verbatim
	DualAxis     bool
	Filters      []*Filter
}

// Dashboard is a canvas of zones.
type Dashboard struct {
	ID     string
	Name   string
	Width  int
	Height int
	Zones  []*Zone
}

// ZoneKind classifies a dashboard zone.
type ZoneKind string

const (
	ZoneViz       ZoneKind = "viz"
	ZoneContainer ZoneKind = "container"
	ZoneText      ZoneKind = "text"
	ZoneBlank     ZoneKind = "blank"
	ZoneFilter    ZoneKind = "filter"
	ZoneLegend    ZoneKind = "legend"
	ZoneImage     ZoneKind = "image"
	ZoneOther     ZoneKind = "other"
)

// Rect is a layout box normalized to the unit square.
type Rect struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// Zone is a region of a dashboard.
type Zone struct {
	ID          string
	Kind        ZoneKind
	ParentID    string
	WorksheetID string // set for viz zones
	Rect        Rect
}

// ConstraintKind classifies filter and parameter domains.
type ConstraintKind string

const (
	ConstraintAny          ConstraintKind = "any"
	ConstraintEnumerated   ConstraintKind = "enumerated"
	ConstraintRange        ConstraintKind = "range"
	ConstraintRelativeDate ConstraintKind = "relative_date"
)

// Constraint is an opaque value domain.
type Constraint struct {
	Kind   ConstraintKind
	Values []string
	Min    string
	Max    string
	Period string
}

// Filter restricts a worksheet to part of a field's domain.
type Filter struct {
	FieldID    string
	Class      string
	Constraint Constraint
}

// Parameter is a workbook-level input value.
type Parameter struct {
	ID         string // Parameters.[name]
	Name       string
	Caption    string
	DataKind   DataKind
	Default    string
	Constraint Constraint
}

// DisplayName returns the caption, or the name when there is none.
func (p *Parameter) DisplayName() string {
	if p.Caption != "" {
		return p.Caption
	}
	return p.Name
}

// FieldKind tells what a resolved field ID points at.
type FieldKind int

const (
	FieldColumn FieldKind = iota
	FieldCalculated
	FieldParameter
)

// Field is a resolved reference target.
type Field struct {
	Kind       FieldKind
	Column     *Column
	Calculated *CalculatedField
	Parameter  *Parameter
}

// Name returns the source name of the field.
func (f *Field) Name() string {
	switch f.Kind {
	case FieldCalculated:
		return f.Calculated.Name
	case FieldParameter:
		return f.Parameter.Name
	default:
		return f.Column.Name
	}
}

// Datasource returns the datasource with the given ID.
func (w *Workbook) Datasource(id string) (*Datasource, bool) {
	ds, ok := w.datasources[id]
	return ds, ok
}

// Worksheet returns the worksheet with the given ID.
func (w *Workbook) Worksheet(id string) (*Worksheet, bool) {
	ws, ok := w.worksheets[id]
	return ws, ok
}

// Field resolves a column, calculated field or parameter ID.
func (w *Workbook) Field(id string) (*Field, bool) {
	f, ok := w.fields[id]
	return f, ok
}

// Dependencies returns the reference graph between calculated fields.
func (w *Workbook) Dependencies() *FieldGraph {
	if w.deps == nil {
		return newFieldGraph(w.CalculatedFields)
	}
	return w.deps
}

// Lookup resolves a field name within a datasource, trying the internal
// name first and the caption second.
func (w *Workbook) Lookup(datasource, name string) (string, bool) {
	if datasource == "" {
		return "", false
	}
	if id := FieldID(datasource, name); w.fields[id] != nil {
		return id, true
	}
	if id, ok := w.captions[datasource][name]; ok && w.fields[id] != nil {
		return id, true
	}
	return "", false
}

// FieldID builds the ID of a field owned by a datasource.
func FieldID(datasource, name string) string {
	return datasource + ".[" + name + "]"
}
