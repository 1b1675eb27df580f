package workbook

import (
	"fmt"
	"log/slog"
	"strings"
)

// ParametersDatasource is the reserved datasource holding parameters.
const ParametersDatasource = "Parameters"

// DefaultTable holds columns whose source table is not recorded.
const DefaultTable = "Default"

// BuildOptions configures Build.
type BuildOptions struct {
	Name   string // workbook name, usually the file name without extension
	Logger *slog.Logger
}

type builder struct {
	wb     *Workbook
	logger *slog.Logger

	tables map[string]*Table

	// nodes kept from pass one for linking
	worksheetNodes map[string]*Node
	dashboardNodes map[string]*Node
}

// Build turns a parsed markup tree into a Workbook. The first pass registers
// every entity by ID; the second resolves references and drops entities
// whose references do not resolve. Build fails only when root is not a
// workbook element.
func Build(root *Node, opts BuildOptions) (*Workbook, error) {
	if root == nil || root.Name != "workbook" {
		name := ""
		if root != nil {
			name = root.Name
		}
		return nil, &SchemaError{Element: name, Message: "root element is not <workbook>"}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	b := &builder{
		wb: &Workbook{
			Name:        opts.Name,
			Version:     root.Attr("version"),
			datasources: make(map[string]*Datasource),
			worksheets:  make(map[string]*Worksheet),
			fields:      make(map[string]*Field),
			captions:    make(map[string]map[string]string),
		},
		logger:         logger,
		tables:         make(map[string]*Table),
		worksheetNodes: make(map[string]*Node),
		dashboardNodes: make(map[string]*Node),
	}

	// Pass 1: register
	if dss := root.Child("datasources"); dss != nil {
		for _, n := range dss.ChildrenNamed("datasource") {
			if n.Attr("name") == ParametersDatasource {
				b.collectParameters(n)
				continue
			}
			b.collectDatasource(n)
		}
	}
	if wss := root.Child("worksheets"); wss != nil {
		for _, n := range wss.ChildrenNamed("worksheet") {
			b.collectWorksheet(n)
		}
	}
	if dbs := root.Child("dashboards"); dbs != nil {
		for _, n := range dbs.ChildrenNamed("dashboard") {
			b.collectDashboard(n)
		}
	}

	// Pass 2: link
	b.linkCalculatedFields()
	b.linkWorksheets()
	b.linkDashboards()

	b.logger.Debug("built workbook",
		"name", b.wb.Name,
		"datasources", len(b.wb.Datasources),
		"calculated_fields", len(b.wb.CalculatedFields),
		"worksheets", len(b.wb.Worksheets),
		"dashboards", len(b.wb.Dashboards),
		"warnings", len(b.wb.Warnings),
	)
	return b.wb, nil
}

func (b *builder) warn(kind WarningKind, id, format string, args ...any) {
	w := BuildWarning{Kind: kind, ID: id, Reason: fmt.Sprintf(format, args...)}
	b.wb.Warnings = append(b.wb.Warnings, w)
	b.logger.Debug("build warning", "kind", w.Kind, "id", w.ID, "reason", w.Reason)
}

func (b *builder) indexCaption(ds, caption, id string) {
	if caption == "" {
		return
	}
	m, ok := b.wb.captions[ds]
	if !ok {
		m = make(map[string]string)
		b.wb.captions[ds] = m
	}
	if _, taken := m[caption]; !taken {
		m[caption] = id
	}
}

// --- datasources ---

func (b *builder) collectDatasource(n *Node) {
	id := n.Attr("name")
	if id == "" {
		id = n.Attr("caption")
	}
	if id == "" {
		b.warn(WarnDuplicate, "", "datasource without name at line %d", n.Line)
		return
	}
	if _, dup := b.wb.datasources[id]; dup {
		b.warn(WarnDuplicate, id, "datasource defined twice")
		return
	}

	ds := &Datasource{
		ID:      id,
		Caption: n.Attr("caption"),
	}
	if conn := n.Child("connection"); conn != nil {
		ds.ConnectionKind = conn.Attr("class")
	}
	b.wb.Datasources = append(b.wb.Datasources, ds)
	b.wb.datasources[id] = ds

	for _, rec := range n.FindAll("metadata-record") {
		if rec.Attr("class") != "column" {
			continue
		}
		b.collectMetadataColumn(ds, rec)
	}

	for _, c := range n.ChildrenNamed("column") {
		name := stripBrackets(c.Attr("name"))
		if name == "" {
			continue
		}
		if calc := c.Child("calculation"); calc != nil {
			if formula, ok := calc.LookupAttr("formula"); ok {
				b.collectCalculatedField(ds, c, name, formula)
				continue
			}
		}
		b.collectColumn(ds, c, name)
	}
}

func (b *builder) table(ds *Datasource, name string) *Table {
	if name == "" {
		name = DefaultTable
	}
	id := ds.ID + "." + name
	if t, ok := b.tables[id]; ok {
		return t
	}
	t := &Table{ID: id, DatasourceID: ds.ID, Name: name}
	b.tables[id] = t
	ds.Tables = append(ds.Tables, t)
	return t
}

func (b *builder) addColumn(ds *Datasource, t *Table, col *Column) {
	col.ID = FieldID(ds.ID, col.Name)
	col.TableID = t.ID
	if _, dup := b.wb.fields[col.ID]; dup {
		b.warn(WarnDuplicate, col.ID, "column defined twice")
		return
	}
	t.Columns = append(t.Columns, col)
	b.wb.fields[col.ID] = &Field{Kind: FieldColumn, Column: col}
	b.indexCaption(ds.ID, col.Caption, col.ID)
}

func (b *builder) collectMetadataColumn(ds *Datasource, rec *Node) {
	local := childText(rec, "local-name")
	name := stripBrackets(local)
	if name == "" {
		return
	}
	kind := mapDataKind(childText(rec, "local-type"))
	col := &Column{
		Name:               name,
		DataKind:           kind,
		Role:               defaultRole(kind),
		DefaultAggregation: strings.ToLower(childText(rec, "aggregation")),
	}
	if remote := childText(rec, "remote-name"); remote != "" && remote != name {
		col.Caption = remote
	}
	b.addColumn(ds, b.table(ds, stripBrackets(childText(rec, "parent-name"))), col)
}

// collectColumn enriches a metadata column with its <column> declaration or
// registers a column that has no metadata record.
func (b *builder) collectColumn(ds *Datasource, n *Node, name string) {
	if f, ok := b.wb.fields[FieldID(ds.ID, name)]; ok && f.Kind == FieldColumn {
		col := f.Column
		if caption := n.Attr("caption"); caption != "" {
			col.Caption = caption
			b.indexCaption(ds.ID, caption, col.ID)
		}
		if dt, ok := n.LookupAttr("datatype"); ok {
			col.DataKind = mapDataKind(dt)
		}
		if role, ok := n.LookupAttr("role"); ok {
			col.Role = mapRole(role, col.DataKind)
		}
		if agg := n.Attr("aggregation"); agg != "" {
			col.DefaultAggregation = strings.ToLower(agg)
		}
		col.Hidden = n.Attr("hidden") == "true"
		return
	}

	kind := mapDataKind(n.Attr("datatype"))
	col := &Column{
		Name:               name,
		Caption:            n.Attr("caption"),
		DataKind:           kind,
		Role:               mapRole(n.Attr("role"), kind),
		DefaultAggregation: strings.ToLower(n.Attr("aggregation")),
		Hidden:             n.Attr("hidden") == "true",
	}
	b.addColumn(ds, b.table(ds, stripBrackets(n.Attr("parent-name"))), col)
}

func (b *builder) collectCalculatedField(ds *Datasource, n *Node, name, formula string) {
	id := FieldID(ds.ID, name)
	if _, dup := b.wb.fields[id]; dup {
		b.warn(WarnDuplicate, id, "calculated field defined twice")
		return
	}
	kind := mapDataKind(n.Attr("datatype"))
	cf := &CalculatedField{
		ID:           id,
		DatasourceID: ds.ID,
		Name:         name,
		Caption:      n.Attr("caption"),
		Formula:      formula,
		DataKind:     kind,
		Role:         mapRole(n.Attr("role"), kind),
	}
	b.wb.CalculatedFields = append(b.wb.CalculatedFields, cf)
	b.wb.fields[id] = &Field{Kind: FieldCalculated, Calculated: cf}
	b.indexCaption(ds.ID, cf.Caption, id)
}

func (b *builder) collectParameters(n *Node) {
	for _, c := range n.ChildrenNamed("column") {
		name := stripBrackets(c.Attr("name"))
		if name == "" {
			continue
		}
		id := FieldID(ParametersDatasource, name)
		if _, dup := b.wb.fields[id]; dup {
			b.warn(WarnDuplicate, id, "parameter defined twice")
			continue
		}

		p := &Parameter{
			ID:       id,
			Name:     name,
			Caption:  c.Attr("caption"),
			DataKind: mapDataKind(c.Attr("datatype")),
			Default:  unquote(c.Attr("value")),
		}
		if p.Default == "" {
			if calc := c.Child("calculation"); calc != nil {
				p.Default = unquote(calc.Attr("formula"))
			}
		}
		p.Constraint = parameterConstraint(c)

		b.wb.Parameters = append(b.wb.Parameters, p)
		b.wb.fields[id] = &Field{Kind: FieldParameter, Parameter: p}
		b.indexCaption(ParametersDatasource, p.Caption, id)
	}
}

func parameterConstraint(n *Node) Constraint {
	switch n.Attr("param-domain-type") {
	case "range":
		c := Constraint{Kind: ConstraintRange}
		if r := n.Child("range"); r != nil {
			c.Min = r.Attr("min")
			c.Max = r.Attr("max")
			c.Period = r.Attr("period-type")
		}
		return c
	case "list":
		c := Constraint{Kind: ConstraintEnumerated}
		if m := n.Child("members"); m != nil {
			for _, member := range m.ChildrenNamed("member") {
				c.Values = append(c.Values, unquote(member.Attr("value")))
			}
		}
		return c
	}
	return Constraint{Kind: ConstraintAny}
}

// --- worksheets and dashboards, pass one ---

func (b *builder) collectWorksheet(n *Node) {
	name := n.Attr("name")
	if name == "" {
		b.warn(WarnWorksheet, "", "worksheet without name at line %d", n.Line)
		return
	}
	if _, dup := b.worksheetNodes[name]; dup {
		b.warn(WarnDuplicate, name, "worksheet defined twice")
		return
	}
	b.worksheetNodes[name] = n

	ws := &Worksheet{
		ID:    name,
		Name:  name,
		Title: worksheetTitle(n),
	}
	if ws.Title == "" {
		ws.Title = name
	}
	b.wb.Worksheets = append(b.wb.Worksheets, ws)
	b.wb.worksheets[name] = ws
}

func (b *builder) collectDashboard(n *Node) {
	name := n.Attr("name")
	if name == "" {
		name = "Dashboard"
	}
	if _, dup := b.dashboardNodes[name]; dup {
		b.warn(WarnDuplicate, name, "dashboard defined twice")
		return
	}
	b.dashboardNodes[name] = n

	db := &Dashboard{ID: name, Name: name, Width: 1280, Height: 800}
	if size := n.Child("size"); size != nil {
		db.Width = firstInt(db.Width, size.Attr("maxwidth"), size.Attr("width"))
		db.Height = firstInt(db.Height, size.Attr("maxheight"), size.Attr("height"))
	}
	b.wb.Dashboards = append(b.wb.Dashboards, db)
}

func worksheetTitle(n *Node) string {
	ft := n.Path("layout-options", "title", "formatted-text")
	if ft == nil {
		return ""
	}
	var sb strings.Builder
	for _, run := range ft.ChildrenNamed("run") {
		sb.WriteString(run.Text)
	}
	return strings.TrimSpace(sb.String())
}

func childText(n *Node, name string) string {
	if c := n.Child(name); c != nil {
		return strings.TrimSpace(c.Text)
	}
	return ""
}

func mapDataKind(s string) DataKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str", "wstr":
		return KindString
	case "integer", "int", "i8", "i4", "i2":
		return KindInteger
	case "real", "float", "double":
		return KindReal
	case "date":
		return KindDate
	case "datetime":
		return KindDateTime
	case "boolean", "bool":
		return KindBoolean
	}
	return KindUnknown
}

func defaultRole(kind DataKind) Role {
	if kind == KindInteger || kind == KindReal {
		return RoleMeasure
	}
	return RoleDimension
}

func mapRole(s string, kind DataKind) Role {
	switch s {
	case "measure":
		return RoleMeasure
	case "dimension":
		return RoleDimension
	}
	return defaultRole(kind)
}
