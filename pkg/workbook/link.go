package workbook

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// layoutGrid is the coordinate space of zone geometry.
const layoutGrid = 100000.0

// encodingShelves maps pane encoding elements to shelves.
var encodingShelves = map[string]ShelfKind{
	"color":      ShelfColor,
	"size":       ShelfSize,
	"wedge-size": ShelfSize,
	"text":       ShelfText,
	"label":      ShelfLabel,
	"tooltip":    ShelfTooltip,
	"lod":        ShelfDetail,
	"detail":     ShelfDetail,
	"shape":      ShelfShape,
}

// resolve finds the field a reference names. Unqualified references are
// looked up in ds.
func (b *builder) resolve(ds string, ref fieldRef) (string, bool) {
	if ref.Datasource != "" {
		ds = ref.Datasource
	}
	return b.wb.Lookup(ds, ref.Name)
}

// linkCalculatedFields resolves formula references until no more fields are
// dropped, so fields that only reference dropped fields are dropped too.
func (b *builder) linkCalculatedFields() {
	refs := make(map[*CalculatedField][]fieldRef, len(b.wb.CalculatedFields))
	for _, cf := range b.wb.CalculatedFields {
		refs[cf] = scanRefs(cf.Formula)
	}

	alive := b.wb.CalculatedFields
	for changed := true; changed; {
		changed = false
		kept := alive[:0:0]
		for _, cf := range alive {
			if missing, ok := b.unresolved(cf, refs[cf]); ok {
				b.warn(WarnCalculatedField, cf.ID, "unresolved reference [%s]", missing)
				delete(b.wb.fields, cf.ID)
				changed = true
				continue
			}
			kept = append(kept, cf)
		}
		alive = kept
	}

	for _, cf := range alive {
		var ids []string
		for _, ref := range refs[cf] {
			id, _ := b.resolve(cf.DatasourceID, ref)
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		cf.References = ids
	}
	b.wb.CalculatedFields = b.dropCycles(alive)
}

// dropCycles removes fields that reference themselves through other
// calculated fields, along with every field depending on them.
func (b *builder) dropCycles(fields []*CalculatedField) []*CalculatedField {
	g := newFieldGraph(fields)
	for cycle := g.Cycle(); cycle != nil; cycle = g.Cycle() {
		err := &CycleError{Path: cycle}
		for _, id := range g.Downstream(cycle...) {
			if slices.Contains(cycle, id) {
				b.warn(WarnCalculatedField, id, "%v", err)
			} else {
				b.warn(WarnCalculatedField, id, "depends on circular field %s", cycle[0])
			}
			delete(b.wb.fields, id)
		}
		var keep []string
		for _, id := range g.Fields() {
			if b.wb.fields[id] != nil {
				keep = append(keep, id)
			}
		}
		g = g.Subgraph(keep)
	}

	b.wb.deps = g
	kept := fields[:0:0]
	for _, cf := range fields {
		if g.Has(cf.ID) {
			kept = append(kept, cf)
		}
	}
	return kept
}

// unresolved returns the first reference of cf that does not resolve.
func (b *builder) unresolved(cf *CalculatedField, refs []fieldRef) (string, bool) {
	for _, ref := range refs {
		if _, ok := b.resolve(cf.DatasourceID, ref); !ok {
			if ref.Datasource != "" {
				return ref.Datasource + "].[" + ref.Name, true
			}
			return ref.Name, true
		}
	}
	return "", false
}

func (b *builder) linkWorksheets() {
	kept := b.wb.Worksheets[:0:0]
	for _, ws := range b.wb.Worksheets {
		n := b.worksheetNodes[ws.ID]
		table := n.Child("table")
		if table == nil {
			table = n
		}

		ws.DatasourceID = worksheetDatasource(table)
		if ws.DatasourceID != "" {
			if _, ok := b.wb.datasources[ws.DatasourceID]; !ok {
				b.warn(WarnWorksheet, ws.ID, "unknown datasource %q", ws.DatasourceID)
				delete(b.wb.worksheets, ws.ID)
				continue
			}
		}

		ws.VisualHint = visualHint(table)
		ws.DualAxis = isDualAxis(table)
		ws.Shelves = b.linkShelves(ws, table)
		ws.Filters = b.linkFilters(ws, table)
		kept = append(kept, ws)
	}
	b.wb.Worksheets = kept
}

func worksheetDatasource(table *Node) string {
	dss := table.Path("view", "datasources")
	if dss == nil {
		dss = table.Find("datasources")
	}
	if dss == nil {
		return ""
	}
	for _, d := range dss.ChildrenNamed("datasource") {
		if name := d.Attr("name"); name != "" && name != ParametersDatasource {
			return name
		}
	}
	return ""
}

// visualHint returns the mark class of the first pane that declares one,
// falling back to the mark style rule.
func visualHint(table *Node) string {
	for _, mark := range table.FindAll("mark") {
		if class := mark.Attr("class"); class != "" {
			return class
		}
	}
	for _, rule := range table.FindAll("style-rule") {
		if rule.Attr("element") != "mark" {
			continue
		}
		for _, f := range rule.FindAll("format") {
			if f.Attr("attr") == "mark" {
				return f.Attr("value")
			}
		}
	}
	return ""
}

// isDualAxis reports panes plotted against more than one measure axis on the
// same shelf.
func isDualAxis(table *Node) bool {
	xs := map[string]struct{}{}
	ys := map[string]struct{}{}
	for _, pane := range table.FindAll("pane") {
		if v := pane.Attr("x-axis-name"); v != "" {
			xs[v] = struct{}{}
		}
		if v := pane.Attr("y-axis-name"); v != "" {
			ys[v] = struct{}{}
		}
	}
	if len(xs) > 1 || len(ys) > 1 {
		return true
	}

	rows, cols := 0, 0
	for _, axis := range table.FindAll("axis") {
		typ := strings.ToLower(axis.Attr("type"))
		switch {
		case strings.Contains(typ, "row"):
			rows++
		case strings.Contains(typ, "col"):
			cols++
		}
	}
	return rows > 1 || cols > 1
}

func (b *builder) linkShelves(ws *Worksheet, table *Node) []Shelf {
	var shelves []Shelf
	add := func(kind ShelfKind, text string) {
		uses := b.shelfFields(ws, text)
		if len(uses) == 0 {
			return
		}
		for i := range shelves {
			if shelves[i].Kind == kind {
				for _, u := range uses {
					if !slices.Contains(shelves[i].Fields, u) {
						shelves[i].Fields = append(shelves[i].Fields, u)
					}
				}
				return
			}
		}
		shelves = append(shelves, Shelf{Kind: kind, Fields: uses})
	}

	if rows := table.Child("rows"); rows != nil {
		add(ShelfRows, rows.Text)
	}
	if cols := table.Child("cols"); cols != nil {
		add(ShelfColumns, cols.Text)
	}

	for _, pane := range table.FindAll("pane") {
		if encs := pane.Child("encodings"); encs != nil {
			for _, e := range encs.Children {
				if kind, ok := encodingShelves[e.Name]; ok {
					add(kind, e.Attr("column"))
				}
			}
		}
	}
	for _, e := range table.FindAll("encoding") {
		if kind, ok := encodingShelves[e.Attr("type")]; ok {
			add(kind, e.Attr("column"))
		}
	}

	if pages := table.Child("pages"); pages != nil {
		add(ShelfPages, pages.Text)
	}
	return shelves
}

func (b *builder) shelfFields(ws *Worksheet, text string) []FieldUse {
	var uses []FieldUse
	for _, ref := range scanRefs(text) {
		id, ok := b.resolve(ws.DatasourceID, ref)
		if !ok {
			b.warn(WarnShelfField, ws.ID, "unresolved shelf field [%s]", ref.Name)
			continue
		}
		use := FieldUse{FieldID: id, Aggregation: ref.Aggregation}
		if !slices.Contains(uses, use) {
			uses = append(uses, use)
		}
	}
	return uses
}

func (b *builder) linkFilters(ws *Worksheet, table *Node) []*Filter {
	nodes := table.FindAll("filter")
	if len(nodes) == 0 {
		return nil
	}

	var filters []*Filter
	for _, n := range nodes {
		refs := scanRefs(n.Attr("column"))
		if len(refs) == 0 {
			continue
		}
		id, ok := b.resolve(ws.DatasourceID, refs[0])
		if !ok {
			b.warn(WarnFilter, ws.ID, "unresolved filter field [%s]", refs[0].Name)
			continue
		}
		filters = append(filters, &Filter{
			FieldID:    id,
			Class:      n.Attr("class"),
			Constraint: filterConstraint(n),
		})
	}
	return filters
}

func filterConstraint(n *Node) Constraint {
	switch n.Attr("class") {
	case "quantitative":
		return Constraint{
			Kind: ConstraintRange,
			Min:  childText(n, "min"),
			Max:  childText(n, "max"),
		}
	case "relative-date":
		return Constraint{
			Kind:   ConstraintRelativeDate,
			Period: n.Attr("period-type"),
			Min:    n.Attr("first-period"),
			Max:    n.Attr("last-period"),
		}
	}

	var values []string
	for _, gf := range n.FindAll("groupfilter") {
		if m, ok := gf.LookupAttr("member"); ok {
			values = append(values, unquote(m))
		}
	}
	for _, gm := range n.FindAll("groupmember") {
		if m, ok := gm.LookupAttr("member"); ok {
			values = append(values, unquote(m))
		}
	}
	if len(values) == 0 {
		return Constraint{Kind: ConstraintAny}
	}
	return Constraint{Kind: ConstraintEnumerated, Values: values}
}

func (b *builder) linkDashboards() {
	for _, db := range b.wb.Dashboards {
		zones := b.dashboardNodes[db.ID].Child("zones")
		if zones == nil {
			continue
		}
		seq := 0
		var walk func(n *Node, parent string)
		walk = func(n *Node, parent string) {
			for _, zn := range n.ChildrenNamed("zone") {
				seq++
				z := b.zone(db, zn, parent, seq)
				next := parent
				if z != nil {
					db.Zones = append(db.Zones, z)
					next = z.ID
				}
				walk(zn, next)
			}
		}
		walk(zones, "")
	}
}

// zone builds one zone, or returns nil after a warning when a viz zone
// names a worksheet that does not exist.
func (b *builder) zone(db *Dashboard, n *Node, parent string, seq int) *Zone {
	z := &Zone{
		ID:       n.Attr("id"),
		Kind:     zoneKind(n),
		ParentID: parent,
		Rect: normalizeRect(
			parseFloat(n.Attr("x")), parseFloat(n.Attr("y")),
			parseFloat(n.Attr("w")), parseFloat(n.Attr("h")),
		),
	}
	if z.ID == "" {
		z.ID = strconv.Itoa(seq)
	}

	if z.Kind == ZoneViz {
		name := n.Attr("name")
		if _, ok := b.wb.worksheets[name]; !ok {
			b.warn(WarnZone, db.ID+"/"+z.ID, "unknown worksheet %q", name)
			return nil
		}
		z.WorksheetID = name
	}
	return z
}

func zoneKind(n *Node) ZoneKind {
	typ := n.Attr("type-v2")
	if typ == "" {
		typ = n.Attr("type")
	}
	switch typ {
	case "":
		if n.Attr("param") != "" {
			return ZoneFilter
		}
		if n.Attr("name") != "" {
			return ZoneViz
		}
		if len(n.ChildrenNamed("zone")) > 0 {
			return ZoneContainer
		}
		return ZoneBlank
	case "viz":
		return ZoneViz
	case "layout-basic", "layout-flow", "layout":
		return ZoneContainer
	case "text", "title":
		return ZoneText
	case "empty", "blank":
		return ZoneBlank
	case "filter", "paramctrl":
		return ZoneFilter
	case "color", "size", "shape", "highlighter", "legend":
		return ZoneLegend
	case "bitmap", "image":
		return ZoneImage
	}
	return ZoneOther
}

// normalizeRect maps grid coordinates into the unit square, clamping so the
// box never leaves it.
func normalizeRect(x, y, w, h float64) Rect {
	r := Rect{
		X: clamp01(x / layoutGrid),
		Y: clamp01(y / layoutGrid),
		W: clamp01(w / layoutGrid),
		H: clamp01(h / layoutGrid),
	}
	r.W = min(r.W, 1-r.X)
	r.H = min(r.H, 1-r.Y)
	return r
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// firstInt returns the first parseable value, or def.
func firstInt(def int, values ...string) int {
	for _, v := range values {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return def
}
