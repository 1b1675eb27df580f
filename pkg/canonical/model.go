package canonical

import (
	"strings"

	"github.com/leapstack-labs/vizmigrate/pkg/core"
	"github.com/leapstack-labs/vizmigrate/pkg/format"
	"github.com/leapstack-labs/vizmigrate/pkg/workbook"
)

const (
	placeholderTable  = "Data"
	placeholderColumn = "Value"
)

type columnRef struct {
	table   string
	name    string
	str     bool
	measure bool
}

// model holds the name assignments shared by the measure and visual phases.
// It is filled before any worker starts and only read afterwards.
type model struct {
	wb          *workbook.Workbook
	tables      []Table
	placeholder bool

	columns      map[string]columnRef // column ID
	dsTable      map[string]string    // datasource ID -> first table name
	measureNames map[string]string    // calculated field ID
	paramNames   map[string]string    // parameter ID
}

func newModel(wb *workbook.Workbook) *model {
	m := &model{
		wb:           wb,
		columns:      make(map[string]columnRef),
		dsTable:      make(map[string]string),
		measureNames: make(map[string]string, len(wb.CalculatedFields)),
		paramNames:   make(map[string]string, len(wb.Parameters)),
	}

	tableNames := nameSet{}
	for _, ds := range wb.Datasources {
		for _, tbl := range ds.Tables {
			t := Table{
				Name:        tableNames.unique(Sanitize(tbl.Name)),
				DisplayName: tbl.Name,
				SourceID:    tbl.ID,
				Columns:     make([]Column, 0, len(tbl.Columns)),
			}
			if _, ok := m.dsTable[ds.ID]; !ok {
				m.dsTable[ds.ID] = t.Name
			}
			colNames := nameSet{}
			for _, c := range tbl.Columns {
				col := Column{
					Name:         colNames.unique(Sanitize(c.Name)),
					DisplayName:  c.DisplayName(),
					SemanticType: SemanticTypeOf(c.DataKind),
					IsMeasure:    c.Role == workbook.RoleMeasure,
					Hidden:       c.Hidden,
					SourceID:     c.ID,
				}
				t.Columns = append(t.Columns, col)
				m.columns[c.ID] = columnRef{
					table:   t.Name,
					name:    col.Name,
					str:     col.SemanticType == TypeString,
					measure: col.IsMeasure,
				}
			}
			m.tables = append(m.tables, t)
		}
	}

	if len(m.tables) == 0 {
		m.placeholder = true
		m.tables = []Table{{
			Name:        placeholderTable,
			DisplayName: placeholderTable,
			Placeholder: true,
			Columns: []Column{{
				Name:         placeholderColumn,
				DisplayName:  placeholderColumn,
				SemanticType: TypeString,
			}},
		}}
	}

	// Measures share one namespace with every column so a measure never
	// shadows a column of its home table.
	measures := nameSet{}
	for _, t := range m.tables {
		for _, c := range t.Columns {
			measures.unique(c.Name)
		}
	}
	for _, p := range wb.Parameters {
		m.paramNames[p.ID] = measures.unique(Sanitize(p.DisplayName()))
	}
	for _, f := range wb.CalculatedFields {
		m.measureNames[f.ID] = measures.unique(Sanitize(f.DisplayName()))
	}
	return m
}

func (m *model) defaultTable() string {
	return m.tables[0].Name
}

// homeTable is the table a calculated field's measure attaches to.
func (m *model) homeTable(datasource string) string {
	if t, ok := m.dsTable[datasource]; ok {
		return t
	}
	return m.defaultTable()
}

// resolver maps formula references of a field owned by datasource to
// dataset names. Calculated fields and parameters resolve as measures on
// the table they attach to.
func (m *model) resolver(datasource string) format.Resolver {
	return format.ResolverFunc(func(ref *core.FieldRef) (format.Field, bool) {
		ds := ref.Datasource
		if ds == "" {
			ds = datasource
		}
		id, ok := m.wb.Lookup(ds, ref.Name)
		if !ok {
			return format.Field{}, false
		}
		f, _ := m.wb.Field(id)
		switch f.Kind {
		case workbook.FieldCalculated:
			return format.Field{
				Table:   m.homeTable(f.Calculated.DatasourceID),
				Name:    m.measureNames[id],
				Measure: true,
				String:  f.Calculated.DataKind == workbook.KindString,
			}, true
		case workbook.FieldParameter:
			return format.Field{
				Table:   m.defaultTable(),
				Name:    m.paramNames[id],
				Measure: true,
				String:  f.Parameter.DataKind == workbook.KindString,
			}, true
		default:
			c, ok := m.columns[id]
			if !ok {
				return format.Field{}, false
			}
			return format.Field{Table: c.table, Name: c.name, String: c.str}, true
		}
	})
}

func (m *model) parameters() []Parameter {
	if len(m.wb.Parameters) == 0 {
		return nil
	}
	out := make([]Parameter, 0, len(m.wb.Parameters))
	for _, p := range m.wb.Parameters {
		out = append(out, Parameter{
			Name:         m.paramNames[p.ID],
			DisplayName:  p.DisplayName(),
			Table:        m.defaultTable(),
			SemanticType: SemanticTypeOf(p.DataKind),
			Expression:   parameterExpression(p),
			Domain:       string(p.Constraint.Kind),
			Values:       p.Constraint.Values,
			Min:          p.Constraint.Min,
			Max:          p.Constraint.Max,
			SourceID:     p.ID,
		})
	}
	return out
}

// parameterExpression renders the current value of a parameter as a
// constant expression.
func parameterExpression(p *workbook.Parameter) string {
	v := strings.TrimSpace(p.Default)
	if v == "" {
		return "BLANK()"
	}
	switch p.DataKind {
	case workbook.KindInteger, workbook.KindReal:
		return v
	case workbook.KindBoolean:
		if strings.EqualFold(v, "true") {
			return "TRUE()"
		}
		return "FALSE()"
	case workbook.KindDate, workbook.KindDateTime:
		return "DATEVALUE(" + format.QuoteString(strings.Trim(v, "#")) + ")"
	default:
		return format.QuoteString(v)
	}
}
