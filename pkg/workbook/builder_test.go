package workbook_test

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/leapstack-labs/vizmigrate/internal/testutil"
	"github.com/leapstack-labs/vizmigrate/pkg/workbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const superstore = "testdata/superstore.twb"

func loadSuperstore(t *testing.T) *workbook.Workbook {
	t.Helper()
	wb, err := workbook.LoadFile(superstore, workbook.LoadOptions{Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	return wb
}

func TestLoadSuperstore(t *testing.T) {
	wb := loadSuperstore(t)

	assert.Equal(t, "superstore", wb.Name)
	assert.Equal(t, "18.1", wb.Version)
	assert.Equal(t, workbook.FormatFlat, wb.Format)
	assert.Len(t, wb.Fingerprint, 16)

	require.Len(t, wb.Datasources, 1)
	ds := wb.Datasources[0]
	assert.Equal(t, "federated.0a1b2c", ds.ID)
	assert.Equal(t, "Sample - Superstore", ds.Caption)
	assert.Equal(t, "federated", ds.ConnectionKind)

	var tables []string
	for _, tbl := range ds.Tables {
		tables = append(tables, tbl.Name)
	}
	assert.Equal(t, []string{"Orders", "People", workbook.DefaultTable}, tables)

	orders := ds.Tables[0]
	var cols []string
	for _, c := range orders.Columns {
		cols = append(cols, c.Name)
	}
	assert.Equal(t, []string{"Order ID", "Order Date", "Region", "Category", "Sales", "Profit"}, cols)
}

func TestBuildColumns(t *testing.T) {
	wb := loadSuperstore(t)

	f, ok := wb.Field("federated.0a1b2c.[Sales]")
	require.True(t, ok)
	assert.Equal(t, workbook.FieldColumn, f.Kind)
	assert.Equal(t, workbook.KindReal, f.Column.DataKind)
	assert.Equal(t, workbook.RoleMeasure, f.Column.Role)
	assert.Equal(t, "sum", f.Column.DefaultAggregation)

	region, ok := wb.Field("federated.0a1b2c.[Region]")
	require.True(t, ok)
	assert.Equal(t, "Order Region", region.Column.DisplayName())
	assert.Equal(t, workbook.RoleDimension, region.Column.Role)

	manager, ok := wb.Field("federated.0a1b2c.[Regional Manager]")
	require.True(t, ok)
	assert.Equal(t, "Person", manager.Column.Caption)
	assert.Equal(t, "federated.0a1b2c.People", manager.Column.TableID)

	rowID, ok := wb.Field("federated.0a1b2c.[Row ID]")
	require.True(t, ok)
	assert.True(t, rowID.Column.Hidden)
	assert.Equal(t, workbook.KindInteger, rowID.Column.DataKind)
	assert.Equal(t, workbook.RoleDimension, rowID.Column.Role)
}

func TestBuildParameters(t *testing.T) {
	wb := loadSuperstore(t)

	require.Len(t, wb.Parameters, 2)

	topN := wb.Parameters[0]
	assert.Equal(t, "Parameters.[Parameter 1]", topN.ID)
	assert.Equal(t, "Top N", topN.DisplayName())
	assert.Equal(t, workbook.KindInteger, topN.DataKind)
	assert.Equal(t, "10", topN.Default)
	assert.Equal(t, workbook.Constraint{Kind: workbook.ConstraintRange, Min: "1", Max: "20"}, topN.Constraint)

	choice := wb.Parameters[1]
	assert.Equal(t, "East", choice.Default)
	assert.Equal(t, workbook.ConstraintEnumerated, choice.Constraint.Kind)
	assert.Equal(t, []string{"East", "West"}, choice.Constraint.Values)

	_, isDatasource := wb.Datasource(workbook.ParametersDatasource)
	assert.False(t, isDatasource)
}

func TestBuildCalculatedFields(t *testing.T) {
	wb := loadSuperstore(t)

	var names []string
	for _, cf := range wb.CalculatedFields {
		names = append(names, cf.DisplayName())
	}
	// Orphan references a column that does not exist and is dropped.
	assert.Equal(t, []string{"Profit Ratio", "Region Sales", "Running Sales", "Is Selected Region", "Broken"}, names)

	ratio := wb.CalculatedFields[0]
	assert.Equal(t, "federated.0a1b2c.[Calculation_1]", ratio.ID)
	assert.Equal(t, "SUM([Profit]) / SUM([Sales])", ratio.Formula)
	assert.Equal(t, []string{"federated.0a1b2c.[Profit]", "federated.0a1b2c.[Sales]"}, ratio.References)

	selected := wb.CalculatedFields[3]
	assert.Equal(t, []string{"federated.0a1b2c.[Region]", "Parameters.[Parameter 2]"}, selected.References)

	// Syntax errors are kept for the translator to report.
	broken := wb.CalculatedFields[4]
	assert.Equal(t, "SUM([Sales]", broken.Formula)
}

func TestBuildWorksheets(t *testing.T) {
	wb := loadSuperstore(t)
	require.Len(t, wb.Worksheets, 3)

	ws, ok := wb.Worksheet("Sales by Region")
	require.True(t, ok)
	assert.Equal(t, "Sales by Region", ws.Title)
	assert.Equal(t, "federated.0a1b2c", ws.DatasourceID)
	assert.Equal(t, "Bar", ws.VisualHint)
	assert.False(t, ws.DualAxis)

	assert.Equal(t, []workbook.Shelf{
		{Kind: workbook.ShelfRows, Fields: []workbook.FieldUse{{FieldID: "federated.0a1b2c.[Region]"}}},
		{Kind: workbook.ShelfColumns, Fields: []workbook.FieldUse{{FieldID: "federated.0a1b2c.[Sales]", Aggregation: "sum"}}},
		{Kind: workbook.ShelfColor, Fields: []workbook.FieldUse{{FieldID: "federated.0a1b2c.[Region]"}}},
		{Kind: workbook.ShelfTooltip, Fields: []workbook.FieldUse{{FieldID: "federated.0a1b2c.[Calculation_1]"}}},
	}, ws.Shelves)

	require.Len(t, ws.Filters, 1)
	assert.Equal(t, "federated.0a1b2c.[Category]", ws.Filters[0].FieldID)
	assert.Equal(t, workbook.Constraint{
		Kind:   workbook.ConstraintEnumerated,
		Values: []string{"Furniture", "Technology"},
	}, ws.Filters[0].Constraint)

	trend, ok := wb.Worksheet("Profit Trend")
	require.True(t, ok)
	assert.Equal(t, "Line", trend.VisualHint)
	assert.True(t, trend.DualAxis)
	assert.Equal(t, "Profit Trend", trend.Title)
	require.Len(t, trend.Shelves, 2)
	assert.Equal(t, []workbook.FieldUse{
		{FieldID: "federated.0a1b2c.[Sales]", Aggregation: "sum"},
		{FieldID: "federated.0a1b2c.[Profit]", Aggregation: "sum"},
	}, trend.Shelves[0].Fields)
	assert.Equal(t, []workbook.FieldUse{{FieldID: "federated.0a1b2c.[Order Date]"}}, trend.Shelves[1].Fields)

	custom, ok := wb.Worksheet("Custom")
	require.True(t, ok)
	assert.Equal(t, "CustomViz", custom.VisualHint)
	assert.Empty(t, custom.Shelves)
}

func TestBuildDashboards(t *testing.T) {
	wb := loadSuperstore(t)
	require.Len(t, wb.Dashboards, 1)

	db := wb.Dashboards[0]
	assert.Equal(t, "Overview", db.Name)
	assert.Equal(t, 1000, db.Width)
	assert.Equal(t, 800, db.Height)

	var ids []string
	for _, z := range db.Zones {
		ids = append(ids, z.ID)
	}
	// Zone 3 names a worksheet that does not exist.
	assert.Equal(t, []string{"4", "1", "2", "5"}, ids)

	container, viz, text := db.Zones[0], db.Zones[2], db.Zones[3]
	assert.Equal(t, workbook.ZoneContainer, container.Kind)
	assert.Equal(t, workbook.Rect{X: 0, Y: 0, W: 1, H: 1}, container.Rect)

	assert.Equal(t, workbook.ZoneViz, viz.Kind)
	assert.Equal(t, "Profit Trend", viz.WorksheetID)
	assert.Equal(t, "4", viz.ParentID)
	assert.Equal(t, workbook.Rect{X: 0, Y: 0.5, W: 0.5, H: 0.5}, viz.Rect)

	assert.Equal(t, workbook.ZoneText, text.Kind)
	assert.Equal(t, 1.0, text.Rect.H)
	assert.LessOrEqual(t, text.Rect.X+text.Rect.W, 1.0+1e-9)
}

func TestBuildWarnings(t *testing.T) {
	wb := loadSuperstore(t)

	var kinds []workbook.WarningKind
	for _, w := range wb.Warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.Equal(t, []workbook.WarningKind{
		workbook.WarnCalculatedField,
		workbook.WarnShelfField,
		workbook.WarnZone,
	}, kinds)

	assert.Equal(t, "federated.0a1b2c.[Calculation_6]", wb.Warnings[0].ID)
	assert.Contains(t, wb.Warnings[0].Reason, "Discount")
	assert.Equal(t, "Overview/3", wb.Warnings[2].ID)
}

func TestBuildDropsDependentCalculations(t *testing.T) {
	src := `<workbook><datasources><datasource name='ds'>
  <column name='[a]' datatype='real'/>
  <column name='[c1]' caption='C1'><calculation class='tableau' formula='[missing] + 1'/></column>
  <column name='[c2]' caption='C2'><calculation class='tableau' formula='[c1] * 2'/></column>
  <column name='[c3]' caption='C3'><calculation class='tableau' formula='[C2] + [a]'/></column>
  <column name='[c4]' caption='C4'><calculation class='tableau' formula='[a] * 3'/></column>
</datasource></datasources></workbook>`

	root, err := workbook.ParseMarkup(strings.NewReader(src))
	require.NoError(t, err)
	wb, err := workbook.Build(root, workbook.BuildOptions{Name: "chain"})
	require.NoError(t, err)

	require.Len(t, wb.CalculatedFields, 1)
	assert.Equal(t, "C4", wb.CalculatedFields[0].DisplayName())
	assert.Len(t, wb.Warnings, 3)
}

func TestBuildDropsCircularCalculations(t *testing.T) {
	src := `<workbook><datasources><datasource name='ds'>
  <column name='[a]' datatype='real'/>
  <column name='[c1]' caption='C1'><calculation class='tableau' formula='[c2] + 1'/></column>
  <column name='[c2]' caption='C2'><calculation class='tableau' formula='[c1] * 2'/></column>
  <column name='[c3]' caption='C3'><calculation class='tableau' formula='[c2] + [a]'/></column>
  <column name='[c4]' caption='C4'><calculation class='tableau' formula='[a] * 3'/></column>
  <column name='[c5]' caption='C5'><calculation class='tableau' formula='[c4] / 2'/></column>
</datasource></datasources></workbook>`

	root, err := workbook.ParseMarkup(strings.NewReader(src))
	require.NoError(t, err)
	wb, err := workbook.Build(root, workbook.BuildOptions{Name: "cycle"})
	require.NoError(t, err)

	var names []string
	for _, cf := range wb.CalculatedFields {
		names = append(names, cf.DisplayName())
	}
	assert.Equal(t, []string{"C4", "C5"}, names)

	require.Len(t, wb.Warnings, 3)
	assert.Equal(t, "ds.[c1]", wb.Warnings[0].ID)
	assert.Equal(t, "circular reference: ds.[c1] -> ds.[c2] -> ds.[c1]", wb.Warnings[0].Reason)
	assert.Equal(t, "ds.[c3]", wb.Warnings[2].ID)
	assert.Contains(t, wb.Warnings[2].Reason, "depends on circular field")

	_, ok := wb.Field("ds.[c1]")
	assert.False(t, ok)

	deps := wb.Dependencies()
	assert.Equal(t, []string{"ds.[c4]", "ds.[c5]"}, deps.Fields())
	assert.Equal(t, []string{"ds.[c5]"}, deps.Dependents("ds.[c4]"))
}

func TestBuildRejectsNonWorkbook(t *testing.T) {
	root, err := workbook.ParseMarkup(strings.NewReader("<document/>"))
	require.NoError(t, err)

	_, err = workbook.Build(root, workbook.BuildOptions{})
	var schemaErr *workbook.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "document", schemaErr.Element)
}

func TestLoadWrapsMarkupErrors(t *testing.T) {
	_, err := workbook.Load("bad.twb", []byte("<workbook><x></workbook>"), workbook.LoadOptions{})
	require.Error(t, err)

	var markupErr *workbook.MarkupError
	assert.True(t, errors.As(err, &markupErr))
	assert.True(t, strings.HasPrefix(err.Error(), "bad.twb: "))
}

func TestLoadIsDeterministic(t *testing.T) {
	data, err := os.ReadFile(superstore)
	require.NoError(t, err)

	a, err := workbook.Load("superstore.twb", data, workbook.LoadOptions{})
	require.NoError(t, err)
	b, err := workbook.Load("superstore.twb", data, workbook.LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a.Warnings, b.Warnings)
	assert.Equal(t, len(a.CalculatedFields), len(b.CalculatedFields))
}

func TestIsWorkbookFile(t *testing.T) {
	assert.True(t, workbook.IsWorkbookFile("a/b/Sales.TWBX"))
	assert.True(t, workbook.IsWorkbookFile("Sales.twb"))
	assert.False(t, workbook.IsWorkbookFile("Sales.xml"))
	assert.Equal(t, "Sales", workbook.WorkbookName("/tmp/Sales.twbx"))
}
