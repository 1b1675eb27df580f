package canonical_test

import (
	"context"
	"testing"

	"github.com/leapstack-labs/vizmigrate/internal/testutil"
	"github.com/leapstack-labs/vizmigrate/pkg/canonical"
	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
	"github.com/leapstack-labs/vizmigrate/pkg/workbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadWorkbook(t *testing.T, path string) *workbook.Workbook {
	t.Helper()
	wb, err := workbook.LoadFile(path, workbook.LoadOptions{Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	return wb
}

func loadInline(t *testing.T, name, markup string) *workbook.Workbook {
	t.Helper()
	wb, err := workbook.Load(name, []byte(markup), workbook.LoadOptions{})
	require.NoError(t, err)
	return wb
}

func transform(t *testing.T, wb *workbook.Workbook, opts ...canonical.Option) *canonical.Schema {
	t.Helper()
	opts = append([]canonical.Option{canonical.WithLogger(testutil.NewTestLogger(t))}, opts...)
	s, err := canonical.NewTransformer(opts...).Transform(context.Background(), wb)
	require.NoError(t, err)
	return s
}

func TestTransformSuperstore(t *testing.T) {
	s := transform(t, loadWorkbook(t, "../workbook/testdata/superstore.twb"))

	assert.Equal(t, "superstore", s.Name)
	assert.Equal(t, "flat", s.Source.Format)
	assert.Len(t, s.Source.Fingerprint, 16)

	t.Run("tables", func(t *testing.T) {
		var names []string
		for _, tbl := range s.Dataset.Tables {
			names = append(names, tbl.Name)
		}
		assert.Equal(t, []string{"Orders", "People", "Default"}, names)

		orders := s.Dataset.Tables[0]
		var cols []string
		for _, c := range orders.Columns {
			cols = append(cols, c.Name)
		}
		assert.Equal(t, []string{"Order_ID", "Order_Date", "Region", "Category", "Sales", "Profit"}, cols)
		assert.Equal(t, "Order Region", orders.Columns[2].DisplayName)
		assert.Equal(t, canonical.TypeDate, orders.Columns[1].SemanticType)
		assert.True(t, orders.Columns[4].IsMeasure)
		assert.Equal(t, canonical.TypeDouble, orders.Columns[4].SemanticType)

		people := s.Dataset.Tables[1]
		require.Len(t, people.Columns, 1)
		assert.Equal(t, "Regional_Manager", people.Columns[0].Name)
		assert.Equal(t, "Person", people.Columns[0].DisplayName)

		rowID := s.Dataset.Tables[2].Columns[0]
		assert.Equal(t, "Row_ID", rowID.Name)
		assert.True(t, rowID.Hidden)
		assert.Equal(t, canonical.TypeInt64, rowID.SemanticType)
	})

	t.Run("measures", func(t *testing.T) {
		require.Len(t, s.Dataset.Measures, 2)

		ratio := s.Dataset.Measures[0]
		assert.Equal(t, "Profit_Ratio", ratio.Name)
		assert.Equal(t, "Profit Ratio", ratio.DisplayName)
		assert.Equal(t, "Orders", ratio.Table)
		assert.Equal(t, "SUM('Orders'[Profit]) / SUM('Orders'[Sales])", ratio.Expression)
		assert.Equal(t, "SUM([Profit]) / SUM([Sales])", ratio.SourceFormula)
		assert.InDelta(t, 1.0, ratio.Confidence, 1e-9)
		assert.Equal(t, "sum", ratio.Aggregation)
		assert.Equal(t, "federated.0a1b2c.[Calculation_1]", ratio.SourceID)

		selected := s.Dataset.Measures[1]
		assert.Equal(t, "Is_Selected_Region", selected.Name)
		assert.Equal(t, "'Orders'[Region] = [Region_Choice]", selected.Expression)
		assert.InDelta(t, 0.7, selected.Confidence, 1e-9)
		assert.Equal(t, []string{"row_level_calculation"}, selected.Caveats)
	})

	t.Run("parameters", func(t *testing.T) {
		require.Len(t, s.Dataset.Parameters, 2)

		topN := s.Dataset.Parameters[0]
		assert.Equal(t, "Top_N", topN.Name)
		assert.Equal(t, canonical.TypeInt64, topN.SemanticType)
		assert.Equal(t, "10", topN.Expression)
		assert.Equal(t, "range", topN.Domain)
		assert.Equal(t, "1", topN.Min)
		assert.Equal(t, "20", topN.Max)

		choice := s.Dataset.Parameters[1]
		assert.Equal(t, "Region_Choice", choice.Name)
		assert.Equal(t, `"East"`, choice.Expression)
		assert.Equal(t, "enumerated", choice.Domain)
		assert.Equal(t, []string{"East", "West"}, choice.Values)
	})

	t.Run("unsupported", func(t *testing.T) {
		require.Len(t, s.Unsupported, 3)

		assert.Equal(t, canonical.UnsupportedFeatureRecord{
			Category: dialect.CategoryLod,
			OriginID: "federated.0a1b2c.[Calculation_2]",
			Item:     "Region Sales",
			Reason:   "lod_expression",
			Formula:  "{FIXED [Region] : SUM([Sales])}",
		}, s.Unsupported[0])

		assert.Equal(t, dialect.CategoryTableCalc, s.Unsupported[1].Category)
		assert.Equal(t, "RUNNING_SUM(SUM([Sales]))", s.Unsupported[1].Formula)

		assert.Equal(t, dialect.CategoryOther, s.Unsupported[2].Category)
		assert.Equal(t, dialect.ReasonSyntaxError, s.Unsupported[2].Reason)
		assert.Equal(t, "SUM([Sales]", s.Unsupported[2].Formula)
	})

	t.Run("visuals", func(t *testing.T) {
		require.Len(t, s.Visuals, 3)

		bar := s.Visuals[0]
		assert.Equal(t, "Sales by Region", bar.WorksheetID)
		assert.Equal(t, "Sales by Region", bar.Title)
		assert.Equal(t, "clusteredColumnChart", bar.VisualType)
		assert.Equal(t, "Bar", bar.NativeType)
		assert.Empty(t, bar.Caveats)
		assert.Equal(t, []canonical.Encoding{
			{Role: canonical.RoleCategory, Field: "Region", Table: "Orders"},
			{Role: canonical.RoleValues, Field: "Sales", Table: "Orders", IsMeasure: true, Aggregation: "sum"},
			{Role: canonical.RoleSeries, Field: "Region", Table: "Orders"},
			{Role: canonical.RoleTooltips, Field: "Profit_Ratio", Table: "Orders", IsMeasure: true},
		}, bar.Encodings)

		trend := s.Visuals[1]
		assert.Equal(t, "lineChart", trend.VisualType)
		assert.Equal(t, []string{canonical.CaveatDualAxis}, trend.Caveats)
		assert.Len(t, trend.Encodings, 3)

		custom := s.Visuals[2]
		assert.Equal(t, canonical.FallbackVisual, custom.VisualType)
		assert.Equal(t, "CustomViz", custom.NativeType)
		assert.Equal(t, []string{canonical.CaveatUnknownVisual}, custom.Caveats)
		assert.Empty(t, custom.Encodings)
		assert.Empty(t, custom.Placements)
	})

	t.Run("pages", func(t *testing.T) {
		require.Len(t, s.Pages, 1)
		page := s.Pages[0]
		assert.Equal(t, "Overview", page.Name)
		assert.Equal(t, 1000, page.Width)
		assert.Equal(t, 800, page.Height)
		assert.Equal(t, []string{s.Visuals[0].ID, s.Visuals[1].ID}, page.Visuals)

		assert.Equal(t, []canonical.Placement{{
			DashboardID: "Overview",
			ZoneID:      "1",
			Rect:        workbook.Rect{X: 0, Y: 0, W: 1, H: 0.5},
		}}, s.Visuals[0].Placements)
		assert.Equal(t, []canonical.Placement{{
			DashboardID: "Overview",
			ZoneID:      "2",
			Rect:        workbook.Rect{X: 0, Y: 0.5, W: 0.5, H: 0.5},
		}}, s.Visuals[1].Placements)
	})

	t.Run("diagnostics", func(t *testing.T) {
		var kinds []string
		for _, w := range s.Warnings {
			kinds = append(kinds, w.Kind)
		}
		assert.Equal(t, []string{"calculated_field", "shelf_field", "zone"}, kinds)

		assert.Equal(t, canonical.Summary{
			TablesCreated:       3,
			MeasuresTranslated:  2,
			MeasuresFlagged:     3,
			WorksheetsProcessed: 3,
			DashboardsProcessed: 1,
			VisualsMapped:       3,
		}, s.Summary)
	})
}

func TestTransformInvariants(t *testing.T) {
	s := transform(t, loadWorkbook(t, "../workbook/testdata/superstore.twb"))

	fields := make(map[string]bool)
	for _, tbl := range s.Dataset.Tables {
		for _, c := range tbl.Columns {
			fields[tbl.Name+"/"+c.Name] = true
		}
	}
	for _, m := range s.Dataset.Measures {
		fields[m.Table+"/"+m.Name] = true
	}
	for _, p := range s.Dataset.Parameters {
		fields[p.Table+"/"+p.Name] = true
	}

	for _, v := range s.Visuals {
		for _, e := range v.Encodings {
			assert.True(t, fields[e.Table+"/"+e.Field], "visual %s encodes %s/%s", v.WorksheetID, e.Table, e.Field)
		}
	}

	for _, m := range s.Dataset.Measures {
		assert.GreaterOrEqual(t, m.Confidence, 0.0)
		assert.LessOrEqual(t, m.Confidence, 1.0)
		if m.Confidence == 0 {
			assert.NotEmpty(t, m.Caveats, m.Name)
		}
	}

	for _, u := range s.Unsupported {
		assert.True(t, u.Category.Valid(), u.OriginID)
		assert.NotEmpty(t, u.Formula, u.OriginID)
	}
}

func TestTransformDeterministic(t *testing.T) {
	wb := loadWorkbook(t, "../workbook/testdata/superstore.twb")

	want := transform(t, wb, canonical.WithWorkers(1))
	for _, workers := range []int{2, 8, 32} {
		got := transform(t, wb, canonical.WithWorkers(workers))
		assert.Equal(t, want, got, "workers=%d", workers)
	}
	// Transforming twice yields the same schema.
	assert.Equal(t, want, transform(t, wb, canonical.WithWorkers(1)))
}

const dependentMarkup = `<?xml version='1.0' encoding='utf-8' ?>
<workbook version='18.1'>
  <datasources>
    <datasource caption='Ledger' name='ds'>
      <connection class='textscan'>
        <metadata-records>
          <metadata-record class='column'>
            <remote-name>Amount</remote-name>
            <local-name>[Amount]</local-name>
            <parent-name>[T]</parent-name>
            <local-type>real</local-type>
          </metadata-record>
        </metadata-records>
      </connection>
      <column caption='Fixed' datatype='real' name='[Calculation_1]' role='measure'>
        <calculation class='tableau' formula='{FIXED [Amount] : SUM([Amount])}' />
      </column>
      <column caption='Doubled' datatype='real' name='[Calculation_2]' role='measure'>
        <calculation class='tableau' formula='[Calculation_1] * 2' />
      </column>
      <column caption='Tripled' datatype='real' name='[Calculation_3]' role='measure'>
        <calculation class='tableau' formula='[Doubled] * 3' />
      </column>
      <column caption='Total' datatype='real' name='[Calculation_4]' role='measure'>
        <calculation class='tableau' formula='SUM([Amount])' />
      </column>
    </datasource>
  </datasources>
  <worksheets>
    <worksheet name='W'>
      <table>
        <view>
          <datasources>
            <datasource name='ds' />
          </datasources>
        </view>
        <panes>
          <pane>
            <mark class='Bar' />
          </pane>
        </panes>
        <rows>[ds].[usr:Calculation_2:qk]</rows>
        <cols>[ds].[sum:Calculation_4:qk]</cols>
      </table>
    </worksheet>
  </worksheets>
</workbook>`

func TestTransformPartialFailure(t *testing.T) {
	s := transform(t, loadInline(t, "ledger.twb", dependentMarkup))

	require.Len(t, s.Dataset.Measures, 1)
	assert.Equal(t, "Total", s.Dataset.Measures[0].Name)
	assert.Equal(t, "T", s.Dataset.Measures[0].Table)

	require.Len(t, s.Unsupported, 3)
	assert.Equal(t, dialect.CategoryLod, s.Unsupported[0].Category)
	for _, u := range s.Unsupported[1:] {
		assert.Equal(t, dialect.CategoryOther, u.Category)
		assert.Equal(t, canonical.ReasonDependsOnUnsupported, u.Reason)
	}
	assert.Equal(t, "Doubled", s.Unsupported[1].Item)
	assert.Equal(t, "Tripled", s.Unsupported[2].Item)

	// The untranslated measure is dropped from the visual, the rest stays.
	require.Len(t, s.Visuals, 1)
	assert.Equal(t, []canonical.Encoding{
		{Role: canonical.RoleValues, Field: "Total", Table: "T", IsMeasure: true, Aggregation: "sum"},
	}, s.Visuals[0].Encodings)

	require.Len(t, s.Warnings, 1)
	assert.Equal(t, canonical.WarnDroppedEncoding, s.Warnings[0].Kind)
	assert.Equal(t, "W", s.Warnings[0].ID)

	// No dashboards: one page per worksheet.
	require.Len(t, s.Pages, 1)
	assert.Equal(t, "W", s.Pages[0].Name)
	assert.Equal(t, []string{s.Visuals[0].ID}, s.Pages[0].Visuals)
	assert.Equal(t, 1280, s.Pages[0].Width)

	assert.Equal(t, 1, s.Summary.MeasuresTranslated)
	assert.Equal(t, 3, s.Summary.MeasuresFlagged)
}

func TestTransformFlagBelow(t *testing.T) {
	wb := loadWorkbook(t, "../workbook/testdata/superstore.twb")
	s := transform(t, wb, canonical.WithFlagBelow(0.75))

	// Low confidence measures are kept but counted as flagged.
	assert.Len(t, s.Dataset.Measures, 2)
	assert.Equal(t, 1, s.Summary.MeasuresTranslated)
	assert.Equal(t, 4, s.Summary.MeasuresFlagged)

	last := s.Warnings[len(s.Warnings)-1]
	assert.Equal(t, canonical.WarnLowConfidence, last.Kind)
	assert.Equal(t, "federated.0a1b2c.[Calculation_4]", last.ID)
}

func TestTransformEmptyWorkbook(t *testing.T) {
	s := transform(t, loadInline(t, "empty.twb", `<workbook version='18.1'/>`))

	require.Len(t, s.Dataset.Tables, 1)
	assert.Equal(t, "Data", s.Dataset.Tables[0].Name)
	assert.True(t, s.Dataset.Tables[0].Placeholder)
	assert.Equal(t, "Value", s.Dataset.Tables[0].Columns[0].Name)

	require.Len(t, s.Warnings, 1)
	assert.Equal(t, canonical.WarnPlaceholderTable, s.Warnings[0].Kind)

	assert.Empty(t, s.Dataset.Measures)
	assert.Empty(t, s.Visuals)
	assert.Empty(t, s.Pages)
	assert.Empty(t, s.Unsupported)
	assert.Equal(t, 1, s.Summary.TablesCreated)
}

func TestTransformCanceled(t *testing.T) {
	wb := loadWorkbook(t, "../workbook/testdata/superstore.twb")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := canonical.NewTransformer().Transform(ctx, wb)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, s)
}

func TestVisualID(t *testing.T) {
	a := canonical.VisualID("Sales by Region")
	assert.Equal(t, a, canonical.VisualID("Sales by Region"))
	assert.NotEqual(t, a, canonical.VisualID("Profit Trend"))
	assert.Len(t, a, 36)
}

const lineTotalMarkup = `<?xml version='1.0' encoding='utf-8' ?>
<workbook version='18.1'>
  <datasources>
    <datasource caption='Lines' name='ds'>
      <connection class='textscan'>
        <metadata-records>
          <metadata-record class='column'>
            <remote-name>Price</remote-name>
            <local-name>[Price]</local-name>
            <parent-name>[T]</parent-name>
            <local-type>real</local-type>
          </metadata-record>
          <metadata-record class='column'>
            <remote-name>Qty</remote-name>
            <local-name>[Qty]</local-name>
            <parent-name>[T]</parent-name>
            <local-type>integer</local-type>
          </metadata-record>
        </metadata-records>
      </connection>
      <column caption='Line Total' datatype='real' name='[Calculation_1]' role='measure'>
        <calculation class='tableau' formula='[Price] * [Qty]' />
      </column>
      <column caption='Revenue' datatype='real' name='[Calculation_2]' role='measure'>
        <calculation class='tableau' formula='SUM([Line Total])' />
      </column>
      <column caption='Distinct Totals' datatype='integer' name='[Calculation_3]' role='measure'>
        <calculation class='tableau' formula='COUNTD([Line Total])' />
      </column>
    </datasource>
  </datasources>
</workbook>`

func TestTransformAggregateOverCalculation(t *testing.T) {
	s := transform(t, loadInline(t, "lines.twb", lineTotalMarkup))

	byName := make(map[string]canonical.Measure)
	for _, m := range s.Dataset.Measures {
		byName[m.Name] = m
	}

	revenue, ok := byName["Revenue"]
	require.True(t, ok)
	assert.Equal(t, "SUMX('T', [Line_Total])", revenue.Expression)
	assert.InDelta(t, 0.6, revenue.Confidence, 1e-9)
	assert.Equal(t, []string{"aggregate_over_measure"}, revenue.Caveats)

	// No iterator form exists for a distinct count.
	assert.NotContains(t, byName, "Distinct_Totals")
	require.Len(t, s.Unsupported, 1)
	assert.Equal(t, dialect.CategoryOther, s.Unsupported[0].Category)
	assert.Equal(t, "aggregate_over_measure", s.Unsupported[0].Reason)
	assert.Equal(t, "Distinct Totals", s.Unsupported[0].Item)
}
