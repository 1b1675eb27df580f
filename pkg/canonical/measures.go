package canonical

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
	"github.com/leapstack-labs/vizmigrate/pkg/translate"
	"github.com/leapstack-labs/vizmigrate/pkg/workbook"
)

// ReasonDependsOnUnsupported marks a formula that translated on its own but
// references a calculated field that did not.
const ReasonDependsOnUnsupported = "depends_on_unsupported"

// translateFields turns every calculated field into a measure or an
// unsupported record, in source order.
func (t *Transformer) translateFields(ctx context.Context, wb *workbook.Workbook, m *model, s *Schema) error {
	fields := wb.CalculatedFields
	results := make([]translate.Result, len(fields))
	err := parallel(ctx, len(fields), t.workers, func(i int) {
		f := fields[i]
		results[i] = t.translator.Translate(f.Formula, m.resolver(f.DatasourceID))
	})
	if err != nil {
		return err
	}

	propagateUnsupported(wb, results)

	s.Dataset.Measures = make([]Measure, 0, len(fields))
	for i, f := range fields {
		res := results[i]
		if !res.Supported() {
			s.Unsupported = append(s.Unsupported, UnsupportedFeatureRecord{
				Category: res.Category,
				OriginID: f.ID,
				Item:     f.DisplayName(),
				Reason:   res.Reason,
				Formula:  f.Formula,
			})
			s.Summary.MeasuresFlagged++
			continue
		}

		s.Dataset.Measures = append(s.Dataset.Measures, Measure{
			Name:          m.measureNames[f.ID],
			DisplayName:   f.DisplayName(),
			Table:         m.homeTable(f.DatasourceID),
			Expression:    res.Expression,
			SourceFormula: f.Formula,
			Confidence:    res.Confidence,
			Caveats:       res.Caveats,
			Aggregation:   res.Aggregation,
			SourceID:      f.ID,
		})
		if res.Confidence < t.flagBelow {
			s.Summary.MeasuresFlagged++
			s.Warnings = append(s.Warnings, Warning{
				Kind:   WarnLowConfidence,
				ID:     f.ID,
				Reason: fmt.Sprintf("confidence %.2f below %.2f", res.Confidence, t.flagBelow),
			})
			continue
		}
		s.Summary.MeasuresTranslated++
	}
	return nil
}

// propagateUnsupported marks translated fields that reference an
// untranslated one, directly or through other fields. Their measure would
// point at a name missing from the dataset.
func propagateUnsupported(wb *workbook.Workbook, results []translate.Result) {
	index := make(map[string]int, len(wb.CalculatedFields))
	var unsupported []string
	for i, f := range wb.CalculatedFields {
		index[f.ID] = i
		if !results[i].Supported() {
			unsupported = append(unsupported, f.ID)
		}
	}
	if len(unsupported) == 0 {
		return
	}

	for _, id := range wb.Dependencies().Downstream(unsupported...) {
		i, ok := index[id]
		if !ok || !results[i].Supported() {
			continue
		}
		results[i] = translate.Result{
			Formula:  wb.CalculatedFields[i].Formula,
			Category: dialect.CategoryOther,
			Reason:   ReasonDependsOnUnsupported,
			Caveats:  []string{ReasonDependsOnUnsupported},
		}
	}
}
