package canonical

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/leapstack-labs/vizmigrate/pkg/workbook"
)

// visualNamespace seeds the name-based visual IDs, so the same worksheet
// always maps to the same visual ID.
var visualNamespace = uuid.MustParse("6f1c2d7e-4b0a-5c3e-9a8f-2d1e0b7c6a59")

// Page size used when a workbook has no dashboards.
const (
	defaultPageWidth  = 1280
	defaultPageHeight = 720
)

// VisualID returns the stable visual ID of a worksheet.
func VisualID(worksheetID string) string {
	return uuid.NewSHA1(visualNamespace, []byte(worksheetID)).String()
}

type visualSlot struct {
	visual   VisualDefinition
	warnings []Warning
}

// mapVisuals maps every worksheet to a visual definition, in source order.
// It runs after measures so encodings only bind to fields that made it into
// the dataset.
func (t *Transformer) mapVisuals(ctx context.Context, wb *workbook.Workbook, m *model, s *Schema) error {
	present := make(map[string]bool, len(s.Dataset.Measures))
	for _, ms := range s.Dataset.Measures {
		present[ms.SourceID] = true
	}

	slots := make([]visualSlot, len(wb.Worksheets))
	err := parallel(ctx, len(wb.Worksheets), t.workers, func(i int) {
		slots[i] = mapWorksheet(wb, m, present, wb.Worksheets[i])
	})
	if err != nil {
		return err
	}

	s.Visuals = make([]VisualDefinition, 0, len(slots))
	for _, slot := range slots {
		s.Visuals = append(s.Visuals, slot.visual)
		s.Warnings = append(s.Warnings, slot.warnings...)
	}
	return nil
}

func mapWorksheet(wb *workbook.Workbook, m *model, present map[string]bool, ws *workbook.Worksheet) visualSlot {
	tag, caveat := MapVisual(ws.VisualHint)
	v := VisualDefinition{
		ID:          VisualID(ws.ID),
		WorksheetID: ws.ID,
		Title:       ws.Title,
		VisualType:  tag,
		NativeType:  ws.VisualHint,
		Encodings:   []Encoding{},
	}
	if caveat != "" {
		v.Caveats = append(v.Caveats, caveat)
	}
	if ws.DualAxis {
		v.Caveats = append(v.Caveats, CaveatDualAxis)
	}

	var warnings []Warning
	for _, shelf := range ws.Shelves {
		for _, use := range shelf.Fields {
			enc, ok := m.encoding(wb, present, shelf.Kind, use)
			if !ok {
				warnings = append(warnings, Warning{
					Kind:   WarnDroppedEncoding,
					ID:     ws.ID,
					Reason: fmt.Sprintf("%s field %s is not in the dataset", shelf.Kind, use.FieldID),
				})
				continue
			}
			v.Encodings = append(v.Encodings, enc)
		}
	}
	return visualSlot{visual: v, warnings: warnings}
}

// encoding resolves a shelf field to a dataset field and picks its role.
// Fields whose calculated field was not translated do not resolve.
func (m *model) encoding(wb *workbook.Workbook, present map[string]bool, kind workbook.ShelfKind, use workbook.FieldUse) (Encoding, bool) {
	f, ok := wb.Field(use.FieldID)
	if !ok {
		return Encoding{}, false
	}

	enc := Encoding{Aggregation: use.Aggregation}
	switch f.Kind {
	case workbook.FieldCalculated:
		if !present[use.FieldID] {
			return Encoding{}, false
		}
		enc.Field = m.measureNames[use.FieldID]
		enc.Table = m.homeTable(f.Calculated.DatasourceID)
		enc.IsMeasure = true
	case workbook.FieldParameter:
		enc.Field = m.paramNames[use.FieldID]
		enc.Table = m.defaultTable()
		enc.IsMeasure = true
	default:
		c, ok := m.columns[use.FieldID]
		if !ok {
			return Encoding{}, false
		}
		enc.Field = c.name
		enc.Table = c.table
		enc.IsMeasure = c.measure || use.Aggregation != ""
	}
	enc.Role = encodingRole(kind, enc.IsMeasure)
	return enc, true
}

func encodingRole(kind workbook.ShelfKind, measure bool) string {
	switch kind {
	case workbook.ShelfColor, workbook.ShelfShape:
		return RoleSeries
	case workbook.ShelfSize:
		return RoleSize
	case workbook.ShelfTooltip:
		return RoleTooltips
	case workbook.ShelfDetail, workbook.ShelfPages:
		return RoleDetails
	}
	// rows, columns, label and text
	if measure {
		return RoleValues
	}
	return RoleCategory
}

// buildPages lays visuals out per dashboard, carrying zone rects unchanged.
// Without dashboards every worksheet gets its own page.
func buildPages(wb *workbook.Workbook, s *Schema) {
	byWorksheet := make(map[string]int, len(s.Visuals))
	for i, v := range s.Visuals {
		byWorksheet[v.WorksheetID] = i
	}

	names := nameSet{}
	if len(wb.Dashboards) == 0 {
		for _, v := range s.Visuals {
			ws, _ := wb.Worksheet(v.WorksheetID)
			s.Pages = append(s.Pages, Page{
				Name:        names.unique(Sanitize(ws.Name)),
				DisplayName: ws.Name,
				Width:       defaultPageWidth,
				Height:      defaultPageHeight,
				Visuals:     []string{v.ID},
			})
		}
		return
	}

	for _, db := range wb.Dashboards {
		page := Page{
			DashboardID: db.ID,
			Name:        names.unique(Sanitize(db.Name)),
			DisplayName: db.Name,
			Width:       db.Width,
			Height:      db.Height,
			Visuals:     []string{},
		}
		seen := make(map[string]bool)
		for _, z := range db.Zones {
			if z.Kind != workbook.ZoneViz {
				continue
			}
			i, ok := byWorksheet[z.WorksheetID]
			if !ok {
				continue
			}
			v := &s.Visuals[i]
			v.Placements = append(v.Placements, Placement{
				DashboardID: db.ID,
				ZoneID:      z.ID,
				Rect:        z.Rect,
			})
			if !seen[v.ID] {
				seen[v.ID] = true
				page.Visuals = append(page.Visuals, v.ID)
			}
		}
		s.Pages = append(s.Pages, page)
	}
}
