package canonical

import "sort"

// FallbackVisual is the generic tabular visual used for anything unmapped.
const FallbackVisual = "tableEx"

// Visual caveats.
const (
	CaveatUnknownVisual   = "unknown_visual_type"
	CaveatMissingVisual   = "missing_visual_type"
	CaveatAutomaticVisual = "automatic_mark_type"
	CaveatDualAxis        = "dual_axis"
)

type visualMapping struct {
	tag    string
	caveat string
}

// visualTable maps native mark classes to target visual tags. Matching is
// exact; case variants are not folded.
var visualTable = map[string]visualMapping{
	"Bar":          {tag: "clusteredColumnChart"},
	"Line":         {tag: "lineChart"},
	"Area":         {tag: "areaChart"},
	"Pie":          {tag: "pieChart"},
	"Circle":       {tag: "scatterChart"},
	"Shape":        {tag: "scatterChart"},
	"Square":       {tag: "pivotTable"},
	"Text":         {tag: "tableEx"},
	"Polygon":      {tag: "filledMap"},
	"Multipolygon": {tag: "filledMap"},
	"Map":          {tag: "map"},
	"GanttBar":     {tag: "clusteredBarChart"},
	"Gantt Bar":    {tag: "clusteredBarChart"},
	"Automatic":    {tag: FallbackVisual, caveat: CaveatAutomaticVisual},
}

// MapVisual returns the target tag for a native mark class and the caveat
// to record, if any. It never fails.
func MapVisual(hint string) (tag, caveat string) {
	if hint == "" {
		return FallbackVisual, CaveatMissingVisual
	}
	m, ok := visualTable[hint]
	if !ok {
		return FallbackVisual, CaveatUnknownVisual
	}
	return m.tag, m.caveat
}

// VisualMapping is one row of the visual table, for listings.
type VisualMapping struct {
	Native string
	Target string
	Caveat string
}

// VisualTable returns the visual table sorted by native mark class.
func VisualTable() []VisualMapping {
	out := make([]VisualMapping, 0, len(visualTable))
	for native, m := range visualTable {
		out = append(out, VisualMapping{Native: native, Target: m.tag, Caveat: m.caveat})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Native < out[j].Native })
	return out
}
