package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelect(t *testing.T) {
	datePart := Rule{
		Name: "DATEPART", Kind: KindApproximate, Confidence: 0.9, Caveat: "c",
		MinArgs: 2, UnitArg: 1,
		Units: map[string]string{"year": "YEAR($2)"},
	}
	ifnull := Rule{Name: "IFNULL", Kind: KindDirect, Confidence: 1, Template: "IF(ISBLANK($1), $2, $1)"}
	rename := Rule{Name: "LEN", Target: "LEN", Kind: KindDirect, Confidence: 1}

	tests := []struct {
		name       string
		rule       Rule
		argc       int
		unit       string
		wantTmpl   string
		wantReason string
	}{
		{"unit selected", datePart, 2, "YEAR", "YEAR($2)", ""},
		{"dynamic unit", datePart, 2, "", "", ReasonDynamicDatePart},
		{"unknown unit", datePart, 2, "fortnight", "", ReasonUnknownDatePart},
		{"too few args for unit rule", datePart, 1, "year", "", ReasonArity},
		{"template arity ok", ifnull, 2, "", "IF(ISBLANK($1), $2, $1)", ""},
		{"template arity short", ifnull, 1, "", "", ReasonArity},
		{"plain rename", rename, 1, "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, reason := tt.rule.Select(tt.argc, tt.unit)
			assert.Equal(t, tt.wantTmpl, tmpl)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestExpand(t *testing.T) {
	tests := []struct {
		template string
		args     []string
		want     string
	}{
		{"IF(ISBLANK($1), 0, $1)", []string{"[x]"}, "IF(ISBLANK([x]), 0, [x])"},
		{"FIND($2, $1, 1, 0)", []string{"a", "b"}, "FIND(b, a, 1, 0)"},
		{"CONCAT($*)", []string{"a", "b", "c"}, "CONCAT(a, b, c)"},
		{"COST($)", nil, "COST($)"},
		{"X($x)", nil, "X($x)"},
		{"EDATE($2, 12 * $1)", []string{"[n] - 1", "[d]"}, "EDATE([d], 12 * ([n] - 1))"},
		{"$2 + 7 * $1", []string{"[n] + 1", "[d]"}, "([d] + 7 * ([n] + 1))"},
		{"$2 + 7 * $1", []string{"-2", "'T'[d]"}, "('T'[d] + 7 * (-2))"},
		{"LEFT($1, LEN($2)) = $2", []string{"[a]", `"x y"`}, `(LEFT([a], LEN("x y")) = "x y")`},
		{"POWER($1, 2)", []string{"[a] + 1"}, "POWER([a] + 1, 2)"},
		{"$1", []string{"[a] & [b]"}, "([a] & [b])"},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(tt.template, tt.args))
		})
	}
}

func TestCompound(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"[Order Date]", false},
		{"'Order Lines'[Unit Price]", false},
		{"'It''s here'[a]]b c]", false},
		{`"a + b"`, false},
		{`"say ""hi there"""`, false},
		{"SUM('Orders'[Sales] * 2)", false},
		{`{"East", "West"}`, false},
		{"(a + b)", false},
		{"42", false},
		{"a + b", true},
		{"-[x]", true},
		{"[a] IN {1, 2}", true},
		{"DATE(2024, 1, 1) + TIME(1, 0, 0)", true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, compound(tt.text))
		})
	}
}
