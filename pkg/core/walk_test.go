package core

import (
	"testing"

	"github.com/leapstack-labs/vizmigrate/pkg/token"
	"github.com/stretchr/testify/assert"
)

func TestWalkPreOrder(t *testing.T) {
	// IF [a] > 0 THEN SUM([b]) ELSE {FIXED [c] : MAX([d])} END
	expr := &IfExpr{
		Branches: []WhenClause{{
			Condition: &BinaryExpr{
				Left:  &FieldRef{Name: "a"},
				Op:    token.GT,
				Right: &Literal{Type: LiteralNumber, Value: "0"},
			},
			Result: &FuncCall{Name: "SUM", Args: []Expr{&FieldRef{Name: "b"}}},
		}},
		Else: &LodExpr{
			Kind: LodFixed,
			Dims: []Expr{&FieldRef{Name: "c"}},
			Expr: &FuncCall{Name: "MAX", Args: []Expr{&FieldRef{Name: "d"}}},
		},
	}

	var names []string
	for _, f := range FieldRefs(expr) {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
}

func TestWalkSkipChildren(t *testing.T) {
	expr := &FuncCall{Name: "SUM", Args: []Expr{&FieldRef{Name: "x"}}}

	visited := 0
	Walk(expr, func(Expr) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}

func TestFieldRefQualified(t *testing.T) {
	assert.Equal(t, "[Sales]", (&FieldRef{Name: "Sales"}).Qualified())
	assert.Equal(t, "[orders].[Sales]", (&FieldRef{Datasource: "orders", Name: "Sales"}).Qualified())
}

func TestLiteralTypeString(t *testing.T) {
	tests := []struct {
		typ  LiteralType
		want string
	}{
		{LiteralNumber, "number"},
		{LiteralString, "string"},
		{LiteralBool, "bool"},
		{LiteralNull, "null"},
		{LiteralDate, "date"},
		{LiteralType(42), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}
