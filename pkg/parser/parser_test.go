package parser_test

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/vizmigrate/pkg/core"
	"github.com/leapstack-labs/vizmigrate/pkg/dialects/dax"
	"github.com/leapstack-labs/vizmigrate/pkg/parser"
	"github.com/leapstack-labs/vizmigrate/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, formula string) core.Expr {
	t.Helper()
	expr, err := parser.Parse(formula, dax.DAX)
	require.NoError(t, err)
	require.NotNil(t, expr)
	return expr
}

// ---------- Calls and Fields ----------

func TestParseAggregateCall(t *testing.T) {
	expr := mustParse(t, "sum([Sales])")

	call, ok := expr.(*core.FuncCall)
	require.True(t, ok)
	assert.Equal(t, "SUM", call.Name)
	require.Len(t, call.Args, 1)

	field, ok := call.Args[0].(*core.FieldRef)
	require.True(t, ok)
	assert.Equal(t, "Sales", field.Name)
	assert.Empty(t, field.Datasource)
}

func TestParseQualifiedField(t *testing.T) {
	expr := mustParse(t, "[Parameters].[Target Margin]")

	field, ok := expr.(*core.FieldRef)
	require.True(t, ok)
	assert.Equal(t, "Parameters", field.Datasource)
	assert.Equal(t, "Target Margin", field.Name)
}

func TestParseTableCalcAsWindowCall(t *testing.T) {
	expr := mustParse(t, "RUNNING_SUM(SUM([Sales]))")

	win, ok := expr.(*core.WindowCall)
	require.True(t, ok)
	assert.Equal(t, "RUNNING_SUM", win.Name)
	require.Len(t, win.Args, 1)
	_, ok = win.Args[0].(*core.FuncCall)
	assert.True(t, ok)
}

func TestParseWithoutDialect(t *testing.T) {
	expr, err := parser.Parse("RUNNING_SUM(SUM([Sales]))", nil)
	require.NoError(t, err)
	_, ok := expr.(*core.FuncCall)
	assert.True(t, ok, "without a dialect every call is a FuncCall")
}

func TestParseNoArgCall(t *testing.T) {
	expr := mustParse(t, "TODAY()")
	call, ok := expr.(*core.FuncCall)
	require.True(t, ok)
	assert.Empty(t, call.Args)
}

// ---------- Operators ----------

func TestParsePrecedence(t *testing.T) {
	// 1 + 2 * 3 parses as 1 + (2 * 3)
	expr := mustParse(t, "1 + 2 * 3")

	bin, ok := expr.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.PLUS, bin.Op)

	right, ok := bin.Right.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.STAR, right.Op)
}

func TestParseLeftAssociative(t *testing.T) {
	// 10 - 4 - 3 parses as (10 - 4) - 3
	expr := mustParse(t, "10 - 4 - 3")

	bin := expr.(*core.BinaryExpr)
	left, ok := bin.Left.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.MINUS, left.Op)
}

func TestParsePowerRightAssociative(t *testing.T) {
	// 2 ^ 3 ^ 2 parses as 2 ^ (3 ^ 2)
	expr := mustParse(t, "2 ^ 3 ^ 2")

	bin := expr.(*core.BinaryExpr)
	_, ok := bin.Right.(*core.BinaryExpr)
	assert.True(t, ok)
}

func TestParseLogical(t *testing.T) {
	// NOT binds looser than comparison, AND tighter than OR
	expr := mustParse(t, "NOT [a] = 1 OR [b] > 2 AND [c] < 3")

	or, ok := expr.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.OR, or.Op)

	not, ok := or.Left.(*core.UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.NOT, not.Op)
	_, ok = not.Expr.(*core.BinaryExpr)
	assert.True(t, ok)

	and, ok := or.Right.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.AND, and.Op)
}

func TestParseUnaryMinus(t *testing.T) {
	expr := mustParse(t, "-[Profit] * 2")

	bin, ok := expr.(*core.BinaryExpr)
	require.True(t, ok)
	_, ok = bin.Left.(*core.UnaryExpr)
	assert.True(t, ok)
}

func TestParseInList(t *testing.T) {
	expr := mustParse(t, "[Region] IN ('East', 'West')")

	in, ok := expr.(*core.InExpr)
	require.True(t, ok)
	assert.Len(t, in.Values, 2)
}

// ---------- Conditionals ----------

func TestParseIf(t *testing.T) {
	expr := mustParse(t, `IF [Sales] > 100 THEN "High" ELSEIF [Sales] > 10 THEN "Mid" ELSE "Low" END`)

	ifExpr, ok := expr.(*core.IfExpr)
	require.True(t, ok)
	assert.Len(t, ifExpr.Branches, 2)
	require.NotNil(t, ifExpr.Else)
}

func TestParseIfWithoutElse(t *testing.T) {
	expr := mustParse(t, "IF [a] THEN 1 END")

	ifExpr := expr.(*core.IfExpr)
	assert.Len(t, ifExpr.Branches, 1)
	assert.Nil(t, ifExpr.Else)
}

func TestParseCase(t *testing.T) {
	expr := mustParse(t, `CASE [Segment] WHEN "A" THEN 1 WHEN "B" THEN 2 ELSE 0 END`)

	c, ok := expr.(*core.CaseExpr)
	require.True(t, ok)
	require.NotNil(t, c.Operand)
	assert.Len(t, c.Whens, 2)
	assert.NotNil(t, c.Else)
}

func TestParseIIFIsFunction(t *testing.T) {
	expr := mustParse(t, "IIF([a] > 0, 1, 0)")
	call, ok := expr.(*core.FuncCall)
	require.True(t, ok)
	assert.Equal(t, "IIF", call.Name)
	assert.Len(t, call.Args, 3)
}

// ---------- Level of Detail ----------

func TestParseLod(t *testing.T) {
	tests := []struct {
		name     string
		formula  string
		wantKind core.LodKind
		wantDims int
	}{
		{"fixed", "{FIXED [Region] : SUM([Sales])}", core.LodFixed, 1},
		{"fixed two dims", "{FIXED [Region], [Segment] : SUM([Sales])}", core.LodFixed, 2},
		{"include", "{INCLUDE [Customer] : AVG([Sales])}", core.LodInclude, 1},
		{"exclude", "{exclude [Month] : SUM([Sales])}", core.LodExclude, 1},
		{"fixed no dims", "{FIXED : SUM([Sales])}", core.LodFixed, 0},
		{"bare block", "{SUM([Sales])}", core.LodFixed, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := mustParse(t, tt.formula)
			lod, ok := expr.(*core.LodExpr)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, lod.Kind)
			assert.Len(t, lod.Dims, tt.wantDims)
			assert.NotNil(t, lod.Expr)
		})
	}
}

func TestParseLodNested(t *testing.T) {
	expr := mustParse(t, "SUM([Sales]) / SUM({FIXED : SUM([Sales])})")

	bin := expr.(*core.BinaryExpr)
	call := bin.Right.(*core.FuncCall)
	_, ok := call.Args[0].(*core.LodExpr)
	assert.True(t, ok)
}

// ---------- Errors ----------

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		wantMsg string
	}{
		{"unterminated string", `"abc`, parser.ErrUnterminatedString},
		{"missing closing brace", "{FIXED [Region] : SUM([Sales])", parser.ErrUnbalancedBraces},
		{"extra closing brace", "SUM([Sales])}", parser.ErrUnbalancedBraces},
		{"missing closing paren", "SUM([Sales]", parser.ErrUnbalancedParens},
		{"extra closing paren", "SUM([Sales]))", parser.ErrUnbalancedParens},
		{"lod missing colon", "{FIXED [Region] SUM([Sales])}", parser.ErrMissingLodColon},
		{"bare identifier", "Sales + 1", `identifier "Sales" must be a function call or a [field] reference`},
		{"if without then", "IF [a] 1 END", `unexpected token NUMBER "1", expected THEN`},
		{"if as function", "IF([a], 1, 0)", "unexpected token ,"},
		{"trailing input", "1 2", "unexpected NUMBER \"2\" after end of expression"},
		{"empty", "", "expected expression, got end of formula"},
		{"case without when", "CASE [a] ELSE 1 END", "unexpected token ELSE, expected WHEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.formula, dax.DAX)
			require.Error(t, err)

			var syntaxErr *parser.FormulaSyntaxError
			require.True(t, errors.As(err, &syntaxErr))
			assert.Contains(t, syntaxErr.Message, tt.wantMsg)
			assert.True(t, syntaxErr.Pos.IsValid())
		})
	}
}

func TestParseIdempotent(t *testing.T) {
	const formula = `IF SUM([Sales]) > 0 THEN SUM([Profit]) / SUM([Sales]) ELSE 0 END`
	a := mustParse(t, formula)
	b := mustParse(t, formula)
	assert.Equal(t, a, b)
}
