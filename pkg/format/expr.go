package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/vizmigrate/pkg/core"
	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
	"github.com/leapstack-labs/vizmigrate/pkg/token"
)

// Reason codes raised while rendering.
const (
	// ReasonUnresolvedReference is reported for field references the
	// resolver does not know.
	ReasonUnresolvedReference = "unresolved_reference"
	// ReasonAggregateOverMeasure marks an aggregate whose argument refers to
	// a measure. It renders only in iterator form over the measure's table.
	ReasonAggregateOverMeasure = "aggregate_over_measure"
)

// stringFunctions are source functions that return strings. Used to decide
// whether + concatenates.
var stringFunctions = map[string]struct{}{
	"STR": {}, "UPPER": {}, "LOWER": {}, "LEFT": {}, "RIGHT": {}, "MID": {},
	"TRIM": {}, "LTRIM": {}, "RTRIM": {}, "REPLACE": {}, "SPACE": {},
	"DATENAME": {}, "USERNAME": {}, "FULLNAME": {}, "CHAR": {},
}

func (p *Printer) formatExpr(e core.Expr) {
	if e == nil || p.err != nil {
		return
	}

	switch expr := e.(type) {
	case *core.Literal:
		p.formatLiteral(expr)
	case *core.FieldRef:
		p.formatFieldRef(expr)
	case *core.FuncCall:
		p.formatFuncCall(expr)
	case *core.BinaryExpr:
		p.formatBinaryExpr(expr)
	case *core.UnaryExpr:
		p.formatUnaryExpr(expr)
	case *core.ParenExpr:
		p.write("(")
		p.formatExpr(expr.Expr)
		p.write(")")
	case *core.IfExpr:
		p.formatIfExpr(expr)
	case *core.CaseExpr:
		p.formatCaseExpr(expr)
	case *core.InExpr:
		p.formatInExpr(expr)
	case *core.WindowCall:
		p.fail(expr.Pos(), string(dialect.CategoryTableCalc), expr.Name)
	case *core.LodExpr:
		p.fail(expr.Pos(), string(dialect.CategoryLod), string(expr.Kind))
	default:
		p.fail(e.Pos(), dialect.ReasonNoEquivalent, fmt.Sprintf("%T", e))
	}
}

func (p *Printer) formatLiteral(lit *core.Literal) {
	switch lit.Type {
	case core.LiteralString:
		p.write(QuoteString(lit.Value))
	case core.LiteralBool:
		if strings.EqualFold(lit.Value, "true") {
			p.write("TRUE()")
		} else {
			p.write("FALSE()")
		}
	case core.LiteralNull:
		p.write("BLANK()")
	case core.LiteralDate:
		p.write(dateLiteral(lit.Value))
	default:
		p.write(lit.Value)
	}
}

// dateLiteral renders #...# as DATE()/TIME() when the text is ISO formatted
// and falls back to DATEVALUE for anything else.
func dateLiteral(v string) string {
	if t, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
		return fmt.Sprintf("DATE(%d, %d, %d) + TIME(%d, %d, %d)",
			t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return fmt.Sprintf("DATE(%d, %d, %d)", t.Year(), int(t.Month()), t.Day())
	}
	return "DATEVALUE(" + QuoteString(v) + ")"
}

func (p *Printer) formatFieldRef(ref *core.FieldRef) {
	if p.resolver == nil {
		p.write(QuoteColumn(ref.Name))
		return
	}
	f, ok := p.resolver.ResolveField(ref)
	if !ok {
		p.fail(ref.Pos(), ReasonUnresolvedReference, ref.Qualified())
		return
	}
	if f.Measure || f.Table == "" {
		p.write(QuoteColumn(f.Name))
		return
	}
	p.write(QuoteTable(f.Table))
	p.write(QuoteColumn(f.Name))
}

func (p *Printer) formatFuncCall(fn *core.FuncCall) {
	rule, ok := p.dialect.Lookup(fn.Name)
	if !ok {
		p.fail(fn.Pos(), dialect.ReasonUnknownFunction, fn.Name)
		return
	}
	if rule.Kind == dialect.KindUnsupported {
		p.fail(fn.Pos(), rule.Reason, fn.Name)
		return
	}

	template, reason := rule.Select(len(fn.Args), UnitArg(rule, fn.Args))
	if reason != "" {
		p.fail(fn.Pos(), reason, fn.Name)
		return
	}

	if table, ok := MeasureAggregate(rule, fn.Args, p.resolver); ok {
		if rule.Iterator == "" || table == "" {
			p.fail(fn.Pos(), ReasonAggregateOverMeasure, fn.Name)
			return
		}
		p.formatIterator(rule.Iterator, table, fn.Args[0])
		return
	}

	// Aggregates over expressions need the row iterator form.
	if rule.Aggregate && rule.Iterator != "" && len(fn.Args) == 1 {
		if _, bare := fn.Args[0].(*core.FieldRef); !bare {
			if table := p.iteratorTable(fn.Args[0]); table != "" {
				p.formatIterator(rule.Iterator, table, fn.Args[0])
				return
			}
		}
	}

	args := make([]string, len(fn.Args))
	for i, a := range fn.Args {
		args[i] = p.sub(a)
	}
	if p.err != nil {
		return
	}

	if template != "" {
		p.write(dialect.Expand(template, args))
		return
	}
	p.write(rule.Target)
	p.write("(")
	p.formatList(len(args), func(i int) { p.write(args[i]) }, ", ")
	p.write(")")
}

func (p *Printer) formatIterator(iterator, table string, arg core.Expr) {
	p.write(iterator)
	p.write("(")
	p.write(QuoteTable(table))
	p.write(", ")
	p.formatExpr(arg)
	p.write(")")
}

// MeasureAggregate reports whether a call to rule aggregates an argument
// that refers to a measure. table is the table an iterator form ranges
// over: the first column's table, else the first measure's home table, or ""
// when neither is known.
func MeasureAggregate(rule dialect.Rule, args []core.Expr, r Resolver) (table string, ok bool) {
	if !rule.Aggregate || len(args) != 1 || r == nil {
		return "", false
	}
	measureTable := ""
	for _, ref := range core.FieldRefs(args[0]) {
		f, found := r.ResolveField(ref)
		switch {
		case !found:
		case f.Measure:
			ok = true
			if measureTable == "" {
				measureTable = f.Table
			}
		case table == "" && f.Table != "":
			table = f.Table
		}
	}
	if !ok {
		return "", false
	}
	if table == "" {
		table = measureTable
	}
	return table, true
}

// iteratorTable returns the table of the first column referenced in e.
func (p *Printer) iteratorTable(e core.Expr) string {
	if p.resolver == nil {
		return ""
	}
	for _, ref := range core.FieldRefs(e) {
		if f, ok := p.resolver.ResolveField(ref); ok && !f.Measure && f.Table != "" {
			return f.Table
		}
	}
	return ""
}

func (p *Printer) formatBinaryExpr(expr *core.BinaryExpr) {
	if expr.Op == token.PLUS && (p.isString(expr.Left) || p.isString(expr.Right)) {
		if c := p.dialect.ConcatOperator(); c != "" {
			p.formatExpr(expr.Left)
			p.space()
			p.write(c)
			p.space()
			p.formatExpr(expr.Right)
			return
		}
	}

	op, ok := p.dialect.Operator(expr.Op)
	if !ok {
		p.fail(expr.Pos(), dialect.ReasonNoEquivalent, expr.Op.String())
		return
	}
	if op.Func {
		p.write(op.Symbol)
		p.write("(")
		p.formatExpr(expr.Left)
		p.write(", ")
		p.formatExpr(expr.Right)
		p.write(")")
		return
	}

	p.formatExpr(expr.Left)
	p.space()
	p.write(op.Symbol)
	p.space()
	p.formatExpr(expr.Right)
}

func (p *Printer) formatUnaryExpr(expr *core.UnaryExpr) {
	switch expr.Op {
	case token.PLUS:
		p.formatExpr(expr.Expr)
		return
	case token.MINUS:
		// "--" opens a DAX line comment.
		operand := p.sub(expr.Expr)
		if strings.HasPrefix(operand, "-") {
			operand = "(" + operand + ")"
		}
		p.write("-")
		p.write(operand)
		return
	}

	op, ok := p.dialect.Operator(expr.Op)
	if !ok {
		p.fail(expr.Pos(), dialect.ReasonNoEquivalent, expr.Op.String())
		return
	}
	if op.Func {
		p.write(op.Symbol)
		p.write("(")
		p.formatExpr(expr.Expr)
		p.write(")")
		return
	}
	p.write(op.Symbol)
	p.space()
	p.formatExpr(expr.Expr)
}

// formatIfExpr renders a single branch as IF() and ELSEIF chains as
// SWITCH(TRUE(), ...).
func (p *Printer) formatIfExpr(expr *core.IfExpr) {
	if len(expr.Branches) == 1 {
		b := expr.Branches[0]
		p.write("IF(")
		p.formatExpr(b.Condition)
		p.write(", ")
		p.formatExpr(b.Result)
		if expr.Else != nil {
			p.write(", ")
			p.formatExpr(expr.Else)
		}
		p.write(")")
		return
	}
	p.formatSwitch(nil, expr.Branches, expr.Else)
}

func (p *Printer) formatCaseExpr(expr *core.CaseExpr) {
	p.formatSwitch(expr.Operand, expr.Whens, expr.Else)
}

func (p *Printer) formatSwitch(operand core.Expr, whens []core.WhenClause, elseExpr core.Expr) {
	p.write("SWITCH(")
	if operand != nil {
		p.formatExpr(operand)
	} else {
		p.write("TRUE()")
	}
	for _, w := range whens {
		p.write(", ")
		p.formatExpr(w.Condition)
		p.write(", ")
		p.formatExpr(w.Result)
	}
	if elseExpr != nil {
		p.write(", ")
		p.formatExpr(elseExpr)
	}
	p.write(")")
}

func (p *Printer) formatInExpr(in *core.InExpr) {
	if in.Not {
		p.write("NOT(")
	}
	p.formatExpr(in.Expr)
	p.write(" IN {")
	p.formatList(len(in.Values), func(i int) { p.formatExpr(in.Values[i]) }, ", ")
	p.write("}")
	if in.Not {
		p.write(")")
	}
}

// isString reports whether e is statically known to be a string.
func (p *Printer) isString(e core.Expr) bool {
	switch n := e.(type) {
	case *core.Literal:
		return n.Type == core.LiteralString
	case *core.FieldRef:
		if p.resolver == nil {
			return false
		}
		f, ok := p.resolver.ResolveField(n)
		return ok && f.String
	case *core.FuncCall:
		_, ok := stringFunctions[n.Name]
		return ok
	case *core.ParenExpr:
		return p.isString(n.Expr)
	case *core.BinaryExpr:
		return n.Op == token.PLUS && (p.isString(n.Left) || p.isString(n.Right))
	case *core.IfExpr:
		return len(n.Branches) > 0 && p.isString(n.Branches[0].Result)
	case *core.CaseExpr:
		return len(n.Whens) > 0 && p.isString(n.Whens[0].Result)
	}
	return false
}

// UnitArg returns the lowercase date part literal a rule selects on, or ""
// when the rule has none or the argument is not a string literal.
func UnitArg(rule dialect.Rule, args []core.Expr) string {
	if rule.UnitArg < 1 || rule.UnitArg > len(args) {
		return ""
	}
	lit, ok := args[rule.UnitArg-1].(*core.Literal)
	if !ok || lit.Type != core.LiteralString {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(lit.Value))
}

// QuoteString renders a DAX string literal.
func QuoteString(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteTable renders a DAX table name.
func QuoteTable(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// QuoteColumn renders a DAX column or measure name.
func QuoteColumn(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
