// Package translate turns calculation formulas into target expressions.
//
// Each formula goes through four steps: tokenize and parse into an AST,
// classify every call, window call, level-of-detail block, operator and
// field reference against the dialect rule table, and, when nothing is
// unsupported, render the tree with pkg/format. Confidence is the minimum
// over all classified nodes. When any node is unsupported no expression is
// produced and the category of the first unsupported node in pre-order is
// reported.
//
// A Translator holds no mutable state and is safe for concurrent use.
package translate

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/vizmigrate/pkg/core"
	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
	"github.com/leapstack-labs/vizmigrate/pkg/format"
	"github.com/leapstack-labs/vizmigrate/pkg/parser"
	"github.com/leapstack-labs/vizmigrate/pkg/token"
)

// Row-level references outside any aggregate translate, but a measure needs
// an aggregation context the source formula did not state.
const (
	CaveatRowContext     = "row_level_calculation"
	rowContextConfidence = 0.7
)

// An aggregate over a measure renders as an iterator over the measure's
// table. The measure is evaluated once per row, which matches the source
// only when it was itself row level.
const (
	CaveatAggregateOverMeasure = format.ReasonAggregateOverMeasure
	measureAggregateConfidence = 0.6
)

// Classification is the verdict for one AST node.
type Classification struct {
	Node       string
	Pos        token.Position
	Kind       dialect.Kind
	Confidence float64
	Caveat     string
	Category   dialect.Category
	Reason     string
}

// Result is the outcome of translating one formula.
type Result struct {
	Formula     string
	Expression  string
	Confidence  float64
	Caveats     []string
	Category    dialect.Category // CategoryNone when translated
	Reason      string           // reason code of the first unsupported node
	Aggregation string           // outermost aggregate function, lowercase
	Nodes       []Classification
	Err         error // *parser.FormulaSyntaxError when parsing failed
}

// Supported reports whether an expression was produced.
func (r Result) Supported() bool {
	return r.Category == dialect.CategoryNone
}

// Translator translates formulas for one dialect.
type Translator struct {
	dialect *dialect.Dialect
	logger  *slog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithLogger sets the logger used for per-formula debug output.
func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a Translator for d.
func New(d *dialect.Dialect, opts ...Option) *Translator {
	t := &Translator{
		dialect: d,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Dialect returns the translation target.
func (t *Translator) Dialect() *dialect.Dialect {
	return t.dialect
}

// Translate parses, classifies and renders formula. Field references are
// resolved through r; a nil resolver accepts every reference as a column of
// unknown table.
func (t *Translator) Translate(formula string, r format.Resolver) Result {
	if strings.TrimSpace(formula) == "" {
		return unsupportedResult(formula, dialect.CategoryOther, dialect.ReasonEmptyFormula, nil, nil)
	}

	expr, err := parser.Parse(formula, t.dialect)
	if err != nil {
		t.logger.Debug("formula syntax error", "formula", formula, "error", err)
		return unsupportedResult(formula, dialect.CategoryOther, dialect.ReasonSyntaxError, nil, err)
	}

	res := t.TranslateExpr(expr, r)
	res.Formula = formula
	t.logger.Debug("translated formula",
		"formula", formula,
		"confidence", res.Confidence,
		"category", res.Category,
	)
	return res
}

// TranslateExpr classifies and renders an already parsed formula.
func (t *Translator) TranslateExpr(expr core.Expr, r format.Resolver) Result {
	c := &classifier{dialect: t.dialect, resolver: r}
	c.classify(expr, false)

	res := Result{
		Confidence:  1,
		Nodes:       c.nodes,
		Aggregation: outerAggregation(expr, t.dialect),
	}

	var first *Classification
	var unsupportedReasons []string
	for i := range c.nodes {
		n := &c.nodes[i]
		switch n.Kind {
		case dialect.KindUnsupported:
			if first == nil {
				first = n
			}
			unsupportedReasons = appendUnique(unsupportedReasons, n.Reason)
		case dialect.KindApproximate:
			res.Caveats = appendUnique(res.Caveats, n.Caveat)
		}
		if n.Confidence < res.Confidence {
			res.Confidence = n.Confidence
		}
	}

	if first != nil {
		out := unsupportedResult("", first.Category, first.Reason, c.nodes, nil)
		out.Caveats = unsupportedReasons
		out.Aggregation = res.Aggregation
		return out
	}

	out, err := format.Format(expr, t.dialect, r)
	if err != nil {
		// Classification covers everything the printer rejects; this is a
		// rule table inconsistency and is reported rather than hidden.
		reason := dialect.ReasonNoEquivalent
		var re *format.RenderError
		if errors.As(err, &re) && re.Reason != "" {
			reason = re.Reason
		}
		return unsupportedResult("", dialect.CategoryOther, reason, c.nodes, err)
	}
	res.Expression = out
	return res
}

func unsupportedResult(formula string, cat dialect.Category, reason string, nodes []Classification, err error) Result {
	return Result{
		Formula:    formula,
		Confidence: 0,
		Caveats:    []string{reason},
		Category:   cat,
		Reason:     reason,
		Nodes:      nodes,
		Err:        err,
	}
}

// outerAggregation returns the first aggregate call found in pre-order.
func outerAggregation(expr core.Expr, d *dialect.Dialect) string {
	agg := ""
	core.Walk(expr, func(e core.Expr) bool {
		if agg != "" {
			return false
		}
		if fn, ok := e.(*core.FuncCall); ok && d.IsAggregate(fn.Name) {
			agg = strings.ToLower(fn.Name)
			return false
		}
		return true
	})
	return agg
}

func appendUnique(list []string, s string) []string {
	if s == "" {
		return list
	}
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
