package translate

import (
	"github.com/leapstack-labs/vizmigrate/pkg/core"
	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
	"github.com/leapstack-labs/vizmigrate/pkg/format"
	"github.com/leapstack-labs/vizmigrate/pkg/token"
)

// classifier walks an AST in pre-order and records one Classification per
// node that the rule table has an opinion on.
type classifier struct {
	dialect  *dialect.Dialect
	resolver format.Resolver
	nodes    []Classification
}

func (c *classifier) add(n Classification) {
	if n.Kind == dialect.KindDirect {
		n.Confidence = 1
	}
	c.nodes = append(c.nodes, n)
}

func (c *classifier) unsupported(e core.Expr, name string, cat dialect.Category, reason string) {
	c.add(Classification{
		Node:     name,
		Pos:      e.Pos(),
		Kind:     dialect.KindUnsupported,
		Category: cat,
		Reason:   reason,
	})
}

func (c *classifier) fromRule(e core.Expr, name string, r dialect.Rule) {
	if r.Kind == dialect.KindUnsupported {
		c.unsupported(e, name, r.Category, r.Reason)
		return
	}
	c.add(Classification{
		Node:       name,
		Pos:        e.Pos(),
		Kind:       r.Kind,
		Confidence: r.Confidence,
		Caveat:     r.Caveat,
	})
}

// classify records e, then its children. inAgg is true below an aggregate call.
func (c *classifier) classify(e core.Expr, inAgg bool) {
	if e == nil {
		return
	}

	switch n := e.(type) {
	case *core.FuncCall:
		r, ok := c.dialect.Lookup(n.Name)
		switch {
		case !ok:
			c.unsupported(n, n.Name, dialect.CategoryOther, dialect.ReasonUnknownFunction)
		case r.Kind == dialect.KindUnsupported:
			c.fromRule(n, n.Name, r)
		default:
			_, reason := r.Select(len(n.Args), format.UnitArg(r, n.Args))
			table, overMeasure := format.MeasureAggregate(r, n.Args, c.resolver)
			switch {
			case reason != "":
				c.unsupported(n, n.Name, dialect.CategoryOther, reason)
			case overMeasure && (r.Iterator == "" || table == ""):
				c.unsupported(n, n.Name, dialect.CategoryOther, format.ReasonAggregateOverMeasure)
			case overMeasure:
				c.fromRule(n, n.Name, r)
				c.add(Classification{
					Node:       n.Name,
					Pos:        n.Pos(),
					Kind:       dialect.KindApproximate,
					Confidence: measureAggregateConfidence,
					Caveat:     CaveatAggregateOverMeasure,
				})
			default:
				c.fromRule(n, n.Name, r)
			}
		}
		if r.Aggregate {
			inAgg = true
		}

	case *core.WindowCall:
		r, ok := c.dialect.Lookup(n.Name)
		if !ok || r.Kind != dialect.KindUnsupported {
			r = dialect.Rule{Kind: dialect.KindUnsupported, Category: dialect.CategoryTableCalc, Reason: string(dialect.CategoryTableCalc)}
		}
		c.fromRule(n, n.Name, r)

	case *core.LodExpr:
		r, ok := c.dialect.Lookup(string(n.Kind))
		if !ok || r.Kind != dialect.KindUnsupported {
			r = dialect.Rule{Kind: dialect.KindUnsupported, Category: dialect.CategoryLod, Reason: string(dialect.CategoryLod)}
		}
		c.fromRule(n, string(n.Kind), r)
		// Dimensions are not aggregated, but reporting row context inside an
		// untranslatable block adds nothing.
		inAgg = true

	case *core.BinaryExpr:
		if _, ok := c.dialect.Operator(n.Op); !ok {
			c.unsupported(n, n.Op.String(), dialect.CategoryOther, dialect.ReasonNoEquivalent)
		}

	case *core.UnaryExpr:
		if n.Op == token.PLUS || n.Op == token.MINUS {
			break
		}
		if _, ok := c.dialect.Operator(n.Op); !ok {
			c.unsupported(n, n.Op.String(), dialect.CategoryOther, dialect.ReasonNoEquivalent)
		}

	case *core.FieldRef:
		c.classifyField(n, inAgg)
	}

	for _, child := range core.Children(e) {
		c.classify(child, inAgg)
	}
}

func (c *classifier) classifyField(ref *core.FieldRef, inAgg bool) {
	measure := false
	if c.resolver != nil {
		f, ok := c.resolver.ResolveField(ref)
		if !ok {
			c.unsupported(ref, ref.Qualified(), dialect.CategoryOther, format.ReasonUnresolvedReference)
			return
		}
		measure = f.Measure
	}
	if !inAgg && !measure {
		c.add(Classification{
			Node:       ref.Qualified(),
			Pos:        ref.Pos(),
			Kind:       dialect.KindApproximate,
			Confidence: rowContextConfidence,
			Caveat:     CaveatRowContext,
		})
	}
}
