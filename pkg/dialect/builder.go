package dialect

import (
	"strings"

	"github.com/leapstack-labs/vizmigrate/pkg/token"
)

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder with the given name.
func NewDialect(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name:      name,
			rules:     make(map[string]Rule),
			operators: make(map[token.TokenType]Operator),
		},
	}
}

// Rule adds a fully specified rule. Later rules with the same name win.
func (b *Builder) Rule(r Rule) *Builder {
	r = r.normalize()
	b.dialect.rules[r.Name] = r
	return b
}

// Direct adds 1:1 renames (source name -> target name).
func (b *Builder) Direct(renames map[string]string) *Builder {
	for src, dst := range renames {
		b.Rule(Rule{Name: src, Target: dst, Kind: KindDirect})
	}
	return b
}

// Aggregates adds 1:1 aggregate renames. iterators maps a source name to
// the row-iterating form used when the argument is not a bare column.
func (b *Builder) Aggregates(renames map[string]string, iterators map[string]string) *Builder {
	for src, dst := range renames {
		b.Rule(Rule{Name: src, Target: dst, Kind: KindDirect, Aggregate: true, Iterator: iterators[src]})
	}
	return b
}

// Template adds a rule rendered through a placeholder template.
// A confidence of 1 makes it direct, anything lower approximate.
func (b *Builder) Template(name, template string, minArgs int, confidence float64, caveat string) *Builder {
	kind := KindDirect
	if confidence < 1 {
		kind = KindApproximate
	}
	return b.Rule(Rule{
		Name:       name,
		Template:   template,
		MinArgs:    minArgs,
		Kind:       kind,
		Confidence: confidence,
		Caveat:     caveat,
	})
}

// Approximate adds a rename that is semantically close but not exact.
func (b *Builder) Approximate(name, target string, confidence float64, caveat string) *Builder {
	return b.Rule(Rule{Name: name, Target: target, Kind: KindApproximate, Confidence: confidence, Caveat: caveat})
}

// DateParts adds a rule whose rendering depends on a date-part string
// argument at position unitArg (1-based). units maps the lowercase part
// name to a template.
func (b *Builder) DateParts(name string, unitArg int, units map[string]string, confidence float64, caveat string) *Builder {
	kind := KindDirect
	if confidence < 1 {
		kind = KindApproximate
	}
	return b.Rule(Rule{
		Name:       name,
		Kind:       kind,
		Confidence: confidence,
		Caveat:     caveat,
		MinArgs:    unitArg + 1,
		UnitArg:    unitArg,
		Units:      units,
	})
}

// Unsupported marks functions with no target equivalent.
func (b *Builder) Unsupported(category Category, reason string, names ...string) *Builder {
	for _, n := range names {
		b.Rule(Rule{Name: n, Kind: KindUnsupported, Category: category, Reason: reason})
	}
	return b
}

// TableCalcs registers table calculation functions. They parse as
// WindowCall nodes and are always unsupported.
func (b *Builder) TableCalcs(names ...string) *Builder {
	for _, n := range names {
		b.Rule(Rule{Name: n, Kind: KindUnsupported, Category: CategoryTableCalc, TableCalc: true})
	}
	return b
}

// TableCalcPrefixes registers table calculation families: every function
// whose name starts with one of prefixes and has no rule of its own.
func (b *Builder) TableCalcPrefixes(prefixes ...string) *Builder {
	return b.prefixes(Rule{Kind: KindUnsupported, Category: CategoryTableCalc, TableCalc: true}, prefixes)
}

// ScriptPrefixes registers external script function families.
func (b *Builder) ScriptPrefixes(prefixes ...string) *Builder {
	return b.prefixes(Rule{Kind: KindUnsupported, Category: CategoryScript}, prefixes)
}

func (b *Builder) prefixes(r Rule, prefixes []string) *Builder {
	r = r.normalize()
	for _, p := range prefixes {
		b.dialect.families = append(b.dialect.families, family{prefix: strings.ToUpper(p), rule: r})
	}
	return b
}

// LodBlocks registers level-of-detail scope keywords.
func (b *Builder) LodBlocks(names ...string) *Builder {
	return b.Unsupported(CategoryLod, string(CategoryLod), names...)
}

// Scripts registers external script invocation functions.
func (b *Builder) Scripts(names ...string) *Builder {
	return b.Unsupported(CategoryScript, string(CategoryScript), names...)
}

// Describe attaches descriptions to already registered rules.
func (b *Builder) Describe(docs map[string]string) *Builder {
	for name, doc := range docs {
		r, ok := b.dialect.rules[strings.ToUpper(name)]
		if !ok {
			continue
		}
		r.Description = doc
		b.dialect.rules[r.Name] = r
	}
	return b
}

// AddOperator maps a source operator token to its target rendering.
func (b *Builder) AddOperator(t token.TokenType, symbol string) *Builder {
	b.dialect.operators[t] = Operator{Symbol: symbol}
	return b
}

// AddFuncOperator maps a source operator token to a target function call.
func (b *Builder) AddFuncOperator(t token.TokenType, fn string) *Builder {
	b.dialect.operators[t] = Operator{Symbol: fn, Func: true}
	return b
}

// Concat sets the string concatenation operator used when + joins strings.
func (b *Builder) Concat(symbol string) *Builder {
	b.dialect.concat = symbol
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
