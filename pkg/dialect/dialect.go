// Package dialect provides the function classifier and rule table used to
// translate calculation formulas into a target expression language.
//
// A Dialect is pure data: a closed mapping from source function names to a
// Rule describing the target equivalent, how faithful it is, and how to
// rewrite the call. The same table drives translation and the generated
// function reference, so it must never be bypassed with ad hoc conditionals.
// Concrete dialects are registered from pkg/dialects/*/ packages.
package dialect

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/vizmigrate/pkg/token"
)

// Kind classifies how faithfully a source function maps to the target.
type Kind string

const (
	// KindDirect is a 1:1 equivalent (confidence 1.0).
	KindDirect Kind = "direct"
	// KindApproximate is a semantically close idiom with a recorded caveat.
	KindApproximate Kind = "approximate"
	// KindUnsupported has no target equivalent and is never partially translated.
	KindUnsupported Kind = "unsupported"
)

// Category is the closed set of unsupported-construct categories.
type Category string

// Unsupported categories. Every unsupported construct lands in exactly one.
const (
	CategoryNone      Category = ""
	CategoryLod       Category = "lod_expression"
	CategoryTableCalc Category = "table_calculation"
	CategoryScript    Category = "script_function"
	CategoryOther     Category = "other"
)

// Categories returns the closed set of unsupported categories in report order.
func Categories() []Category {
	return []Category{CategoryLod, CategoryTableCalc, CategoryScript, CategoryOther}
}

// Valid reports whether c is one of the closed categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryLod, CategoryTableCalc, CategoryScript, CategoryOther:
		return true
	}
	return false
}

// Reason codes attached to unsupported classifications and caveats.
const (
	ReasonUnknownFunction = "unknown_function"
	ReasonNoEquivalent    = "no_equivalent"
	ReasonSyntaxError     = "syntax_error"
	ReasonEmptyFormula    = "empty_formula"
	ReasonArity           = "arity_mismatch"
	ReasonDynamicDatePart = "dynamic_date_part"
	ReasonUnknownDatePart = "unknown_date_part"
)

// Rule describes how one source function translates.
//
// Template placeholders are $1..$9 for rendered arguments and $* for all
// arguments joined with ", ". When UnitArg is set, the template comes from
// Units keyed by the date part literal at that argument. With no template
// the call is emitted as Target(args...).
type Rule struct {
	Name        string            `yaml:"name" json:"name"`
	Target      string            `yaml:"target,omitempty" json:"target,omitempty"`
	Kind        Kind              `yaml:"kind" json:"kind"`
	Confidence  float64           `yaml:"confidence,omitempty" json:"confidence"`
	Caveat      string            `yaml:"caveat,omitempty" json:"caveat,omitempty"`
	Category    Category          `yaml:"category,omitempty" json:"category,omitempty"`
	Reason      string            `yaml:"reason,omitempty" json:"reason,omitempty"`
	Template    string            `yaml:"template,omitempty" json:"template,omitempty"`
	MinArgs     int               `yaml:"min_args,omitempty" json:"min_args,omitempty"`
	UnitArg     int               `yaml:"unit_arg,omitempty" json:"unit_arg,omitempty"`
	Units       map[string]string `yaml:"units,omitempty" json:"units,omitempty"`
	Aggregate   bool              `yaml:"aggregate,omitempty" json:"aggregate,omitempty"`
	Iterator    string            `yaml:"iterator,omitempty" json:"iterator,omitempty"`
	TableCalc   bool              `yaml:"table_calc,omitempty" json:"table_calc,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
}

// ErrInvalidRule is returned when a rule fails validation.
var ErrInvalidRule = errors.New("invalid rule")

// Validate checks the rule's internal consistency.
func (r Rule) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidRule, r.Name, fmt.Sprintf(format, args...))
	}
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	switch r.Kind {
	case KindDirect:
		if r.Confidence != 1 {
			return fail("direct rules have confidence 1, got %v", r.Confidence)
		}
	case KindApproximate:
		if r.Confidence <= 0 || r.Confidence >= 1 {
			return fail("approximate confidence must be in (0,1), got %v", r.Confidence)
		}
		if r.Caveat == "" {
			return fail("approximate rules need a caveat")
		}
	case KindUnsupported:
		if r.TableCalc && r.Category != CategoryTableCalc {
			return fail("table calculations belong to %q", CategoryTableCalc)
		}
		if !r.Category.Valid() {
			return fail("unsupported rules need a category, got %q", r.Category)
		}
		if r.Confidence != 0 {
			return fail("unsupported rules have confidence 0")
		}
		return nil
	default:
		return fail("unknown kind %q", r.Kind)
	}
	if r.TableCalc {
		return fail("table calculations are always unsupported")
	}
	if r.Target == "" && r.Template == "" && len(r.Units) == 0 {
		return fail("target or template is required")
	}
	if len(r.Units) > 0 && r.UnitArg < 1 {
		return fail("units require unit_arg")
	}
	return nil
}

// normalize fills defaults derived from the kind.
func (r Rule) normalize() Rule {
	r.Name = strings.ToUpper(r.Name)
	switch r.Kind {
	case KindDirect:
		if r.Confidence == 0 {
			r.Confidence = 1
		}
	case KindUnsupported:
		if r.Reason == "" {
			r.Reason = string(r.Category)
		}
	}
	return r
}

// Operator describes how an infix or prefix operator is written in the target.
// Func operators are emitted as calls: MOD(a, b), NOT(a).
type Operator struct {
	Symbol string
	Func   bool
}

// Dialect is an immutable translation target.
type Dialect struct {
	Name string

	rules     map[string]Rule
	families  []family
	operators map[token.TokenType]Operator
	concat    string
}

// family is the rule shared by every function name starting with prefix.
type family struct {
	prefix string
	rule   Rule
}

// Lookup returns the rule for a function name (case-insensitive). Names
// without their own rule fall back to the longest matching prefix family.
func (d *Dialect) Lookup(name string) (Rule, bool) {
	name = strings.ToUpper(name)
	if r, ok := d.rules[name]; ok {
		return r, true
	}
	best := -1
	for i, f := range d.families {
		if strings.HasPrefix(name, f.prefix) && (best < 0 || len(f.prefix) > len(d.families[best].prefix)) {
			best = i
		}
	}
	if best < 0 {
		return Rule{}, false
	}
	r := d.families[best].rule
	r.Name = name
	return r, true
}

// Prefixes returns the prefix families as rules named PREFIX*, sorted.
func (d *Dialect) Prefixes() []Rule {
	out := make([]Rule, 0, len(d.families))
	for _, f := range d.families {
		r := f.rule
		r.Name = f.prefix + "*"
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// reserved reports whether r belongs to a construct that is never
// translated and so may not be redefined by extra rules.
func (r Rule) reserved() bool {
	return r.TableCalc || (r.Kind == KindUnsupported && (r.Category == CategoryLod || r.Category == CategoryScript))
}

// IsTableCalc reports whether name is a table calculation function.
// The parser uses this to build WindowCall nodes.
func (d *Dialect) IsTableCalc(name string) bool {
	r, ok := d.Lookup(name)
	return ok && r.TableCalc
}

// IsAggregate reports whether name aggregates rows.
func (d *Dialect) IsAggregate(name string) bool {
	r, ok := d.Lookup(name)
	return ok && r.Aggregate
}

// Operator returns the target rendering for an operator token.
func (d *Dialect) Operator(t token.TokenType) (Operator, bool) {
	op, ok := d.operators[t]
	return op, ok
}

// ConcatOperator returns the target string concatenation operator.
func (d *Dialect) ConcatOperator() string {
	return d.concat
}

// Rules returns all rules sorted by name.
func (d *Dialect) Rules() []Rule {
	out := make([]Rule, 0, len(d.rules))
	for _, r := range d.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ErrReservedRule is returned when an extra rule tries to redefine a table
// calculation, level-of-detail keyword or script function.
var ErrReservedRule = errors.New("reserved function")

// Extend returns a copy of d with additional or overriding rules.
// The receiver is not modified. Rules covering a reserved name of d, by
// exact name or prefix family, are rejected with ErrReservedRule.
func (d *Dialect) Extend(rules ...Rule) (*Dialect, error) {
	nd := &Dialect{
		Name:      d.Name,
		rules:     make(map[string]Rule, len(d.rules)+len(rules)),
		families:  d.families,
		operators: d.operators,
		concat:    d.concat,
	}
	for k, v := range d.rules {
		nd.rules[k] = v
	}
	for _, r := range rules {
		r = r.normalize()
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if base, ok := d.Lookup(r.Name); ok && base.reserved() {
			return nil, fmt.Errorf("%w %q: %s functions cannot be redefined", ErrReservedRule, r.Name, base.Category)
		}
		nd.rules[r.Name] = r
	}
	return nd, nil
}
