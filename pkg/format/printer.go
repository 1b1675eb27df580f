// Package format renders calculation formula ASTs as target expressions.
//
// Rendering is a structural rewrite driven by the dialect's rule table:
// operators are respelled, function names substituted and arguments
// reordered only where a rule's template says so. The printer never decides
// whether a construct is supported; callers classify first and render only
// trees that contain no unsupported nodes.
package format

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/leapstack-labs/vizmigrate/pkg/core"
	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
	"github.com/leapstack-labs/vizmigrate/pkg/token"
)

// Field is the target a field reference resolves to.
type Field struct {
	Table   string // home table for measures; iterators range over it
	Name    string
	Measure bool // render as [Name] instead of 'Table'[Name]
	String  bool // string typed; + on it renders as concatenation
}

// Resolver maps field references to target fields.
type Resolver interface {
	ResolveField(ref *core.FieldRef) (Field, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ref *core.FieldRef) (Field, bool)

// ResolveField implements Resolver.
func (f ResolverFunc) ResolveField(ref *core.FieldRef) (Field, bool) { return f(ref) }

// RenderError reports a node the printer could not render.
type RenderError struct {
	Pos    token.Position
	Reason string
	Detail string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("cannot render at %s: %s (%s)", e.Pos, e.Detail, e.Reason)
}

// Printer renders one expression.
type Printer struct {
	dialect  *dialect.Dialect
	resolver Resolver
	output   *bytes.Buffer
	err      error
}

func newPrinter(d *dialect.Dialect, r Resolver) *Printer {
	return &Printer{
		dialect:  d,
		resolver: r,
		output:   &bytes.Buffer{},
	}
}

// Format renders expr in dialect d. A nil resolver prints every field
// reference as [Name].
func Format(expr core.Expr, d *dialect.Dialect, r Resolver) (string, error) {
	if d == nil {
		return "", dialect.ErrDialectRequired
	}
	p := newPrinter(d, r)
	p.formatExpr(expr)
	if p.err != nil {
		return "", p.err
	}
	return p.String(), nil
}

// String returns the formatted output.
func (p *Printer) String() string {
	return strings.TrimSpace(p.output.String())
}

func (p *Printer) write(s string) {
	p.output.WriteString(s)
}

func (p *Printer) space() {
	p.output.WriteByte(' ')
}

// fail records the first render error; later output is discarded by Format.
func (p *Printer) fail(pos token.Position, reason, detail string) {
	if p.err == nil {
		p.err = &RenderError{Pos: pos, Reason: reason, Detail: detail}
	}
}

// formatList writes n items separated by sep.
func (p *Printer) formatList(n int, item func(i int), sep string) {
	for i := 0; i < n; i++ {
		if i > 0 {
			p.write(sep)
		}
		item(i)
	}
}

// sub renders e into a fresh buffer and returns the text.
func (p *Printer) sub(e core.Expr) string {
	child := newPrinter(p.dialect, p.resolver)
	child.formatExpr(e)
	if child.err != nil && p.err == nil {
		p.err = child.err
	}
	return child.String()
}
