package dialect

import (
	"strings"
)

// Select picks the rendering template for a call with argc arguments.
// unit is the lowercase date part given at UnitArg, or "" when that argument
// is not a string literal. An empty template with an empty reason means the
// call renders as Target(args...). A non-empty reason means the call cannot
// be rendered and names why.
func (r Rule) Select(argc int, unit string) (template string, reason string) {
	if argc < r.MinArgs {
		return "", ReasonArity
	}

	template = r.Template
	if r.UnitArg > 0 {
		if unit == "" {
			return "", ReasonDynamicDatePart
		}
		t, ok := r.Units[strings.ToLower(unit)]
		if !ok {
			return "", ReasonUnknownDatePart
		}
		template = t
	}

	if n := maxPlaceholder(template); n > argc {
		return "", ReasonArity
	}
	return template, ""
}

// maxPlaceholder returns the highest $n referenced by template.
func maxPlaceholder(template string) int {
	maxN := 0
	for i := 0; i < len(template)-1; i++ {
		if template[i] != '$' {
			continue
		}
		c := template[i+1]
		if c >= '1' && c <= '9' {
			if n := int(c - '0'); n > maxN {
				maxN = n
			}
		}
	}
	return maxN
}

// Expand substitutes rendered arguments into template. $1..$9 are single
// arguments and $* is every argument joined with ", ".
//
// A compound argument is parenthesized unless it fills a whole argument slot
// of a call, and a compound expansion is parenthesized as a whole, so the
// result keeps its meaning next to any operator.
func Expand(template string, args []string) string {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '$' || i+1 >= len(template) {
			b.WriteByte(c)
			continue
		}
		next := template[i+1]
		switch {
		case next >= '1' && next <= '9':
			if n := int(next - '0'); n <= len(args) {
				arg := args[n-1]
				if compound(arg) && !argumentSlot(template, i, i+2) {
					arg = "(" + arg + ")"
				}
				b.WriteString(arg)
			}
			i++
		case next == '*':
			b.WriteString(strings.Join(args, ", "))
			i++
		default:
			b.WriteByte(c)
		}
	}
	out := b.String()
	if compound(out) {
		return "(" + out + ")"
	}
	return out
}

// argumentSlot reports whether template[start:end] is delimited by call
// punctuation on both sides.
func argumentSlot(template string, start, end int) bool {
	before := strings.TrimRight(template[:start], " ")
	after := strings.TrimLeft(template[end:], " ")
	if before == "" || after == "" {
		return false
	}
	open := before[len(before)-1]
	closing := after[0]
	return (open == '(' || open == ',') && (closing == ')' || closing == ',')
}

// compound reports whether rendered text is an operator expression rather
// than an atom. Rendered operators are always surrounded by spaces, so any
// space outside quotes, brackets and parentheses marks one, as does a
// leading sign.
func compound(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if text[0] == '-' || text[0] == '+' {
		return true
	}
	depth := 0
	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '"', '\'':
			i = skipQuoted(text, i, c)
		case '[':
			i = skipQuoted(text, i, ']')
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		case ' ':
			if depth == 0 {
				return true
			}
		}
	}
	return false
}

// skipQuoted returns the index of the closing delimiter of the quoted run
// starting at i. A doubled closing delimiter is an escape.
func skipQuoted(text string, i int, closing byte) int {
	for j := i + 1; j < len(text); j++ {
		if text[j] != closing {
			continue
		}
		if j+1 < len(text) && text[j+1] == closing {
			j++
			continue
		}
		return j
	}
	return len(text) - 1
}
