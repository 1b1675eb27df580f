package workbook

import (
	"strings"

	"github.com/leapstack-labs/vizmigrate/pkg/parser"
	"github.com/leapstack-labs/vizmigrate/pkg/token"
)

// fieldRef is a bracketed reference found in formula or shelf text.
type fieldRef struct {
	Datasource  string // qualifier, "" when unqualified
	Name        string // field name with any instance decoration removed
	Aggregation string // lowercase, from a wrapping call or instance prefix
}

// aggregationPrefixes maps column-instance derivations to aggregations.
// Date derivations (yr, mn, qr, ...) are not aggregations.
var aggregationPrefixes = map[string]string{
	"sum":    "sum",
	"avg":    "avg",
	"min":    "min",
	"max":    "max",
	"cnt":    "count",
	"ctd":    "countd",
	"med":    "median",
	"attr":   "attr",
	"stdev":  "stdev",
	"stdevp": "stdevp",
	"var":    "var",
	"varp":   "varp",
}

// scanRefs returns every field reference in text in order. Lexical errors
// end the scan; references seen before the error are kept.
func scanRefs(text string) []fieldRef {
	toks, _ := parser.Tokenize(text)

	var refs []fieldRef
	for i := 0; i < len(toks); i++ {
		tok := toks[i]

		agg := ""
		if tok.Type == token.IDENT && i+2 < len(toks) && toks[i+1].Type == token.LPAREN && toks[i+2].Type == token.FIELD {
			agg = strings.ToLower(tok.Literal)
			i += 2
			tok = toks[i]
		}
		if tok.Type != token.FIELD {
			continue
		}

		ref := fieldRef{Name: tok.Literal}
		if i+2 < len(toks) && toks[i+1].Type == token.DOT && toks[i+2].Type == token.FIELD {
			ref.Datasource = tok.Literal
			ref.Name = toks[i+2].Literal
			i += 2
		}

		name, derived := decodeInstance(ref.Name)
		ref.Name = name
		ref.Aggregation = agg
		if ref.Aggregation == "" {
			ref.Aggregation = derived
		}
		refs = append(refs, ref)
	}
	return refs
}

// decodeInstance strips column-instance decoration ("sum:Sales:qk") and
// returns the bare name and the aggregation it implies.
func decodeInstance(name string) (string, string) {
	parts := strings.Split(name, ":")
	if len(parts) < 3 || !isInstanceSuffix(parts[len(parts)-1]) {
		return name, ""
	}
	bare := strings.Join(parts[1:len(parts)-1], ":")
	if bare == "" {
		return name, ""
	}
	return bare, aggregationPrefixes[strings.ToLower(parts[0])]
}

// isInstanceSuffix matches the type marker of a column instance:
// nk (nominal), ok (ordinal), qk (quantitative), with optional field index.
func isInstanceSuffix(s string) bool {
	switch {
	case s == "nk", s == "ok", s == "qk":
		return true
	case len(s) > 2 && (strings.HasPrefix(s, "nk") || strings.HasPrefix(s, "ok") || strings.HasPrefix(s, "qk")):
		for _, r := range s[2:] {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}
	return false
}

// stripBrackets removes one level of [] around an identifier.
func stripBrackets(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		return strings.ReplaceAll(s[1:len(s)-1], "]]", "]")
	}
	return s
}

// unquote removes the quotes Tableau puts around member values.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}
