package canonical

import (
	"strconv"
	"strings"
	"unicode"
)

// Sanitize makes a name safe for target identifiers: spaces become
// underscores, anything but letters, digits, '_' and '-' is dropped, and a
// leading digit gets a '_' prefix.
func Sanitize(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r == ' ':
			sb.WriteByte('_')
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			sb.WriteRune(r)
		}
	}
	out := sb.String()
	if out == "" {
		return "Field"
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "_" + out
	}
	return out
}

// nameSet hands out unique names, suffixing collisions with _2, _3, ...
// Comparison is case-insensitive since target identifiers are.
type nameSet map[string]struct{}

func (s nameSet) unique(name string) string {
	candidate := name
	for i := 2; ; i++ {
		key := strings.ToLower(candidate)
		if _, taken := s[key]; !taken {
			s[key] = struct{}{}
			return candidate
		}
		candidate = name + "_" + strconv.Itoa(i)
	}
}
