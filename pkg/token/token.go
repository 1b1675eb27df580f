// Package token defines the token types for calculation formula parsing.
//
// Keywords are matched case-insensitively; everything else that looks like a
// word is an IDENT and resolved by the parser as a function name.
package token

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT  // SUM, ZN
	FIELD  // [Sales], [ds].[Sales]
	NUMBER // 123, 45.67, 1e10
	STRING // "hello", 'hello'
	DATE   // #2024-01-31#

	// Operators
	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	PERCENT // %
	CARET   // ^
	EQ      // = or ==
	NE      // != or <>
	LT      // <
	GT      // >
	LE      // <=
	GE      // >=
	COMMA   // ,
	DOT     // .
	COLON   // :
	LPAREN  // (
	RPAREN  // )
	LBRACE  // {
	RBRACE  // }

	operatorEnd // sentinel

	// Keywords (alphabetical)
	AND
	CASE
	ELSE
	ELSEIF
	END
	EXCLUDE
	FALSE
	FIXED
	IF
	IN
	INCLUDE
	NOT
	NULL
	OR
	THEN
	TRUE
	WHEN

	keywordEnd // sentinel
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:  "IDENT",
	FIELD:  "FIELD",
	NUMBER: "NUMBER",
	STRING: "STRING",
	DATE:   "DATE",

	PLUS:    "+",
	MINUS:   "-",
	STAR:    "*",
	SLASH:   "/",
	PERCENT: "%",
	CARET:   "^",
	EQ:      "=",
	NE:      "!=",
	LT:      "<",
	GT:      ">",
	LE:      "<=",
	GE:      ">=",
	COMMA:   ",",
	DOT:     ".",
	COLON:   ":",
	LPAREN:  "(",
	RPAREN:  ")",
	LBRACE:  "{",
	RBRACE:  "}",

	AND:     "AND",
	CASE:    "CASE",
	ELSE:    "ELSE",
	ELSEIF:  "ELSEIF",
	END:     "END",
	EXCLUDE: "EXCLUDE",
	FALSE:   "FALSE",
	FIXED:   "FIXED",
	IF:      "IF",
	IN:      "IN",
	INCLUDE: "INCLUDE",
	NOT:     "NOT",
	NULL:    "NULL",
	OR:      "OR",
	THEN:    "THEN",
	TRUE:    "TRUE",
	WHEN:    "WHEN",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"and":     AND,
	"case":    CASE,
	"else":    ELSE,
	"elseif":  ELSEIF,
	"end":     END,
	"exclude": EXCLUDE,
	"false":   FALSE,
	"fixed":   FIXED,
	"if":      IF,
	"in":      IN,
	"include": INCLUDE,
	"not":     NOT,
	"null":    NULL,
	"or":      OR,
	"then":    THEN,
	"true":    TRUE,
	"when":    WHEN,
}

// LookupIdent returns the token type for the given lowercase identifier.
// If the identifier is a keyword, the keyword token type is returned.
// Otherwise, IDENT is returned.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t > operatorEnd && t < keywordEnd
}

// IsOperator returns true if the token type is an operator or delimiter.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t < operatorEnd
}

// IsLodKeyword reports whether t opens a level-of-detail block.
func IsLodKeyword(t TokenType) bool {
	return t == FIXED || t == INCLUDE || t == EXCLUDE
}

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}
