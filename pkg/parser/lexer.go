package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/vizmigrate/pkg/token"
)

// Lexer tokenizes calculation formulas. Tokens are produced lazily by
// NextToken; after the first lexical error every call returns EOF.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	err *FormulaSyntaxError
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// Err returns the first lexical error, if any.
func (l *Lexer) Err() error {
	if l.err == nil {
		return nil
	}
	return l.err
}

// Tokenize returns every token of input up to and excluding EOF.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			break
		}
		toks = append(toks, tok)
	}
	return toks, l.Err()
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// atEOF reports whether the whole input has been consumed.
func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// currentPos returns the current position.
func (l *Lexer) currentPos() Position {
	return Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

func (l *Lexer) fail(pos Position, msg string) Token {
	if l.err == nil {
		l.err = &FormulaSyntaxError{Pos: pos, Message: msg}
	}
	l.pos = len(l.input)
	l.readPos = len(l.input)
	l.ch = 0
	return Token{Type: token.ILLEGAL, Pos: pos}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	if l.err != nil {
		return Token{Type: token.EOF, Pos: l.currentPos()}
	}
	if !l.skipWhitespaceAndComments() {
		return Token{Type: token.ILLEGAL, Pos: l.err.Pos}
	}

	pos := l.currentPos()
	if l.atEOF() {
		return Token{Type: token.EOF, Pos: pos}
	}

	var tok Token
	switch l.ch {
	case '+':
		tok = l.newToken(token.PLUS, "+")
	case '-':
		tok = l.newToken(token.MINUS, "-")
	case '*':
		tok = l.newToken(token.STAR, "*")
	case '/':
		tok = l.newToken(token.SLASH, "/")
	case '%':
		tok = l.newToken(token.PERCENT, "%")
	case '^':
		tok = l.newToken(token.CARET, "^")
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: token.EQ, Literal: "==", Pos: pos}
		} else {
			tok = l.newToken(token.EQ, "=")
		}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = Token{Type: token.LE, Literal: "<=", Pos: pos}
		case '>':
			l.readChar()
			tok = Token{Type: token.NE, Literal: "<>", Pos: pos}
		default:
			tok = l.newToken(token.LT, "<")
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: token.GE, Literal: ">=", Pos: pos}
		} else {
			tok = l.newToken(token.GT, ">")
		}
	case '!':
		if l.peekChar() != '=' {
			return l.fail(pos, fmt.Sprintf(ErrIllegalCharacter, l.ch))
		}
		l.readChar()
		tok = Token{Type: token.NE, Literal: "!=", Pos: pos}
	case ',':
		tok = l.newToken(token.COMMA, ",")
	case ':':
		tok = l.newToken(token.COLON, ":")
	case '(':
		tok = l.newToken(token.LPAREN, "(")
	case ')':
		tok = l.newToken(token.RPAREN, ")")
	case '{':
		tok = l.newToken(token.LBRACE, "{")
	case '}':
		tok = l.newToken(token.RBRACE, "}")
	case '.':
		if isDigit(l.peekChar()) {
			return Token{Type: token.NUMBER, Literal: l.readNumber(), Pos: pos}
		}
		tok = l.newToken(token.DOT, ".")
	case '\'', '"':
		lit, ok := l.readString(l.ch)
		if !ok {
			return l.fail(pos, ErrUnterminatedString)
		}
		return Token{Type: token.STRING, Literal: lit, Pos: pos}
	case '[':
		lit, ok := l.readField()
		if !ok {
			return l.fail(pos, ErrUnterminatedField)
		}
		return Token{Type: token.FIELD, Literal: lit, Pos: pos}
	case '#':
		lit, ok := l.readDate()
		if !ok {
			return l.fail(pos, ErrUnterminatedDate)
		}
		return Token{Type: token.DATE, Literal: lit, Pos: pos}
	default:
		switch {
		case isLetter(l.ch) || l.ch == '_':
			lit := l.readIdentifier()
			return Token{Type: token.LookupIdent(strings.ToLower(lit)), Literal: lit, Pos: pos}
		case isDigit(l.ch):
			return Token{Type: token.NUMBER, Literal: l.readNumber(), Pos: pos}
		default:
			return l.fail(pos, fmt.Sprintf(ErrIllegalCharacter, l.ch))
		}
	}

	l.readChar()
	return tok
}

// newToken creates a new single-position token.
func (l *Lexer) newToken(tokenType TokenType, literal string) Token {
	return Token{Type: tokenType, Literal: literal, Pos: l.currentPos()}
}

// skipWhitespaceAndComments skips whitespace, // line comments and
// /* block */ comments. It returns false on an unterminated block comment.
func (l *Lexer) skipWhitespaceAndComments() bool {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			start := l.currentPos()
			l.readChar() // skip '/'
			l.readChar() // skip '*'
			closed := false
			for !l.atEOF() {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar() // skip '*'
					l.readChar() // skip '/'
					closed = true
					break
				}
				l.readChar()
			}
			if !closed {
				l.fail(start, ErrUnterminatedComment)
				return false
			}
			continue
		}

		return true
	}
}

// readString reads a quoted string literal. A doubled quote character inside
// the literal stands for one quote.
func (l *Lexer) readString(quote byte) (string, bool) {
	l.readChar() // skip opening quote

	var result strings.Builder
	for !l.atEOF() {
		if l.ch == quote {
			if l.peekChar() == quote {
				result.WriteByte(quote)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			return result.String(), true
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	return "", false
}

// readField reads a bracketed field name. ]] is an escaped ].
func (l *Lexer) readField() (string, bool) {
	l.readChar() // skip '['

	var result strings.Builder
	for !l.atEOF() {
		if l.ch == ']' {
			if l.peekChar() == ']' {
				result.WriteByte(']')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip ']'
			return result.String(), true
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	return "", false
}

// readDate reads a #...# date literal.
func (l *Lexer) readDate() (string, bool) {
	l.readChar() // skip '#'
	start := l.pos
	for !l.atEOF() && l.ch != '#' && l.ch != '\n' {
		l.readChar()
	}
	if l.ch != '#' {
		return "", false
	}
	lit := l.input[start:l.pos]
	l.readChar() // skip '#'
	return strings.TrimSpace(lit), true
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // skip '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar() // skip 'e'
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	return l.input[start:l.pos]
}

// isLetter treats any non-ASCII byte as a letter so UTF-8 identifiers pass through.
func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
