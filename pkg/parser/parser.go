// Package parser provides calculation formula parsing.
//
// # Usage
//
//	expr, err := parser.Parse("SUM([Sales]) / COUNTD([Order ID])", dax.DAX)
//	if err != nil {
//	    // err is a *parser.FormulaSyntaxError
//	}
//
// The dialect is optional. When set, function names the dialect classifies
// as table calculations parse as core.WindowCall instead of core.FuncCall.
//
// # Grammar Overview
//
//	formula     → expr EOF
//	expr        → or_expr
//	or_expr     → and_expr (OR and_expr)*
//	and_expr    → not_expr (AND not_expr)*
//	not_expr    → NOT not_expr | comparison
//	comparison  → additive [(= | == | != | <> | < | <= | > | >=) additive | IN "(" expr_list ")"]
//	additive    → term ((+ | -) term)*
//	term        → power ((* | / | %) power)*
//	power       → unary [^ power]
//	unary       → (- | +) unary | primary
//	primary     → literal | field | call | "(" expr ")" | if_expr | case_expr | lod
//	field       → FIELD ["." FIELD]
//	call        → IDENT "(" [expr_list] ")"
//	if_expr     → IF expr THEN expr (ELSEIF expr THEN expr)* [ELSE expr] END
//	case_expr   → CASE [expr] (WHEN expr THEN expr)+ [ELSE expr] END
//	lod         → "{" [(FIXED | INCLUDE | EXCLUDE) [expr_list] ":"] expr "}"
//
// Keywords always win over function names: IF( starts a conditional, and
// the IIF function must be used for the call form.
package parser

import (
	"fmt"

	"github.com/leapstack-labs/vizmigrate/pkg/core"
	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
	"github.com/leapstack-labs/vizmigrate/pkg/token"
)

// Parser parses calculation formulas into an AST.
type Parser struct {
	lexer   *Lexer
	token   Token // current token
	peek    Token // lookahead token
	errors  []error
	dialect *dialect.Dialect // optional
}

// NewParser creates a new parser for the given formula.
func NewParser(formula string, d *dialect.Dialect) *Parser {
	p := &Parser{
		lexer:   NewLexer(formula),
		dialect: d,
	}
	// Read two tokens to initialize current and peek
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a complete formula and returns its AST.
// The returned error is always a *FormulaSyntaxError.
func Parse(formula string, d *dialect.Dialect) (core.Expr, error) {
	p := NewParser(formula, d)
	expr := p.parseFormula()
	if err := p.firstError(); err != nil {
		return nil, err
	}
	return expr, nil
}

// parseFormula parses expr EOF.
func (p *Parser) parseFormula() core.Expr {
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}
	switch p.token.Type {
	case token.EOF:
	case token.RBRACE:
		p.addError(ErrUnbalancedBraces)
	case token.RPAREN:
		p.addError(ErrUnbalancedParens)
	default:
		p.addError(fmt.Sprintf(ErrTrailingInput, describe(p.token)))
	}
	return expr
}

// firstError returns the earliest error. Lexical errors take precedence
// because they cause the parse errors that follow them.
func (p *Parser) firstError() error {
	if err := p.lexer.Err(); err != nil {
		return err
	}
	if len(p.errors) > 0 {
		return p.errors[0]
	}
	return nil
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.lexer.NextToken()
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
// Reaching EOF while a bracket is open reports it as unbalanced.
func (p *Parser) expect(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	switch {
	case t == token.RBRACE && p.check(token.EOF):
		p.addError(ErrUnbalancedBraces)
	case t == token.RPAREN && p.check(token.EOF):
		p.addError(ErrUnbalancedParens)
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), t))
	}
	return false
}

// addError adds a parse error at the current token.
func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &FormulaSyntaxError{
		Pos:     p.token.Pos,
		Message: msg,
	})
}

func describe(tok Token) string {
	switch tok.Type {
	case token.EOF:
		return "end of formula"
	case token.IDENT, token.NUMBER:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	case token.FIELD:
		return fmt.Sprintf("field [%s]", tok.Literal)
	default:
		return tok.Type.String()
	}
}
