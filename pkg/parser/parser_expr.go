package parser

import (
	"github.com/leapstack-labs/vizmigrate/pkg/core"
	"github.com/leapstack-labs/vizmigrate/pkg/token"
)

// Expression precedence parsing using a Pratt parser.
//
// Precedence levels:
//
//	precedenceOr         = 1
//	precedenceAnd        = 2
//	precedenceNot        = 3
//	precedenceComparison = 4  (=, ==, !=, <>, <, >, <=, >=, IN)
//	precedenceAddition   = 5  (+, -)
//	precedenceMultiply   = 6  (*, /, %)
//	precedencePower      = 7  (^, right associative)
//	precedenceUnary      = 8  (-, +)
const (
	precedenceNone = iota
	precedenceOr
	precedenceAnd
	precedenceNot
	precedenceComparison
	precedenceAddition
	precedenceMultiply
	precedencePower
	precedenceUnary
)

// parseExpression parses an expression using precedence climbing.
func (p *Parser) parseExpression() core.Expr {
	return p.parseExpressionWithPrecedence(precedenceNone + 1)
}

// parseExpressionWithPrecedence implements Pratt parsing.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) core.Expr {
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	for {
		prec := infixPrecedence(p.token.Type)
		if prec == precedenceNone || prec < minPrecedence {
			break
		}

		left = p.parseInfixExpr(left, prec)
		if left == nil {
			return nil
		}
	}

	return left
}

// parsePrefixExpr parses prefix expressions (unary operators and primary expressions).
func (p *Parser) parsePrefixExpr() core.Expr {
	pos := p.token.Pos
	switch p.token.Type {
	case token.NOT:
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precedenceNot)
		if expr == nil {
			return nil
		}
		return &core.UnaryExpr{Op: token.NOT, Expr: expr, Position: pos}

	case token.MINUS, token.PLUS:
		op := p.token.Type
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precedenceUnary)
		if expr == nil {
			return nil
		}
		return &core.UnaryExpr{Op: op, Expr: expr, Position: pos}

	default:
		return p.parsePrimary()
	}
}

// infixPrecedence returns the precedence of t as an infix operator.
// Returns precedenceNone if t is not an infix operator.
func infixPrecedence(t TokenType) int {
	switch t {
	case token.OR:
		return precedenceOr
	case token.AND:
		return precedenceAnd
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE, token.IN:
		return precedenceComparison
	case token.PLUS, token.MINUS:
		return precedenceAddition
	case token.STAR, token.SLASH, token.PERCENT:
		return precedenceMultiply
	case token.CARET:
		return precedencePower
	default:
		return precedenceNone
	}
}

// parseInfixExpr parses an infix expression given the left operand and current precedence.
func (p *Parser) parseInfixExpr(left core.Expr, prec int) core.Expr {
	if p.check(token.IN) {
		p.nextToken()
		return p.parseInExpr(left)
	}

	op := p.token
	p.nextToken()

	// ^ is right associative; everything else binds left.
	next := prec + 1
	if op.Type == token.CARET {
		next = prec
	}
	right := p.parseExpressionWithPrecedence(next)
	if right == nil {
		return nil
	}

	return &core.BinaryExpr{Left: left, Op: op.Type, Right: right}
}

// parseInExpr parses the value list of expr IN (v1, v2, ...).
// The IN keyword has already been consumed.
func (p *Parser) parseInExpr(left core.Expr) core.Expr {
	if !p.expect(token.LPAREN) {
		return nil
	}
	values, ok := p.parseExprList(token.RPAREN)
	if !ok {
		return nil
	}
	if !p.expect(token.RPAREN) {
		return nil
	}
	return &core.InExpr{Expr: left, Values: values}
}

// parseExprList parses a comma separated list up to (not including) end.
// It returns false if any element failed to parse.
func (p *Parser) parseExprList(end TokenType) ([]core.Expr, bool) {
	var list []core.Expr
	if p.check(end) {
		return list, true
	}
	for {
		expr := p.parseExpression()
		if expr == nil {
			return nil, false
		}
		list = append(list, expr)
		if !p.match(token.COMMA) {
			return list, true
		}
	}
}
