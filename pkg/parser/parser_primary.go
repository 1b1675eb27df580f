package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/vizmigrate/pkg/core"
	"github.com/leapstack-labs/vizmigrate/pkg/token"
)

// Primary expression parsing: literals, field refs, calls, conditionals and
// level-of-detail blocks.

// parsePrimary parses primary expressions.
func (p *Parser) parsePrimary() core.Expr {
	pos := p.token.Pos

	switch p.token.Type {
	case token.NUMBER:
		lit := &core.Literal{Type: core.LiteralNumber, Value: p.token.Literal, Position: pos}
		p.nextToken()
		return lit

	case token.STRING:
		lit := &core.Literal{Type: core.LiteralString, Value: p.token.Literal, Position: pos}
		p.nextToken()
		return lit

	case token.DATE:
		lit := &core.Literal{Type: core.LiteralDate, Value: p.token.Literal, Position: pos}
		p.nextToken()
		return lit

	case token.TRUE:
		p.nextToken()
		return &core.Literal{Type: core.LiteralBool, Value: "true", Position: pos}

	case token.FALSE:
		p.nextToken()
		return &core.Literal{Type: core.LiteralBool, Value: "false", Position: pos}

	case token.NULL:
		p.nextToken()
		return &core.Literal{Type: core.LiteralNull, Value: "null", Position: pos}

	case token.FIELD:
		return p.parseFieldRef()

	case token.IDENT:
		return p.parseCall()

	case token.LPAREN:
		p.nextToken()
		inner := p.parseExpression()
		if inner == nil {
			return nil
		}
		if !p.expect(token.RPAREN) {
			return nil
		}
		return &core.ParenExpr{Expr: inner, Position: pos}

	case token.IF:
		return p.parseIfExpr()

	case token.CASE:
		return p.parseCaseExpr()

	case token.LBRACE:
		return p.parseLodExpr()

	case token.RBRACE:
		p.addError(ErrUnbalancedBraces)
		return nil

	case token.RPAREN:
		p.addError(ErrUnbalancedParens)
		return nil

	default:
		p.addError(fmt.Sprintf(ErrExpectedExpression, describe(p.token)))
		return nil
	}
}

// parseFieldRef parses [field] or [datasource].[field].
func (p *Parser) parseFieldRef() core.Expr {
	ref := &core.FieldRef{Name: p.token.Literal, Position: p.token.Pos}
	p.nextToken()
	if p.check(token.DOT) && p.peek.Type == token.FIELD {
		p.nextToken() // consume '.'
		ref.Datasource = ref.Name
		ref.Name = p.token.Literal
		p.nextToken()
	}
	return ref
}

// parseCall parses IDENT "(" [expr_list] ")".
func (p *Parser) parseCall() core.Expr {
	nameTok := p.token
	if p.peek.Type != token.LPAREN {
		p.addError(fmt.Sprintf(ErrBareIdentifier, nameTok.Literal))
		return nil
	}
	p.nextToken() // consume name
	p.nextToken() // consume '('

	args, ok := p.parseExprList(token.RPAREN)
	if !ok {
		return nil
	}
	if !p.expect(token.RPAREN) {
		return nil
	}

	name := strings.ToUpper(nameTok.Literal)
	if p.dialect != nil && p.dialect.IsTableCalc(name) {
		return &core.WindowCall{Name: name, Args: args, Position: nameTok.Pos}
	}
	return &core.FuncCall{Name: name, Args: args, Position: nameTok.Pos}
}

// parseIfExpr parses IF c THEN r (ELSEIF c THEN r)* [ELSE e] END.
func (p *Parser) parseIfExpr() core.Expr {
	expr := &core.IfExpr{Position: p.token.Pos}
	p.nextToken() // consume IF

	for {
		cond := p.parseExpression()
		if cond == nil {
			return nil
		}
		if !p.expect(token.THEN) {
			return nil
		}
		result := p.parseExpression()
		if result == nil {
			return nil
		}
		expr.Branches = append(expr.Branches, core.WhenClause{Condition: cond, Result: result})

		if !p.match(token.ELSEIF) {
			break
		}
	}

	if p.match(token.ELSE) {
		expr.Else = p.parseExpression()
		if expr.Else == nil {
			return nil
		}
	}
	if !p.expect(token.END) {
		return nil
	}
	return expr
}

// parseCaseExpr parses CASE [operand] (WHEN v THEN r)+ [ELSE e] END.
func (p *Parser) parseCaseExpr() core.Expr {
	expr := &core.CaseExpr{Position: p.token.Pos}
	p.nextToken() // consume CASE

	if !p.check(token.WHEN) {
		expr.Operand = p.parseExpression()
		if expr.Operand == nil {
			return nil
		}
	}

	for p.match(token.WHEN) {
		cond := p.parseExpression()
		if cond == nil {
			return nil
		}
		if !p.expect(token.THEN) {
			return nil
		}
		result := p.parseExpression()
		if result == nil {
			return nil
		}
		expr.Whens = append(expr.Whens, core.WhenClause{Condition: cond, Result: result})
	}
	if len(expr.Whens) == 0 {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), token.WHEN))
		return nil
	}

	if p.match(token.ELSE) {
		expr.Else = p.parseExpression()
		if expr.Else == nil {
			return nil
		}
	}
	if !p.expect(token.END) {
		return nil
	}
	return expr
}

// parseLodExpr parses "{" [(FIXED | INCLUDE | EXCLUDE) [dims] ":"] expr "}".
// A block without a scope keyword is a table-scoped FIXED expression.
func (p *Parser) parseLodExpr() core.Expr {
	lod := &core.LodExpr{Kind: core.LodFixed, Position: p.token.Pos}
	p.nextToken() // consume '{'

	if token.IsLodKeyword(p.token.Type) {
		lod.Kind = core.LodKind(p.token.Type.String())
		p.nextToken()
		if !p.check(token.COLON) {
			dims, ok := p.parseExprList(token.COLON)
			if !ok {
				return nil
			}
			lod.Dims = dims
		}
		if !p.check(token.COLON) {
			if p.check(token.EOF) {
				p.addError(ErrUnbalancedBraces)
			} else {
				p.addError(ErrMissingLodColon)
			}
			return nil
		}
		p.nextToken() // consume ':'
	}

	lod.Expr = p.parseExpression()
	if lod.Expr == nil {
		return nil
	}
	if !p.expect(token.RBRACE) {
		return nil
	}
	return lod
}
