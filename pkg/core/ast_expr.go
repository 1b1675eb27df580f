package core

import "github.com/leapstack-labs/vizmigrate/pkg/token"

// ---------- Expression Types ----------

// Literal represents a literal value. String values are unescaped; date
// values hold the text between the # delimiters.
type Literal struct {
	Type     LiteralType
	Value    string
	Position token.Position
}

func (*Literal) exprNode() {}

// Pos implements Node.
func (l *Literal) Pos() token.Position { return l.Position }

// FieldRef references a column, calculated field or parameter by name.
// Datasource is set only for [ds].[field] references.
type FieldRef struct {
	Datasource string
	Name       string
	Position   token.Position
}

func (*FieldRef) exprNode() {}

// Pos implements Node.
func (f *FieldRef) Pos() token.Position { return f.Position }

// Qualified returns the reference as written, with brackets.
func (f *FieldRef) Qualified() string {
	if f.Datasource == "" {
		return "[" + f.Name + "]"
	}
	return "[" + f.Datasource + "].[" + f.Name + "]"
}

// FuncCall represents a row-level or aggregate function call. Name is upper case.
type FuncCall struct {
	Name     string
	Args     []Expr
	Position token.Position
}

func (*FuncCall) exprNode() {}

// Pos implements Node.
func (f *FuncCall) Pos() token.Position { return f.Position }

// WindowCall represents a table calculation evaluated over the aggregated
// result set (RUNNING_SUM, WINDOW_AVG, RANK, INDEX, ...). Name is upper case.
type WindowCall struct {
	Name     string
	Args     []Expr
	Position token.Position
}

func (*WindowCall) exprNode() {}

// Pos implements Node.
func (w *WindowCall) Pos() token.Position { return w.Position }

// BinaryExpr represents a binary expression.
type BinaryExpr struct {
	Left  Expr
	Op    token.TokenType
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// Pos implements Node.
func (b *BinaryExpr) Pos() token.Position {
	if b.Left != nil {
		return b.Left.Pos()
	}
	return token.Position{}
}

// UnaryExpr represents a unary expression (NOT, -, +).
type UnaryExpr struct {
	Op       token.TokenType
	Expr     Expr
	Position token.Position
}

func (*UnaryExpr) exprNode() {}

// Pos implements Node.
func (u *UnaryExpr) Pos() token.Position { return u.Position }

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	Expr     Expr
	Position token.Position
}

func (*ParenExpr) exprNode() {}

// Pos implements Node.
func (p *ParenExpr) Pos() token.Position { return p.Position }

// WhenClause is one condition/result pair of an IfExpr or CaseExpr.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// IfExpr represents IF c THEN r [ELSEIF c THEN r]... [ELSE e] END.
type IfExpr struct {
	Branches []WhenClause
	Else     Expr
	Position token.Position
}

func (*IfExpr) exprNode() {}

// Pos implements Node.
func (i *IfExpr) Pos() token.Position { return i.Position }

// CaseExpr represents CASE operand WHEN v THEN r ... [ELSE e] END.
type CaseExpr struct {
	Operand  Expr
	Whens    []WhenClause
	Else     Expr
	Position token.Position
}

func (*CaseExpr) exprNode() {}

// Pos implements Node.
func (c *CaseExpr) Pos() token.Position { return c.Position }

// InExpr represents expr [NOT] IN (values).
type InExpr struct {
	Expr   Expr
	Values []Expr
	Not    bool
}

func (*InExpr) exprNode() {}

// Pos implements Node.
func (i *InExpr) Pos() token.Position {
	if i.Expr != nil {
		return i.Expr.Pos()
	}
	return token.Position{}
}

// LodExpr represents a brace-delimited level-of-detail block.
type LodExpr struct {
	Kind     LodKind
	Dims     []Expr
	Expr     Expr
	Position token.Position
}

func (*LodExpr) exprNode() {}

// Pos implements Node.
func (l *LodExpr) Pos() token.Position { return l.Position }
