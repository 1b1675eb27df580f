package core

import "github.com/leapstack-labs/vizmigrate/pkg/token"

// Node is the base interface for all AST nodes.
type Node interface {
	// Pos returns the position of the first character of the node.
	Pos() token.Position
}

// Expr is a marker interface for expression nodes.
type Expr interface {
	Node
	exprNode() // Marker method to distinguish expressions
}

// LiteralType represents the type of a literal.
type LiteralType int

// LiteralType constants for formula literal value types.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
	LiteralDate
)

func (t LiteralType) String() string {
	switch t {
	case LiteralNumber:
		return "number"
	case LiteralString:
		return "string"
	case LiteralBool:
		return "bool"
	case LiteralNull:
		return "null"
	case LiteralDate:
		return "date"
	default:
		return "unknown"
	}
}

// LodKind is the scope keyword of a level-of-detail block.
type LodKind string

// Level-of-detail kinds. A bare {expr} block is LodFixed with no dimensions.
const (
	LodFixed   LodKind = "FIXED"
	LodInclude LodKind = "INCLUDE"
	LodExclude LodKind = "EXCLUDE"
)
