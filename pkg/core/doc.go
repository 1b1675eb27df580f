// Package core defines the abstract syntax tree for calculation formulas.
//
// The tree is closed: every formula is built from literals, field
// references, function calls, window (table calculation) calls, operators,
// conditionals and level-of-detail blocks. Translators switch over these
// node types exhaustively, so adding a node type is a breaking change.
//
// The Golden Rule: pkg/core imports ONLY pkg/token and stdlib.
package core
