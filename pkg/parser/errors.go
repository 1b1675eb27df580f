package parser

import "fmt"

// FormulaSyntaxError reports a formula that cannot be tokenized or parsed.
// It is scoped to a single calculated field.
type FormulaSyntaxError struct {
	Pos     Position
	Message string
}

func (e *FormulaSyntaxError) Error() string {
	return fmt.Sprintf("formula syntax error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Common error messages
const (
	ErrUnexpectedToken     = "unexpected token %s, expected %s"
	ErrUnterminatedString  = "unterminated string literal"
	ErrUnterminatedField   = "unterminated field reference"
	ErrUnterminatedDate    = "unterminated date literal"
	ErrUnterminatedComment = "unterminated block comment"
	ErrUnbalancedBraces    = "unbalanced braces"
	ErrUnbalancedParens    = "unbalanced parentheses"
	ErrIllegalCharacter    = "illegal character %q"
	ErrExpectedExpression  = "expected expression, got %s"
	ErrBareIdentifier      = "identifier %q must be a function call or a [field] reference"
	ErrMissingLodColon     = "level of detail block needs a ':' after its dimensions"
	ErrTrailingInput       = "unexpected %s after end of expression"
)
