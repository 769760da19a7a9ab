package expr

import (
	"errors"
	"fmt"
)

var (
	// ErrEvaluation classifies syntax errors, unknown identifiers and other failures to
	// compute an expression.
	ErrEvaluation = errors.New("expression: evaluation error")
	// ErrNonFiniteResult is returned when an expression evaluates to NaN or ±Inf.
	ErrNonFiniteResult = errors.New("expression: non-finite result")
)

// Error describes why an expression could not produce a price. Its message is meant to be
// shown to the person editing the expression, as is.
type Error struct {
	Kind    error
	Column  int
	Message string
}

func (e *Error) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("%s (column %d)", e.Message, e.Column)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

func syntaxError(column int, format string, args ...any) *Error {
	return &Error{Kind: ErrEvaluation, Column: column, Message: fmt.Sprintf(format, args...)}
}
