package relocate

import (
	"errors"
	"fmt"
)

var (
	// ErrOverlappingEdits is returned when two rewrites would touch the same
	// source range. The name collector never produces such edits.
	ErrOverlappingEdits = errors.New("overlapping edits")

	// ErrUnsupportedCharset is returned for a charset name with no known
	// encoding.
	ErrUnsupportedCharset = errors.New("unsupported charset")
)

// SyntaxError reports source text that does not parse as a Java
// compilation unit. Line and Column are 1-based; Column counts bytes.
type SyntaxError struct {
	Line    int
	Column  int
	Snippet string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d near %q", e.Line, e.Column, e.Snippet)
}

// IsSyntaxError reports whether err is or wraps a *SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}
