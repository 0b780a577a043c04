package classfile

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is matched by every error caused by input that is not a
	// well-formed class file.
	ErrMalformed = errors.New("malformed class file")

	// ErrPoolOverflow is returned when adding a constant would exceed the
	// 65535 entries a constant pool can address.
	ErrPoolOverflow = errors.New("constant pool overflow")
)

// FormatError reports where decoding stopped.
type FormatError struct {
	Offset int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed class file at offset %d: %s", e.Offset, e.Reason)
}

// Is makes errors.Is(err, ErrMalformed) hold for every FormatError.
func (e *FormatError) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
