package afm

import "fmt"

// Kind classifies why a number was rejected. Kinds are mutually exclusive and
// checked in declaration order.
type Kind string

const (
	KindInvalidFormat   Kind = "invalid_format"
	KindInvalidLength   Kind = "invalid_length"
	KindInvalidChecksum Kind = "invalid_checksum"
)

// ValidationError is returned by Validate and Parse.
type ValidationError struct {
	Kind   Kind
	Number string // compact form of the rejected input
}

func newValidationError(kind Kind, number string) *ValidationError {
	return &ValidationError{Kind: kind, Number: number}
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindInvalidFormat:
		return fmt.Sprintf("afm: %q contains non-digit characters", e.Number)
	case KindInvalidLength:
		return fmt.Sprintf("afm: %q has %d digits, want %d", e.Number, len(e.Number), Length)
	case KindInvalidChecksum:
		return fmt.Sprintf("afm: %q has an invalid check digit", e.Number)
	default:
		return "afm: validation failed"
	}
}

// Is matches sentinels by kind. A sentinel with an empty kind matches every
// validation error.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation      error = &ValidationError{}
	ErrInvalidFormat   error = &ValidationError{Kind: KindInvalidFormat}
	ErrInvalidLength   error = &ValidationError{Kind: KindInvalidLength}
	ErrInvalidChecksum error = &ValidationError{Kind: KindInvalidChecksum}
)
