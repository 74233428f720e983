package sales

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is matched by validation errors caused by an absent required field.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidNumber is matched by validation errors caused by a non-numeric value.
	ErrInvalidNumber = errors.New("invalid numeric field")
	// ErrNotAnObject is returned when the raw input is not a JSON object.
	ErrNotAnObject = errors.New("sale is not an object")
)

// ErrorKind discriminates validation failures.
type ErrorKind string

const (
	KindMissingField  ErrorKind = "missing_field"
	KindInvalidNumber ErrorKind = "invalid_number"
	KindNotAnObject   ErrorKind = "not_an_object"
)

// ValidationError describes why a raw sale was rejected.
type ValidationError struct {
	Kind  ErrorKind
	Field string
	Value interface{}
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindMissingField:
		return fmt.Sprintf("missing required field %q", e.Field)
	case KindInvalidNumber:
		return fmt.Sprintf("field %q has invalid number %v", e.Field, e.Value)
	default:
		return fmt.Sprintf("sale has type %T, want object", e.Value)
	}
}

// Is lets errors.Is match the sentinel for the error's kind.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrMissingField:
		return e.Kind == KindMissingField
	case ErrInvalidNumber:
		return e.Kind == KindInvalidNumber
	case ErrNotAnObject:
		return e.Kind == KindNotAnObject
	}
	return false
}
