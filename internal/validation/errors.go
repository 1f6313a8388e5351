package validation

import (
	"errors"
	"fmt"
)

var (
	// ErrValidationFailed matches every *Error, including duplicate entries.
	ErrValidationFailed = errors.New("validation failed")

	// ErrDuplicateEntry matches an *Error raised for a repeated value key or
	// a repeated key/filename pair.
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// Kind categorizes a validation failure
type Kind int

const (
	KindValidationFailed Kind = iota
	KindDuplicateEntry
)

func (k Kind) String() string {
	switch k {
	case KindDuplicateEntry:
		return "duplicate_entry"
	default:
		return "validation_failed"
	}
}

// Stable sub-codes carried by Error.Code.
const (
	CodeGeneric          = 0
	CodeInvalidMediaType = 1000
)

// Error is returned by every rule of this package.
type Error struct {
	// Kind categorizes the failure for programmatic handling.
	Kind Kind

	// Message is the human-readable, client-facing description.
	Message string

	// FieldPath locates the offending field, e.g. "logs/app.log". Optional.
	FieldPath string

	// Code is a stable sub-code, see the Code constants.
	Code int
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Is makes errors.Is match the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidationFailed:
		return true
	case ErrDuplicateEntry:
		return e.Kind == KindDuplicateEntry
	}
	return false
}

// Failed creates a validation failure with a formatted message.
func Failed(format string, args ...any) *Error {
	return &Error{Kind: KindValidationFailed, Message: fmt.Sprintf(format, args...)}
}

// Duplicate creates a duplicate entry failure with a formatted message.
func Duplicate(format string, args ...any) *Error {
	return &Error{Kind: KindDuplicateEntry, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) withPath(path string) *Error {
	e.FieldPath = path
	return e
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var vErr *Error
	if errors.As(err, &vErr) {
		return vErr, true
	}
	return nil, false
}
