package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an import failed.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindIO
	KindFormat
	KindValidation
	KindReference
	KindIntegrity
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindFormat:
		return "format"
	case KindValidation:
		return "validation"
	case KindReference:
		return "reference"
	case KindIntegrity:
		return "integrity"
	case KindStorage:
		return "storage"
	default:
		return "none"
	}
}

// Errors reported by stores.
var (
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate key")
	ErrConstraint = errors.New("integrity constraint violated")
)

// Row and file errors. Wrapped inside *ImportError.
var (
	ErrEmptyFile            = errors.New("csv is empty: a header line is required")
	ErrIncompleteRow        = errors.New("row data is incomplete")
	ErrEmptyField           = errors.New("cannot be empty")
	ErrTooLong              = errors.New("exceeds maximum length")
	ErrInvalidCountry       = errors.New("invalid country")
	ErrInvalidYear          = errors.New("invalid year")
	ErrManufacturerNotFound = errors.New("manufacturer not found")
	ErrChunkerClosed        = errors.New("chunker is closed")
)

// ImportError is the first failure of an import run.
// Line is the 1-based source line of the offending record, 0 when the
// failure is not tied to a row.
type ImportError struct {
	Kind  ErrorKind
	Line  int
	Field string
	Value string
	Err   error
}

func (e *ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return e.Err.Error()
}

func (e *ImportError) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *ImportError in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindStorage
}

func invalidField(field, value string, err error) *ImportError {
	return &ImportError{Kind: KindValidation, Field: field, Value: value, Err: err}
}

func emptyField(field string) *ImportError {
	return invalidField(field, "", fmt.Errorf("%s %w", field, ErrEmptyField))
}

func tooLong(field, value string, limit int) *ImportError {
	return invalidField(field, value, fmt.Errorf("%s %w of %d characters", field, ErrTooLong, limit))
}

func incompleteRow(want string, got int) *ImportError {
	return &ImportError{
		Kind: KindValidation,
		Err:  fmt.Errorf("%w: expected %s fields, got %d", ErrIncompleteRow, want, got),
	}
}

// atLine attributes err to a source line. Errors that are not already an
// *ImportError are treated as validation failures.
func atLine(err error, line int) error {
	var ie *ImportError
	if !errors.As(err, &ie) {
		return &ImportError{Kind: KindValidation, Line: line, Err: err}
	}
	if ie.Line == 0 {
		ie.Line = line
	}
	return err
}
