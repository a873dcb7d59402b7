package domain

import (
	"errors"
	"fmt"
)

// Sentinel validation causes.
var (
	ErrSessionBusy       = errors.New("a drawing gesture is already in progress")
	ErrNotDrawing        = errors.New("no drawing gesture in progress")
	ErrTooFewPoints      = errors.New("not enough points to finish the shape")
	ErrNothingToUndo     = errors.New("no pending point to undo")
	ErrInvalidState      = errors.New("operation not valid in the current drawing state")
	ErrInvalidCoordinate = errors.New("coordinate out of range")
	ErrDegenerateShape   = errors.New("shape has no extent")
	ErrUnknownMode       = errors.New("unknown drawing mode")
	ErrPointZeroLocked   = errors.New("point zero is locked")
	ErrNoPointZero       = errors.New("point zero has not been placed")
	ErrShapeNotFound     = errors.New("shape not found")
	ErrTraceNotFound     = errors.New("trace not found")
	ErrNotZone           = errors.New("shape cannot be assigned to a team")
	ErrNotAssigned       = errors.New("zone has no assigned team")
	ErrMenuClosed        = errors.New("context menu is not open")
	ErrPickerClosed      = errors.New("team picker is not open")
	ErrUnknownLayer      = errors.New("unknown layer")
	ErrTeamRequired      = errors.New("team id is required")
	ErrWorkspaceClosed   = errors.New("workspace is shut down")
)

// ValidationError is a non-fatal operator error. The engine is left in a safe
// state whenever one is returned.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError.
func Invalid(op string, err error) error {
	return &ValidationError{Op: op, Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ParseErrorKind classifies ingestion failures.
type ParseErrorKind string

const (
	ParseMalformed         ParseErrorKind = "malformed"
	ParseUnsupportedFormat ParseErrorKind = "unsupported_format"
)

// ErrMalformed and ErrUnsupportedFormat let callers use errors.Is on ParseError.
var (
	ErrMalformed         = errors.New("malformed file")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// ParseError reports a trace file that could not be ingested. No partial
// overlay is ever created for a file that produced one.
type ParseError struct {
	FileName string
	Kind     ParseErrorKind
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s: %v", e.FileName, e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrMalformed:
		return e.Kind == ParseMalformed
	case ErrUnsupportedFormat:
		return e.Kind == ParseUnsupportedFormat
	}
	return false
}

// Malformed builds a ParseError of kind malformed.
func Malformed(fileName string, err error) error {
	return &ParseError{FileName: fileName, Kind: ParseMalformed, Err: err}
}
