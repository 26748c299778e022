package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when a national id is already taken.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrIncompleteRow marks a row missing name, national id or date of birth.
	ErrIncompleteRow = errors.New("required field missing")

	// ErrImportNotFound is returned for unknown import run ids.
	ErrImportNotFound = errors.New("import run not found")

	// ErrAlreadyRolledBack is returned when rolling back a run twice.
	ErrAlreadyRolledBack = errors.New("import run already rolled back")
)

// ValidationError rejects a record: a missing mandatory field or a taken
// unique key. Skipped in bulk mode, returned in single-record mode.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// MalformedReferenceError is returned when a city or country id is not an
// integer.
type MalformedReferenceError struct {
	Kind  string
	Value string
}

func (e *MalformedReferenceError) Error() string {
	return fmt.Sprintf("malformed %s reference %q", e.Kind, e.Value)
}

// ReferenceNotFoundError is returned when a city or country id does not exist.
type ReferenceNotFoundError struct {
	Kind string
	ID   int64
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// DateFormatError is returned when no accepted format parses a date.
type DateFormatError struct {
	Value   string
	Formats []string
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("invalid date %q: expected one of %s", e.Value, strings.Join(e.Formats, ", "))
}

// StoreFailure wraps an I/O or constraint error raised while persisting.
type StoreFailure struct {
	Op  string
	Err error
}

func (e *StoreFailure) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreFailure) Unwrap() error { return e.Err }

// WorkbookFormatError is returned when the upload cannot be read as a
// workbook. Nothing has been written when it is returned.
type WorkbookFormatError struct {
	Err error
}

func (e *WorkbookFormatError) Error() string {
	return fmt.Sprintf("unreadable workbook: %v", e.Err)
}

func (e *WorkbookFormatError) Unwrap() error { return e.Err }

// ImportError is the terminal error of an aborted import. Committed counts
// the records already persisted by earlier flushes and still in the store.
type ImportError struct {
	Row       int
	Phase     ImportPhase
	Committed int
	Err       error
}

func (e *ImportError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("import failed at row %d during %s (%d committed): %v", e.Row, e.Phase, e.Committed, e.Err)
	}
	return fmt.Sprintf("import failed during %s (%d committed): %v", e.Phase, e.Committed, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// skipReason classifies per-row errors that drop the row instead of failing
// the import. It reports false for fatal errors.
func skipReason(err error) (SkipReason, bool) {
	if isStoreFailure(err) {
		return "", false
	}

	var (
		dateErr      *DateFormatError
		malformedErr *MalformedReferenceError
		missingErr   *ReferenceNotFoundError
		validErr     *ValidationError
	)
	switch {
	case errors.As(err, &dateErr):
		return SkipInvalidDate, true
	case errors.As(err, &malformedErr):
		return SkipMalformedReference, true
	case errors.As(err, &missingErr):
		return SkipUnknownReference, true
	case errors.Is(err, ErrDuplicateKey):
		return SkipDuplicate, true
	case errors.As(err, &validErr):
		return SkipIncomplete, true
	default:
		return "", false
	}
}
