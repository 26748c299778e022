package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/cms/internal/workbook"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"date format", &DateFormatError{Value: "x", Formats: []string{"ISO"}}, "VAL001"},
		{"incomplete row", &ValidationError{Field: "name", Reason: "missing", Err: ErrIncompleteRow}, "VAL002"},
		{"duplicate national id", &ValidationError{Field: "national_id", Reason: "taken", Err: ErrDuplicateKey}, "VAL003"},
		{"generic validation", &ValidationError{Field: "line1", Reason: "required"}, "VAL004"},
		{"malformed reference", &MalformedReferenceError{Kind: "city", Value: "abc"}, "REF001"},
		{"missing reference", fmt.Errorf("address 1: %w", &ReferenceNotFoundError{Kind: "city", ID: 9}), "REF002"},
		{"file too large", &WorkbookFormatError{Err: fmt.Errorf("%w: limit", workbook.ErrTooLarge)}, "FILE001"},
		{"unsupported format", &WorkbookFormatError{Err: workbook.ErrUnsupportedFormat}, "FILE002"},
		{"empty file", &WorkbookFormatError{Err: workbook.ErrEmptyFile}, "FILE003"},
		{"corrupt workbook", &WorkbookFormatError{Err: errors.New("zip: not a valid zip file")}, "FILE005"},
		{"not found", fmt.Errorf("get customer: %w", ErrNotFound), "CUS001"},
		{"limiter", ErrTooManyImports, "IMP002"},
		{"cancelled import", &ImportError{Row: 4, Phase: PhaseReadingRows, Err: context.Canceled}, "IMP001"},
		{"import timeout", &ImportError{Phase: PhaseFlushing, Err: context.DeadlineExceeded}, "IMP004"},
		{"store failure falls back to patterns", &ImportError{Err: &StoreFailure{Op: "save batch", Err: errors.New("dial tcp: connection refused")}}, "DB004"},
		{"deadlock pattern", errors.New("ERROR: deadlock detected"), "DB007"},
		{"case insensitive", errors.New("RATE LIMIT exceeded"), "RATE001"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			if tt.err != nil {
				assert.NotEmpty(t, got.Message)
				assert.NotEmpty(t, got.Action)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	assert.Equal(t, "", FormatUserError(nil))
	assert.Equal(t,
		"Customer not found (Code: CUS001). Check the customer ID",
		FormatUserError(ErrNotFound))
}
