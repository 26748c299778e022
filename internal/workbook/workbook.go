// Package workbook reads uploaded spreadsheets as rows of typed cells.
//
// Two formats are understood: Office Open XML workbooks (.xlsx), read with
// excelize, and comma-separated text, read with encoding/csv. Only the first
// sheet of a workbook is read. The format is sniffed from the content, the
// file name is only used to break ties between zip and plain-text payloads.
package workbook

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeZip  = "application/zip"
	mimeCSV  = "text/csv"
	mimeText = "text/plain"

	mimeUnknown = "application/octet-stream"
)

var (
	// ErrEmptyFile is returned when the upload has no bytes at all.
	ErrEmptyFile = errors.New("empty file")

	// ErrTooLarge is returned when the upload exceeds the configured limit.
	ErrTooLarge = errors.New("file too large")

	// ErrUnsupportedFormat is returned when the content is neither xlsx nor csv.
	ErrUnsupportedFormat = errors.New("unsupported workbook format")
)

// Kind is the declared type of a cell.
type Kind int

const (
	KindBlank Kind = iota
	KindText
	KindNumeric
	KindBool
	KindFormula
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumeric:
		return "numeric"
	case KindBool:
		return "boolean"
	case KindFormula:
		return "formula"
	case KindError:
		return "error"
	default:
		return "blank"
	}
}

// Cell is one spreadsheet cell as stored, before any interpretation.
//
// Value holds the raw stored text: the string for text cells, the raw number
// ("123.0", "45292") for numeric cells, "1"/"0" or "TRUE"/"FALSE" for
// booleans and the formula source for formulas.
type Cell struct {
	Kind  Kind
	Value string

	// DateFormatted is set on numeric cells whose number format renders a date.
	DateFormatted bool

	// Date1904 reports the workbook's epoch for date serials.
	Date1904 bool
}

// Row is one sheet row. Number is 1-based as shown by spreadsheet tools.
type Row struct {
	Number int
	Cells  []Cell
}

// Cell returns the cell at the zero-based column, or a blank cell when the
// row is shorter than col.
func (r Row) Cell(col int) Cell {
	if col < 0 || col >= len(r.Cells) {
		return Cell{Kind: KindBlank}
	}
	return r.Cells[col]
}

// Blank reports whether every cell of the row is blank.
func (r Row) Blank() bool {
	for _, c := range r.Cells {
		if c.Kind != KindBlank {
			return false
		}
	}
	return true
}

// Reader iterates over the rows of the first sheet.
type Reader interface {
	Next() bool
	Row() Row
	Err() error
	Close() error
}

// Open reads at most maxSize bytes from r and returns a Reader for the
// detected format. maxSize <= 0 disables the size limit.
func Open(r io.Reader, name string, maxSize int64) (Reader, error) {
	if maxSize > 0 {
		r = io.LimitReader(r, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, maxSize)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	ext := strings.ToLower(filepath.Ext(name))
	mt := mimetype.Detect(data)

	switch {
	case isA(mt, mimeXLSX), isA(mt, mimeZip) && ext == ".xlsx":
		return openXLSX(data)
	case isA(mt, mimeCSV), isA(mt, mimeText) && ext != ".xlsx":
		return openCSV(data), nil
	case mt.Is(mimeUnknown) && ext == ".csv":
		// Mis-encoded text exports sniff as opaque bytes.
		return openCSV(data), nil
	default:
		return nil, fmt.Errorf("%w: detected %s", ErrUnsupportedFormat, mt.String())
	}
}

// isA reports whether mt or one of its ancestors is mime.
func isA(mt *mimetype.MIME, mime string) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(mime) {
			return true
		}
	}
	return false
}
