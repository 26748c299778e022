package workbook

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// builtInDateFormats lists the built-in number format ids that render dates
// or times (ECMA-376 18.8.30 plus the CJK locale ids).
var builtInDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

type xlsxReader struct {
	file     *excelize.File
	sheet    string
	date1904 bool

	rows   [][]string
	index  int
	row    Row
	err    error
	styles map[int]bool
}

func openXLSX(data []byte) (*xlsxReader, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}

	sheet := f.GetSheetName(0)
	if sheet == "" {
		f.Close()
		return nil, fmt.Errorf("open xlsx: workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	r := &xlsxReader{
		file:   f,
		sheet:  sheet,
		rows:   rows,
		index:  -1,
		styles: make(map[int]bool),
	}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		r.date1904 = *props.Date1904
	}
	return r, nil
}

func (r *xlsxReader) Next() bool {
	if r.err != nil {
		return false
	}
	r.index++
	if r.index >= len(r.rows) {
		return false
	}

	number := r.index + 1
	width := len(r.rows[r.index])
	cells := make([]Cell, width)
	for col := 0; col < width; col++ {
		c, err := r.cell(col, number)
		if err != nil {
			r.err = err
			return false
		}
		cells[col] = c
	}
	r.row = Row{Number: number, Cells: cells}
	return true
}

func (r *xlsxReader) Row() Row     { return r.row }
func (r *xlsxReader) Err() error   { return r.err }
func (r *xlsxReader) Close() error { return r.file.Close() }

func (r *xlsxReader) cell(col, row int) (Cell, error) {
	axis, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return Cell{}, err
	}

	formula, err := r.file.GetCellFormula(r.sheet, axis)
	if err != nil {
		return Cell{}, fmt.Errorf("cell %s formula: %w", axis, err)
	}
	if formula != "" {
		return Cell{Kind: KindFormula, Value: formula}, nil
	}

	typ, err := r.file.GetCellType(r.sheet, axis)
	if err != nil {
		return Cell{}, fmt.Errorf("cell %s type: %w", axis, err)
	}

	switch typ {
	case excelize.CellTypeError:
		return Cell{Kind: KindError}, nil

	case excelize.CellTypeBool:
		v, err := r.raw(axis)
		if err != nil {
			return Cell{}, err
		}
		return Cell{Kind: KindBool, Value: v}, nil

	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		v, err := r.file.GetCellValue(r.sheet, axis)
		if err != nil {
			return Cell{}, fmt.Errorf("cell %s value: %w", axis, err)
		}
		if v == "" {
			return Cell{Kind: KindBlank}, nil
		}
		return Cell{Kind: KindText, Value: v}, nil

	case excelize.CellTypeDate:
		// ISO 8601 stored value, always a date regardless of style.
		v, err := r.raw(axis)
		if err != nil {
			return Cell{}, err
		}
		return Cell{Kind: KindNumeric, Value: v, DateFormatted: true, Date1904: r.date1904}, nil

	default:
		v, err := r.raw(axis)
		if err != nil {
			return Cell{}, err
		}
		if v == "" {
			return Cell{Kind: KindBlank}, nil
		}
		isDate, err := r.dateStyled(axis)
		if err != nil {
			return Cell{}, err
		}
		return Cell{Kind: KindNumeric, Value: v, DateFormatted: isDate, Date1904: r.date1904}, nil
	}
}

func (r *xlsxReader) raw(axis string) (string, error) {
	v, err := r.file.GetCellValue(r.sheet, axis, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", fmt.Errorf("cell %s value: %w", axis, err)
	}
	return v, nil
}

// dateStyled reports whether the cell's number format renders a date.
// Results are cached per style index.
func (r *xlsxReader) dateStyled(axis string) (bool, error) {
	idx, err := r.file.GetCellStyle(r.sheet, axis)
	if err != nil {
		return false, fmt.Errorf("cell %s style: %w", axis, err)
	}
	if isDate, ok := r.styles[idx]; ok {
		return isDate, nil
	}

	style, err := r.file.GetStyle(idx)
	if err != nil {
		return false, fmt.Errorf("style %d: %w", idx, err)
	}
	isDate := builtInDateFormats[style.NumFmt]
	if style.CustomNumFmt != nil {
		isDate = isDateFormatCode(*style.CustomNumFmt)
	}
	r.styles[idx] = isDate
	return isDate, nil
}

// isDateFormatCode reports whether a custom number format code contains date
// or time tokens outside of quoted literals, escapes and bracketed sections.
// Elapsed-time brackets such as [h] count as time tokens.
func isDateFormatCode(code string) bool {
	inQuote := false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '\\' || c == '_' || c == '*':
			i++
		case c == '[':
			end := strings.IndexByte(code[i:], ']')
			if end < 0 {
				return false
			}
			section := strings.ToLower(code[i+1 : i+end])
			if section == "h" || section == "hh" || section == "m" || section == "mm" || section == "s" || section == "ss" {
				return true
			}
			i += end
		default:
			switch c | 0x20 {
			case 'd', 'm', 'y', 'h', 's':
				return true
			}
		}
	}
	return false
}
