package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/cms/internal/workbook"
)

// isoDate is the layout date-formatted cells decode to.
const isoDate = "2006-01-02"

// DecodeCell converts a cell to normalized text. The second result is false
// when the cell holds no value.
//
//   - text: trimmed, absent when empty after trimming
//   - boolean: "true" or "false"
//   - date-formatted numeric: ISO calendar date
//   - numeric: integer text, fraction truncated toward zero ("123.9" -> "123")
//   - formula: the formula source, never its evaluated result
//   - blank and error: absent
func DecodeCell(c workbook.Cell) (string, bool) {
	switch c.Kind {
	case workbook.KindText:
		v := strings.TrimSpace(c.Value)
		return v, v != ""

	case workbook.KindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(c.Value))
		if err != nil {
			return "", false
		}
		return strconv.FormatBool(b), true

	case workbook.KindNumeric:
		if c.DateFormatted {
			return decodeDate(c)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(c.Value))
		if err != nil {
			return "", false
		}
		return d.Truncate(0).String(), true

	case workbook.KindFormula:
		v := strings.TrimSpace(c.Value)
		return v, v != ""

	default:
		return "", false
	}
}

func decodeDate(c workbook.Cell) (string, bool) {
	raw := strings.TrimSpace(c.Value)
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, c.Date1904)
		if err != nil {
			return "", false
		}
		return t.Format(isoDate), true
	}

	// Cells typed as dates store an ISO 8601 timestamp instead of a serial.
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", isoDate} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(isoDate), true
		}
	}
	return "", false
}
