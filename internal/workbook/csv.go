package workbook

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type csvReader struct {
	r      *csv.Reader
	number int
	row    Row
	err    error
}

// openCSV reads comma-separated text. Every non-empty field is a text cell:
// CSV carries no type information, so numbers such as "123.0" stay verbatim.
func openCSV(data []byte) *csvReader {
	data = bytes.TrimPrefix(data, utf8BOM)
	// Windows exports are not always valid UTF-8.
	data = bytes.ToValidUTF8(data, []byte("?"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true
	return &csvReader{r: r}
}

func (c *csvReader) Next() bool {
	if c.err != nil {
		return false
	}
	record, err := c.r.Read()
	if errors.Is(err, io.EOF) {
		return false
	}
	if err != nil {
		c.err = err
		return false
	}

	// encoding/csv skips blank lines; report the physical line.
	c.number, _ = c.r.FieldPos(0)
	cells := make([]Cell, len(record))
	for i, field := range record {
		if strings.TrimSpace(field) == "" {
			cells[i] = Cell{Kind: KindBlank}
			continue
		}
		cells[i] = Cell{Kind: KindText, Value: field}
	}
	c.row = Row{Number: c.number, Cells: cells}
	return true
}

func (c *csvReader) Row() Row     { return c.row }
func (c *csvReader) Err() error   { return c.err }
func (c *csvReader) Close() error { return nil }
