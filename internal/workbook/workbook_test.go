package workbook

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildXLSX(t *testing.T, fill func(f *excelize.File, sheet string)) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	fill(f, sheet)

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func readAll(t *testing.T, r Reader) []Row {
	t.Helper()
	var rows []Row
	for r.Next() {
		rows = append(rows, r.Row())
	}
	require.NoError(t, r.Err())
	require.NoError(t, r.Close())
	return rows
}

func TestOpen_XLSXCellKinds(t *testing.T) {
	data := buildXLSX(t, func(f *excelize.File, sheet string) {
		dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
		require.NoError(t, err)

		require.NoError(t, f.SetCellValue(sheet, "A1", "  Alice  "))
		require.NoError(t, f.SetCellValue(sheet, "B1", 123.0))
		require.NoError(t, f.SetCellValue(sheet, "C1", 45292))
		require.NoError(t, f.SetCellStyle(sheet, "C1", "C1", dateStyle))
		require.NoError(t, f.SetCellValue(sheet, "D1", true))
		require.NoError(t, f.SetCellFormula(sheet, "E1", "SUM(B1:B2)"))
		require.NoError(t, f.SetCellValue(sheet, "G1", "last"))
	})

	r, err := Open(bytes.NewReader(data), "customers.xlsx", 0)
	require.NoError(t, err)
	rows := readAll(t, r)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, 1, row.Number)

	assert.Equal(t, KindText, row.Cell(0).Kind)
	assert.Equal(t, "  Alice  ", row.Cell(0).Value)

	assert.Equal(t, KindNumeric, row.Cell(1).Kind)
	assert.Equal(t, "123", row.Cell(1).Value)
	assert.False(t, row.Cell(1).DateFormatted)

	assert.Equal(t, KindNumeric, row.Cell(2).Kind)
	assert.Equal(t, "45292", row.Cell(2).Value)
	assert.True(t, row.Cell(2).DateFormatted)

	assert.Equal(t, KindBool, row.Cell(3).Kind)

	assert.Equal(t, KindFormula, row.Cell(4).Kind)
	assert.Equal(t, "SUM(B1:B2)", row.Cell(4).Value)

	assert.Equal(t, KindBlank, row.Cell(5).Kind)
	assert.Equal(t, KindText, row.Cell(6).Kind)
	assert.Equal(t, KindBlank, row.Cell(42).Kind)
}

func TestOpen_XLSXTimeValueIsDate(t *testing.T) {
	data := buildXLSX(t, func(f *excelize.File, sheet string) {
		require.NoError(t, f.SetCellValue(sheet, "A1", time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC)))
	})

	r, err := Open(bytes.NewReader(data), "dates.xlsx", 0)
	require.NoError(t, err)
	rows := readAll(t, r)
	require.Len(t, rows, 1)

	cell := rows[0].Cell(0)
	assert.Equal(t, KindNumeric, cell.Kind)
	assert.True(t, cell.DateFormatted)
}

func TestOpen_XLSXFirstSheetOnly(t *testing.T) {
	data := buildXLSX(t, func(f *excelize.File, sheet string) {
		require.NoError(t, f.SetCellValue(sheet, "A1", "first"))
		_, err := f.NewSheet("Other")
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Other", "A1", "second"))
		require.NoError(t, f.SetCellValue("Other", "A2", "third"))
	})

	r, err := Open(bytes.NewReader(data), "two-sheets.xlsx", 0)
	require.NoError(t, err)
	rows := readAll(t, r)
	require.Len(t, rows, 1)
	assert.Equal(t, "first", rows[0].Cell(0).Value)
}

func TestOpen_XLSXEmptyRowsKeepNumbers(t *testing.T) {
	data := buildXLSX(t, func(f *excelize.File, sheet string) {
		require.NoError(t, f.SetCellValue(sheet, "A1", "header"))
		require.NoError(t, f.SetCellValue(sheet, "A3", "data"))
	})

	r, err := Open(bytes.NewReader(data), "gap.xlsx", 0)
	require.NoError(t, err)
	rows := readAll(t, r)
	require.Len(t, rows, 3)
	assert.Empty(t, rows[1].Cells)
	assert.Equal(t, 3, rows[2].Number)
}

func TestOpen_CSV(t *testing.T) {
	input := "\xEF\xBB\xBFname,nic\n\nAlice, 900000001V \nBob,\n"

	r, err := Open(strings.NewReader(input), "customers.csv", 0)
	require.NoError(t, err)
	rows := readAll(t, r)
	require.Len(t, rows, 3)

	assert.Equal(t, "name", rows[0].Cell(0).Value)
	assert.Equal(t, 3, rows[1].Number)
	assert.Equal(t, KindText, rows[1].Cell(1).Kind)
	assert.Equal(t, " 900000001V ", rows[1].Cell(1).Value)
	assert.Equal(t, KindBlank, rows[2].Cell(1).Kind)
}

func TestOpen_CSVInvalidUTF8(t *testing.T) {
	r, err := Open(bytes.NewReader([]byte{'a', ',', 0x80, 'b', '\n'}), "bad.csv", 0)
	require.NoError(t, err)
	rows := readAll(t, r)
	require.Len(t, rows, 1)
	assert.Equal(t, "?b", rows[0].Cell(1).Value)
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		file    string
		maxSize int64
		want    error
	}{
		{"empty", nil, "empty.xlsx", 0, ErrEmptyFile},
		{"too large", []byte("a,b,c\n1,2,3\n"), "big.csv", 4, ErrTooLarge},
		{"binary", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d}, "image.png", 0, ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(bytes.NewReader(tt.data), tt.file, tt.maxSize)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIsDateFormatCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"yyyy-mm-dd", true},
		{"d/m/yy", true},
		{"[h]:mm:ss", true},
		{"[$-409]mmmm d, yyyy", true},
		{"0.00", false},
		{"#,##0", false},
		{`"day"0`, false},
		{`\d0`, false},
		{"[Red]0.00", false},
		{"General", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, isDateFormatCode(tt.code))
		})
	}
}

func TestRow_Blank(t *testing.T) {
	tests := []struct {
		name string
		row  Row
		want bool
	}{
		{"no cells", Row{Number: 1}, true},
		{"blank cells", Row{Cells: []Cell{{Kind: KindBlank}, {Kind: KindBlank}}}, true},
		{"one text cell", Row{Cells: []Cell{{Kind: KindBlank}, {Kind: KindText, Value: "x"}}}, false},
		{"numeric cell", Row{Cells: []Cell{{Kind: KindNumeric, Value: "0"}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.row.Blank())
		})
	}
}
