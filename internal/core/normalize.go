package core

import (
	"strings"

	"github.com/JonMunkholm/cms/internal/workbook"
)

// DecodeRow reads the layout's columns out of a sheet row.
func DecodeRow(row workbook.Row, l Layout) ImportRow {
	cell := func(col int) string {
		if col < 0 {
			return ""
		}
		v, _ := DecodeCell(row.Cell(col))
		return v
	}

	ir := ImportRow{
		Number:           row.Number,
		Name:             cell(l.NameCol),
		DateOfBirth:      cell(l.DateOfBirthCol),
		NationalID:       cell(l.NationalIDCol),
		ParentNationalID: cell(l.ParentNationalID),
	}
	for _, col := range l.PhoneCols {
		ir.Phones = append(ir.Phones, cell(col))
	}
	for _, a := range l.Addresses {
		ir.Addresses = append(ir.Addresses, AddressBlock{
			Line1:     cell(a.Line1),
			Line2:     cell(a.Line2),
			CityID:    cell(a.CityID),
			CountryID: cell(a.CountryID),
		})
	}
	return ir
}

// Normalize turns a decoded row into a candidate. A row missing name,
// national id or date of birth fails with a *ValidationError wrapping
// ErrIncompleteRow; an unparseable date fails with *DateFormatError.
func Normalize(ir ImportRow, dates *DateParser) (Candidate, error) {
	switch {
	case ir.Name == "":
		return Candidate{}, incomplete("name")
	case ir.NationalID == "":
		return Candidate{}, incomplete("national_id")
	case ir.DateOfBirth == "":
		return Candidate{}, incomplete("dob")
	}

	dob, err := dates.Parse(ir.DateOfBirth)
	if err != nil {
		return Candidate{}, err
	}

	c := Candidate{
		Row:              ir.Number,
		Name:             ir.Name,
		DateOfBirth:      dob,
		NationalID:       ir.NationalID,
		ParentNationalID: ir.ParentNationalID,
		PhoneNumbers:     []string{},
	}
	for _, cell := range ir.Phones {
		c.PhoneNumbers = append(c.PhoneNumbers, SplitPhoneNumbers(cell)...)
	}
	for _, b := range ir.Addresses {
		if !b.empty() {
			c.Addresses = append(c.Addresses, b)
		}
	}
	return c, nil
}

// SplitPhoneNumbers splits a comma-separated cell, trims every token and
// drops empty ones. Order and duplicates are kept.
func SplitPhoneNumbers(cell string) []string {
	var out []string
	for _, tok := range strings.Split(cell, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func incomplete(field string) error {
	return &ValidationError{Field: field, Reason: "required field missing", Err: ErrIncompleteRow}
}
