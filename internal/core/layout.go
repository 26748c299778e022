package core

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// noColumn marks a field that the layout does not read.
const noColumn = -1

// AddressColumns locates one address block in a row.
type AddressColumns struct {
	Line1     int `yaml:"line1"`
	Line2     int `yaml:"line2"`
	CityID    int `yaml:"city_id"`
	CountryID int `yaml:"country_id"`
}

// Layout maps spreadsheet columns (zero-based) to customer fields.
type Layout struct {
	Name             string
	NameCol          int
	DateOfBirthCol   int
	NationalIDCol    int
	PhoneCols        []int // read in order; each cell may hold a comma-separated list
	Addresses        []AddressColumns
	ParentNationalID int // noColumn when absent
	HeaderRows       int
}

var presets = map[string]Layout{
	// name, dob, national id, line1, line2, city, country, phones
	"standard": {
		Name:             "standard",
		NameCol:          0,
		DateOfBirthCol:   1,
		NationalIDCol:    2,
		PhoneCols:        []int{7},
		Addresses:        []AddressColumns{{Line1: 3, Line2: 4, CityID: 5, CountryID: 6}},
		ParentNationalID: noColumn,
		HeaderRows:       1,
	},
	// name, national id, dob, phone, phone, line1, line2, city, country
	"legacy": {
		Name:             "legacy",
		NameCol:          0,
		DateOfBirthCol:   2,
		NationalIDCol:    1,
		PhoneCols:        []int{3, 4},
		Addresses:        []AddressColumns{{Line1: 5, Line2: 6, CityID: 7, CountryID: 8}},
		ParentNationalID: noColumn,
		HeaderRows:       1,
	},
}

// PresetNames lists the built-in layouts in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a copy of a named layout.
func Preset(name string) (Layout, error) {
	l, ok := presets[strings.ToLower(name)]
	if !ok {
		return Layout{}, fmt.Errorf("unknown layout %q (want one of %s)", name, joinNames(PresetNames()))
	}
	l.PhoneCols = append([]int(nil), l.PhoneCols...)
	l.Addresses = append([]AddressColumns(nil), l.Addresses...)
	return l, nil
}

// layoutFile is the YAML form of a layout override:
//
//	preset: legacy
//	header_rows: 2
//	columns:
//	  parent_national_id: 9
//	date_formats: ["dd.MM.yyyy", "ISO"]
type layoutFile struct {
	Preset      string   `yaml:"preset"`
	HeaderRows  *int     `yaml:"header_rows"`
	DateFormats []string `yaml:"date_formats"`
	Columns     struct {
		Name             *int             `yaml:"name"`
		DateOfBirth      *int             `yaml:"dob"`
		NationalID       *int             `yaml:"national_id"`
		Phones           []int            `yaml:"phones"`
		Addresses        []AddressColumns `yaml:"addresses"`
		ParentNationalID *int             `yaml:"parent_national_id"`
	} `yaml:"columns"`
}

// LoadLayoutFile reads a YAML override on top of the named preset. The
// preset named in the file, if any, wins over base. headerRows applies
// unless the file sets header_rows. Date formats listed in the file are
// returned separately and are nil when the file lists none.
func LoadLayoutFile(path, base string, headerRows int) (Layout, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, nil, fmt.Errorf("read layout file: %w", err)
	}
	return parseLayout(data, base, headerRows)
}

func parseLayout(data []byte, base string, headerRows int) (Layout, []string, error) {
	var f layoutFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Layout{}, nil, fmt.Errorf("parse layout file: %w", err)
	}

	if f.Preset != "" {
		base = f.Preset
	}
	l, err := Preset(base)
	if err != nil {
		return Layout{}, nil, err
	}
	l.Name = base + "+file"
	l.HeaderRows = headerRows

	c := f.Columns
	if c.Name != nil {
		l.NameCol = *c.Name
	}
	if c.DateOfBirth != nil {
		l.DateOfBirthCol = *c.DateOfBirth
	}
	if c.NationalID != nil {
		l.NationalIDCol = *c.NationalID
	}
	if c.Phones != nil {
		l.PhoneCols = c.Phones
	}
	if c.Addresses != nil {
		l.Addresses = c.Addresses
	}
	if c.ParentNationalID != nil {
		l.ParentNationalID = *c.ParentNationalID
	}
	if f.HeaderRows != nil {
		l.HeaderRows = *f.HeaderRows
	}

	if err := l.Validate(); err != nil {
		return Layout{}, nil, err
	}
	return l, f.DateFormats, nil
}

// Validate checks that mandatory columns are set and no column is read twice.
func (l Layout) Validate() error {
	if l.NameCol < 0 || l.DateOfBirthCol < 0 || l.NationalIDCol < 0 {
		return fmt.Errorf("layout %s: name, dob and national_id columns are required", l.Name)
	}
	if l.HeaderRows < 0 {
		return fmt.Errorf("layout %s: header_rows must be non-negative", l.Name)
	}

	type column struct {
		col   int
		field string
	}
	cols := []column{
		{l.NameCol, "name"},
		{l.DateOfBirthCol, "dob"},
		{l.NationalIDCol, "national_id"},
		{l.ParentNationalID, "parent_national_id"},
	}
	for i, p := range l.PhoneCols {
		cols = append(cols, column{p, fmt.Sprintf("phones[%d]", i)})
	}
	for i, a := range l.Addresses {
		prefix := fmt.Sprintf("addresses[%d].", i)
		cols = append(cols,
			column{a.Line1, prefix + "line1"},
			column{a.Line2, prefix + "line2"},
			column{a.CityID, prefix + "city_id"},
			column{a.CountryID, prefix + "country_id"},
		)
	}

	seen := make(map[int]string)
	for _, c := range cols {
		if c.col < 0 {
			continue
		}
		if prev, ok := seen[c.col]; ok {
			return fmt.Errorf("layout %s: column %d used by both %s and %s", l.Name, c.col, prev, c.field)
		}
		seen[c.col] = c.field
	}
	return nil
}
