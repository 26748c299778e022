package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreset(t *testing.T) {
	l, err := Preset("LEGACY")
	require.NoError(t, err)
	assert.Equal(t, "legacy", l.Name)
	assert.Equal(t, []int{3, 4}, l.PhoneCols)
	require.NoError(t, l.Validate())

	l.PhoneCols[0] = 99
	again, _ := Preset("legacy")
	assert.Equal(t, 3, again.PhoneCols[0], "presets must be copied")

	_, err = Preset("wide")
	assert.ErrorContains(t, err, "legacy, standard")
}

func TestParsersAcceptTheirOwnNames(t *testing.T) {
	assert.Equal(t, []string{"legacy", "standard"}, PresetNames())
	for _, name := range PresetNames() {
		_, err := Preset(name)
		assert.NoError(t, err, "layout %q", name)
	}
	for _, p := range referencePolicies {
		got, err := ParseReferencePolicy(strings.ToUpper(string(p)))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	for _, p := range commitPolicies {
		got, err := ParseCommitPolicy(strings.ToUpper(string(p)))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParseReferencePolicy("ignore")
	assert.ErrorContains(t, err, "skip, fail, passthrough")
	_, err = ParseCommitPolicy("row")
	assert.ErrorContains(t, err, "batch, file")
	_, err = ParseCommitPolicy("")
	assert.Error(t, err)
}

func TestParseLayout(t *testing.T) {
	data := []byte(`
preset: standard
header_rows: 2
columns:
  parent_national_id: 8
  addresses:
    - {line1: 3, line2: 4, city_id: 5, country_id: 6}
    - {line1: 9, line2: 10, city_id: 11, country_id: 12}
date_formats: ["dd.MM.yyyy", "ISO"]
`)

	l, formats, err := parseLayout(data, "legacy", 0)
	require.NoError(t, err)

	assert.Equal(t, "standard+file", l.Name)
	assert.Equal(t, 2, l.HeaderRows)
	assert.Equal(t, 8, l.ParentNationalID)
	assert.Len(t, l.Addresses, 2)
	assert.Equal(t, 2, l.NationalIDCol)
	assert.Equal(t, []string{"dd.MM.yyyy", "ISO"}, formats)
}

func TestParseLayout_HeaderRows(t *testing.T) {
	tests := []struct {
		name       string
		yaml       string
		headerRows int
		want       int
	}{
		{"configured zero", "preset: legacy", 0, 0},
		{"configured three", "columns:\n  parent_national_id: 9", 3, 3},
		{"file wins", "header_rows: 2", 0, 2},
		{"file zero wins", "header_rows: 0", 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _, err := parseLayout([]byte(tt.yaml), "standard", tt.headerRows)
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.HeaderRows)
		})
	}
}

func TestParseLayout_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown preset", "preset: wide"},
		{"column reused", "columns:\n  parent_national_id: 0"},
		{"name removed", "columns:\n  name: -1"},
		{"negative header rows", "header_rows: -1"},
		{"not yaml", "columns: [1, 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseLayout([]byte(tt.yaml), "standard", 1)
			assert.Error(t, err)
		})
	}
}
