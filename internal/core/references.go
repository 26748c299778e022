package core

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ReferenceData is the seed file format for cities and countries:
//
//	countries:
//	  - {id: 1, name: Sri Lanka}
//	cities:
//	  - {id: 10, name: Colombo, country_id: 1}
type ReferenceData struct {
	Countries []Country `yaml:"countries"`
	Cities    []City    `yaml:"cities"`
}

// LoadReferenceData decodes and checks a seed file. Every city must name a
// country in the same file.
func LoadReferenceData(r io.Reader) (ReferenceData, error) {
	var data ReferenceData
	if err := yaml.NewDecoder(r).Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		return ReferenceData{}, fmt.Errorf("decode references: %w", err)
	}

	countries := make(map[int64]bool, len(data.Countries))
	for _, c := range data.Countries {
		if c.ID <= 0 || c.Name == "" {
			return ReferenceData{}, fmt.Errorf("country %d: id and name are required", c.ID)
		}
		countries[c.ID] = true
	}
	for _, c := range data.Cities {
		if c.ID <= 0 || c.Name == "" {
			return ReferenceData{}, fmt.Errorf("city %d: id and name are required", c.ID)
		}
		if !countries[c.CountryID] {
			return ReferenceData{}, fmt.Errorf("city %d: unknown country %d", c.ID, c.CountryID)
		}
	}
	return data, nil
}
