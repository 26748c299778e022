package core_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/cms/internal/core"
	"github.com/JonMunkholm/cms/internal/database/memstore"
)

// BenchmarkDateParser_Parse covers the fall-through cost when the first
// configured format does not match.
func BenchmarkDateParser_Parse(b *testing.B) {
	p, err := core.NewDateParser([]string{"M/d/yyyy", "MM/dd/yyyy", "ISO"})
	if err != nil {
		b.Fatal(err)
	}
	inputs := []string{"3/14/1990", "03/14/1990", "1990-03-14"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, in := range inputs {
			if _, err := p.Parse(in); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkSplitPhoneNumbers(b *testing.B) {
	for i := 0; i < b.N; i++ {
		core.SplitPhoneNumbers("0711234567, 0772345678,0112345678")
	}
}

func importFixture(rows int) string {
	var sb strings.Builder
	sb.WriteString(csvHeader)
	for i := 0; i < rows; i++ {
		sb.WriteString(csvRow(fmt.Sprintf("Customer %d", i), "1/15/1990", fmt.Sprintf("NIC%07d", i), "10"))
	}
	return sb.String()
}

// BenchmarkImport_CSV runs the whole pipeline against the in-memory store.
func BenchmarkImport_CSV(b *testing.B) {
	for _, rows := range []int{1000, 10000} {
		input := importFixture(rows)

		b.Run(fmt.Sprintf("rows=%d", rows), func(b *testing.B) {
			b.SetBytes(int64(len(input)))
			for i := 0; i < b.N; i++ {
				store := memstore.New()
				store.AddCountry(core.Country{ID: 1, Name: "Sri Lanka"})
				store.AddCity(core.City{ID: 10, Name: "Colombo", CountryID: 1})

				svc, err := core.NewService(store, importConfig())
				if err != nil {
					b.Fatal(err)
				}
				result, err := svc.Import(context.Background(), "bench.csv", strings.NewReader(input))
				if err != nil {
					b.Fatal(err)
				}
				if result.Imported != rows {
					b.Fatalf("imported %d, want %d", result.Imported, rows)
				}
			}
		})
	}
}
