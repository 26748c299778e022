package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Assembler builds customer graphs from candidates and single-record input.
// Addresses get their CustomerID back-reference when the store assigns the
// customer's id; parents are linked by id, never by pointer.
type Assembler struct {
	records  RecordStore
	resolver *ReferenceResolver
}

func NewAssembler(records RecordStore, resolver *ReferenceResolver) *Assembler {
	return &Assembler{records: records, resolver: resolver}
}

// FromCandidate assembles an imported row. Address references are resolved
// under policy. A parent national id is linked by key when accepted reports
// it was taken earlier in this run, by store id when it is already stored,
// and left unlinked otherwise.
func (a *Assembler) FromCandidate(ctx context.Context, c Candidate, policy ReferencePolicy, importID uuid.UUID, accepted func(string) bool) (*Customer, error) {
	cust := &Customer{
		Name:         c.Name,
		DateOfBirth:  c.DateOfBirth,
		NationalID:   c.NationalID,
		PhoneNumbers: c.PhoneNumbers,
		Addresses:    make([]Address, 0, len(c.Addresses)),
		ImportID:     &importID,
	}

	for i, b := range c.Addresses {
		addr, err := a.resolver.ResolveBlock(ctx, b, policy)
		if err != nil {
			return nil, fmt.Errorf("address %d: %w", i+1, err)
		}
		cust.Addresses = append(cust.Addresses, addr)
	}

	if key := c.ParentNationalID; key != "" && key != c.NationalID {
		if accepted(key) {
			cust.ParentKey = key
		} else {
			parent, err := a.records.FindByKey(ctx, key)
			switch {
			case err == nil:
				cust.ParentID = &parent.ID
			case !errors.Is(err, ErrNotFound):
				return nil, &StoreFailure{Op: "find parent", Err: err}
			}
		}
	}
	return cust, nil
}

// FromInput assembles a single-record write. Every reference must resolve.
// The returned bool reports a parent id that did not resolve and was dropped.
func (a *Assembler) FromInput(ctx context.Context, in CustomerInput, dob time.Time) (*Customer, bool, error) {
	cust := &Customer{
		Name:         in.Name,
		DateOfBirth:  dob,
		NationalID:   in.NationalID,
		PhoneNumbers: make([]string, 0, len(in.PhoneNumbers)),
		Addresses:    make([]Address, 0, len(in.Addresses)),
	}
	for _, p := range in.PhoneNumbers {
		cust.PhoneNumbers = append(cust.PhoneNumbers, SplitPhoneNumbers(p)...)
	}

	for i, b := range in.Addresses {
		city, err := a.resolver.City(ctx, b.CityID)
		if err != nil {
			return nil, false, fmt.Errorf("address %d: %w", i+1, err)
		}
		country, err := a.resolver.Country(ctx, b.CountryID)
		if err != nil {
			return nil, false, fmt.Errorf("address %d: %w", i+1, err)
		}
		cust.Addresses = append(cust.Addresses, Address{
			Line1:   b.Line1,
			Line2:   b.Line2,
			City:    city,
			Country: country,
		})
	}

	if in.ParentID == nil {
		return cust, false, nil
	}
	parent, err := a.records.FindByID(ctx, *in.ParentID)
	if errors.Is(err, ErrNotFound) {
		return cust, true, nil
	}
	if err != nil {
		return nil, false, &StoreFailure{Op: "find parent", Err: err}
	}
	cust.ParentID = &parent.ID
	return cust, false, nil
}
