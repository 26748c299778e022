package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ReferencePolicy decides what an import does with unresolved city or
// country references.
type ReferencePolicy string

const (
	// ReferenceSkip drops the row.
	ReferenceSkip ReferencePolicy = "skip"
	// ReferenceFail aborts the import.
	ReferenceFail ReferencePolicy = "fail"
	// ReferencePassthrough keeps the address with the reference left empty.
	ReferencePassthrough ReferencePolicy = "passthrough"
)

var referencePolicies = []ReferencePolicy{ReferenceSkip, ReferenceFail, ReferencePassthrough}

// ParseReferencePolicy accepts skip, fail or passthrough in any case.
func ParseReferencePolicy(s string) (ReferencePolicy, error) {
	p := ReferencePolicy(strings.ToLower(s))
	if !slices.Contains(referencePolicies, p) {
		return "", fmt.Errorf("unknown reference policy %q (want one of %s)", s, joinNames(referencePolicies))
	}
	return p, nil
}

// ReferenceResolver looks up cities and countries. Lookups are cached for
// the resolver's lifetime, which is one import run or one request.
type ReferenceResolver struct {
	refs      ReferenceStore
	cities    map[int64]*City
	countries map[int64]*Country
}

func NewReferenceResolver(refs ReferenceStore) *ReferenceResolver {
	return &ReferenceResolver{
		refs:      refs,
		cities:    make(map[int64]*City),
		countries: make(map[int64]*Country),
	}
}

// ParseReferenceID parses a numeric identifier. Spreadsheet numbers have
// already been truncated to integers by the cell decoder.
func ParseReferenceID(kind, value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, &MalformedReferenceError{Kind: kind, Value: value}
	}
	return id, nil
}

// City returns the city with id or a *ReferenceNotFoundError.
func (r *ReferenceResolver) City(ctx context.Context, id int64) (*City, error) {
	if c, ok := r.cities[id]; ok {
		if c == nil {
			return nil, &ReferenceNotFoundError{Kind: "city", ID: id}
		}
		return c, nil
	}

	c, err := r.refs.FindCity(ctx, id)
	if errors.Is(err, ErrNotFound) {
		r.cities[id] = nil
		return nil, &ReferenceNotFoundError{Kind: "city", ID: id}
	}
	if err != nil {
		return nil, &StoreFailure{Op: "find city", Err: err}
	}
	r.cities[id] = c
	return c, nil
}

// Country returns the country with id or a *ReferenceNotFoundError.
func (r *ReferenceResolver) Country(ctx context.Context, id int64) (*Country, error) {
	if c, ok := r.countries[id]; ok {
		if c == nil {
			return nil, &ReferenceNotFoundError{Kind: "country", ID: id}
		}
		return c, nil
	}

	c, err := r.refs.FindCountry(ctx, id)
	if errors.Is(err, ErrNotFound) {
		r.countries[id] = nil
		return nil, &ReferenceNotFoundError{Kind: "country", ID: id}
	}
	if err != nil {
		return nil, &StoreFailure{Op: "find country", Err: err}
	}
	r.countries[id] = c
	return c, nil
}

// ResolveBlock resolves the references of one raw address block. Under
// ReferencePassthrough unresolved references come back as nil without error;
// store failures are returned under every policy.
func (r *ReferenceResolver) ResolveBlock(ctx context.Context, b AddressBlock, policy ReferencePolicy) (Address, error) {
	addr := Address{Line1: b.Line1, Line2: b.Line2}

	city, err := r.resolveCity(ctx, b.CityID)
	if err != nil && (policy != ReferencePassthrough || isStoreFailure(err)) {
		return Address{}, err
	}
	country, err := r.resolveCountry(ctx, b.CountryID)
	if err != nil && (policy != ReferencePassthrough || isStoreFailure(err)) {
		return Address{}, err
	}

	addr.City = city
	addr.Country = country
	return addr, nil
}

func (r *ReferenceResolver) resolveCity(ctx context.Context, raw string) (*City, error) {
	id, err := ParseReferenceID("city", raw)
	if err != nil {
		return nil, err
	}
	return r.City(ctx, id)
}

func (r *ReferenceResolver) resolveCountry(ctx context.Context, raw string) (*Country, error) {
	id, err := ParseReferenceID("country", raw)
	if err != nil {
		return nil, err
	}
	return r.Country(ctx, id)
}

func isStoreFailure(err error) bool {
	var sf *StoreFailure
	return errors.As(err, &sf)
}
