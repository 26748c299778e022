// Package memstore is an in-memory core.Store. It backs offline workbook
// validation in the CLI and the service tests.
//
// Transactions work on a snapshot that replaces the live state on commit;
// writes made outside the transaction meanwhile are lost. That is fine for a
// single dry run but not for concurrent servers.
package memstore

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/cms/internal/core"
)

var (
	_ core.Store           = (*Store)(nil)
	_ core.ReferenceSeeder = (*Store)(nil)
)

type state struct {
	nextCustomerID int64
	nextAddressID  int64
	customers      map[int64]*core.Customer
	byKey          map[string]int64
	runs           map[uuid.UUID]core.ImportRun
}

func newState() *state {
	return &state{
		nextCustomerID: 1,
		nextAddressID:  1,
		customers:      make(map[int64]*core.Customer),
		byKey:          make(map[string]int64),
		runs:           make(map[uuid.UUID]core.ImportRun),
	}
}

func (st *state) clone() *state {
	c := &state{
		nextCustomerID: st.nextCustomerID,
		nextAddressID:  st.nextAddressID,
		customers:      make(map[int64]*core.Customer, len(st.customers)),
		byKey:          make(map[string]int64, len(st.byKey)),
		runs:           make(map[uuid.UUID]core.ImportRun, len(st.runs)),
	}
	for id, cust := range st.customers {
		c.customers[id] = copyCustomer(cust)
	}
	for k, v := range st.byKey {
		c.byKey[k] = v
	}
	for k, v := range st.runs {
		c.runs[k] = v
	}
	return c
}

// Store implements core.Store in memory.
type Store struct {
	mu        sync.RWMutex
	st        *state
	cities    map[int64]core.City
	countries map[int64]core.Country
}

func New() *Store {
	return &Store{
		st:        newState(),
		cities:    make(map[int64]core.City),
		countries: make(map[int64]core.Country),
	}
}

// AddCountry seeds reference data.
func (s *Store) AddCountry(c core.Country) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countries[c.ID] = c
}

// AddCity seeds reference data.
func (s *Store) AddCity(c core.City) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cities[c.ID] = c
}

// LoadReferences seeds cities and countries from a YAML seed file.
func (s *Store) LoadReferences(r io.Reader) error {
	data, err := core.LoadReferenceData(r)
	if err != nil {
		return err
	}
	return s.SeedReferences(context.Background(), data)
}

func (s *Store) SeedReferences(_ context.Context, data core.ReferenceData) error {
	for _, c := range data.Countries {
		s.AddCountry(c)
	}
	for _, c := range data.Cities {
		s.AddCity(c)
	}
	return nil
}

// Customers returns every stored customer ordered by id.
func (s *Store) Customers() []core.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.list(core.ListOptions{})
}

func (s *Store) FindByID(_ context.Context, id int64) (*core.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.st.customers[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return copyCustomer(c), nil
}

func (s *Store) FindByKey(_ context.Context, nationalID string) (*core.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.st.byKey[nationalID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return copyCustomer(s.st.customers[id]), nil
}

func (s *Store) ExistsByKey(_ context.Context, nationalID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.st.byKey[nationalID]
	return ok, nil
}

func (s *Store) ExistingKeys(_ context.Context, keys []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		_, out[k] = s.st.byKey[k]
	}
	return out, nil
}

func (s *Store) Save(_ context.Context, c *core.Customer) (*core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.save(c)
}

func (s *Store) SaveAll(_ context.Context, cs []*core.Customer) ([]*core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// All or nothing: write into a copy and swap it in.
	next := s.st.clone()
	out := make([]*core.Customer, 0, len(cs))
	for _, c := range cs {
		if c.ID != 0 {
			return nil, fmt.Errorf("save all: customer %d already has an id", c.ID)
		}
		saved, err := next.save(c)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	s.st = next
	return out, nil
}

func (s *Store) List(_ context.Context, opts core.ListOptions) ([]core.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.list(opts), nil
}

func (s *Store) ListChildren(_ context.Context, parentID int64) ([]core.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []core.Customer{}
	for _, c := range s.st.list(core.ListOptions{}) {
		if c.ParentID != nil && *c.ParentID == parentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) DeleteByImport(_ context.Context, importID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, c := range s.st.customers {
		if c.ImportID != nil && *c.ImportID == importID {
			delete(s.st.customers, id)
			delete(s.st.byKey, c.NationalID)
			deleted++
		}
	}
	// Orphaned family members keep living without a parent.
	for _, c := range s.st.customers {
		if c.ParentID != nil {
			if _, ok := s.st.customers[*c.ParentID]; !ok {
				c.ParentID = nil
			}
		}
	}
	return deleted, nil
}

func (s *Store) FindCity(_ context.Context, id int64) (*core.City, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cities[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &c, nil
}

func (s *Store) FindCountry(_ context.Context, id int64) (*core.Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.countries[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCities(_ context.Context) ([]core.City, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.City, 0, len(s.cities))
	for _, c := range s.cities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListCountries(_ context.Context) ([]core.Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Country, 0, len(s.countries))
	for _, c := range s.countries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) RecordImport(_ context.Context, run core.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.runs[run.ID] = run
	return nil
}

func (s *Store) GetImport(_ context.Context, id uuid.UUID) (*core.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.st.runs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &run, nil
}

func (s *Store) ListImports(_ context.Context, limit int) ([]core.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.ImportRun, 0, len(s.st.runs))
	for _, r := range s.st.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkRolledBack(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.st.runs[id]
	if !ok {
		return core.ErrNotFound
	}
	now := time.Now()
	run.Status = core.ImportRolledBack
	run.RolledBackAt = &now
	s.st.runs[id] = run
	return nil
}

// InTx runs fn against a snapshot and publishes it when fn succeeds.
func (s *Store) InTx(_ context.Context, fn func(core.RecordStore) error) error {
	s.mu.RLock()
	tx := &Store{st: s.st.clone(), cities: s.cities, countries: s.countries}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = tx.st
	s.mu.Unlock()
	return nil
}

func (st *state) save(c *core.Customer) (*core.Customer, error) {
	if id, taken := st.byKey[c.NationalID]; taken && id != c.ID {
		return nil, core.ErrDuplicateKey
	}

	stored := copyCustomer(c)
	if c.ID == 0 {
		stored.ID = st.nextCustomerID
		st.nextCustomerID++
	} else {
		prev, ok := st.customers[c.ID]
		if !ok {
			return nil, core.ErrNotFound
		}
		delete(st.byKey, prev.NationalID)
	}

	if stored.ParentKey != "" {
		if pid, ok := st.byKey[stored.ParentKey]; ok {
			stored.ParentID = &pid
		}
		stored.ParentKey = ""
	}

	// Addresses are always replaced as a whole.
	for i := range stored.Addresses {
		stored.Addresses[i].ID = st.nextAddressID
		st.nextAddressID++
		stored.Addresses[i].CustomerID = stored.ID
	}

	st.customers[stored.ID] = stored
	st.byKey[stored.NationalID] = stored.ID
	return copyCustomer(stored), nil
}

func (st *state) list(opts core.ListOptions) []core.Customer {
	ids := make([]int64, 0, len(st.customers))
	for id := range st.customers {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	if opts.Offset > 0 {
		if opts.Offset >= len(ids) {
			return []core.Customer{}
		}
		ids = ids[opts.Offset:]
	}
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}

	out := make([]core.Customer, 0, len(ids))
	for _, id := range ids {
		out = append(out, *copyCustomer(st.customers[id]))
	}
	return out
}

func copyCustomer(c *core.Customer) *core.Customer {
	cp := *c
	cp.PhoneNumbers = append([]string{}, c.PhoneNumbers...)
	cp.Addresses = make([]core.Address, len(c.Addresses))
	for i, a := range c.Addresses {
		if a.City != nil {
			city := *a.City
			a.City = &city
		}
		if a.Country != nil {
			country := *a.Country
			a.Country = &country
		}
		cp.Addresses[i] = a
	}
	if c.ParentID != nil {
		pid := *c.ParentID
		cp.ParentID = &pid
	}
	if c.ImportID != nil {
		iid := *c.ImportID
		cp.ImportID = &iid
	}
	return &cp
}
