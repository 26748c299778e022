package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/cms/internal/core"
)

var (
	_ core.Store           = (*Store)(nil)
	_ core.ReferenceSeeder = (*Store)(nil)
)

// conn is a DBTX that can open a transaction: the pool starts a real one,
// an open transaction starts a savepoint.
type conn interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements core.Store on Postgres.
type Store struct {
	conn conn
	q    *Queries
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{conn: pool, q: New(pool)}
}

// withTx runs fn in a transaction (or savepoint) on the store's connection.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx, q *Queries) error) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx, s.q.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// InTx binds a record store to one transaction.
func (s *Store) InTx(ctx context.Context, fn func(core.RecordStore) error) error {
	return s.withTx(ctx, func(tx pgx.Tx, q *Queries) error {
		return fn(&Store{conn: tx, q: q})
	})
}

func (s *Store) FindByID(ctx context.Context, id int64) (*core.Customer, error) {
	row, err := s.q.GetCustomerByID(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return s.loadOne(ctx, row)
}

func (s *Store) FindByKey(ctx context.Context, nationalID string) (*core.Customer, error) {
	row, err := s.q.GetCustomerByNationalID(ctx, nationalID)
	if err != nil {
		return nil, mapError(err)
	}
	return s.loadOne(ctx, row)
}

func (s *Store) ExistsByKey(ctx context.Context, nationalID string) (bool, error) {
	return s.q.CustomerExists(ctx, nationalID)
}

func (s *Store) ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	found, err := s.q.ExistingNationalIDs(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = false
	}
	for _, k := range found {
		out[k] = true
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, opts core.ListOptions) ([]core.Customer, error) {
	rows, err := s.q.ListCustomers(ctx, ListCustomersParams{
		Limit:  int64(opts.Limit),
		Offset: int64(opts.Offset),
	})
	if err != nil {
		return nil, err
	}
	return s.loadAll(ctx, rows)
}

func (s *Store) ListChildren(ctx context.Context, parentID int64) ([]core.Customer, error) {
	rows, err := s.q.ListChildren(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return s.loadAll(ctx, rows)
}

func (s *Store) loadAll(ctx context.Context, rows []CustomerRow) ([]core.Customer, error) {
	customers, err := s.load(ctx, rows)
	if err != nil {
		return nil, err
	}

	out := make([]core.Customer, 0, len(customers))
	for _, c := range customers {
		out = append(out, *c)
	}
	return out, nil
}

// Save inserts or fully replaces one customer with its phone numbers and
// addresses.
func (s *Store) Save(ctx context.Context, c *core.Customer) (*core.Customer, error) {
	saved := *c
	err := s.withTx(ctx, func(tx pgx.Tx, q *Queries) error {
		if c.ID == 0 {
			id, parentID, err := q.InsertCustomer(ctx, insertParams(c))
			if err != nil {
				return mapError(err)
			}
			saved.ID = id
			saved.ParentID = int8Ptr(parentID)
		} else {
			if _, err := q.UpdateCustomer(ctx, UpdateCustomerParams{
				ID:          c.ID,
				Name:        c.Name,
				DateOfBirth: c.DateOfBirth,
				NationalID:  c.NationalID,
				ParentID:    int8Val(c.ParentID),
				ImportID:    uuidVal(c.ImportID),
			}); err != nil {
				return mapError(err)
			}
			if err := q.DeletePhoneNumbers(ctx, c.ID); err != nil {
				return err
			}
			if err := q.DeleteAddresses(ctx, c.ID); err != nil {
				return err
			}
		}
		saved.ParentKey = ""
		return writeChildren(ctx, tx, q, []*core.Customer{&saved})
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// SaveAll writes a batch in one transaction: customers are inserted through
// a pipelined batch in slice order, phone numbers are loaded with COPY.
func (s *Store) SaveAll(ctx context.Context, cs []*core.Customer) ([]*core.Customer, error) {
	if len(cs) == 0 {
		return nil, nil
	}

	out := make([]*core.Customer, len(cs))
	err := s.withTx(ctx, func(tx pgx.Tx, q *Queries) error {
		batch := &pgx.Batch{}
		for _, c := range cs {
			if c.ID != 0 {
				return fmt.Errorf("save all: customer %d already has an id", c.ID)
			}
			QueueInsertCustomer(batch, insertParams(c))
		}

		br := tx.SendBatch(ctx, batch)
		for i, c := range cs {
			id, parentID, err := ScanInserted(br.QueryRow())
			if err != nil {
				br.Close()
				return mapError(fmt.Errorf("insert customer %s: %w", c.NationalID, err))
			}
			saved := *c
			saved.ID = id
			saved.ParentID = int8Ptr(parentID)
			saved.ParentKey = ""
			out[i] = &saved
		}
		if err := br.Close(); err != nil {
			return mapError(err)
		}

		return writeChildren(ctx, tx, q, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// writeChildren stores phone numbers and addresses for customers that
// already have ids, and fills in the address ids.
func writeChildren(ctx context.Context, tx pgx.Tx, q *Queries, cs []*core.Customer) error {
	var phones []PhoneNumberRow
	addrBatch := &pgx.Batch{}
	for _, c := range cs {
		for i, p := range c.PhoneNumbers {
			phones = append(phones, PhoneNumberRow{CustomerID: c.ID, Position: int32(i), PhoneNumber: p})
		}

		addrs := make([]core.Address, len(c.Addresses))
		copy(addrs, c.Addresses)
		c.Addresses = addrs
		for _, a := range addrs {
			var cityID, countryID pgtype.Int8
			if a.City != nil {
				cityID = pgtype.Int8{Int64: a.City.ID, Valid: true}
			}
			if a.Country != nil {
				countryID = pgtype.Int8{Int64: a.Country.ID, Valid: true}
			}
			QueueInsertAddress(addrBatch, InsertAddressParams{
				CustomerID: c.ID,
				Line1:      a.Line1,
				Line2:      a.Line2,
				CityID:     cityID,
				CountryID:  countryID,
			})
		}
	}

	if len(phones) > 0 {
		if _, err := q.CopyPhoneNumbers(ctx, phones); err != nil {
			return fmt.Errorf("copy phone numbers: %w", err)
		}
	}
	if addrBatch.Len() == 0 {
		return nil
	}

	br := tx.SendBatch(ctx, addrBatch)
	for _, c := range cs {
		for i := range c.Addresses {
			var id int64
			if err := br.QueryRow().Scan(&id); err != nil {
				br.Close()
				return fmt.Errorf("insert address: %w", mapError(err))
			}
			c.Addresses[i].ID = id
			c.Addresses[i].CustomerID = c.ID
		}
	}
	return br.Close()
}

func (s *Store) DeleteByImport(ctx context.Context, importID uuid.UUID) (int64, error) {
	return s.q.DeleteCustomersByImport(ctx, pgtype.UUID{Bytes: importID, Valid: true})
}

func (s *Store) FindCity(ctx context.Context, id int64) (*core.City, error) {
	row, err := s.q.GetCity(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &core.City{ID: row.ID, Name: row.Name, CountryID: row.CountryID}, nil
}

func (s *Store) FindCountry(ctx context.Context, id int64) (*core.Country, error) {
	row, err := s.q.GetCountry(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &core.Country{ID: row.ID, Name: row.Name}, nil
}

func (s *Store) ListCities(ctx context.Context) ([]core.City, error) {
	rows, err := s.q.ListCities(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.City, len(rows))
	for i, r := range rows {
		out[i] = core.City{ID: r.ID, Name: r.Name, CountryID: r.CountryID}
	}
	return out, nil
}

func (s *Store) ListCountries(ctx context.Context) ([]core.Country, error) {
	rows, err := s.q.ListCountries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Country, len(rows))
	for i, r := range rows {
		out[i] = core.Country{ID: r.ID, Name: r.Name}
	}
	return out, nil
}

// SeedReferences upserts countries then cities in one transaction.
func (s *Store) SeedReferences(ctx context.Context, data core.ReferenceData) error {
	return s.withTx(ctx, func(_ pgx.Tx, q *Queries) error {
		for _, c := range data.Countries {
			if err := q.UpsertCountry(ctx, CountryRow{ID: c.ID, Name: c.Name}); err != nil {
				return fmt.Errorf("country %d: %w", c.ID, err)
			}
		}
		for _, c := range data.Cities {
			if err := q.UpsertCity(ctx, CityRow{ID: c.ID, Name: c.Name, CountryID: c.CountryID}); err != nil {
				return fmt.Errorf("city %d: %w", c.ID, err)
			}
		}
		return q.SyncReferenceSequences(ctx)
	})
}

func (s *Store) RecordImport(ctx context.Context, run core.ImportRun) error {
	row := ImportRunRow{
		ID:              pgtype.UUID{Bytes: run.ID, Valid: true},
		FileName:        run.FileName,
		Status:          string(run.Status),
		Processed:       int32(run.Processed),
		Imported:        int32(run.Imported),
		Skipped:         int32(run.Skipped),
		UnlinkedParents: int32(run.UnlinkedParents),
		Error:           run.Error,
		Source:          run.Source,
		StartedAt:       run.StartedAt,
		DurationMs:      run.Duration.Milliseconds(),
	}
	if run.RolledBackAt != nil {
		row.RolledBackAt = pgtype.Timestamptz{Time: *run.RolledBackAt, Valid: true}
	}
	return s.q.UpsertImportRun(ctx, row)
}

func (s *Store) GetImport(ctx context.Context, id uuid.UUID) (*core.ImportRun, error) {
	row, err := s.q.GetImportRun(ctx, pgtype.UUID{Bytes: id, Valid: true})
	if err != nil {
		return nil, mapError(err)
	}
	run := importRunFromRow(row)
	return &run, nil
}

func (s *Store) ListImports(ctx context.Context, limit int) ([]core.ImportRun, error) {
	rows, err := s.q.ListImportRuns(ctx, int32(limit))
	if err != nil {
		return nil, err
	}
	out := make([]core.ImportRun, len(rows))
	for i, r := range rows {
		out[i] = importRunFromRow(r)
	}
	return out, nil
}

func (s *Store) MarkRolledBack(ctx context.Context, id uuid.UUID) error {
	n, err := s.q.MarkImportRolledBack(ctx, pgtype.UUID{Bytes: id, Valid: true})
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func importRunFromRow(r ImportRunRow) core.ImportRun {
	run := core.ImportRun{
		ID:              uuid.UUID(r.ID.Bytes),
		FileName:        r.FileName,
		Status:          core.ImportStatus(r.Status),
		Processed:       int(r.Processed),
		Imported:        int(r.Imported),
		Skipped:         int(r.Skipped),
		UnlinkedParents: int(r.UnlinkedParents),
		Error:           r.Error,
		Source:          r.Source,
		StartedAt:       r.StartedAt,
		Duration:        time.Duration(r.DurationMs) * time.Millisecond,
	}
	if r.RolledBackAt.Valid {
		t := r.RolledBackAt.Time
		run.RolledBackAt = &t
	}
	return run
}

func (s *Store) loadOne(ctx context.Context, row CustomerRow) (*core.Customer, error) {
	cs, err := s.load(ctx, []CustomerRow{row})
	if err != nil {
		return nil, err
	}
	return cs[0], nil
}

// load attaches phone numbers and addresses with two queries per page.
func (s *Store) load(ctx context.Context, rows []CustomerRow) ([]*core.Customer, error) {
	out := make([]*core.Customer, len(rows))
	byID := make(map[int64]*core.Customer, len(rows))
	ids := make([]int64, len(rows))
	for i, r := range rows {
		c := &core.Customer{
			ID:           r.ID,
			Name:         r.Name,
			DateOfBirth:  r.DateOfBirth,
			NationalID:   r.NationalID,
			PhoneNumbers: []string{},
			Addresses:    []core.Address{},
			ParentID:     int8Ptr(r.ParentID),
		}
		if r.ImportID.Valid {
			id := uuid.UUID(r.ImportID.Bytes)
			c.ImportID = &id
		}
		out[i] = c
		byID[r.ID] = c
		ids[i] = r.ID
	}
	if len(ids) == 0 {
		return out, nil
	}

	phones, err := s.q.ListPhoneNumbers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load phone numbers: %w", err)
	}
	for _, p := range phones {
		c := byID[p.CustomerID]
		c.PhoneNumbers = append(c.PhoneNumbers, p.PhoneNumber)
	}

	addrs, err := s.q.ListAddresses(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load addresses: %w", err)
	}
	for _, a := range addrs {
		addr := core.Address{ID: a.ID, CustomerID: a.CustomerID, Line1: a.Line1, Line2: a.Line2}
		if a.CityID.Valid {
			addr.City = &core.City{ID: a.CityID.Int64, Name: a.CityName.String, CountryID: a.CityCountry.Int64}
		}
		if a.CountryID.Valid {
			addr.Country = &core.Country{ID: a.CountryID.Int64, Name: a.CountryName.String}
		}
		c := byID[a.CustomerID]
		c.Addresses = append(c.Addresses, addr)
	}
	return out, nil
}

func insertParams(c *core.Customer) InsertCustomerParams {
	p := InsertCustomerParams{
		Name:        c.Name,
		DateOfBirth: c.DateOfBirth,
		NationalID:  c.NationalID,
		ParentID:    int8Val(c.ParentID),
		ImportID:    uuidVal(c.ImportID),
	}
	if c.ParentKey != "" {
		p.ParentKey = pgtype.Text{String: c.ParentKey, Valid: true}
	}
	return p
}

func int8Val(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func int8Ptr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func uuidVal(v *uuid.UUID) pgtype.UUID {
	if v == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *v, Valid: true}
}

// mapError translates driver errors into core sentinels.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "customers_national_id_key" {
		return fmt.Errorf("%w: %s", core.ErrDuplicateKey, pgErr.Detail)
	}
	return err
}
