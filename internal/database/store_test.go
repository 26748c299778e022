package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/cms/internal/core"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, core.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("get: %w", pgx.ErrNoRows), core.ErrNotFound},
		{"national id taken", &pgconn.PgError{Code: "23505", ConstraintName: "customers_national_id_key"}, core.ErrDuplicateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err), tt.want)
		})
	}

	other := &pgconn.PgError{Code: "23503", ConstraintName: "addresses_city_id_fkey"}
	assert.Same(t, error(other), mapError(other))
}

func TestImportRunFromRow(t *testing.T) {
	id := uuid.New()
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rolled := started.Add(time.Hour)

	run := importRunFromRow(ImportRunRow{
		ID:           pgtype.UUID{Bytes: id, Valid: true},
		FileName:     "customers.xlsx",
		Status:       "rolled_back",
		Processed:    10,
		Imported:     8,
		Skipped:      2,
		StartedAt:    started,
		DurationMs:   1500,
		RolledBackAt: pgtype.Timestamptz{Time: rolled, Valid: true},
	})

	assert.Equal(t, id, run.ID)
	assert.Equal(t, core.ImportRolledBack, run.Status)
	assert.Equal(t, 1500*time.Millisecond, run.Duration)
	require.NotNil(t, run.RolledBackAt)
	assert.True(t, rolled.Equal(*run.RolledBackAt))
}

// testStore migrates a throwaway schema. Set TEST_DATABASE_URL to run the
// Postgres tests.
func testStore(t *testing.T) *Store {
	t.Helper()

	url := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres test")
	}
	ctx := context.Background()

	schema := "cms_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	admin, err := pgx.Connect(ctx, url)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		_ = admin.Close(context.Background())
	})

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = Migrate(ctx, pool)
	require.NoError(t, err)

	s := NewStore(pool)
	require.NoError(t, s.SeedReferences(ctx, core.ReferenceData{
		Countries: []core.Country{{ID: 1, Name: "Sri Lanka"}},
		Cities:    []core.City{{ID: 10, Name: "Colombo", CountryID: 1}},
	}))
	return s
}

func newCustomer(nid string) *core.Customer {
	return &core.Customer{
		Name:         "Customer " + nid,
		DateOfBirth:  time.Date(1990, 1, 15, 0, 0, 0, 0, time.UTC),
		NationalID:   nid,
		PhoneNumbers: []string{"071", "072"},
		Addresses: []core.Address{{
			Line1:   "1 Main St",
			City:    &core.City{ID: 10},
			Country: &core.Country{ID: 1},
		}},
	}
}

func TestStore_SaveAllAndLoad(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	importID := uuid.New()

	head := newCustomer("HEAD")
	head.ImportID = &importID
	child := newCustomer("CHILD")
	child.ImportID = &importID
	child.ParentKey = "HEAD"
	child.Addresses = append(child.Addresses, core.Address{Line1: "passthrough"})

	saved, err := s.SaveAll(ctx, []*core.Customer{head, child})
	require.NoError(t, err)
	require.NotNil(t, saved[1].ParentID)
	assert.Equal(t, saved[0].ID, *saved[1].ParentID)

	got, err := s.FindByKey(ctx, "CHILD")
	require.NoError(t, err)
	assert.Equal(t, []string{"071", "072"}, got.PhoneNumbers)
	require.Len(t, got.Addresses, 2)
	assert.Equal(t, "Colombo", got.Addresses[0].City.Name)
	assert.Nil(t, got.Addresses[1].City)
	assert.Equal(t, got.ID, got.Addresses[0].CustomerID)
	assert.True(t, head.DateOfBirth.Equal(got.DateOfBirth))

	children, err := s.ListChildren(ctx, saved[0].ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "CHILD", children[0].NationalID)
	require.Len(t, children[0].Addresses, 2)

	children, err = s.ListChildren(ctx, saved[1].ID)
	require.NoError(t, err)
	assert.Empty(t, children)

	keys, err := s.ExistingKeys(ctx, []string{"HEAD", "NOPE"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"HEAD": true, "NOPE": false}, keys)

	n, err := s.DeleteByImport(ctx, importID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStore_SaveAllRejectsDuplicates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.SaveAll(ctx, []*core.Customer{newCustomer("A"), newCustomer("A")})
	assert.ErrorIs(t, err, core.ErrDuplicateKey)

	exists, err := s.ExistsByKey(ctx, "A")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_SaveReplacesChildren(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	created, err := s.Save(ctx, newCustomer("X"))
	require.NoError(t, err)

	created.PhoneNumbers = []string{"099"}
	created.Addresses = nil
	_, err = s.Save(ctx, created)
	require.NoError(t, err)

	got, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"099"}, got.PhoneNumbers)
	assert.Empty(t, got.Addresses)

	created.ID = 999999
	_, err = s.Save(ctx, created)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_InTxRollsBack(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx core.RecordStore) error {
		if _, err := tx.SaveAll(ctx, []*core.Customer{newCustomer("T1")}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.FindByKey(ctx, "T1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_ImportRuns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.RecordImport(ctx, core.ImportRun{
		ID: id, FileName: "a.csv", Status: core.ImportCompleted, StartedAt: time.Now(), Duration: time.Second,
	}))
	require.NoError(t, s.MarkRolledBack(ctx, id))

	run, err := s.GetImport(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.ImportRolledBack, run.Status)
	assert.NotNil(t, run.RolledBackAt)

	_, err = s.GetImport(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.MarkRolledBack(ctx, uuid.New()), core.ErrNotFound)
}
