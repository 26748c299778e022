package core

import (
	"context"

	"github.com/google/uuid"
)

// RecordStore persists customers together with their addresses and phone
// numbers. Lookups return ErrNotFound for missing records.
type RecordStore interface {
	FindByID(ctx context.Context, id int64) (*Customer, error)
	FindByKey(ctx context.Context, nationalID string) (*Customer, error)
	ExistsByKey(ctx context.Context, nationalID string) (bool, error)

	// ExistingKeys reports which of keys are already stored.
	ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error)

	// Save creates the customer when ID is zero and otherwise replaces it,
	// including its full address list. A taken national id fails with
	// ErrDuplicateKey.
	Save(ctx context.Context, c *Customer) (*Customer, error)

	// SaveAll creates every customer or none. Customers are written in slice
	// order so a ParentKey may name a customer earlier in the same call.
	SaveAll(ctx context.Context, cs []*Customer) ([]*Customer, error)

	List(ctx context.Context, opts ListOptions) ([]Customer, error)

	// ListChildren returns the family members whose parent is parentID,
	// ordered by id.
	ListChildren(ctx context.Context, parentID int64) ([]Customer, error)

	// DeleteByImport removes every customer created by an import run.
	DeleteByImport(ctx context.Context, importID uuid.UUID) (int64, error)
}

// ReferenceStore resolves cities and countries.
type ReferenceStore interface {
	FindCity(ctx context.Context, id int64) (*City, error)
	FindCountry(ctx context.Context, id int64) (*Country, error)
	ListCities(ctx context.Context) ([]City, error)
	ListCountries(ctx context.Context) ([]Country, error)
}

// ImportRunStore keeps the import history.
type ImportRunStore interface {
	RecordImport(ctx context.Context, run ImportRun) error
	GetImport(ctx context.Context, id uuid.UUID) (*ImportRun, error)
	ListImports(ctx context.Context, limit int) ([]ImportRun, error)
	MarkRolledBack(ctx context.Context, id uuid.UUID) error
}

// Store is everything the service needs from persistence.
type Store interface {
	RecordStore
	ReferenceStore
	ImportRunStore

	// InTx runs fn against a record store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(RecordStore) error) error
}

// ReferenceSeeder loads reference data into a store.
type ReferenceSeeder interface {
	SeedReferences(ctx context.Context, data ReferenceData) error
}
