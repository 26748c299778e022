package core

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a person record. National IDs are unique across all customers
// and kept exactly as given.
type Customer struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	DateOfBirth  time.Time `json:"date_of_birth"`
	NationalID   string    `json:"national_id"`
	PhoneNumbers []string  `json:"phone_numbers"`
	Addresses    []Address `json:"addresses"`

	// ParentID links a family member to its head customer.
	ParentID *int64 `json:"parent_id,omitempty"`

	// ParentKey names a parent accepted earlier in the same import that has
	// no store id yet. Stores resolve it by national id when saving.
	ParentKey string `json:"-"`

	// ImportID is the import run that created the customer, nil for
	// customers written through the single-record path.
	ImportID *uuid.UUID `json:"import_id,omitempty"`
}

// Address is owned by exactly one customer and never saved on its own.
// City and Country are nil only under the passthrough reference policy.
type Address struct {
	ID         int64    `json:"id"`
	CustomerID int64    `json:"customer_id"`
	Line1      string   `json:"line1"`
	Line2      string   `json:"line2,omitempty"`
	City       *City    `json:"city,omitempty"`
	Country    *Country `json:"country,omitempty"`
}

type City struct {
	ID        int64  `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	CountryID int64  `json:"country_id" yaml:"country_id"`
}

type Country struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// CustomerInput is the single-record create/update payload.
type CustomerInput struct {
	Name         string         `json:"name" validate:"required,max=255"`
	DateOfBirth  string         `json:"date_of_birth" validate:"required"`
	NationalID   string         `json:"national_id" validate:"required,max=64"`
	PhoneNumbers []string       `json:"phone_numbers" validate:"dive,required,max=32"`
	Addresses    []AddressInput `json:"addresses" validate:"dive"`
	ParentID     *int64         `json:"parent_id" validate:"omitempty,gt=0"`
}

type AddressInput struct {
	Line1     string `json:"line1" validate:"required,max=255"`
	Line2     string `json:"line2" validate:"max=255"`
	CityID    int64  `json:"city_id" validate:"required,gt=0"`
	CountryID int64  `json:"country_id" validate:"required,gt=0"`
}

// AddressBlock holds the raw reference columns of one address in a row.
type AddressBlock struct {
	Line1     string
	Line2     string
	CityID    string
	CountryID string
}

func (b AddressBlock) empty() bool {
	return b.Line1 == "" && b.Line2 == "" && b.CityID == "" && b.CountryID == ""
}

// ImportRow is the decoded, unvalidated content of one spreadsheet row.
// Empty strings mean the cell was absent.
type ImportRow struct {
	Number           int
	Name             string
	DateOfBirth      string
	NationalID       string
	Phones           []string
	Addresses        []AddressBlock
	ParentNationalID string
}

func (r ImportRow) empty() bool {
	if r.Name != "" || r.DateOfBirth != "" || r.NationalID != "" || r.ParentNationalID != "" {
		return false
	}
	for _, p := range r.Phones {
		if p != "" {
			return false
		}
	}
	for _, b := range r.Addresses {
		if !b.empty() {
			return false
		}
	}
	return true
}

// Candidate is a normalized row that passed the mandatory field checks.
type Candidate struct {
	Row              int
	Name             string
	DateOfBirth      time.Time
	NationalID       string
	PhoneNumbers     []string
	Addresses        []AddressBlock
	ParentNationalID string
}

// ImportPhase is the orchestrator state.
type ImportPhase string

const (
	PhaseStart       ImportPhase = "start"
	PhaseReadingRows ImportPhase = "reading_rows"
	PhaseFlushing    ImportPhase = "flushing"
	PhaseDone        ImportPhase = "done"
	PhaseFailed      ImportPhase = "failed"
)

// SkipReason classifies a dropped row.
type SkipReason string

const (
	SkipIncomplete         SkipReason = "incomplete"
	SkipDuplicate          SkipReason = "duplicate"
	SkipInvalidDate        SkipReason = "invalid_date"
	SkipMalformedReference SkipReason = "malformed_reference"
	SkipUnknownReference   SkipReason = "unknown_reference"
)

type SkippedRow struct {
	Row        int        `json:"row"`
	NationalID string     `json:"national_id,omitempty"`
	Reason     SkipReason `json:"reason"`
	Detail     string     `json:"detail"`
}

// ImportResult summarizes a completed import.
type ImportResult struct {
	ImportID        uuid.UUID     `json:"import_id"`
	FileName        string        `json:"file_name"`
	Processed       int           `json:"processed"`
	Imported        int           `json:"imported"`
	Skipped         int           `json:"skipped"`
	SkippedRows     []SkippedRow  `json:"skipped_rows,omitempty"`
	UnlinkedParents int           `json:"unlinked_parents"`
	Batches         int           `json:"batches"`
	Duration        time.Duration `json:"duration"`
}

func (r *ImportResult) skip(row int, nationalID string, reason SkipReason, err error) {
	r.Skipped++
	r.SkippedRows = append(r.SkippedRows, SkippedRow{
		Row:        row,
		NationalID: nationalID,
		Reason:     reason,
		Detail:     err.Error(),
	})
}

// ImportStatus is the recorded outcome of an import run.
type ImportStatus string

const (
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
	ImportRolledBack ImportStatus = "rolled_back"
)

// ImportRun is the history entry written for every import attempt.
type ImportRun struct {
	ID              uuid.UUID     `json:"id"`
	FileName        string        `json:"file_name"`
	Status          ImportStatus  `json:"status"`
	Processed       int           `json:"processed"`
	Imported        int           `json:"imported"`
	Skipped         int           `json:"skipped"`
	UnlinkedParents int           `json:"unlinked_parents"`
	Error           string        `json:"error,omitempty"`
	Source          string        `json:"source,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	RolledBackAt    *time.Time    `json:"rolled_back_at,omitempty"`
}

// RollbackResult reports what a rollback removed.
type RollbackResult struct {
	ImportID         uuid.UUID `json:"import_id"`
	FileName         string    `json:"file_name"`
	CustomersDeleted int64     `json:"customers_deleted"`
}

// ListOptions pages customer listings.
type ListOptions struct {
	Limit  int
	Offset int
}
