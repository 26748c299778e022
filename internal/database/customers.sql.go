package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type CustomerRow struct {
	ID          int64
	Name        string
	DateOfBirth time.Time
	NationalID  string
	ParentID    pgtype.Int8
	ImportID    pgtype.UUID
}

const customerColumns = `id, name, date_of_birth, national_id, parent_id, import_id`

func scanCustomer(row pgx.Row) (CustomerRow, error) {
	var c CustomerRow
	err := row.Scan(&c.ID, &c.Name, &c.DateOfBirth, &c.NationalID, &c.ParentID, &c.ImportID)
	return c, err
}

const getCustomerByID = `-- name: GetCustomerByID :one
SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

func (q *Queries) GetCustomerByID(ctx context.Context, id int64) (CustomerRow, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomerByID, id))
}

const getCustomerByNationalID = `-- name: GetCustomerByNationalID :one
SELECT ` + customerColumns + ` FROM customers WHERE national_id = $1`

func (q *Queries) GetCustomerByNationalID(ctx context.Context, nationalID string) (CustomerRow, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomerByNationalID, nationalID))
}

const customerExists = `-- name: CustomerExists :one
SELECT EXISTS (SELECT 1 FROM customers WHERE national_id = $1)`

func (q *Queries) CustomerExists(ctx context.Context, nationalID string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, customerExists, nationalID).Scan(&exists)
	return exists, err
}

const existingNationalIDs = `-- name: ExistingNationalIDs :many
SELECT national_id FROM customers WHERE national_id = ANY($1::text[])`

func (q *Queries) ExistingNationalIDs(ctx context.Context, nationalIDs []string) ([]string, error) {
	rows, err := q.db.Query(ctx, existingNationalIDs, nationalIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

const listCustomers = `-- name: ListCustomers :many
SELECT ` + customerColumns + ` FROM customers
ORDER BY id
LIMIT NULLIF($1::bigint, 0) OFFSET $2`

type ListCustomersParams struct {
	Limit  int64
	Offset int64
}

func (q *Queries) ListCustomers(ctx context.Context, arg ListCustomersParams) ([]CustomerRow, error) {
	rows, err := q.db.Query(ctx, listCustomers, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CustomerRow
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const listChildren = `-- name: ListChildren :many
SELECT ` + customerColumns + ` FROM customers
WHERE parent_id = $1
ORDER BY id`

func (q *Queries) ListChildren(ctx context.Context, parentID int64) ([]CustomerRow, error) {
	rows, err := q.db.Query(ctx, listChildren, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CustomerRow
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// insertCustomer resolves parent_key against rows written earlier in the
// same transaction or batch when no parent id is known yet.
const insertCustomer = `-- name: InsertCustomer :one
INSERT INTO customers (name, date_of_birth, national_id, parent_id, import_id)
VALUES (
    $1, $2, $3,
    COALESCE($4::bigint, (SELECT id FROM customers WHERE national_id = $5::text)),
    $6
)
RETURNING id, parent_id`

type InsertCustomerParams struct {
	Name        string
	DateOfBirth time.Time
	NationalID  string
	ParentID    pgtype.Int8
	ParentKey   pgtype.Text
	ImportID    pgtype.UUID
}

func (arg InsertCustomerParams) args() []any {
	return []any{arg.Name, arg.DateOfBirth, arg.NationalID, arg.ParentID, arg.ParentKey, arg.ImportID}
}

// QueueInsertCustomer adds an insert to b; read it back with ScanInserted.
func QueueInsertCustomer(b *pgx.Batch, arg InsertCustomerParams) {
	b.Queue(insertCustomer, arg.args()...)
}

func ScanInserted(row pgx.Row) (id int64, parentID pgtype.Int8, err error) {
	err = row.Scan(&id, &parentID)
	return id, parentID, err
}

func (q *Queries) InsertCustomer(ctx context.Context, arg InsertCustomerParams) (int64, pgtype.Int8, error) {
	return ScanInserted(q.db.QueryRow(ctx, insertCustomer, arg.args()...))
}

const updateCustomer = `-- name: UpdateCustomer :one
UPDATE customers
SET name = $2, date_of_birth = $3, national_id = $4, parent_id = $5, import_id = $6, updated_at = now()
WHERE id = $1
RETURNING id`

type UpdateCustomerParams struct {
	ID          int64
	Name        string
	DateOfBirth time.Time
	NationalID  string
	ParentID    pgtype.Int8
	ImportID    pgtype.UUID
}

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, updateCustomer,
		arg.ID, arg.Name, arg.DateOfBirth, arg.NationalID, arg.ParentID, arg.ImportID,
	).Scan(&id)
	return id, err
}

const deleteCustomersByImport = `-- name: DeleteCustomersByImport :execrows
DELETE FROM customers WHERE import_id = $1`

func (q *Queries) DeleteCustomersByImport(ctx context.Context, importID pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteCustomersByImport, importID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type PhoneNumberRow struct {
	CustomerID  int64
	Position    int32
	PhoneNumber string
}

const listPhoneNumbers = `-- name: ListPhoneNumbers :many
SELECT customer_id, position, phone_number
FROM customer_phone_numbers
WHERE customer_id = ANY($1::bigint[])
ORDER BY customer_id, position`

func (q *Queries) ListPhoneNumbers(ctx context.Context, customerIDs []int64) ([]PhoneNumberRow, error) {
	rows, err := q.db.Query(ctx, listPhoneNumbers, customerIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[PhoneNumberRow])
}

// CopyPhoneNumbers bulk loads phone numbers with COPY.
func (q *Queries) CopyPhoneNumbers(ctx context.Context, arg []PhoneNumberRow) (int64, error) {
	return q.db.CopyFrom(ctx,
		pgx.Identifier{"customer_phone_numbers"},
		[]string{"customer_id", "position", "phone_number"},
		pgx.CopyFromSlice(len(arg), func(i int) ([]any, error) {
			return []any{arg[i].CustomerID, arg[i].Position, arg[i].PhoneNumber}, nil
		}),
	)
}

const deletePhoneNumbers = `-- name: DeletePhoneNumbers :exec
DELETE FROM customer_phone_numbers WHERE customer_id = $1`

func (q *Queries) DeletePhoneNumbers(ctx context.Context, customerID int64) error {
	_, err := q.db.Exec(ctx, deletePhoneNumbers, customerID)
	return err
}

type AddressRow struct {
	ID          int64
	CustomerID  int64
	Line1       string
	Line2       string
	CityID      pgtype.Int8
	CityName    pgtype.Text
	CityCountry pgtype.Int8
	CountryID   pgtype.Int8
	CountryName pgtype.Text
}

const listAddresses = `-- name: ListAddresses :many
SELECT a.id, a.customer_id, a.line1, a.line2,
       ci.id, ci.name, ci.country_id,
       co.id, co.name
FROM addresses a
LEFT JOIN cities ci ON ci.id = a.city_id
LEFT JOIN countries co ON co.id = a.country_id
WHERE a.customer_id = ANY($1::bigint[])
ORDER BY a.customer_id, a.id`

func (q *Queries) ListAddresses(ctx context.Context, customerIDs []int64) ([]AddressRow, error) {
	rows, err := q.db.Query(ctx, listAddresses, customerIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[AddressRow])
}

const insertAddress = `-- name: InsertAddress :one
INSERT INTO addresses (customer_id, line1, line2, city_id, country_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`

type InsertAddressParams struct {
	CustomerID int64
	Line1      string
	Line2      string
	CityID     pgtype.Int8
	CountryID  pgtype.Int8
}

// QueueInsertAddress adds an insert to b; read the id back with Scan.
func QueueInsertAddress(b *pgx.Batch, arg InsertAddressParams) {
	b.Queue(insertAddress, arg.CustomerID, arg.Line1, arg.Line2, arg.CityID, arg.CountryID)
}

const deleteAddresses = `-- name: DeleteAddresses :exec
DELETE FROM addresses WHERE customer_id = $1`

func (q *Queries) DeleteAddresses(ctx context.Context, customerID int64) error {
	_, err := q.db.Exec(ctx, deleteAddresses, customerID)
	return err
}
