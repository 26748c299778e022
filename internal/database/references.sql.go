package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type CityRow struct {
	ID        int64
	Name      string
	CountryID int64
}

type CountryRow struct {
	ID   int64
	Name string
}

const getCity = `-- name: GetCity :one
SELECT id, name, country_id FROM cities WHERE id = $1`

func (q *Queries) GetCity(ctx context.Context, id int64) (CityRow, error) {
	var c CityRow
	err := q.db.QueryRow(ctx, getCity, id).Scan(&c.ID, &c.Name, &c.CountryID)
	return c, err
}

const getCountry = `-- name: GetCountry :one
SELECT id, name FROM countries WHERE id = $1`

func (q *Queries) GetCountry(ctx context.Context, id int64) (CountryRow, error) {
	var c CountryRow
	err := q.db.QueryRow(ctx, getCountry, id).Scan(&c.ID, &c.Name)
	return c, err
}

const listCities = `-- name: ListCities :many
SELECT id, name, country_id FROM cities ORDER BY id`

func (q *Queries) ListCities(ctx context.Context) ([]CityRow, error) {
	rows, err := q.db.Query(ctx, listCities)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[CityRow])
}

const listCountries = `-- name: ListCountries :many
SELECT id, name FROM countries ORDER BY id`

func (q *Queries) ListCountries(ctx context.Context) ([]CountryRow, error) {
	rows, err := q.db.Query(ctx, listCountries)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[CountryRow])
}

const upsertCountry = `-- name: UpsertCountry :exec
INSERT INTO countries (id, name) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

func (q *Queries) UpsertCountry(ctx context.Context, arg CountryRow) error {
	_, err := q.db.Exec(ctx, upsertCountry, arg.ID, arg.Name)
	return err
}

const upsertCity = `-- name: UpsertCity :exec
INSERT INTO cities (id, name, country_id) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, country_id = EXCLUDED.country_id`

func (q *Queries) UpsertCity(ctx context.Context, arg CityRow) error {
	_, err := q.db.Exec(ctx, upsertCity, arg.ID, arg.Name, arg.CountryID)
	return err
}

// Seeded ids bypass the sequences; move them past the largest id.
const syncReferenceSequences = `-- name: SyncReferenceSequences :exec
SELECT setval(pg_get_serial_sequence('countries', 'id'), GREATEST((SELECT MAX(id) FROM countries), 1)),
       setval(pg_get_serial_sequence('cities', 'id'), GREATEST((SELECT MAX(id) FROM cities), 1))`

func (q *Queries) SyncReferenceSequences(ctx context.Context) error {
	_, err := q.db.Exec(ctx, syncReferenceSequences)
	return err
}
