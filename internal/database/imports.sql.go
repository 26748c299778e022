package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type ImportRunRow struct {
	ID              pgtype.UUID
	FileName        string
	Status          string
	Processed       int32
	Imported        int32
	Skipped         int32
	UnlinkedParents int32
	Error           string
	Source          string
	StartedAt       time.Time
	DurationMs      int64
	RolledBackAt    pgtype.Timestamptz
}

const importRunColumns = `id, file_name, status, processed, imported, skipped, unlinked_parents,
       error, source, started_at, duration_ms, rolled_back_at`

const upsertImportRun = `-- name: UpsertImportRun :exec
INSERT INTO import_runs (` + importRunColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    processed = EXCLUDED.processed,
    imported = EXCLUDED.imported,
    skipped = EXCLUDED.skipped,
    unlinked_parents = EXCLUDED.unlinked_parents,
    error = EXCLUDED.error,
    duration_ms = EXCLUDED.duration_ms,
    rolled_back_at = EXCLUDED.rolled_back_at`

func (q *Queries) UpsertImportRun(ctx context.Context, arg ImportRunRow) error {
	_, err := q.db.Exec(ctx, upsertImportRun,
		arg.ID, arg.FileName, arg.Status, arg.Processed, arg.Imported, arg.Skipped,
		arg.UnlinkedParents, arg.Error, arg.Source, arg.StartedAt, arg.DurationMs, arg.RolledBackAt,
	)
	return err
}

const getImportRun = `-- name: GetImportRun :one
SELECT ` + importRunColumns + ` FROM import_runs WHERE id = $1`

func (q *Queries) GetImportRun(ctx context.Context, id pgtype.UUID) (ImportRunRow, error) {
	rows, err := q.db.Query(ctx, getImportRun, id)
	if err != nil {
		return ImportRunRow{}, err
	}
	return pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[ImportRunRow])
}

const listImportRuns = `-- name: ListImportRuns :many
SELECT ` + importRunColumns + ` FROM import_runs
ORDER BY started_at DESC
LIMIT $1`

func (q *Queries) ListImportRuns(ctx context.Context, limit int32) ([]ImportRunRow, error) {
	rows, err := q.db.Query(ctx, listImportRuns, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[ImportRunRow])
}

const markImportRolledBack = `-- name: MarkImportRolledBack :execrows
UPDATE import_runs SET status = 'rolled_back', rolled_back_at = now() WHERE id = $1`

func (q *Queries) MarkImportRolledBack(ctx context.Context, id pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, markImportRolledBack, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
