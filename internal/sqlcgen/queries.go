package sqlcgen

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const getLatestSnapshot = `-- name: GetLatestSnapshot :one
SELECT id,
       label,
       document,
       created_at
FROM warroom_snapshots
ORDER BY created_at DESC, id DESC
LIMIT 1
`

func (q *Queries) GetLatestSnapshot(ctx context.Context) (WarroomSnapshot, error) {
	row := q.db.QueryRow(ctx, getLatestSnapshot)
	var i WarroomSnapshot
	err := row.Scan(&i.ID, &i.Label, &i.Document, &i.CreatedAt)
	return i, err
}

const getSnapshotByLabel = `-- name: GetSnapshotByLabel :one
SELECT id,
       label,
       document,
       created_at
FROM warroom_snapshots
WHERE label = $1
ORDER BY created_at DESC, id DESC
LIMIT 1
`

func (q *Queries) GetSnapshotByLabel(ctx context.Context, label string) (WarroomSnapshot, error) {
	row := q.db.QueryRow(ctx, getSnapshotByLabel, label)
	var i WarroomSnapshot
	err := row.Scan(&i.ID, &i.Label, &i.Document, &i.CreatedAt)
	return i, err
}

const insertSnapshot = `-- name: InsertSnapshot :one
INSERT INTO warroom_snapshots (label, document)
VALUES ($1, $2::jsonb)
RETURNING id, label, document, created_at
`

type InsertSnapshotParams struct {
	Label    string
	Document []byte
}

func (q *Queries) InsertSnapshot(ctx context.Context, arg InsertSnapshotParams) (WarroomSnapshot, error) {
	row := q.db.QueryRow(ctx, insertSnapshot, arg.Label, arg.Document)
	var i WarroomSnapshot
	err := row.Scan(&i.ID, &i.Label, &i.Document, &i.CreatedAt)
	return i, err
}
