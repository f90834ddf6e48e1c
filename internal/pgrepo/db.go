// Package pgrepo is the one concrete Repository implementation this repo
// ships, backed by PostgreSQL via pgx/v5. It is ambient/reference per
// SPEC_FULL.md §1: nothing in internal/inference or internal/driver's
// semantics depends on it, they're written against internal/repository's
// interfaces. Grounded on
// original_source/data_processor/utils/postgresql_repository.py,
// postgresql_dataset_writer.py, postgresql_dataset_reader.py, and the
// teacher's DBTX pattern (internal/core/types.go).
package pgrepo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations, satisfied by both
// *pgxpool.Pool and pgx.Tx so repository methods can run inside or
// outside a transaction interchangeably.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}
