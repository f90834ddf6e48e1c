package pgrepo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// pgDatasetReader reads a dataset table back in ascending id order, in
// chunks, optionally restricted by a full-text filter applied server side.
// Grounded on postgresql_dataset_reader.py's PostgresqlDatasetReader: a
// cursor is opened lazily on the first Read that carries an explicit
// startRow, then reused — via rows.Next, pgx has no server-side cursor
// handle to keep open across calls the way a psycopg2 cursor does, so this
// reopens a query per Read but tracks nextID itself to reproduce the same
// "continue from where the last Read left off" behavior when startRow is
// nil.
type pgDatasetReader struct {
	db        DBTX
	tableName string
	filter    string
	nextID    uint64
}

func newDatasetReader(db DBTX, tableName string, filter string) *pgDatasetReader {
	return &pgDatasetReader{db: db, tableName: tableName, filter: filter, nextID: 1}
}

// Read fetches up to chunkSize rows starting at startRow (or wherever the
// previous Read left off, when startRow is nil), newline-joining their data
// column. Returns ("", false, nil) once no rows remain.
func (r *pgDatasetReader) Read(ctx context.Context, startRow *uint64, chunkSize int) (string, bool, error) {
	if startRow != nil {
		r.nextID = *startRow
	}

	query := fmt.Sprintf(`SELECT id, data FROM %s WHERE id >= $1`, r.tableName)
	args := []any{r.nextID}
	if r.filter != "" {
		query += ` AND to_tsvector('english', data) @@ to_tsquery($2)`
		args = append(args, r.filter)
	}
	query += fmt.Sprintf(` ORDER BY id ASC LIMIT %d`, chunkSize)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return "", false, fmt.Errorf("pgrepo: read dataset %q: %w", r.tableName, err)
	}
	defer rows.Close()

	var lines []string
	var lastID uint64
	count := 0
	for rows.Next() {
		var id uint64
		var data string
		if err := rows.Scan(&id, &data); err != nil {
			return "", false, fmt.Errorf("pgrepo: scan dataset row: %w", err)
		}
		lines = append(lines, data)
		lastID = id
		count++
	}
	if err := rows.Err(); err != nil {
		return "", false, fmt.Errorf("pgrepo: read dataset %q: %w", r.tableName, err)
	}

	if count == 0 {
		return "", false, nil
	}
	r.nextID = lastID + 1
	return strings.Join(lines, "\n"), true, nil
}

func (r *pgDatasetReader) NumRows(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.tableName)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pgrepo: count rows in %q: %w", r.tableName, err)
	}
	return count, nil
}

func (r *pgDatasetReader) Close() error {
	return nil
}
