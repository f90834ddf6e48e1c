package pgrepo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// pgDatasetWriter buffers an arbitrary, not-necessarily-newline-aligned
// stream of CSV bytes and COPYs complete lines into tableName as they
// accumulate. Grounded on postgresql_dataset_writer.py's
// PostgresqlDatasetWriter: the trailing partial line after the last
// newline in any given Write is held over to the next call rather than
// written, since a chunk boundary can split a row in half.
type pgDatasetWriter struct {
	db        DBTX
	tableName string
	partial   strings.Builder
	sanitizer writeSanitizer
}

func newDatasetWriter(ctx context.Context, db DBTX, tableName string) (*pgDatasetWriter, error) {
	_, err := db.Exec(ctx, fmt.Sprintf(`
		DROP TABLE IF EXISTS %s;
		CREATE TABLE IF NOT EXISTS %s (
			id SERIAL PRIMARY KEY,
			data TEXT
		);
	`, tableName, tableName))
	if err != nil {
		return nil, fmt.Errorf("pgrepo: create dataset table %q: %w", tableName, err)
	}
	return &pgDatasetWriter{db: db, tableName: tableName}, nil
}

// Write appends p to the writer's buffer and COPYs every complete line it
// now contains, holding back anything after the last newline. p is cleaned
// of a leading BOM and invalid UTF-8 first (writeSanitizer), since this is
// the boundary where arbitrary raw upload bytes first enter storage.
func (w *pgDatasetWriter) Write(p []byte) (int, error) {
	w.partial.Write(w.sanitizer.Sanitize(p))
	complete := w.partial.String()

	lastNewline := strings.LastIndexByte(complete, '\n')
	if lastNewline == -1 {
		return len(p), nil
	}

	toWrite := complete[:lastNewline+1]
	remainder := complete[lastNewline+1:]
	w.partial.Reset()
	w.partial.WriteString(remainder)

	if err := w.copyLines(context.Background(), toWrite); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush forces any buffered partial line to be written as a final row,
// matching the writer's __exit__ calling write('\n') at closure.
func (w *pgDatasetWriter) Flush(ctx context.Context) error {
	if tail := w.sanitizer.Flush(); len(tail) > 0 {
		w.partial.Write(tail)
	}
	remainder := w.partial.String()
	if remainder == "" {
		return nil
	}
	w.partial.Reset()
	if !strings.HasSuffix(remainder, "\n") {
		remainder += "\n"
	}
	return w.copyLines(ctx, remainder)
}

func (w *pgDatasetWriter) copyLines(ctx context.Context, data string) error {
	lines := strings.Split(strings.TrimSuffix(data, "\n"), "\n")
	rows := make([][]any, len(lines))
	for i, line := range lines {
		rows[i] = []any{line}
	}
	_, err := w.db.CopyFrom(ctx, pgx.Identifier{w.tableName}, []string{"data"}, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("pgrepo: copy into %q: %w", w.tableName, err)
	}
	return nil
}

func (w *pgDatasetWriter) Close() error {
	return w.Flush(context.Background())
}
