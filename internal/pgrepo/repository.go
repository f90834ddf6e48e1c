package pgrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jonmunkholm/csvtypeinfer/internal/inference"
	"github.com/jonmunkholm/csvtypeinfer/internal/repository"
)

const (
	maxTableNameLength = 63
	tableNamePrefix    = "dataset_"
)

// createInfo carries the schema/column_types a caller supplies when a path
// lookup should create missing entries rather than report them absent —
// the Go shape of postgresql_repository.py's _get_path_id "createInfo" dict.
type createInfo struct {
	columnTypes []repository.ColumnDecl
	schema      *inference.Schema
}

// PostgresRepository is the Repository implementation this repo ships,
// backed by a dataset_paths tree table plus one data table per dataset.
// Grounded on postgresql_repository.py's PostgresqlRepository.
type PostgresRepository struct {
	db   DBTX
	lock *RedisLock
}

// New returns a PostgresRepository. lock may be nil only in tests that
// never call Lock.
func New(db DBTX, lock *RedisLock) *PostgresRepository {
	return &PostgresRepository{db: db, lock: lock}
}

// EnsureTables creates dataset_paths and dataset_file_sessions if they do
// not already exist. Call once at startup.
func (r *PostgresRepository) EnsureTables(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS dataset_paths (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			parent_id INTEGER REFERENCES dataset_paths(id) ON DELETE CASCADE,
			is_dataset BOOLEAN NOT NULL DEFAULT FALSE,
			upload_status TEXT NOT NULL DEFAULT 'Initiated',
			column_types JSONB,
			tolerance INT,
			schema_data JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_dataset_paths_parent_id ON dataset_paths(parent_id);
		CREATE TABLE IF NOT EXISTS dataset_file_sessions (
			id SERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			dataset_name TEXT NOT NULL,
			user_name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'Initiated',
			processed_rows BIGINT NOT NULL DEFAULT 0,
			error_message TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_dataset_file_sessions_dataset ON dataset_file_sessions(dataset_name);
	`)
	if err != nil {
		return fmt.Errorf("pgrepo: ensure tables: %w", err)
	}
	return nil
}

// getPathID resolves path to its dataset_paths.id, creating it (and any
// missing parent folders) when create is non-nil. Returns (0, false, nil)
// when the path doesn't exist and create is nil.
func (r *PostgresRepository) getPathID(ctx context.Context, path string, isDataset bool, create *createInfo) (int64, bool, error) {
	if path == "" || path == "/" {
		return 0, false, nil
	}

	var id int64
	err := r.db.QueryRow(ctx,
		`SELECT id FROM dataset_paths WHERE name = $1 AND is_dataset = $2`,
		path, isDataset,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("pgrepo: look up path %q: %w", path, err)
	}
	if create == nil {
		return 0, false, nil
	}

	var parentID *int64
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		pid, _, err := r.getPathID(ctx, path[:idx], false, create)
		if err != nil {
			return 0, false, err
		}
		if pid != 0 {
			parentID = &pid
		}
	}

	var columnTypesJSON, schemaJSON []byte
	if create.columnTypes != nil {
		columnTypesJSON, err = json.Marshal(create.columnTypes)
		if err != nil {
			return 0, false, fmt.Errorf("pgrepo: marshal column types: %w", err)
		}
	} else if isDataset {
		return 0, false, fmt.Errorf("pgrepo: column types must be provided for dataset %q", path)
	}
	if create.schema != nil {
		schemaJSON, err = json.Marshal(create.schema)
		if err != nil {
			return 0, false, fmt.Errorf("pgrepo: marshal schema: %w", err)
		}
	}

	err = r.db.QueryRow(ctx,
		`INSERT INTO dataset_paths (name, parent_id, is_dataset, column_types, schema_data)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		path, parentID, isDataset, columnTypesJSON, schemaJSON,
	).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("pgrepo: insert path %q: %w", path, err)
	}
	return id, true, nil
}

// getTableName derives the physical table name for a dataset's row storage,
// creating the dataset_paths entry (and thus the id suffix) if create is
// non-nil. Mirrors postgresql_repository.py's _get_table_name: truncate the
// sanitized dataset name to leave room for "_<id>" within the 63-byte
// PostgreSQL identifier limit.
func (r *PostgresRepository) getTableName(ctx context.Context, dataset string, create *createInfo) (string, bool, error) {
	id, ok, err := r.getPathID(ctx, dataset, true, create)
	if err != nil || !ok {
		return "", ok, err
	}
	idSuffix := fmt.Sprintf("_%d", id)
	base := tableNamePrefix + sanitizeIdentifier(strings.TrimSuffix(dataset, extOf(dataset)))
	maxBase := maxTableNameLength - len(idSuffix)
	if len(base) > maxBase {
		base = base[:maxBase]
	}
	return base + idSuffix, true, nil
}

func extOf(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx:]
	}
	return ""
}

func sanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func (r *PostgresRepository) WriteSchema(ctx context.Context, dataset string, schema *inference.Schema) error {
	id, ok, err := r.getPathID(ctx, dataset, true, &createInfo{schema: schema})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("pgrepo: write schema: %w", repository.ErrDatasetNotFound)
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("pgrepo: marshal schema: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`UPDATE dataset_paths SET schema_data = $1 WHERE id = $2 AND is_dataset = TRUE`,
		schemaJSON, id,
	)
	if err != nil {
		return fmt.Errorf("pgrepo: write schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ReadSchema(ctx context.Context, dataset string) (*inference.Schema, []repository.ColumnDecl, error) {
	id, ok, err := r.getPathID(ctx, dataset, true, nil)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, nil
	}

	var schemaJSON, columnTypesJSON []byte
	err = r.db.QueryRow(ctx,
		`SELECT schema_data, column_types FROM dataset_paths WHERE id = $1 AND is_dataset = TRUE LIMIT 1`,
		id,
	).Scan(&schemaJSON, &columnTypesJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("pgrepo: read schema: %w", err)
	}

	schema := &inference.Schema{}
	if len(schemaJSON) > 0 {
		if err := json.Unmarshal(schemaJSON, schema); err != nil {
			return nil, nil, fmt.Errorf("pgrepo: decode schema: %w", err)
		}
	}
	var cols []repository.ColumnDecl
	if len(columnTypesJSON) > 0 {
		if err := json.Unmarshal(columnTypesJSON, &cols); err != nil {
			return nil, nil, fmt.Errorf("pgrepo: decode column types: %w", err)
		}
	}
	return schema, cols, nil
}

func (r *PostgresRepository) GetDatasetWriter(ctx context.Context, dataset string, columnTypes []repository.ColumnDecl, schema *inference.Schema) (repository.DatasetWriter, error) {
	tableName, _, err := r.getTableName(ctx, dataset, &createInfo{columnTypes: columnTypes, schema: schema})
	if err != nil {
		return nil, err
	}
	return newDatasetWriter(ctx, r.db, tableName)
}

func (r *PostgresRepository) GetDatasetReader(ctx context.Context, dataset string, filter string) (repository.DatasetReader, error) {
	tableName, ok, err := r.getTableName(ctx, dataset, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("pgrepo: get dataset reader: %w", repository.ErrDatasetNotFound)
	}
	return newDatasetReader(r.db, tableName, filter), nil
}

type pathRow struct {
	id           int64
	name         string
	isDataset    bool
	schemaData   []byte
	columnTypes  []byte
	tolerance    *int
	uploadStatus string
}

func (r *PostgresRepository) EnumerateDatasets(ctx context.Context, path string, depth int) ([]repository.DatasetEntry, error) {
	if depth == 0 {
		rows, err := r.db.Query(ctx, `
			SELECT id, name, is_dataset, schema_data, column_types, tolerance, upload_status
			FROM dataset_paths WHERE name = $1 AND is_dataset = TRUE`, path)
		if err != nil {
			return nil, fmt.Errorf("pgrepo: enumerate datasets: %w", err)
		}
		defer rows.Close()
		results, err := scanPathRows(rows)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, nil
		}
		entry, err := r.toEntry(ctx, results[0])
		if err != nil {
			return nil, err
		}
		return []repository.DatasetEntry{entry}, nil
	}

	baseID, hasBase, err := r.getPathID(ctx, path, false, nil)
	if err != nil {
		return nil, err
	}

	var currentParents []int64
	if hasBase {
		currentParents = []int64{baseID}
	}

	var entries []repository.DatasetEntry
	for level := 1; level <= depth; level++ {
		var rows pgx.Rows
		if len(currentParents) == 0 {
			rows, err = r.db.Query(ctx, `
				SELECT id, name, is_dataset, schema_data, column_types, tolerance, upload_status
				FROM dataset_paths WHERE parent_id IS NULL`)
		} else {
			rows, err = r.db.Query(ctx, `
				SELECT id, name, is_dataset, schema_data, column_types, tolerance, upload_status
				FROM dataset_paths WHERE parent_id = ANY($1)`, currentParents)
		}
		if err != nil {
			return nil, fmt.Errorf("pgrepo: enumerate datasets: %w", err)
		}
		results, err := scanPathRows(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}

		currentParents = currentParents[:0]
		for _, res := range results {
			currentParents = append(currentParents, res.id)
			entry, err := r.toEntry(ctx, res)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func scanPathRows(rows pgx.Rows) ([]pathRow, error) {
	var results []pathRow
	for rows.Next() {
		var p pathRow
		if err := rows.Scan(&p.id, &p.name, &p.isDataset, &p.schemaData, &p.columnTypes, &p.tolerance, &p.uploadStatus); err != nil {
			return nil, fmt.Errorf("pgrepo: scan path row: %w", err)
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (r *PostgresRepository) toEntry(ctx context.Context, p pathRow) (repository.DatasetEntry, error) {
	entry := repository.DatasetEntry{
		Name:         lastPathSegment(p.name),
		IsDataset:    p.isDataset,
		UploadStatus: repository.UploadStatus(p.uploadStatus),
	}
	if p.tolerance != nil {
		entry.Tolerance = *p.tolerance
	}
	if len(p.columnTypes) > 0 {
		_ = json.Unmarshal(p.columnTypes, &entry.ColumnTypes)
	}
	if len(p.schemaData) > 0 {
		schema := &inference.Schema{}
		if err := json.Unmarshal(p.schemaData, schema); err == nil {
			entry.SchemaData = schema
		}
	}
	if !p.isDataset {
		return entry, nil
	}
	tableName, _, err := r.getTableName(ctx, p.name, nil)
	if err != nil || tableName == "" {
		return entry, nil
	}
	var count int64
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, tableName))
	if err := row.Scan(&count); err == nil {
		entry.RowCount = count
	}
	return entry, nil
}

func lastPathSegment(name string) string {
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func (r *PostgresRepository) SetPreferredTypes(ctx context.Context, dataset string, preferred []repository.PreferredType, tolerance int) error {
	var columnTypesJSON []byte
	var existingTolerance *int
	err := r.db.QueryRow(ctx,
		`SELECT column_types, tolerance FROM dataset_paths WHERE name = $1 AND is_dataset = TRUE LIMIT 1`,
		dataset,
	).Scan(&columnTypesJSON, &existingTolerance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("pgrepo: set preferred types: %w", repository.ErrDatasetNotFound)
		}
		return fmt.Errorf("pgrepo: set preferred types: %w", err)
	}

	var existing []repository.ColumnDecl
	if len(columnTypesJSON) > 0 {
		if err := json.Unmarshal(columnTypesJSON, &existing); err != nil {
			return fmt.Errorf("pgrepo: decode column types: %w", err)
		}
	}

	byName := make(map[string]repository.PreferredType, len(preferred))
	for _, p := range preferred {
		byName[p.Name] = p
	}
	final := make([]repository.PreferredType, len(existing))
	for i, col := range existing {
		if p, ok := byName[col.Name]; ok {
			final[i] = p
		} else {
			final[i] = repository.PreferredType{Name: col.Name}
		}
	}

	finalJSON, err := json.Marshal(final)
	if err != nil {
		return fmt.Errorf("pgrepo: marshal preferred types: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`UPDATE dataset_paths SET column_types = $1, tolerance = $2 WHERE name = $3 AND is_dataset = TRUE`,
		finalJSON, tolerance, dataset,
	)
	if err != nil {
		return fmt.Errorf("pgrepo: set preferred types: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FileSessions(ctx context.Context, dataset string) ([]repository.FileSession, error) {
	rows, err := r.db.Query(ctx, `
		SELECT session_id, user_name, dataset_name, status, processed_rows, error_message
		FROM dataset_file_sessions WHERE dataset_name = $1`, dataset)
	if err != nil {
		return nil, fmt.Errorf("pgrepo: file sessions: %w", err)
	}
	defer rows.Close()

	var sessions []repository.FileSession
	for rows.Next() {
		var s repository.FileSession
		var status string
		var errMsg *string
		if err := rows.Scan(&s.SessionID, &s.User, &s.DatasetName, &status, &s.ProcessedRows, &errMsg); err != nil {
			return nil, fmt.Errorf("pgrepo: scan file session: %w", err)
		}
		s.Status = repository.SessionStatus(status)
		if errMsg != nil {
			s.ErrorMessage = *errMsg
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *PostgresRepository) UploadStatus(ctx context.Context, dataset string) (repository.UploadStatus, error) {
	var status string
	err := r.db.QueryRow(ctx,
		`SELECT upload_status FROM dataset_paths WHERE name = $1 AND is_dataset = TRUE LIMIT 1`,
		dataset,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("pgrepo: upload status: %w", repository.ErrDatasetNotFound)
		}
		return "", fmt.Errorf("pgrepo: upload status: %w", err)
	}
	return repository.UploadStatus(status), nil
}

func (r *PostgresRepository) Lock(ctx context.Context, user, dataset string) (func(), bool, error) {
	if r.lock == nil {
		return nil, false, errors.New("pgrepo: no lock backend configured")
	}
	return r.lock.Lock(ctx, user, dataset)
}
