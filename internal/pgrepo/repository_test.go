package pgrepo

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonmunkholm/csvtypeinfer/internal/inference"
	"github.com/jonmunkholm/csvtypeinfer/internal/repository"
)

func TestReadSchema_ReturnsDecodedSchemaAndColumns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := New(mock, nil)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM dataset_paths WHERE name = $1 AND is_dataset = $2`)).
		WithArgs("sales", true).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	schema := inference.NewSchema([]string{"amount"}, 100, nil)
	schemaJSON, err := json.Marshal(schema)
	require.NoError(t, err)
	columnTypesJSON, err := json.Marshal([]repository.ColumnDecl{{Name: "amount"}})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT schema_data, column_types FROM dataset_paths WHERE id = $1 AND is_dataset = TRUE LIMIT 1`)).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"schema_data", "column_types"}).AddRow(schemaJSON, columnTypesJSON))

	got, cols, err := repo.ReadSchema(ctx, "sales")
	require.NoError(t, err)
	assert.Len(t, cols, 1)
	assert.Equal(t, "amount", cols[0].Name)
	assert.Equal(t, inference.Incomplete, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadSchema_PathLookupErrorIsReturned(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := New(mock, nil)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM dataset_paths WHERE name = $1 AND is_dataset = $2`)).
		WithArgs("missing", true).
		WillReturnError(errors.New("connection reset"))

	_, _, err = repo.ReadSchema(ctx, "missing")
	assert.Error(t, err)
}

func TestWriteSchema_UpdatesRowByPathID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := New(mock, nil)
	ctx := context.Background()
	schema := inference.NewSchema([]string{"amount"}, 100, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM dataset_paths WHERE name = $1 AND is_dataset = $2`)).
		WithArgs("sales", true).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE dataset_paths SET schema_data = $1 WHERE id = $2 AND is_dataset = TRUE`)).
		WithArgs(pgxmock.AnyArg(), int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.WriteSchema(ctx, "sales", schema)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadStatus_ReturnsValue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := New(mock, nil)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT upload_status FROM dataset_paths WHERE name = $1 AND is_dataset = TRUE LIMIT 1`)).
		WithArgs("sales").
		WillReturnRows(pgxmock.NewRows([]string{"upload_status"}).AddRow("Ready"))

	status, err := repo.UploadStatus(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, repository.UploadReady, status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeIdentifier_StripsNonAlphanumerics(t *testing.T) {
	assert.Equal(t, "sales2024", sanitizeIdentifier("sales-2024!"))
	assert.Equal(t, "abcDEF_123", sanitizeIdentifier("abc DEF_123"))
}

func TestExtOf_ReturnsTrailingExtensionOnly(t *testing.T) {
	assert.Equal(t, ".csv", extOf("sales.csv"))
	assert.Equal(t, "", extOf("sales"))
}
