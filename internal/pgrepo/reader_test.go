package pgrepo

import (
	"context"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_ReadAdvancesCursorAcrossCalls(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := newDatasetReader(mock, "dataset_sales_1", "")
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, data FROM dataset_sales_1 WHERE id >= $1 ORDER BY id ASC LIMIT 2`)).
		WithArgs(uint64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}).
			AddRow(uint64(1), "1,alpha").
			AddRow(uint64(2), "2,beta"))

	start := uint64(1)
	data, ok, err := r.Read(ctx, &start, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1,alpha\n2,beta", data)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, data FROM dataset_sales_1 WHERE id >= $1 ORDER BY id ASC LIMIT 2`)).
		WithArgs(uint64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}).AddRow(uint64(3), "3,gamma"))

	data, ok, err = r.Read(ctx, nil, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3,gamma", data)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReader_ReadReturnsFalseWhenExhausted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := newDatasetReader(mock, "dataset_sales_1", "")
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, data FROM dataset_sales_1 WHERE id >= $1 ORDER BY id ASC LIMIT 2`)).
		WithArgs(uint64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}))

	start := uint64(1)
	_, ok, err := r.Read(ctx, &start, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReader_AppliesFullTextFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := newDatasetReader(mock, "dataset_sales_1", "alpha")
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, data FROM dataset_sales_1 WHERE id >= $1 AND to_tsvector('english', data) @@ to_tsquery($2) ORDER BY id ASC LIMIT 10`)).
		WithArgs(uint64(1), "alpha").
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}).AddRow(uint64(1), "1,alpha"))

	start := uint64(1)
	_, ok, err := r.Read(ctx, &start, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
