package driver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonmunkholm/csvtypeinfer/internal/inference"
	"github.com/jonmunkholm/csvtypeinfer/internal/repository"
)

// fakeReader serves pre-split chunks in order, ignoring startRow on every
// call — enough to exercise BatchedDriver's state machine without a
// real Repository.
type fakeReader struct {
	chunks []string
	pos    int
}

func (r *fakeReader) Read(ctx context.Context, startRow *uint64, chunkSize int) (string, bool, error) {
	if r.pos >= len(r.chunks) {
		return "", false, nil
	}
	chunk := r.chunks[r.pos]
	r.pos++
	return chunk, true, nil
}

func (r *fakeReader) NumRows(ctx context.Context) (int64, error) { return int64(len(r.chunks)), nil }
func (r *fakeReader) Close() error                               { return nil }

type fakeRepo struct {
	mu           sync.Mutex
	schema       *inference.Schema
	cols         []repository.ColumnDecl
	reader       *fakeReader
	uploadStatus repository.UploadStatus
	locks        map[string]bool
	writeCount   int
}

func newFakeRepo(cols []string, chunks []string) *fakeRepo {
	decls := make([]repository.ColumnDecl, len(cols))
	for i, c := range cols {
		decls[i] = repository.ColumnDecl{Name: c}
	}
	return &fakeRepo{
		schema:       inference.NewSchema(cols, 100, []string{"-"}),
		cols:         decls,
		reader:       &fakeReader{chunks: chunks},
		uploadStatus: repository.UploadReady,
		locks:        map[string]bool{},
	}
}

func (r *fakeRepo) GetDatasetWriter(ctx context.Context, dataset string, columnTypes []repository.ColumnDecl, schema *inference.Schema) (repository.DatasetWriter, error) {
	return nil, nil
}

func (r *fakeRepo) GetDatasetReader(ctx context.Context, dataset string, filter string) (repository.DatasetReader, error) {
	return r.reader, nil
}

func (r *fakeRepo) ReadSchema(ctx context.Context, dataset string) (*inference.Schema, []repository.ColumnDecl, error) {
	return r.schema, r.cols, nil
}

func (r *fakeRepo) WriteSchema(ctx context.Context, dataset string, schema *inference.Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeCount++
	r.schema = schema
	return nil
}

func (r *fakeRepo) EnumerateDatasets(ctx context.Context, path string, depth int) ([]repository.DatasetEntry, error) {
	return nil, nil
}

func (r *fakeRepo) SetPreferredTypes(ctx context.Context, dataset string, preferred []repository.PreferredType, tolerance int) error {
	return nil
}

func (r *fakeRepo) FileSessions(ctx context.Context, dataset string) ([]repository.FileSession, error) {
	return nil, nil
}

func (r *fakeRepo) UploadStatus(ctx context.Context, dataset string) (repository.UploadStatus, error) {
	return r.uploadStatus, nil
}

func (r *fakeRepo) Lock(ctx context.Context, user, dataset string) (func(), bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := user + "/" + dataset
	if r.locks[key] {
		return nil, false, nil
	}
	r.locks[key] = true
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.locks, key)
	}, true, nil
}

// instantClock never actually sleeps, so backoff-ceiling tests run fast.
type instantClock struct{ calls int }

func (c *instantClock) Sleep(ctx context.Context, d time.Duration) error {
	c.calls++
	return nil
}

func TestRun_ProcessesChunksAndFinalizes(t *testing.T) {
	repo := newFakeRepo([]string{"a", "b"}, []string{"1,2\n3,4\n"})
	d := New(repo, Config{ChunkSize: 1000, BackoffInitial: time.Millisecond, BackoffMax: 4 * time.Millisecond})
	d.Clock = &instantClock{}

	err := d.Run(context.Background(), "user1", "ds1", repo.cols)
	require.NoError(t, err)
	assert.Equal(t, inference.Complete, repo.schema.Status)
	assert.Equal(t, uint64(3), repo.schema.Position)
}

func TestRun_ConcurrentRunExitsSilently(t *testing.T) {
	repo := newFakeRepo([]string{"a"}, nil)
	repo.locks["user1/ds1"] = true
	d := New(repo, DefaultConfig())
	d.Clock = &instantClock{}

	err := d.Run(context.Background(), "user1", "ds1", repo.cols)
	require.NoError(t, err)
	// The schema was never touched because Run bailed out before reading it.
	assert.Equal(t, inference.Incomplete, repo.schema.Status)
}

func TestRun_AlreadyCompleteSchemaIsNoop(t *testing.T) {
	repo := newFakeRepo([]string{"a"}, []string{"1\n"})
	repo.schema.Status = inference.Complete
	d := New(repo, DefaultConfig())
	d.Clock = &instantClock{}

	err := d.Run(context.Background(), "user1", "ds1", repo.cols)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.writeCount)
}

func TestRun_BackoffCeilingStopsRunWithoutError(t *testing.T) {
	repo := newFakeRepo([]string{"a"}, nil)
	repo.uploadStatus = repository.UploadUploading
	clock := &instantClock{}
	d := New(repo, Config{ChunkSize: 1000, BackoffInitial: time.Second, BackoffMax: 4 * time.Second})
	d.Clock = clock

	err := d.Run(context.Background(), "user1", "ds1", repo.cols)
	require.NoError(t, err)
	assert.Equal(t, inference.Incomplete, repo.schema.Status)
	assert.GreaterOrEqual(t, clock.calls, 1)
}

func TestRun_MissingDatasetIsError(t *testing.T) {
	repo := newFakeRepo([]string{"a"}, nil)
	repo.schema = nil
	d := New(repo, DefaultConfig())
	d.Clock = &instantClock{}

	err := d.Run(context.Background(), "user1", "ds1", repo.cols)
	require.Error(t, err)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, DatasetNotFound, runErr.Kind)
}

func TestSplitCSVBatch_RaggedAndQuotedRows(t *testing.T) {
	batch, err := splitCSVBatch("1,\"hello, world\"\n2,plain\n", []string{"id", "value"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, batch["id"])
	assert.Equal(t, []string{"hello, world", "plain"}, batch["value"])
}

func TestSplitCSVBatch_CleansExcelFormulaPrefix(t *testing.T) {
	batch, err := splitCSVBatch(`="42",3` + "\n", []string{"id", "value"})
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, batch["id"])
}
