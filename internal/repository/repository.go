// Package repository declares the storage contract BatchedDriver and
// SubsetReader are written against (spec.md §6). internal/pgrepo provides
// the one concrete implementation this repo ships; any other backend only
// needs to satisfy Repository.
package repository

import (
	"context"
	"io"

	"github.com/jonmunkholm/csvtypeinfer/internal/inference"
)

// ColumnDecl is one entry of the column_types array a dataset is created
// with — spec.md §3's "column names known" at schema-creation time, before
// any failure counters exist.
type ColumnDecl struct {
	Name string
}

// PreferredType is one entry of the preferred-type override array (spec.md
// §6). Type is nil when the caller wants Selector to decide.
type PreferredType struct {
	Name           string
	Type           *inference.InferenceType
	CategoryValues []string
}

// UploadStatus mirrors the dataset_paths.upload_status column driving
// BatchedDriver's "upload_ready" signal (spec.md §4.5).
type UploadStatus string

const (
	UploadInitiated UploadStatus = "Initiated"
	UploadUploading UploadStatus = "Uploading"
	UploadReady     UploadStatus = "Ready"
	UploadFailed    UploadStatus = "Failed"
)

// SessionStatus is a FileSession's lifecycle state (spec.md §3).
type SessionStatus string

const (
	SessionInitiated SessionStatus = "Initiated"
	SessionUploading SessionStatus = "Uploading"
	SessionReady     SessionStatus = "Ready"
	SessionFailed    SessionStatus = "Failed"
)

// FileSession carries one upload attempt's client-visible progress. The
// driver only reads it for the Ready signal; everything else is opaque
// state owned by the out-of-scope upload/download glue.
type FileSession struct {
	SessionID     string
	User          string
	DatasetName   string
	Status        SessionStatus
	ProcessedRows int64
	ErrorMessage  string
}

// DatasetEntry is one row of EnumerateDatasets' result (spec.md §6).
type DatasetEntry struct {
	Name             string
	IsDataset        bool
	SchemaData       *inference.Schema
	ColumnTypes      []ColumnDecl
	Tolerance        int
	RowCount         int64
	UploadStatus     UploadStatus
	InferenceStatus  string
}

// DatasetWriter accepts raw CSV byte chunks — not necessarily newline
// aligned — and appends them as stored rows with 1-based autoincrement
// IDs. Implementations buffer a trailing partial line across Write calls
// (spec.md §6, supplemented from PostgresqlDatasetWriter.write).
type DatasetWriter interface {
	io.Writer
	// Flush forces any buffered partial line to be written as a final
	// row, used when the caller knows no more bytes are coming.
	Flush(ctx context.Context) error
	Close() error
}

// DatasetReader reads a dataset back in row-count chunks, in ascending
// row-ID order, optionally filtered by an opaque full-text query applied
// at the repository layer.
type DatasetReader interface {
	// Read returns up to chunkSize newline-joined raw CSV lines starting
	// at startRow (1-based, inclusive). A nil startRow continues from
	// wherever the previous Read left off. Returns ("", false, nil) at
	// end of data ("none" in spec.md §6).
	Read(ctx context.Context, startRow *uint64, chunkSize int) (data string, ok bool, err error)
	NumRows(ctx context.Context) (int64, error)
	Close() error
}

// Repository is the storage contract consumed by internal/driver and
// internal/subset (spec.md §6). Everything outside this interface —
// auth, HTTP, the UI upload/download glue, the cluster task scheduler
// that invokes BatchedDriver.Run for many datasets — is out of scope.
type Repository interface {
	GetDatasetWriter(ctx context.Context, dataset string, columnTypes []ColumnDecl, schema *inference.Schema) (DatasetWriter, error)
	GetDatasetReader(ctx context.Context, dataset string, filter string) (DatasetReader, error)
	ReadSchema(ctx context.Context, dataset string) (*inference.Schema, []ColumnDecl, error)
	WriteSchema(ctx context.Context, dataset string, schema *inference.Schema) error
	EnumerateDatasets(ctx context.Context, path string, depth int) ([]DatasetEntry, error)
	SetPreferredTypes(ctx context.Context, dataset string, preferred []PreferredType, tolerance int) error
	FileSessions(ctx context.Context, dataset string) ([]FileSession, error)
	UploadStatus(ctx context.Context, dataset string) (UploadStatus, error)

	// Lock acquires the per-(user, dataset) advisory lock BatchedDriver
	// holds for its whole run (spec.md §4.5, §5). acquired is false when
	// another run already holds it — the caller exits silently rather
	// than treating it as an error. unlock is nil when acquired is
	// false.
	Lock(ctx context.Context, user, dataset string) (unlock func(), acquired bool, err error)
}

// ErrDatasetNotFound reports that the named dataset has no entry in the
// repository. internal/pgrepo wraps it from GetDatasetReader, WriteSchema,
// SetPreferredTypes and UploadStatus, and internal/subset wraps it when
// ReadSchema finds no schema. ReadSchema itself reports a missing dataset
// as a nil Schema with a nil error.
var ErrDatasetNotFound = datasetNotFoundError{}

type datasetNotFoundError struct{}

func (datasetNotFoundError) Error() string { return "dataset not found" }
