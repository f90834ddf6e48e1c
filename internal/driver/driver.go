// Package driver implements BatchedDriver: the read-chunk, infer, persist
// loop that advances one dataset's Schema from raw CSV bytes to a
// converged set of per-column candidate types. Grounded on
// original_source/data_processor/utils/background_inference_task.py's
// do_work and batched_inference_and_schema_writer.py.
package driver

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonmunkholm/csvtypeinfer/internal/inference"
	"github.com/jonmunkholm/csvtypeinfer/internal/logging"
	"github.com/jonmunkholm/csvtypeinfer/internal/repository"
)

// Clock abstracts time.Now/time.Sleep so tests can run the backoff loop
// without a live 60-second ceiling.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// realClock sleeps for real, honoring context cancellation.
type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config bounds the driver's chunk size and backoff schedule (spec §4.5).
type Config struct {
	ChunkSize      int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// DefaultConfig matches spec §4.5's literal numbers.
func DefaultConfig() Config {
	return Config{ChunkSize: 1000, BackoffInitial: time.Second, BackoffMax: 60 * time.Second}
}

// BatchedDriver drives one dataset through FrameInferrer, reading chunks
// from a Repository and persisting the updated Schema after each one.
type BatchedDriver struct {
	Repo   repository.Repository
	Config Config
	Clock  Clock
}

// New returns a BatchedDriver with the real wall clock.
func New(repo repository.Repository, cfg Config) *BatchedDriver {
	return &BatchedDriver{Repo: repo, Config: cfg, Clock: realClock{}}
}

// Run executes the state machine in spec §4.5's diagram for one
// (user, dataset) pair: acquire the advisory lock, read or seed the
// schema, loop reading 1000-row chunks and folding them into the schema
// via FrameInferrer until the upload is finalized and no chunk remains,
// then mark the schema Complete. A concurrent Run for the same dataset
// observes "miss" on the lock and returns nil (spec's EXIT_SILENT) rather
// than an error.
func (d *BatchedDriver) Run(ctx context.Context, user, dataset string, columnTypes []repository.ColumnDecl) error {
	runID := fmt.Sprintf("%s/%s", user, dataset)
	ctx = logging.WithRunID(ctx, runID)
	log := logging.FromContext(ctx)

	unlock, acquired, err := d.Repo.Lock(ctx, user, dataset)
	if err != nil {
		return NewRunError(InferenceFailure, dataset, 0, fmt.Errorf("acquire lock: %w", err))
	}
	if !acquired {
		log.Info("another run already holds the dataset lock, exiting silently", "dataset", dataset)
		return nil
	}
	defer unlock()

	schema, cols, err := d.Repo.ReadSchema(ctx, dataset)
	if err != nil {
		return NewRunError(DatasetNotFound, dataset, 0, err)
	}
	if schema == nil {
		return NewRunError(DatasetNotFound, dataset, 0, errors.New("dataset not found"))
	}
	if schema.Status == inference.Complete {
		return nil
	}

	names := columnNames(columnTypes)
	if len(names) == 0 {
		names = columnNames(cols)
	}
	for _, name := range names {
		schema.EnsureColumn(name)
	}

	frame := inference.NewFrameInferrer(schema)

	// One reader is opened for the whole run and reused across chunks,
	// matching do_work's dataset_reader: the first Read carries an
	// explicit start row, every Read after that continues wherever the
	// reader's own cursor left off.
	reader, err := d.Repo.GetDatasetReader(ctx, dataset, "")
	if err != nil {
		return NewRunError(UploadWriteError, dataset, schema.Position, err)
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			log.Warn("closing dataset reader", "error", closeErr)
		}
	}()

	backoff := d.Config.BackoffInitial
	startRow := schema.Position

	for {
		ready, err := d.uploadReady(ctx, dataset)
		if err != nil {
			return NewRunError(InferenceFailure, dataset, schema.Position, err)
		}

		for {
			var startRowPtr *uint64
			if startRow > 0 {
				sr := startRow
				startRowPtr = &sr
			}
			chunk, ok, err := reader.Read(ctx, startRowPtr, d.Config.ChunkSize)
			if err != nil {
				return NewRunError(UploadWriteError, dataset, schema.Position, err)
			}
			// Only the first Read in this run needs an explicit start
			// row; subsequent reads continue from wherever the
			// previous one left off (spec §4.5's "Indicate that we
			// just want the next chunk from here onwards").
			startRow = 0

			if !ok {
				if ready {
					schema.Status = inference.Complete
					if err := d.Repo.WriteSchema(ctx, dataset, schema); err != nil {
						return NewRunError(UploadWriteError, dataset, schema.Position, err)
					}
					log.Info("dataset inference complete", "dataset", dataset, "position", schema.Position)
					return nil
				}
				backoff *= 2
				break
			}

			batch, err := splitCSVBatch(chunk, names)
			if err != nil {
				return NewRunError(InferenceFailure, dataset, schema.Position, fmt.Errorf("gather failed: %w", err))
			}
			frame.Process(batch)
			if err := d.Repo.WriteSchema(ctx, dataset, schema); err != nil {
				return NewRunError(UploadWriteError, dataset, schema.Position, err)
			}
			log.Info("processed chunk", "dataset", dataset, "position", schema.Position, "rows", rowCount(batch))
			backoff = d.Config.BackoffInitial
		}

		if backoff >= d.Config.BackoffMax {
			log.Info("backoff ceiling reached, stopping run; resumable from last position",
				"dataset", dataset, "position", schema.Position)
			return nil
		}
		if err := d.Clock.Sleep(ctx, backoff); err != nil {
			return err
		}
	}
}

// uploadReady implements spec §4.5's "upload_ready" signal: true when
// either the repository's upload_status is Ready, or any FileSession for
// the dataset has transitioned to Ready.
func (d *BatchedDriver) uploadReady(ctx context.Context, dataset string) (bool, error) {
	status, err := d.Repo.UploadStatus(ctx, dataset)
	if err != nil {
		return false, err
	}
	if status == repository.UploadReady {
		return true, nil
	}
	sessions, err := d.Repo.FileSessions(ctx, dataset)
	if err != nil {
		return false, err
	}
	for _, s := range sessions {
		if s.Status == repository.SessionReady {
			return true, nil
		}
	}
	return false, nil
}

func columnNames(cols []repository.ColumnDecl) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func rowCount(batch map[string][]string) int {
	for _, v := range batch {
		return len(v)
	}
	return 0
}

// splitCSVBatch parses a chunk of raw, newline-joined CSV lines (as
// returned by DatasetReader.Read) into a row-aligned column batch keyed
// by name, matching FrameInferrer.Process's contract. Grounded on the
// teacher's encoding/csv usage in internal/core/upload.go
// (FieldsPerRecord=-1, LazyQuotes=true to tolerate ragged/quoted rows),
// generalized from "parse a whole file" to "parse one already-positioned
// chunk with no header row". The chunk comes back out of a TEXT column
// that pgDatasetWriter already BOM-stripped and UTF-8-sanitized on the
// way in (internal/pgrepo/sanitize.go), so no re-sanitization belongs
// here. Each cell is run through inference.CleanCell before it reaches
// FrameInferrer, matching the teacher's upload.go/validation.go calling
// CleanCell on every cell ahead of coercion (Excel's `="42"` prefix and
// stray surrounding quotes should parse silently, not count as failures).
func splitCSVBatch(chunk string, names []string) (map[string][]string, error) {
	r := csv.NewReader(strings.NewReader(chunk))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	batch := make(map[string][]string, len(names))
	for _, name := range names {
		batch[name] = nil
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("split CSV chunk: %w", err)
		}
		for i, name := range names {
			var cell string
			if i < len(record) {
				cell = inference.CleanCell(record[i])
			}
			batch[name] = append(batch[name], cell)
		}
	}
	return batch, nil
}
