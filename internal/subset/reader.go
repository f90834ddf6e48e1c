// Package subset implements SubsetReader: spec.md §4.6's read-back path
// that turns an arbitrary row range of a dataset into typed, column-
// oriented data plus per-cell exceptions, using the same Selector and
// ValueConverter internal/inference already exposes for the write path.
// Grounded on original_source/data_processor/utils/data_frame_reader.py's
// DataFrameReader.read_csv_subset and data_frame_type_inference.py's
// finalize_preferred_types.
package subset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jonmunkholm/csvtypeinfer/internal/inference"
	"github.com/jonmunkholm/csvtypeinfer/internal/repository"
)

// ResolvedColumn is one column's final materialized type, echoed back to
// the caller alongside the typed data (spec §4.6 step 5).
type ResolvedColumn struct {
	Name           string
	Type           inference.InferenceType
	CategoryValues []string
}

// Result is SubsetReader.read's return value: column-oriented typed data,
// one exceptions map per row, and the resolved type of every column.
type Result struct {
	Columns       map[string][]any
	Exceptions    []map[string]string
	ResolvedTypes []ResolvedColumn
}

// Read implements spec.md §4.6's contract. overrides, when non-nil, maps a
// column name to a caller-supplied preferred type that bypasses Selector
// for that column.
func Read(ctx context.Context, repo repository.Repository, dataset string, firstRow uint64, numRows int, tolerance int, filter string, overrides map[string]inference.Override) (*Result, error) {
	schema, cols, err := repo.ReadSchema(ctx, dataset)
	if err != nil {
		return nil, fmt.Errorf("subset: read schema: %w", err)
	}
	if schema == nil || len(cols) == 0 {
		return nil, fmt.Errorf("subset: read %q: %w", dataset, repository.ErrDatasetNotFound)
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	resolved := resolveColumns(schema, names, overrides, inference.UniformTolerance(tolerance))

	reader, err := repo.GetDatasetReader(ctx, dataset, filter)
	if err != nil {
		return nil, fmt.Errorf("subset: open dataset reader: %w", err)
	}
	defer reader.Close()

	start := firstRow
	chunk, ok, err := reader.Read(ctx, &start, numRows)
	if err != nil {
		return nil, fmt.Errorf("subset: read rows: %w", err)
	}
	if !ok {
		return &Result{Columns: map[string][]any{}, Exceptions: nil, ResolvedTypes: resolved}, nil
	}

	batch, err := splitRows(chunk, names)
	if err != nil {
		return nil, fmt.Errorf("subset: split rows: %w", err)
	}

	rowCount := 0
	for _, col := range batch {
		rowCount = len(col)
		break
	}
	exceptions := make([]map[string]string, rowCount)
	for i := range exceptions {
		exceptions[i] = map[string]string{}
	}

	columns := make(map[string][]any, len(resolved))
	for _, rc := range resolved {
		raw := batch[rc.Name]
		mask := naMask(raw, schema.NAValues)
		categories := categorySet(rc.CategoryValues)
		values, failed := inference.Convert(raw, mask, rc.Type, categories)
		columns[rc.Name] = values
		for i, f := range failed {
			if f {
				exceptions[i][rc.Name] = raw[i]
			}
		}
	}

	return &Result{Columns: columns, Exceptions: exceptions, ResolvedTypes: resolved}, nil
}

// ResolveSchema implements the finalize_preferred_types supplemented
// feature: resolve every column's final type in one call from a
// caller-supplied preferred-types array plus a persisted tolerance,
// independent of Read's per-call tolerance argument. Columns without a
// preferred type fall back to Selector exactly as Read does.
func ResolveSchema(schema *inference.Schema, columnNames []string, preferred []repository.PreferredType, tolerance int) []ResolvedColumn {
	overrides := make(map[string]inference.Override, len(preferred))
	for _, p := range preferred {
		if p.Type == nil {
			continue
		}
		ov := inference.Override{Type: *p.Type}
		if len(p.CategoryValues) > 0 {
			ov.CategoryValues = categorySet(p.CategoryValues)
		}
		overrides[p.Name] = ov
	}
	return resolveColumns(schema, columnNames, overrides, inference.UniformTolerance(tolerance))
}

func resolveColumns(schema *inference.Schema, names []string, overrides map[string]inference.Override, tolerance inference.Tolerance) []ResolvedColumn {
	resolved := make([]ResolvedColumn, len(names))
	for i, name := range names {
		var override *inference.Override
		if ov, ok := overrides[name]; ok {
			override = &ov
		}
		candidates := inference.Candidates(schema.ColumnTypes[name], tolerance)
		t := inference.ResolvePreferred(candidates, override)

		var categoryValues []string
		if t == inference.Category {
			set := schema.CategoryValues[name]
			if override != nil && override.CategoryValues != nil {
				set = override.CategoryValues
			}
			for v := range set {
				categoryValues = append(categoryValues, v)
			}
		}
		resolved[i] = ResolvedColumn{Name: name, Type: t, CategoryValues: categoryValues}
	}
	return resolved
}

func categorySet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// naMask mirrors FrameInferrer.Process's NA detection: a cell is NA when
// its whitespace-trimmed form exactly matches one of naValues.
func naMask(values []string, naValues []string) []bool {
	mask := make([]bool, len(values))
	for i, v := range values {
		trimmed := strings.TrimSpace(v)
		for _, na := range naValues {
			if trimmed == na {
				mask[i] = true
				break
			}
		}
	}
	return mask
}

// splitRows parses newline-joined raw CSV lines (as returned by
// DatasetReader.Read) into a row-aligned column batch keyed by name.
// Grounded on the same encoding/csv usage as internal/driver's
// splitCSVBatch, generalized here to the read-back path. Each cell is
// run through inference.CleanCell, matching the write path and the
// teacher's preview.go so the same Excel `="42"`/quoted-cell artifacts
// convert the same way on read-back as they did during inference.
func splitRows(chunk string, names []string) (map[string][]string, error) {
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
			return nil, fmt.Errorf("split rows: %w", err)
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
