package inference

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Status is the lifecycle state of a Schema.
type Status string

const (
	Incomplete Status = "incomplete"
	Complete   Status = "complete"
)

// Schema is the persisted per-dataset inference state: per-column failure
// counters, the bounded category-value accumulator, the stream cursor, and
// lifecycle status. It is the unit of concurrency — one Schema mutates
// under one per-dataset mutex at a time (see internal/driver).
type Schema struct {
	MaxCategories int
	// ColumnTypes maps column name to failure counter per type. A type
	// absent from the inner map was never evaluated and is implicitly
	// disqualified (not a candidate) except Object, which is always a
	// candidate regardless of presence.
	ColumnTypes map[string]map[InferenceType]uint64
	// CategoryValues is bounded by MaxCategories per column; once adding a
	// batch's uniques would exceed the cap the column permanently loses
	// Category for the remainder of the run.
	CategoryValues map[string]map[string]struct{}
	// Position is the 1-based index of the next row to process.
	Position uint64
	Status   Status
	// NAValues are literal tokens (after whitespace-trim) treated as
	// missing.
	NAValues []string

	// nonNACounts tracks, per column, the cumulative count of non-NA
	// values folded into that column's counters across every batch seen
	// so far. It answers Open Question 1 (spec §9): the category
	// unique-ratio gate is evaluated against this cumulative count, not
	// just the current batch's size. Not part of the wire format — on
	// reload it starts at zero and is rebuilt as new batches arrive,
	// which only affects the ratio gate's denominator for the remainder
	// of the run, never failure counters or already-accepted categories.
	nonNACounts map[string]uint64

	// categoryDisqualified tracks, per column, whether Category has been
	// permanently disqualified because the cumulative union of uniques
	// once outgrew MaxCategories. Not part of the wire format — like
	// nonNACounts, it resets on reload, which only means a reloaded run
	// re-derives disqualification from CategoryValues' bounded contents
	// going forward rather than remembering a prior overflow that was
	// never persisted.
	categoryDisqualified map[string]bool
}

// NewSchema returns an empty Schema for a dataset whose column names are
// already known, with every counter implicitly zero and position at the
// start of the stream.
func NewSchema(columnNames []string, maxCategories int, naValues []string) *Schema {
	s := &Schema{
		MaxCategories:  maxCategories,
		ColumnTypes:    make(map[string]map[InferenceType]uint64, len(columnNames)),
		CategoryValues: make(map[string]map[string]struct{}, len(columnNames)),
		Position:       1,
		Status:         Incomplete,
		NAValues:       naValues,
	}
	for _, col := range columnNames {
		s.ColumnTypes[col] = make(map[InferenceType]uint64)
	}
	return s
}

// EnsureColumn adds a column with empty failure counters if it does not
// already exist. Used when new columns appear mid-stream (e.g. a widened
// CSV header discovered after the first chunk).
func (s *Schema) EnsureColumn(name string) {
	if _, ok := s.ColumnTypes[name]; !ok {
		s.ColumnTypes[name] = make(map[InferenceType]uint64)
	}
}

// Columns returns the column names in the schema, sorted for deterministic
// iteration.
func (s *Schema) Columns() []string {
	cols := make([]string, 0, len(s.ColumnTypes))
	for c := range s.ColumnTypes {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

type wireSchema struct {
	MaxCategories  int                           `json:"max_categories"`
	ColumnTypes    map[string]map[string]uint64  `json:"column_types"`
	CategoryValues map[string][]string           `json:"category_values"`
	Position       uint64                        `json:"position"`
	Status         string                        `json:"status"`
	NAValues       []string                       `json:"na_values"`
}

// MarshalJSON implements the bit-exact wire format of spec §6: InferenceType
// keys lowercased, category value sets serialized as lists.
func (s *Schema) MarshalJSON() ([]byte, error) {
	w := wireSchema{
		MaxCategories:  s.MaxCategories,
		ColumnTypes:    make(map[string]map[string]uint64, len(s.ColumnTypes)),
		CategoryValues: make(map[string][]string, len(s.CategoryValues)),
		Position:       s.Position,
		Status:         string(s.Status),
		NAValues:       s.NAValues,
	}
	for col, counters := range s.ColumnTypes {
		named := make(map[string]uint64, len(counters))
		for t, n := range counters {
			named[t.String()] = n
		}
		w.ColumnTypes[col] = named
	}
	for col, values := range s.CategoryValues {
		list := make([]string, 0, len(values))
		for v := range values {
			list = append(list, v)
		}
		sort.Strings(list)
		w.CategoryValues[col] = list
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the wire format back into a Schema.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var w wireSchema
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("inference: decode schema: %w", err)
	}
	s.MaxCategories = w.MaxCategories
	s.Position = w.Position
	s.Status = Status(w.Status)
	s.NAValues = w.NAValues

	s.ColumnTypes = make(map[string]map[InferenceType]uint64, len(w.ColumnTypes))
	for col, counters := range w.ColumnTypes {
		parsed := make(map[InferenceType]uint64, len(counters))
		for name, n := range counters {
			t, ok := ParseInferenceType(name)
			if !ok {
				return fmt.Errorf("inference: schema column %q: unknown type %q", col, name)
			}
			parsed[t] = n
		}
		s.ColumnTypes[col] = parsed
	}

	s.CategoryValues = make(map[string]map[string]struct{}, len(w.CategoryValues))
	for col, values := range w.CategoryValues {
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		s.CategoryValues[col] = set
	}
	return nil
}
