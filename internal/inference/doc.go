// Package inference provides progressive, tolerance-aware type inference
// for streamed CSV columns.
//
// This package is the heart of the type inference engine, containing all
// domain logic independent of storage or transport. It can be driven from
// a background worker, a CLI tool, or tests without modification.
//
// # Architecture
//
//   - InferenceType: a closed enum of the data types a column can settle on.
//   - Schema: the accumulated, JSON-serializable state of an in-progress
//     or finished inference run (per-column failure counters, category
//     values, stream position).
//   - ColumnInferrer: updates one column's failure counters and category
//     accumulator from one batch of raw string cells.
//   - FrameInferrer: drives a row batch through ColumnInferrer for every
//     column and folds the result into a Schema.
//   - Selector: turns failure counters plus a tolerance into a candidate
//     set and a single preferred type.
//   - Convert: coerces a column of raw strings to a concrete Go value
//     column for one InferenceType, used during final materialization
//     (internal/subset). Gathering calls the per-value Parse* functions
//     directly rather than Convert.
//
// # Tolerance
//
// A column's failure counter for type T tracks how many non-null cells
// failed to parse as T, cumulative across every batch seen so far. A type
// remains a candidate as long as its counter is at or below the caller's
// tolerance (0 by default: zero parse failures allowed).
package inference
