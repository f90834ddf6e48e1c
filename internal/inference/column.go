package inference

import "sort"

// Gather implements ColumnInferrer: given one column's raw cells for a
// batch (NA cells already identified via isNA), update the failure
// counters in place and the bounded category accumulator, and return the
// counters, the category set (a new map whenever the batch's union is
// stored), the category-disqualified flag, and the cumulative non-NA row
// count after this batch.
//
// The numeric cascade only re-evaluates values that failed the previous,
// narrower type — a value that parses as Int8 is a success for every
// wider numeric type too, so reparsing it would cost work without
// changing any counter. Grounded on SeriesTypeInference.gather_type_stats
// in original_source/data_processor/utils/series_type_inference.py.
//
// categoryDisqualified tracks, independently of the stored set, whether
// this column has ever seen its cumulative union of uniques outgrow
// maxCategories. Once true it stays true for the rest of the run — the
// stored categoryValues set itself is never allowed to grow past the cap
// (spec §3: "category_values[C].len() ≤ max_categories at all times"),
// matching series_type_inference.py's `len(unique_values) <= max_to_add`
// guard, which skips the update entirely rather than storing an
// oversized set.
func Gather(
	rawValues []string,
	isNA []bool,
	rowsProcessed uint64,
	counters map[InferenceType]uint64,
	categoryValues map[string]struct{},
	categoryDisqualified bool,
	maxCategories int,
) (map[InferenceType]uint64, map[string]struct{}, bool, uint64) {
	if counters == nil {
		counters = make(map[InferenceType]uint64)
	}
	if categoryValues == nil {
		categoryValues = make(map[string]struct{})
	}

	values := make([]string, 0, len(rawValues))
	for i, v := range rawValues {
		if i < len(isNA) && isNA[i] {
			continue
		}
		values = append(values, v)
	}
	rowsProcessed += uint64(len(values))

	residual := values
	for _, t := range NumericTypes {
		if _, ok := counters[t]; !ok {
			counters[t] = 0
		}
		if len(residual) == 0 {
			continue
		}
		next := make([]string, 0, len(residual))
		for _, v := range residual {
			if _, ok := parseNumeric(v, t); !ok {
				next = append(next, v)
				counters[t]++
			}
		}
		residual = next
	}

	for _, t := range NonNumericTypes {
		var fails uint64
		for _, v := range values {
			var ok bool
			if t == Timedelta {
				_, ok = ParseTimedelta(v)
			} else {
				_, ok = ParseDatetime(v, t)
			}
			if !ok {
				fails++
			}
		}
		counters[t] += fails
	}

	delete(counters, Category)
	if !categoryDisqualified && maxCategories > 0 {
		unique := make(map[string]struct{}, len(values))
		for _, v := range values {
			unique[v] = struct{}{}
		}
		union := make(map[string]struct{}, len(categoryValues)+len(unique))
		for v := range categoryValues {
			union[v] = struct{}{}
		}
		for v := range unique {
			union[v] = struct{}{}
		}
		if len(union) > maxCategories {
			// The cumulative union has outgrown the cap: disqualify
			// permanently and leave the stored set exactly as it was
			// before this batch, so categoryValues never exceeds
			// maxCategories. A pure set union is order-independent, so
			// this decision depends only on the cumulative total, never
			// on how the rows were split into batches — disqualifying
			// here can never be reversed by a later, smaller batch.
			categoryDisqualified = true
		} else {
			categoryValues = union
			if rowsProcessed > 0 {
				ratio := float64(len(union)) / float64(rowsProcessed)
				if ratio <= 0.5 {
					counters[Category] = 0
				}
			}
		}
	}

	return counters, categoryValues, categoryDisqualified, rowsProcessed
}

// parseNumeric dispatches to the right Parse* for a numeric cascade type,
// reporting only success/failure (the counted statistic never needs the
// parsed value, only whether the value confirmed to the type).
func parseNumeric(v string, t InferenceType) (any, bool) {
	switch t {
	case Bool:
		return ParseBool(v)
	case Int8:
		return ParseInt(v, 8)
	case Int16:
		return ParseInt(v, 16)
	case Int32:
		return ParseInt(v, 32)
	case Int64:
		return ParseInt(v, 64)
	case Float32:
		return ParseFloat32(v)
	case Float64:
		return ParseFloat64(v)
	case Complex:
		return ParseComplex(v)
	default:
		return nil, false
	}
}

// sortedUnique is a small helper kept for deterministic test fixtures
// that want to inspect a category set's contents.
func sortedUnique(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
