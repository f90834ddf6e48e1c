package inference

import "time"

// Convert implements the materialization half of ValueConverter: given a
// column of raw cells plus an NA mask already computed by the caller
// (FrameInferrer's na_values replacement, or SubsetReader's read path),
// coerce every non-NA cell to t and report which ones could not be
// coerced.
//
// values[i] is nil for both NA cells and conversion failures — the
// caller distinguishes the two via isNA and failed, mirroring the
// original's `conversion_failures = converted[converted.isna() &
// ~na_mask]` in SeriesTypeInference.apply. failed[i] is true only for a
// genuine conversion failure (isNA[i] is always false wherever
// failed[i] is true).
func Convert(raw []string, isNA []bool, t InferenceType, categories map[string]struct{}) (values []any, failed []bool) {
	values = make([]any, len(raw))
	failed = make([]bool, len(raw))

	for i, cell := range raw {
		if i < len(isNA) && isNA[i] {
			continue
		}
		v, ok := convertOne(cell, t, categories)
		if !ok {
			failed[i] = true
			continue
		}
		values[i] = v
	}
	return values, failed
}

func convertOne(cell string, t InferenceType, categories map[string]struct{}) (any, bool) {
	switch t {
	case Bool:
		return ParseBool(cell)
	case Int8:
		n, ok := ParseInt(cell, 8)
		return int8(n), ok
	case Int16:
		n, ok := ParseInt(cell, 16)
		return int16(n), ok
	case Int32:
		n, ok := ParseInt(cell, 32)
		return int32(n), ok
	case Int64:
		n, ok := ParseInt(cell, 64)
		return n, ok
	case Float32:
		return ParseFloat32(cell)
	case Float64:
		return ParseFloat64(cell)
	case Complex:
		return ParseComplex(cell)
	case Timedelta:
		return ParseTimedelta(cell)
	case DatetimeMDY, DatetimeYMD, DatetimeDMY:
		return ParseDatetime(cell, t)
	case Category:
		// Pass-through identity; categories is informational only (the
		// caller may choose to treat values outside the accumulated set
		// as Object-like), never a parse failure at the per-value level.
		_ = categories
		return cell, true
	case Object:
		return cell, true
	default:
		return nil, false
	}
}

// TimeLayout returns a human display layout for a Datetime* variant,
// useful for callers formatting materialized values back to text.
func TimeLayout(t InferenceType) string {
	switch t {
	case DatetimeMDY:
		return "01/02/2006 15:04:05"
	case DatetimeYMD:
		return "2006/01/02 15:04:05"
	case DatetimeDMY:
		return "02/01/2006 15:04:05"
	default:
		return time.RFC3339
	}
}
