package inference

import "fmt"

// InferenceType is a closed enum of the data types a column can settle on.
// It is never carried around as a bare string; String/ParseInferenceType
// are the only boundary to the wire representation.
type InferenceType int

const (
	Bool InferenceType = iota
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
	Complex
	Timedelta
	DatetimeMDY // month/day/year
	DatetimeYMD // year/month/day
	DatetimeDMY // day/month/year
	Category
	Object
)

// NumericTypes is ordered most-restrictive first, the order the numeric
// cascade in ColumnInferrer.Gather walks.
var NumericTypes = []InferenceType{Bool, Int8, Int16, Int32, Int64, Float32, Float64, Complex}

// NonNumericTypes are evaluated independently of the numeric cascade.
var NonNumericTypes = []InferenceType{Timedelta, DatetimeMDY, DatetimeDMY, DatetimeYMD}

// AllTypes enumerates every InferenceType, numeric first, then non-numeric,
// then Category and Object.
var AllTypes = func() []InferenceType {
	all := make([]InferenceType, 0, len(NumericTypes)+len(NonNumericTypes)+2)
	all = append(all, NumericTypes...)
	all = append(all, NonNumericTypes...)
	all = append(all, Category, Object)
	return all
}()

// PreferredOrder is the total order Selector.Preferred walks to pick the
// single most-specific candidate.
var PreferredOrder = []InferenceType{
	Bool, Int8, Int16, Int32, Int64, Float32, Float64, Complex,
	Timedelta, DatetimeMDY, DatetimeYMD, DatetimeDMY, Category, Object,
}

var typeNames = map[InferenceType]string{
	Bool:        "bool",
	Int8:        "int8",
	Int16:       "int16",
	Int32:       "int32",
	Int64:       "int64",
	Float32:     "float32",
	Float64:     "float64",
	Complex:     "complex",
	Timedelta:   "timedelta",
	DatetimeMDY: "datetime",
	DatetimeYMD: "datetime_y",
	DatetimeDMY: "datetime_d",
	Category:    "category",
	Object:      "object",
}

var namesToType = func() map[string]InferenceType {
	m := make(map[string]InferenceType, len(typeNames))
	for t, n := range typeNames {
		m[n] = t
	}
	return m
}()

// String returns the wire name of the type (lowercased, matching §6 of the
// schema wire format exactly).
func (t InferenceType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("InferenceType(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler so InferenceType can be a
// JSON object key or scalar value directly.
func (t InferenceType) MarshalText() ([]byte, error) {
	n, ok := typeNames[t]
	if !ok {
		return nil, fmt.Errorf("inference: unknown type %d", int(t))
	}
	return []byte(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *InferenceType) UnmarshalText(text []byte) error {
	parsed, ok := ParseInferenceType(string(text))
	if !ok {
		return fmt.Errorf("inference: unknown type %q", string(text))
	}
	*t = parsed
	return nil
}

// ParseInferenceType parses a wire-format type name back into an
// InferenceType.
func ParseInferenceType(name string) (InferenceType, bool) {
	t, ok := namesToType[name]
	return t, ok
}

// IsNumeric reports whether t is one of the numeric cascade types.
func (t InferenceType) IsNumeric() bool {
	switch t {
	case Bool, Int8, Int16, Int32, Int64, Float32, Float64, Complex:
		return true
	default:
		return false
	}
}

// Null is a generic nullable wrapper for values of the type lattice.
// pgtype's fixed-width nullable types (Int2/Int4/Int8, Float4/Float8)
// don't cover Int8 (8-bit), Float32 distinct from Float4 semantics, or
// complex128. Convert does not return Null values: it reports a null cell
// as a nil entry in its []any result.
type Null[T any] struct {
	Value T
	Valid bool
}

// NullOf wraps a valid value.
func NullOf[T any](v T) Null[T] {
	return Null[T]{Value: v, Valid: true}
}
