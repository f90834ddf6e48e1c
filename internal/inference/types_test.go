package inference

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestInferenceType_StringAndParseRoundTrip(t *testing.T) {
	for _, ty := range AllTypes {
		name := ty.String()
		parsed, ok := ParseInferenceType(name)
		if !ok {
			t.Errorf("ParseInferenceType(%q) failed for %v", name, ty)
			continue
		}
		if parsed != ty {
			t.Errorf("ParseInferenceType(%q) = %v, want %v", name, parsed, ty)
		}
	}
}

func TestInferenceType_ParseUnknown(t *testing.T) {
	if _, ok := ParseInferenceType("not-a-type"); ok {
		t.Error("expected ParseInferenceType to reject unknown name")
	}
}

func TestInferenceType_IsNumeric(t *testing.T) {
	for _, ty := range NumericTypes {
		if !ty.IsNumeric() {
			t.Errorf("%v should be numeric", ty)
		}
	}
	for _, ty := range NonNumericTypes {
		if ty.IsNumeric() {
			t.Errorf("%v should not be numeric", ty)
		}
	}
	if Category.IsNumeric() || Object.IsNumeric() {
		t.Error("Category and Object must not be numeric")
	}
}

func TestNull_ZeroValueIsInvalid(t *testing.T) {
	var n Null[int]
	if n.Valid {
		t.Error("zero-value Null must be invalid")
	}
	v := NullOf(42)
	if !v.Valid || v.Value != 42 {
		t.Errorf("NullOf(42) = %+v, want Valid=true Value=42", v)
	}
}

func TestInferenceType_MarshalTextAsMapKey(t *testing.T) {
	m := map[InferenceType]int{Int8: 1, Float64: 2}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"int8":1`) || !strings.Contains(s, `"float64":2`) {
		t.Errorf("expected lowercase type names as map keys, got %s", s)
	}
}
