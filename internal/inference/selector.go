package inference

// Tolerance returns the allowed failure count for a given type. Pass
// UniformTolerance for a single dataset-wide value, or PerColumnTolerance
// when individual types have been given a different allowance.
type Tolerance func(t InferenceType) int

// UniformTolerance returns a Tolerance that allows n failures for every
// type.
func UniformTolerance(n int) Tolerance {
	return func(InferenceType) int { return n }
}

// PerColumnTolerance returns a Tolerance that looks up a per-type override
// in m, falling back to fallback when a type has no entry.
func PerColumnTolerance(m map[InferenceType]int, fallback int) Tolerance {
	return func(t InferenceType) int {
		if n, ok := m[t]; ok {
			return n
		}
		return fallback
	}
}

// Candidates implements Selector.candidates: T qualifies iff its failure
// counter is present and at or below tolerance, or T is Object (always a
// candidate regardless of counters).
func Candidates(counters map[InferenceType]uint64, tolerance Tolerance) map[InferenceType]struct{} {
	candidates := make(map[InferenceType]struct{}, len(AllTypes))
	for _, t := range AllTypes {
		if t == Object {
			candidates[t] = struct{}{}
			continue
		}
		count, ok := counters[t]
		if !ok {
			continue
		}
		if count <= uint64(tolerance(t)) {
			candidates[t] = struct{}{}
		}
	}
	return candidates
}

// Preferred implements Selector.preferred: the first type in PreferredOrder
// present in candidates. Object is always present in candidates and last
// in PreferredOrder, so this never falls through without a result.
func Preferred(candidates map[InferenceType]struct{}) InferenceType {
	for _, t := range PreferredOrder {
		if _, ok := candidates[t]; ok {
			return t
		}
	}
	return Object
}

// Override carries a caller-supplied preferred type for a column, per the
// "preferred-type override" wire format in spec §6. When present, Selector
// returns it verbatim instead of computing Preferred from the counters.
type Override struct {
	Type           InferenceType
	CategoryValues map[string]struct{}
}

// ResolvePreferred applies a caller Override if present, otherwise falls
// back to Preferred(candidates).
func ResolvePreferred(candidates map[InferenceType]struct{}, override *Override) InferenceType {
	if override != nil {
		return override.Type
	}
	return Preferred(candidates)
}
