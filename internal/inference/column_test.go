package inference

import "testing"

func candidateSet(t *testing.T, counters map[InferenceType]uint64, tolerance int) map[InferenceType]struct{} {
	t.Helper()
	return Candidates(counters, UniformTolerance(tolerance))
}

func assertCandidates(t *testing.T, got map[InferenceType]struct{}, want ...InferenceType) {
	t.Helper()
	wantSet := make(map[InferenceType]struct{}, len(want))
	for _, w := range want {
		wantSet[w] = struct{}{}
	}
	for w := range wantSet {
		if _, ok := got[w]; !ok {
			t.Errorf("expected %s to be a candidate, got %v", w, got)
		}
	}
	for g := range got {
		if _, ok := wantSet[g]; !ok {
			t.Errorf("unexpected candidate %s, want only %v", g, want)
		}
	}
}

func gatherColumn(values []string, naValues []string, maxCategories int) (map[InferenceType]uint64, map[string]struct{}, uint64) {
	isNA := make([]bool, len(values))
	for i, v := range values {
		for _, na := range naValues {
			if v == na {
				isNA[i] = true
				break
			}
		}
	}
	counters, categories, _, rowsProcessed := Gather(values, isNA, 0, nil, nil, false, maxCategories)
	return counters, categories, rowsProcessed
}

// Scenario 1 from spec §8: four columns, tolerance=0.
func TestGather_Scenario1(t *testing.T) {
	col1 := []string{"42", "3.14", "-1"}
	col2 := []string{"42", "3.145678", "-"}
	col3 := []string{"1", "2", "3"}
	col4 := []string{"1+2j", "4+5j", "4+6j"}

	c1, _, _ := gatherColumn(col1, nil, 100)
	assertCandidates(t, candidateSet(t, c1, 0), Float32, Float64, Complex, Object)

	c2, _, _ := gatherColumn(col2, []string{"-"}, 100)
	assertCandidates(t, candidateSet(t, c2, 0), Float64, Complex, Object)

	c3, _, _ := gatherColumn(col3, nil, 100)
	assertCandidates(t, candidateSet(t, c3, 0), Int8, Int16, Int32, Int64, Float32, Float64, Complex, Object)

	c4, _, _ := gatherColumn(col4, nil, 100)
	assertCandidates(t, candidateSet(t, c4, 0), Complex, Object)
}

// Scenario 3 from spec §8.
func TestGather_Scenario3_NAAndTolerance(t *testing.T) {
	values := []string{"1", "2", "Not Available", "X"}
	counters, _, _ := gatherColumn(values, []string{"Not Available"}, 100)
	assertCandidates(t, candidateSet(t, counters, 1),
		Int8, Int16, Int32, Int64, Float32, Float64, Complex, Object)
}

// Scenario 4 from spec §8: category unique-ratio gate.
func TestGather_Scenario4_CategoryRatio(t *testing.T) {
	values := []string{"A", "B", "A", "B"}
	counters, categoryValues, rowsProcessed := gatherColumn(values, nil, 100)
	if rowsProcessed != 4 {
		t.Fatalf("rowsProcessed = %d, want 4", rowsProcessed)
	}
	if _, ok := counters[Category]; !ok {
		t.Fatalf("expected Category counter present, got %v", counters)
	}
	if len(categoryValues) != 2 {
		t.Fatalf("expected 2 category values, got %v", categoryValues)
	}
}

// Category is permanently disqualified once the cumulative union exceeds
// the cap, and the stored set is never allowed to grow past the cap to
// remember it — spec §3's "category_values[C].len() ≤ max_categories at
// all times" invariant holds even across a disqualifying batch.
func TestGather_CategoryDisqualifiedPermanently(t *testing.T) {
	counters := map[InferenceType]uint64{}
	categories := map[string]struct{}{}
	var disqualified bool
	var rowsProcessed uint64

	// First batch: 3 unique values, cap of 2 -> disqualified immediately,
	// and the oversized union is never stored.
	counters, categories, disqualified, rowsProcessed = Gather(
		[]string{"A", "B", "C"}, nil, rowsProcessed, counters, categories, disqualified, 2)
	if _, ok := counters[Category]; ok {
		t.Fatalf("expected Category absent after exceeding cap, got %v", counters)
	}
	if !disqualified {
		t.Fatalf("expected permanent disqualification after exceeding cap")
	}
	if len(categories) > 2 {
		t.Fatalf("expected stored category set to stay within cap, got %v", categories)
	}

	// Second batch: even values that would otherwise fit under the cap
	// never resurrect Category once disqualified.
	counters, categories, disqualified, _ = Gather(
		[]string{"D"}, nil, rowsProcessed, counters, categories, disqualified, 2)
	if _, ok := counters[Category]; ok {
		t.Fatalf("expected Category to remain absent, got %v", counters)
	}
	if !disqualified {
		t.Fatalf("expected disqualification to remain permanent")
	}
	if len(categories) > 2 {
		t.Fatalf("expected stored category set to stay within cap, got %v", categories)
	}
}

// The stored category set itself must never exceed MaxCategories, even
// transiently within a single disqualifying batch.
func TestGather_CategoryValuesNeverExceedsCap(t *testing.T) {
	_, categories, _, _ := Gather(
		[]string{"A", "B", "C", "D", "E"}, nil, 0, map[InferenceType]uint64{}, map[string]struct{}{}, false, 3)
	if len(categories) > 3 {
		t.Fatalf("categoryValues exceeded cap: %v", categories)
	}
}

// Monotonicity: counters never decrease across successive batches.
func TestGather_Monotonic(t *testing.T) {
	counters := map[InferenceType]uint64{}
	categories := map[string]struct{}{}
	var rowsProcessed uint64

	batch1 := []string{"1", "2", "X"}
	counters, categories, _, rowsProcessed = Gather(batch1, nil, rowsProcessed, counters, categories, false, 100)
	before := counters[Int8]

	batch2 := []string{"Y", "3"}
	counters, _, _, _ = Gather(batch2, nil, rowsProcessed, counters, categories, false, 100)
	after := counters[Int8]

	if after < before {
		t.Fatalf("Int8 counter decreased: before=%d after=%d", before, after)
	}
}

// Batching equivalence: process(A); process(B) == process(A++B).
func TestGather_BatchingEquivalence(t *testing.T) {
	a := []string{"1", "X", "3"}
	b := []string{"Y", "5"}
	combined := append(append([]string{}, a...), b...)

	cBatched, catBatched, dqBatched, rpBatched := Gather(a, nil, 0, map[InferenceType]uint64{}, map[string]struct{}{}, false, 100)
	cBatched, catBatched, dqBatched, rpBatched = Gather(b, nil, rpBatched, cBatched, catBatched, dqBatched, 100)

	cCombined, _, _, rpCombined := Gather(combined, nil, 0, map[InferenceType]uint64{}, map[string]struct{}{}, false, 100)

	if rpBatched != rpCombined {
		t.Fatalf("rows processed mismatch: batched=%d combined=%d", rpBatched, rpCombined)
	}
	for _, ty := range AllTypes {
		if cBatched[ty] != cCombined[ty] {
			t.Errorf("%s counter mismatch: batched=%d combined=%d", ty, cBatched[ty], cCombined[ty])
		}
	}
	_ = catBatched
}

func TestCandidates_ObjectAlwaysPresent(t *testing.T) {
	counters := map[InferenceType]uint64{Bool: 100, Int8: 100}
	c := Candidates(counters, UniformTolerance(0))
	if _, ok := c[Object]; !ok {
		t.Fatalf("Object must always be a candidate, got %v", c)
	}
}

func TestPreferred_TotalOrder(t *testing.T) {
	candidates := map[InferenceType]struct{}{
		Float64: {}, Complex: {}, Object: {},
	}
	if got := Preferred(candidates); got != Float64 {
		t.Fatalf("Preferred() = %s, want Float64", got)
	}
}

func TestPreferred_FallsBackToObject(t *testing.T) {
	candidates := map[InferenceType]struct{}{Object: {}}
	if got := Preferred(candidates); got != Object {
		t.Fatalf("Preferred() = %s, want Object", got)
	}
}

func TestResolvePreferred_OverrideWins(t *testing.T) {
	candidates := map[InferenceType]struct{}{Int8: {}, Object: {}}
	override := &Override{Type: Category}
	if got := ResolvePreferred(candidates, override); got != Category {
		t.Fatalf("ResolvePreferred() = %s, want Category override", got)
	}
}
