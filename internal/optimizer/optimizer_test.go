package optimizer

import (
	"math"
	"testing"

	"github.com/rororowyourboat/psuu/internal/paramspace"
)

func scenarioABSpace(t *testing.T) *paramspace.Space {
	t.Helper()
	a, err := paramspace.NewContinuous("a", 0, 1, "")
	if err != nil {
		t.Fatalf("NewContinuous: %v", err)
	}
	b, err := paramspace.NewInteger("b", 1, 5, "")
	if err != nil {
		t.Fatalf("NewInteger: %v", err)
	}
	sp, err := paramspace.NewSpace(a, b)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	return sp
}

// score mirrors Scenario A's model: score = -a + b/5.
func score(vec paramspace.Vector) float64 {
	a := vec["a"].(float64)
	b := vec["b"].(float64)
	return -a + b/5
}

func TestRandom_ScenarioA_DeterministicAndExhaustive(t *testing.T) {
	sp := scenarioABSpace(t)
	runOnce := func() ([]paramspace.Vector, paramspace.Vector, float64) {
		opt := NewRandom(sp, RandomConfig{NumIterations: 20, Seed: 7}, true)
		var vectors []paramspace.Vector
		for {
			vec, handle, ok := opt.Propose()
			if !ok {
				break
			}
			vectors = append(vectors, vec)
			opt.Observe(handle, score(vec), false)
		}
		bestVec, bestVal, ok := opt.Best()
		if !ok {
			t.Fatalf("expected a best result")
		}
		return vectors, bestVec, bestVal
	}

	vectors1, bestVec1, bestVal1 := runOnce()
	vectors2, bestVec2, bestVal2 := runOnce()

	if len(vectors1) != 20 {
		t.Fatalf("expected exactly 20 proposals, got %d", len(vectors1))
	}
	for i := range vectors1 {
		if vectors1[i]["a"] != vectors2[i]["a"] || vectors1[i]["b"] != vectors2[i]["b"] {
			t.Fatalf("same seed must reproduce byte-identical proposals at index %d", i)
		}
	}
	if bestVal1 != bestVal2 || bestVec1["a"] != bestVec2["a"] || bestVec1["b"] != bestVec2["b"] {
		t.Fatalf("same seed must reproduce identical best result")
	}

	maxScore := math.Inf(-1)
	for _, v := range vectors1 {
		if s := score(v); s > maxScore {
			maxScore = s
		}
	}
	if math.Abs(maxScore-bestVal1) > 1e-12 {
		t.Fatalf("expected Best to equal max over all evaluations: %v vs %v", bestVal1, maxScore)
	}
}

func TestGrid_ScenarioB_LexicographicOrder(t *testing.T) {
	x, err := paramspace.NewCategorical("x", []any{"a", "b", "c"}, "")
	if err != nil {
		t.Fatalf("NewCategorical: %v", err)
	}
	y, err := paramspace.NewInteger("y", 1, 3, "")
	if err != nil {
		t.Fatalf("NewInteger: %v", err)
	}
	sp, err := paramspace.NewSpace(x, y)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}

	opt := NewGrid(sp, GridConfig{NumPoints: 3}, true)
	var got [][2]any
	for {
		vec, handle, ok := opt.Propose()
		if !ok {
			break
		}
		got = append(got, [2]any{vec["x"], vec["y"]})
		opt.Observe(handle, 0, false)
	}

	want := [][2]any{
		{"a", 1.0}, {"a", 2.0}, {"a", 3.0},
		{"b", 1.0}, {"b", 2.0}, {"b", 3.0},
		{"c", 1.0}, {"c", 2.0}, {"c", 3.0},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d combinations, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("at index %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestGrid_IntegerWidthBelowNumPointsEnumeratesEachOnce(t *testing.T) {
	y, err := paramspace.NewInteger("y", 1, 2, "")
	if err != nil {
		t.Fatalf("NewInteger: %v", err)
	}
	sp, err := paramspace.NewSpace(y)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	opt := NewGrid(sp, GridConfig{NumPoints: 5}, true)

	var seen []float64
	for {
		vec, _, ok := opt.Propose()
		if !ok {
			break
		}
		seen = append(seen, vec["y"].(float64))
	}
	if len(seen) != 2 {
		t.Fatalf("expected exactly 2 proposals (the integers 1 and 2), got %v", seen)
	}
}

func TestBestTracker_TieBreaksOnEarliestProposal(t *testing.T) {
	tr := newBestTracker(true)
	vecA := paramspace.Vector{"a": 1.0}
	vecB := paramspace.Vector{"a": 2.0}
	tr.consider(0, vecA, 10)
	tr.consider(1, vecB, 10)
	vec, val, ok := tr.Best()
	if !ok || val != 10 || vec["a"] != 1.0 {
		t.Fatalf("expected earliest proposal to win tie, got %v", vec)
	}
}

func TestBestTracker_TieBreaksOnEarliestProposal_OutOfOrderObservation(t *testing.T) {
	tr := newBestTracker(true)
	vecA := paramspace.Vector{"a": 1.0} // proposed first (idx 0)
	vecB := paramspace.Vector{"a": 2.0} // proposed second (idx 1)

	// Observed out of order: idx 1 arrives before idx 0, as can happen
	// under parallelism when a later proposal's worker finishes first.
	tr.consider(1, vecB, 10)
	tr.consider(0, vecA, 10)

	vec, val, ok := tr.Best()
	if !ok || val != 10 || vec["a"] != 1.0 {
		t.Fatalf("expected earliest proposal index to win tie regardless of observation order, got %v", vec)
	}
}

func TestBayesian_ScenarioE_FailuresRecordPessimisticSentinelAndCountHolds(t *testing.T) {
	sp := scenarioABSpace(t)
	opt := NewBayesian(sp, BayesianConfig{NumIterations: 10, NInitialPoints: 3, Seed: 11}, true)

	completed := 0
	for step := 1; ; step++ {
		vec, handle, ok := opt.Propose()
		if !ok {
			break
		}
		if step%2 == 1 { // odd steps fail
			beforeCount := opt.observationCount()
			wantSentinel := opt.pessimisticInternal()
			opt.Observe(handle, 0, true)
			if opt.observationCount() != beforeCount+1 {
				t.Fatalf("expected a pessimistic-sentinel observation to be recorded on failure")
			}
			if got := opt.observations[len(opt.observations)-1].y; got != wantSentinel {
				t.Fatalf("expected failed observation to carry sentinel %v, got %v", wantSentinel, got)
			}
		} else {
			opt.Observe(handle, score(vec), false)
		}
		completed++
	}

	if completed != 10 {
		t.Fatalf("expected exactly 10 iterations, got %d", completed)
	}
	if _, _, ok := opt.Best(); !ok {
		t.Fatalf("expected a best result from the even (ok) iterations")
	}
}

func TestBayesian_WaitsForInitialPointsBeforeSurrogate(t *testing.T) {
	sp := scenarioABSpace(t)
	opt := NewBayesian(sp, BayesianConfig{NumIterations: 20, NInitialPoints: 5, Seed: 3}, true)

	for i := 0; i < 4; i++ {
		_, handle, ok := opt.Propose()
		if !ok {
			t.Fatalf("expected proposal %d to succeed", i)
		}
		// Never observe — fewer than NInitialPoints observations are in.
		_ = handle
	}
	// A 5th proposal is issued while only 0 observations have landed; the
	// optimizer must still sample randomly, not attempt to fit a surrogate
	// on an empty observation set.
	if opt.observationCount() >= opt.cfg.NInitialPoints {
		t.Fatalf("test setup invariant violated: expected fewer observations than NInitialPoints")
	}
	vec, _, ok := opt.Propose()
	if !ok || vec == nil {
		t.Fatalf("expected a valid random proposal while waiting for observations")
	}
}
