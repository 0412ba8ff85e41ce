package store

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/rororowyourboat/psuu/internal/paramspace"
)

func TestAppend_RejectsDuplicateStep(t *testing.T) {
	s := New()
	rec := IterationRecord{Step: 1, Status: StatusOK, ObjectiveValue: 1.0}
	if err := s.Append(rec); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := s.Append(rec); err == nil {
		t.Fatalf("expected duplicate step to be rejected")
	}
}

func TestAll_SortsByStepRegardlessOfAppendOrder(t *testing.T) {
	s := New()
	_ = s.Append(IterationRecord{Step: 3, Status: StatusOK})
	_ = s.Append(IterationRecord{Step: 1, Status: StatusOK})
	_ = s.Append(IterationRecord{Step: 2, Status: StatusOK})

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	for i, r := range all {
		if r.Step != i+1 {
			t.Fatalf("expected ascending step order, got %v", all)
		}
	}
}

func TestBest_TieBreaksOnEarliestStepAndIgnoresFailed(t *testing.T) {
	s := New()
	_ = s.Append(IterationRecord{Step: 1, Status: StatusOK, ObjectiveValue: 10, Parameters: paramspace.Vector{"a": 1.0}})
	_ = s.Append(IterationRecord{Step: 2, Status: StatusOK, ObjectiveValue: 10, Parameters: paramspace.Vector{"a": 2.0}})
	_ = s.Append(IterationRecord{Step: 3, Status: StatusFailed, ObjectiveValue: 999})

	best, ok := s.Best(true)
	if !ok {
		t.Fatalf("expected a best record")
	}
	if best.Step != 1 {
		t.Fatalf("expected earliest step to win the tie, got step %d", best.Step)
	}
}

func TestBest_NoOKRecordsReturnsFalse(t *testing.T) {
	s := New()
	_ = s.Append(IterationRecord{Step: 1, Status: StatusFailed})
	if _, ok := s.Best(true); ok {
		t.Fatalf("expected no best when every record failed")
	}
}

func TestExportCSV_IncludesSortedParamAndKPIColumns(t *testing.T) {
	s := New()
	_ = s.Append(IterationRecord{
		Step:           1,
		Status:         StatusOK,
		ObjectiveValue: 1.5,
		Parameters:     paramspace.Vector{"b": 2.0, "a": 1.0},
		KPIs:           map[string]float64{"zeta": 9.0, "alpha": 1.0},
	})

	var buf bytes.Buffer
	if err := s.ExportCSV(&buf); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines: %q", len(lines), out)
	}
	header := lines[0]
	if !strings.Contains(header, "a") || !strings.Contains(header, "b") {
		t.Fatalf("expected parameter columns in header, got %q", header)
	}
	if !strings.Contains(header, "alpha") || !strings.Contains(header, "zeta") {
		t.Fatalf("expected KPI columns in header, got %q", header)
	}
}

func TestSummary_NaNWhenNoOKIterationsForKPI(t *testing.T) {
	s := New()
	_ = s.Append(IterationRecord{Step: 1, Status: StatusFailed, KPIs: map[string]float64{"x": 1.0}})

	summary := s.Summary()
	got, ok := summary["x"]
	if !ok {
		t.Fatalf("expected summary entry for KPI x even with no ok iterations")
	}
	if got.Mean == got.Mean { // NaN != NaN
		t.Fatalf("expected NaN mean when no ok observations exist, got %v", got.Mean)
	}
	if got.Std == got.Std { // NaN != NaN
		t.Fatalf("expected NaN std when no ok observations exist, got %v", got.Std)
	}
}

func TestSummary_AggregatesAcrossOKIterationsOnly(t *testing.T) {
	s := New()
	_ = s.Append(IterationRecord{Step: 1, Status: StatusOK, KPIs: map[string]float64{"x": 1.0}})
	_ = s.Append(IterationRecord{Step: 2, Status: StatusOK, KPIs: map[string]float64{"x": 3.0}})
	_ = s.Append(IterationRecord{Step: 3, Status: StatusFailed, KPIs: map[string]float64{"x": 100.0}})

	summary := s.Summary()
	x := summary["x"]
	if x.Min != 1.0 || x.Max != 3.0 || x.Mean != 2.0 {
		t.Fatalf("expected min=1 max=3 mean=2, got %+v", x)
	}
	if math.Abs(x.Std-math.Sqrt2) > 1e-9 {
		t.Fatalf("expected std=sqrt(2) over [1,3], got %v", x.Std)
	}
}

func TestSummary_StdIsNaNForSingleOKObservation(t *testing.T) {
	s := New()
	_ = s.Append(IterationRecord{Step: 1, Status: StatusOK, KPIs: map[string]float64{"x": 5.0}})

	summary := s.Summary()
	x := summary["x"]
	if x.Std == x.Std { // NaN != NaN
		t.Fatalf("expected NaN std for a single ok observation, got %v", x.Std)
	}
}
