package optimizer

import "github.com/rororowyourboat/psuu/internal/paramspace"

// bestTracker implements the best-tracking rule shared by every optimizer
// (spec §4.4): among ok observations, the best is the highest objective if
// maximize, else the lowest, with ties broken by earliest proposal index.
type bestTracker struct {
	maximize bool
	hasBest  bool
	bestVec  paramspace.Vector
	bestVal  float64
	bestIdx  int64
}

func newBestTracker(maximize bool) *bestTracker {
	return &bestTracker{maximize: maximize}
}

func (t *bestTracker) consider(idx int64, vec paramspace.Vector, value float64) {
	if !t.hasBest {
		t.hasBest = true
		t.bestVec, t.bestVal, t.bestIdx = vec, value, idx
		return
	}
	better := false
	if t.maximize {
		better = value > t.bestVal
	} else {
		better = value < t.bestVal
	}
	switch {
	case better:
		t.bestVec, t.bestVal, t.bestIdx = vec, value, idx
	case value == t.bestVal && idx < t.bestIdx:
		// Ties go to the earliest proposal index, not the earliest
		// observation: under parallelism, a later-proposed handle can be
		// observed before an earlier-proposed one.
		t.bestVec, t.bestVal, t.bestIdx = vec, value, idx
	}
}

func (t *bestTracker) Best() (paramspace.Vector, float64, bool) {
	return t.bestVec, t.bestVal, t.hasBest
}
