package optimizer

import (
	"math"

	"github.com/rororowyourboat/psuu/internal/paramspace"
)

// GridConfig configures the grid optimizer. NumPoints applies to every
// continuous/integer dimension; categorical dimensions always enumerate
// every category.
type GridConfig struct {
	NumPoints int // default 5
}

// DefaultGridConfig returns the spec-mandated default.
func DefaultGridConfig() GridConfig {
	return GridConfig{NumPoints: 5}
}

// Grid enumerates the full Cartesian product of per-dimension value lists,
// in the lexicographic order of the space's parameter names (earlier names
// vary slower).
type Grid struct {
	space    *paramspace.Space
	vectors  []paramspace.Vector
	next     int
	pending  map[Handle]paramspace.Vector
	tracker  *bestTracker
	proposed int64
}

// NewGrid builds a Grid optimizer bound to space, targeting maximize.
func NewGrid(space *paramspace.Space, cfg GridConfig, maximize bool) *Grid {
	if cfg.NumPoints <= 0 {
		cfg.NumPoints = DefaultGridConfig().NumPoints
	}
	return &Grid{
		space:   space,
		vectors: buildGridVectors(space, cfg.NumPoints),
		pending: make(map[Handle]paramspace.Vector),
		tracker: newBestTracker(maximize),
	}
}

func buildGridVectors(space *paramspace.Space, numPoints int) []paramspace.Vector {
	names := space.Names()
	valueLists := make(map[string][]any, len(names))
	for _, name := range names {
		spec, _ := space.Spec(name)
		valueLists[name] = gridValues(spec, numPoints)
	}
	return cartesianProduct(names, valueLists)
}

// gridValues returns the ordered value list the grid optimizer enumerates
// for one spec.
func gridValues(spec paramspace.Spec, numPoints int) []any {
	switch spec.Kind {
	case paramspace.Continuous:
		vals := linspace(spec.Min, spec.Max, numPoints)
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = v
		}
		return out
	case paramspace.Integer:
		width := spec.IntegerWidth()
		var ints []float64
		if width >= numPoints {
			raw := linspace(spec.Min, spec.Max, numPoints)
			seen := make(map[float64]bool, numPoints)
			for _, v := range raw {
				r := math.Round(v)
				if !seen[r] {
					seen[r] = true
					ints = append(ints, r)
				}
			}
		} else {
			for v := spec.Min; v <= spec.Max; v++ {
				ints = append(ints, v)
			}
		}
		out := make([]any, len(ints))
		for i, v := range ints {
			out[i] = v
		}
		return out
	case paramspace.Categorical:
		out := make([]any, len(spec.Categories))
		copy(out, spec.Categories)
		return out
	default:
		return nil
	}
}

// linspace returns n evenly spaced values over [min, max], inclusive of
// both endpoints. n == 1 returns just min.
func linspace(min, max float64, n int) []float64 {
	if n <= 1 {
		return []float64{min}
	}
	out := make([]float64, n)
	step := (max - min) / float64(n-1)
	for i := 0; i < n; i++ {
		out[i] = min + step*float64(i)
	}
	out[n-1] = max
	return out
}

// cartesianProduct builds the full product of valueLists in the given
// dimension order, with the last name varying fastest (odometer order).
func cartesianProduct(names []string, valueLists map[string][]any) []paramspace.Vector {
	total := 1
	for _, name := range names {
		total *= len(valueLists[name])
	}
	out := make([]paramspace.Vector, 0, total)
	counters := make([]int, len(names))
	for i := 0; i < total; i++ {
		vec := make(paramspace.Vector, len(names))
		for j, name := range names {
			vec[name] = valueLists[name][counters[j]]
		}
		out = append(out, vec)
		for j := len(names) - 1; j >= 0; j-- {
			counters[j]++
			if counters[j] < len(valueLists[names[j]]) {
				break
			}
			counters[j] = 0
		}
	}
	return out
}

// Propose returns the next vector in lexicographic grid order, or ok=false
// once every combination has been issued.
func (g *Grid) Propose() (paramspace.Vector, Handle, bool) {
	if g.next >= len(g.vectors) {
		return nil, 0, false
	}
	vec := g.vectors[g.next]
	handle := Handle(g.next)
	g.pending[handle] = vec
	g.next++
	g.proposed++
	return vec, handle, true
}

// Observe is bookkeeping-only for Grid: observations feed Best but never
// change enumeration order.
func (g *Grid) Observe(handle Handle, objectiveValue float64, failed bool) {
	vec, ok := g.pending[handle]
	if !ok {
		return
	}
	delete(g.pending, handle)
	if failed {
		return
	}
	g.tracker.consider(int64(handle), vec, objectiveValue)
}

// Best returns the best-so-far vector and objective.
func (g *Grid) Best() (paramspace.Vector, float64, bool) {
	return g.tracker.Best()
}
