// Package kpi implements named reductions over a simulation's tabular
// output (the KPI Aggregator, spec §4.2) plus extraction of the scalar
// objective value the Optimizer family targets.
package kpi

import (
	"fmt"
	"math"

	"github.com/rororowyourboat/psuu/internal/simresult"
)

// Operation is a built-in column reducer.
type Operation string

const (
	Max   Operation = "max"
	Min   Operation = "min"
	Mean  Operation = "mean"
	Sum   Operation = "sum"
	Std   Operation = "std"
	Final Operation = "final"
)

// CustomReducer computes one real number from a full tabular result.
// Grounded on the teacher's ObjectiveFunction.Evaluate shape
// (tune/weights/objective.go), generalized from one fixed formula to an
// arbitrary user-supplied function.
type CustomReducer func(t *simresult.Table) (float64, error)

// Spec is one registered KPI: either a column reducer (Column + Op, with an
// optional row filter) or a Custom reducer. Exactly one of the two shapes
// is populated.
type Spec struct {
	Name string

	// Column reducer shape.
	Column string
	Op     Operation
	Filter simresult.RowFilter

	// Custom reducer shape.
	Custom CustomReducer

	Objective bool
	Maximize  bool
}

// ErrKPIUnavailable is returned by ObjectiveValue when the objective KPI is
// missing from the map or NaN, per spec §4.2/§7.
var ErrKPIUnavailable = fmt.Errorf("kpi-unavailable")

// Aggregator holds the registered KPI specs for one Experiment.
type Aggregator struct {
	specs        map[string]Spec
	order        []string
	objective    string
	hasObjective bool
}

// NewAggregator builds an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{specs: make(map[string]Spec)}
}

// AddKPI registers spec.Name; duplicate names are an error.
func (a *Aggregator) AddKPI(spec Spec) error {
	if spec.Name == "" {
		return fmt.Errorf("kpi: name must not be empty")
	}
	if _, dup := a.specs[spec.Name]; dup {
		return fmt.Errorf("kpi: duplicate KPI name %q", spec.Name)
	}
	if spec.Custom == nil && spec.Column == "" {
		return fmt.Errorf("kpi: %q: must be a column reducer or a custom reducer", spec.Name)
	}
	a.specs[spec.Name] = spec
	a.order = append(a.order, spec.Name)
	return nil
}

// SetObjective marks name as the single scalar objective. Exactly one call
// is allowed per Aggregator and name must already be registered.
func (a *Aggregator) SetObjective(name string, maximize bool) error {
	if a.hasObjective {
		return fmt.Errorf("kpi: objective already set to %q", a.objective)
	}
	spec, ok := a.specs[name]
	if !ok {
		return fmt.Errorf("kpi: objective %q is not a registered KPI", name)
	}
	spec.Objective = true
	spec.Maximize = maximize
	a.specs[name] = spec
	a.objective = name
	a.hasObjective = true
	return nil
}

// Objective returns the objective KPI name and its maximize flag.
func (a *Aggregator) Objective() (name string, maximize bool, ok bool) {
	return a.objective, a.specs[a.objective].Maximize, a.hasObjective
}

// Apply runs every registered reducer against result.TimeSeries and merges
// the output with any KPIs the simulation already computed in-process.
// Model-reported KPIs (already present in result.KPIs) win on name
// collision over redundant column/custom reducers of the same name.
func (a *Aggregator) Apply(result *simresult.Result) (map[string]float64, error) {
	computed := make(map[string]float64, len(a.order))
	for _, name := range a.order {
		spec := a.specs[name]
		v, err := a.reduce(spec, result.TimeSeries)
		if err != nil {
			return nil, fmt.Errorf("kpi: %q: %w", name, err)
		}
		computed[name] = v
	}
	out := make(map[string]float64, len(computed)+len(result.KPIs))
	for k, v := range computed {
		out[k] = v
	}
	for k, v := range result.KPIs {
		out[k] = v
	}
	return out, nil
}

func (a *Aggregator) reduce(spec Spec, t *simresult.Table) (float64, error) {
	if spec.Custom != nil {
		return spec.Custom(t)
	}
	col, err := t.FilteredColumn(spec.Column, spec.Filter)
	if err != nil {
		return math.NaN(), nil
	}
	return applyOperation(spec.Op, col), nil
}

// applyOperation reduces values per the built-in operation. An empty or
// all-NaN column reduces to NaN for every operation.
func applyOperation(op Operation, values []float64) float64 {
	if len(values) == 0 || simresult.IsAllNaN(values) {
		return math.NaN()
	}
	switch op {
	case Max:
		m := math.Inf(-1)
		for _, v := range values {
			if !math.IsNaN(v) && v > m {
				m = v
			}
		}
		return m
	case Min:
		m := math.Inf(1)
		for _, v := range values {
			if !math.IsNaN(v) && v < m {
				m = v
			}
		}
		return m
	case Mean:
		sum, n := 0.0, 0
		for _, v := range values {
			if !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		if n == 0 {
			return math.NaN()
		}
		return sum / float64(n)
	case Sum:
		sum := 0.0
		for _, v := range values {
			if !math.IsNaN(v) {
				sum += v
			}
		}
		return sum
	case Std:
		return sampleStd(values)
	case Final:
		for i := len(values) - 1; i >= 0; i-- {
			if !math.IsNaN(values[i]) {
				return values[i]
			}
		}
		return math.NaN()
	default:
		return math.NaN()
	}
}

// sampleStd computes the sample standard deviation (1 degree of freedom),
// undefined (NaN) for fewer than 2 finite observations.
func sampleStd(values []float64) float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) < 2 {
		return math.NaN()
	}
	mean := 0.0
	for _, v := range finite {
		mean += v
	}
	mean /= float64(len(finite))

	var sumSq float64
	for _, v := range finite {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(finite)-1))
}

// ObjectiveValue extracts the scalar objective from an already-merged KPI
// map. A missing or NaN objective is reported as ErrKPIUnavailable so the
// Controller can treat the iteration as failed.
func (a *Aggregator) ObjectiveValue(kpis map[string]float64) (float64, error) {
	if !a.hasObjective {
		return 0, fmt.Errorf("kpi: no objective set")
	}
	v, ok := kpis[a.objective]
	if !ok || math.IsNaN(v) {
		return 0, ErrKPIUnavailable
	}
	return v, nil
}
