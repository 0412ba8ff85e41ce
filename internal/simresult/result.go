package simresult

import "github.com/rororowyourboat/psuu/internal/paramspace"

// Result is the immutable record a Dispatcher backend produces: the raw
// time series, any KPIs the model itself computed, free-form metadata, and
// the parameters that produced it. Once constructed a Result is never
// mutated in place — the Aggregator returns a new KPI map on Apply.
type Result struct {
	TimeSeries *Table
	KPIs       map[string]float64
	Metadata   map[string]any
	Parameters paramspace.Vector
}

// New builds a Result, defaulting nil maps to empty ones so callers never
// need a nil check.
func New(ts *Table, kpis map[string]float64, metadata map[string]any, params paramspace.Vector) *Result {
	if kpis == nil {
		kpis = map[string]float64{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Result{TimeSeries: ts, KPIs: kpis, Metadata: metadata, Parameters: params}
}

// WithKPIs returns a shallow copy of r with kpis merged in, model-reported
// entries (r.KPIs) taking precedence on name collision per the Aggregator's
// merge rule. r itself is not mutated.
func (r *Result) WithKPIs(kpis map[string]float64) *Result {
	merged := make(map[string]float64, len(kpis)+len(r.KPIs))
	for k, v := range kpis {
		merged[k] = v
	}
	for k, v := range r.KPIs {
		merged[k] = v
	}
	return &Result{TimeSeries: r.TimeSeries, KPIs: merged, Metadata: r.Metadata, Parameters: r.Parameters}
}
