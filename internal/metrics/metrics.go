// Package metrics exposes a Prometheus collector registry for the
// Experiment Controller, built the way the teacher's
// internal/interfaces/http/metrics.go assembles its MetricsRegistry. No
// promhttp exposition handler ships here; Register only attaches the
// collectors to whatever prometheus.Registerer the host process owns.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every collector the Controller reports against.
type Registry struct {
	IterationsTotal    *prometheus.CounterVec
	IterationDuration  *prometheus.HistogramVec
	BestObjective      prometheus.Gauge
	DispatchRetries    *prometheus.CounterVec
}

// NewRegistry constructs the collectors, unregistered.
func NewRegistry() *Registry {
	return &Registry{
		IterationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "psuu",
			Name:      "iterations_total",
			Help:      "Total number of completed iterations by terminal status.",
		}, []string{"status"}),
		IterationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "psuu",
			Name:      "iteration_duration_seconds",
			Help:      "Per-iteration wall-clock duration, from proposal to recorded outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		BestObjective: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "psuu",
			Name:      "best_objective",
			Help:      "Current best objective value seen by the running Experiment.",
		}),
		DispatchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "psuu",
			Name:      "dispatch_retries_total",
			Help:      "Total number of Dispatcher retry attempts by error kind.",
		}, []string{"kind"}),
	}
}

// Register attaches every collector to reg. Safe to call once per Registry.
func (r *Registry) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{r.IterationsTotal, r.IterationDuration, r.BestObjective, r.DispatchRetries} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveIteration records one completed iteration's status and duration.
func (r *Registry) ObserveIteration(status string, elapsedSeconds float64) {
	r.IterationsTotal.WithLabelValues(status).Inc()
	r.IterationDuration.WithLabelValues(status).Observe(elapsedSeconds)
}

// ObserveRetry records one retry attempt against the given error kind.
func (r *Registry) ObserveRetry(kind string) {
	r.DispatchRetries.WithLabelValues(kind).Inc()
}

// SetBestObjective updates the current best-objective gauge.
func (r *Registry) SetBestObjective(value float64) {
	r.BestObjective.Set(value)
}
