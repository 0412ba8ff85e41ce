package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegister_AttachesAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	m.ObserveIteration("ok", 0.25)
	m.ObserveRetry("timeout")
	m.SetBestObjective(42.0)

	if got := testutil.ToFloat64(m.IterationsTotal.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected iterations_total{status=ok}=1, got %v", got)
	}
	if got := testutil.ToFloat64(m.DispatchRetries.WithLabelValues("timeout")); got != 1 {
		t.Fatalf("expected dispatch_retries_total{kind=timeout}=1, got %v", got)
	}
	if got := testutil.ToFloat64(m.BestObjective); got != 42.0 {
		t.Fatalf("expected best_objective=42, got %v", got)
	}
}
