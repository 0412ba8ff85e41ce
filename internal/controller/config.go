package controller

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rororowyourboat/psuu/internal/dispatch"
	"github.com/rororowyourboat/psuu/internal/kpi"
	"github.com/rororowyourboat/psuu/internal/metrics"
	"github.com/rororowyourboat/psuu/internal/optimizer"
	"github.com/rororowyourboat/psuu/internal/paramspace"
	"github.com/rororowyourboat/psuu/internal/progress"
	"github.com/rororowyourboat/psuu/internal/simresult"
)

// OnError selects what the Controller does once an iteration's retry
// attempts are exhausted (spec §4.5).
type OnError string

const (
	// OnErrorRaise surfaces the last error and records the iteration failed.
	OnErrorRaise OnError = "raise"
	// OnErrorRetry is semantically identical to Raise at exhaustion; the
	// actual re-attempting (with jittered parameters) already happens for
	// every retryable error kind regardless of OnError, up to MaxAttempts.
	// Retry exists as its own policy value because spec.md names it
	// explicitly, distinct from the terminal "give up" semantics of Raise.
	OnErrorRetry OnError = "retry"
	// OnErrorFallback substitutes RetryPolicy.FallbackResult once attempts
	// are exhausted, recomputing KPIs through the Aggregator instead of
	// recording the iteration as failed.
	OnErrorFallback OnError = "fallback"
)

// RetryPolicy governs how the Controller reacts to a failing iteration.
type RetryPolicy struct {
	MaxAttempts int
	OnError     OnError
	// FallbackResult is used verbatim (KPIs recomputed by the Aggregator)
	// when OnError is OnErrorFallback and every attempt has failed.
	FallbackResult *simresult.Result
}

// Config wires every collaborator one Experiment run needs. Built in code —
// parsing a config file is the outer cmd/psuu CLI's job, not the
// Controller's (spec §1).
type Config struct {
	Space      *paramspace.Space
	Aggregator *kpi.Aggregator
	Optimizer  optimizer.Optimizer
	Dispatcher dispatch.Dispatcher

	Metrics  *metrics.Registry  // optional
	Progress *progress.Stream   // optional; a default-sized one is created if nil
	Logger   zerolog.Logger

	RunID string // defaults to a freshly generated UUID if empty

	// RetryLimiter throttles retry attempts across every worker in the pool,
	// so a burst of simultaneous transient failures does not hammer the
	// Dispatcher in a tight loop. Defaults to DefaultRetryLimiter() if nil.
	RetryLimiter *rate.Limiter
}

// DefaultRetryLimiter returns the Controller's default retry back-pressure:
// at most 10 retry attempts per second across the whole worker pool, with a
// burst of 3 to tolerate a handful of simultaneous failures.
func DefaultRetryLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(10), 3)
}

// RunConfig governs one Run call: iteration budget, parallelism, timeouts,
// retry behavior and where to persist results.
type RunConfig struct {
	MaxIterations  int
	Parallelism    int // default 1
	PerCallTimeout time.Duration
	RetryPolicy    RetryPolicy
	SaveBasePath   string // if non-empty, Run exports the three result files
}

func newRunID() string {
	return uuid.NewString()
}
