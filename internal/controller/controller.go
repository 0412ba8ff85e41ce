// Package controller implements the Experiment Controller (spec §4.5): the
// worker pool that drives Propose/Observe against an Optimizer, dispatches
// each proposal through a Dispatcher with retry/jitter, reduces KPIs, and
// records outcomes to the Results Store and Progress Stream. Grounded on the
// teacher's worker-pool shape in internal/infrastructure/async/pool.go and
// pipeline.go: a fixed number of goroutines draining a shared unit of work
// under a context.Context, coordinated with a WaitGroup.
package controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rororowyourboat/psuu/internal/dispatch"
	"github.com/rororowyourboat/psuu/internal/kpi"
	"github.com/rororowyourboat/psuu/internal/metrics"
	"github.com/rororowyourboat/psuu/internal/optimizer"
	"github.com/rororowyourboat/psuu/internal/paramspace"
	"github.com/rororowyourboat/psuu/internal/progress"
	"github.com/rororowyourboat/psuu/internal/simresult"
	"github.com/rororowyourboat/psuu/internal/store"
)

// FinalResults is what Run returns once the Experiment stops, whether by
// exhausting its budget, the Optimizer signalling done, or cancellation.
type FinalResults struct {
	RunID          string
	BestParameters paramspace.Vector
	BestKPIs       map[string]float64
	BestObjective  float64
	HasBest        bool
	Iterations     int
	ElapsedSeconds float64
	Cancelled      bool
	Records        []store.IterationRecord
}

// Controller is one Experiment's worker pool plus its wired collaborators.
// Propose/Observe calls against Optimizer are always serialized through
// proposalMu, per spec §5 ("Propose and Observe are always invoked under a
// single logical lock per Experiment").
type Controller struct {
	space      *paramspace.Space
	aggregator *kpi.Aggregator
	optimizer  optimizer.Optimizer
	dispatcher dispatch.Dispatcher

	metrics      *metrics.Registry
	progress     *progress.Stream
	log          zerolog.Logger
	runID        string
	retryLimiter *rate.Limiter

	proposalMu  sync.Mutex
	stepCounter int64
	done        bool
}

// New builds a Controller from cfg. A default-sized Progress Stream is
// created if cfg.Progress is nil.
func New(cfg Config) (*Controller, error) {
	if cfg.Space == nil {
		return nil, fmt.Errorf("controller: Space is required")
	}
	if cfg.Aggregator == nil {
		return nil, fmt.Errorf("controller: Aggregator is required")
	}
	if cfg.Optimizer == nil {
		return nil, fmt.Errorf("controller: Optimizer is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("controller: Dispatcher is required")
	}
	if _, _, ok := cfg.Aggregator.Objective(); !ok {
		return nil, fmt.Errorf("controller: Aggregator has no objective set")
	}

	runID := cfg.RunID
	if runID == "" {
		runID = newRunID()
	}
	progressStream := cfg.Progress
	if progressStream == nil {
		progressStream = progress.NewStream(progress.DefaultBufferSize)
	}
	retryLimiter := cfg.RetryLimiter
	if retryLimiter == nil {
		retryLimiter = DefaultRetryLimiter()
	}

	return &Controller{
		space:        cfg.Space,
		aggregator:   cfg.Aggregator,
		optimizer:    cfg.Optimizer,
		dispatcher:   cfg.Dispatcher,
		metrics:      cfg.Metrics,
		progress:     progressStream,
		log:          cfg.Logger.With().Str("run_id", runID).Logger(),
		runID:        runID,
		retryLimiter: retryLimiter,
	}, nil
}

// Progress exposes the Progress Stream so callers can consume events while
// Run is in flight.
func (c *Controller) Progress() *progress.Stream { return c.progress }

// Run drives the Experiment to completion: a worker pool of cfg.Parallelism
// goroutines repeatedly propose, dispatch-with-retry, reduce KPIs, observe,
// and record, until the Optimizer's budget is exhausted, MaxIterations is
// reached, or ctx is cancelled.
func (c *Controller) Run(ctx context.Context, cfg RunConfig) (*FinalResults, error) {
	start := time.Now()

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	maxAttempts := cfg.RetryPolicy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	cfg.RetryPolicy.MaxAttempts = maxAttempts

	resultsStore := store.New()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < parallelism; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(runCtx, cfg, resultsStore)
		}()
	}
	wg.Wait()

	objectiveName, maximize, _ := c.aggregator.Objective()
	bestRec, hasBest := resultsStore.Best(maximize)

	final := &FinalResults{
		RunID:          c.runID,
		Iterations:     resultsStore.Len(),
		ElapsedSeconds: time.Since(start).Seconds(),
		Cancelled:      ctx.Err() != nil,
		Records:        resultsStore.All(),
		HasBest:        hasBest,
	}
	if hasBest {
		final.BestParameters = bestRec.Parameters
		final.BestKPIs = bestRec.KPIs
		final.BestObjective = bestRec.ObjectiveValue
		if c.metrics != nil {
			c.metrics.SetBestObjective(bestRec.ObjectiveValue)
		}
	}
	c.log.Info().
		Int("iterations", final.Iterations).
		Bool("cancelled", final.Cancelled).
		Bool("has_best", final.HasBest).
		Str("objective", objectiveName).
		Msg("experiment run complete")

	c.progress.EmitTerminal(progress.Event{
		Type:           progress.EventComplete,
		BestParameters: final.BestParameters,
		BestKPIs:       final.BestKPIs,
		Iterations:     final.Iterations,
		ElapsedSeconds: final.ElapsedSeconds,
		Cancelled:      final.Cancelled,
	})

	if cfg.SaveBasePath != "" {
		var bestPtr *store.IterationRecord
		if hasBest {
			bestPtr = &bestRec
		}
		if err := resultsStore.ExportAll(cfg.SaveBasePath, bestPtr); err != nil {
			return final, fmt.Errorf("controller: export results: %w", err)
		}
	}

	return final, nil
}

// worker is one goroutine's loop: propose, dispatch with retry, observe,
// record, repeat until the shared budget is exhausted or ctx is done.
func (c *Controller) worker(ctx context.Context, cfg RunConfig, resultsStore *store.Store) {
	for {
		vec, handle, step, ok := c.nextProposal(ctx, cfg.MaxIterations)
		if !ok {
			return
		}

		rec := c.runIteration(ctx, cfg, step, vec)

		c.proposalMu.Lock()
		c.optimizer.Observe(handle, rec.ObjectiveValue, rec.Status != store.StatusOK)
		c.proposalMu.Unlock()

		if err := resultsStore.Append(rec); err != nil {
			c.log.Error().Err(err).Int("step", step).Msg("failed to append iteration record")
		}
		if c.metrics != nil {
			c.metrics.ObserveIteration(string(rec.Status), float64(rec.ElapsedMs)/1000.0)
		}
		c.progress.Emit(progress.Event{
			Type:           progress.EventStep,
			Step:           rec.Step,
			Parameters:     rec.Parameters,
			KPIs:           rec.KPIs,
			ObjectiveValue: rec.ObjectiveValue,
			ElapsedMs:      rec.ElapsedMs,
			Status:         string(rec.Status),
		})
	}
}

// nextProposal serializes one Propose call and monotonic step assignment
// under proposalMu. ok is false once the budget is exhausted, the Optimizer
// is done, or ctx has already been cancelled — in every such case no further
// proposals are requested.
func (c *Controller) nextProposal(ctx context.Context, maxIterations int) (paramspace.Vector, optimizer.Handle, int, bool) {
	c.proposalMu.Lock()
	defer c.proposalMu.Unlock()

	if c.done {
		return nil, 0, 0, false
	}
	if ctx.Err() != nil {
		return nil, 0, 0, false
	}
	if maxIterations > 0 && c.stepCounter >= int64(maxIterations) {
		c.done = true
		return nil, 0, 0, false
	}

	vec, handle, ok := c.optimizer.Propose()
	if !ok {
		c.done = true
		return nil, 0, 0, false
	}

	c.stepCounter++
	step := int(c.stepCounter)
	return vec, handle, step, true
}

// runIteration drives the full per-iteration state machine: validate,
// dispatch with retry/jitter, reduce KPIs, extract the objective, and
// return the record to persist. It never returns an unrecorded outcome —
// even a cancelled in-flight iteration is recorded, satisfying the "no drop
// on in-flight" invariant (spec §8).
func (c *Controller) runIteration(ctx context.Context, cfg RunConfig, step int, vec paramspace.Vector) store.IterationRecord {
	iterStart := time.Now()
	rec := store.IterationRecord{Step: step, Parameters: vec}

	if errs := c.space.Validate(vec); len(errs) > 0 {
		rec.Status = store.StatusFailed
		rec.Error = fmt.Sprintf("validation-failed: %v", errs[0])
		rec.ObjectiveValue = math.NaN()
		rec.ElapsedMs = time.Since(iterStart).Milliseconds()
		return rec
	}

	result, attempts, lastErr := c.dispatchWithRetry(ctx, cfg, vec)
	rec.Attempts = attempts

	if lastErr != nil {
		kind := errorKind(lastErr)
		if kind == dispatch.Cancelled {
			rec.Status = store.StatusCancelled
			rec.Error = lastErr.Error()
			rec.ObjectiveValue = math.NaN()
			rec.ElapsedMs = time.Since(iterStart).Milliseconds()
			return rec
		}
		if cfg.RetryPolicy.OnError == OnErrorFallback && cfg.RetryPolicy.FallbackResult != nil {
			result = cfg.RetryPolicy.FallbackResult
		} else {
			rec.Status = store.StatusFailed
			rec.Error = lastErr.Error()
			rec.ObjectiveValue = math.NaN()
			rec.ElapsedMs = time.Since(iterStart).Milliseconds()
			return rec
		}
	}

	kpis, err := c.aggregator.Apply(result)
	if err != nil {
		rec.Status = store.StatusFailed
		rec.Error = fmt.Sprintf("kpi computation failed: %v", err)
		rec.ObjectiveValue = math.NaN()
		rec.ElapsedMs = time.Since(iterStart).Milliseconds()
		return rec
	}

	objective, err := c.aggregator.ObjectiveValue(kpis)
	if err != nil {
		if errors.Is(err, kpi.ErrKPIUnavailable) && cfg.RetryPolicy.OnError == OnErrorFallback && cfg.RetryPolicy.FallbackResult != nil {
			fallbackKPIs, fbErr := c.aggregator.Apply(cfg.RetryPolicy.FallbackResult)
			if fbErr == nil {
				if fbObjective, fbObjErr := c.aggregator.ObjectiveValue(fallbackKPIs); fbObjErr == nil {
					rec.Status = store.StatusOK
					rec.KPIs = fallbackKPIs
					rec.ObjectiveValue = fbObjective
					rec.ElapsedMs = time.Since(iterStart).Milliseconds()
					return rec
				}
			}
		}
		rec.Status = store.StatusFailed
		rec.Error = err.Error()
		rec.ObjectiveValue = math.NaN()
		rec.ElapsedMs = time.Since(iterStart).Milliseconds()
		return rec
	}

	rec.Status = store.StatusOK
	rec.KPIs = kpis
	rec.ObjectiveValue = objective
	rec.ElapsedMs = time.Since(iterStart).Milliseconds()
	return rec
}

// dispatchWithRetry re-attempts the Dispatcher call for retryable error
// kinds (jittering parameters per attempt) up to cfg.RetryPolicy.MaxAttempts.
// validation-failed, kpi-unavailable, and cancelled are never retried.
func (c *Controller) dispatchWithRetry(ctx context.Context, cfg RunConfig, vec paramspace.Vector) (*simresult.Result, int, error) {
	attemptVec := vec
	var lastErr error

	for attempt := 1; attempt <= cfg.RetryPolicy.MaxAttempts; attempt++ {
		callCtx := ctx
		var cancelCall context.CancelFunc
		if cfg.PerCallTimeout > 0 {
			callCtx, cancelCall = context.WithTimeout(ctx, cfg.PerCallTimeout)
		}
		result, err := c.dispatcher.Run(callCtx, attemptVec, attempt)
		if cancelCall != nil {
			cancelCall()
		}
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err

		kind := errorKind(err)
		if !kind.Retryable() {
			return nil, attempt, err
		}
		if attempt >= cfg.RetryPolicy.MaxAttempts {
			return nil, attempt, err
		}
		if waitErr := c.retryLimiter.Wait(ctx); waitErr != nil {
			return nil, attempt, err
		}
		if c.metrics != nil {
			c.metrics.ObserveRetry(string(kind))
		}
		attemptVec = dispatch.Jitter(c.space, vec, attempt+1)
	}
	return nil, cfg.RetryPolicy.MaxAttempts, lastErr
}

func errorKind(err error) dispatch.ErrorKind {
	var derr *dispatch.Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	return dispatch.ModelInternal
}
