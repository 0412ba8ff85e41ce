package optimizer

import (
	"math/rand"

	"github.com/rororowyourboat/psuu/internal/paramspace"
)

// BayesianConfig configures the Bayesian optimizer (spec §4.4).
type BayesianConfig struct {
	NumIterations  int
	NInitialPoints int // default 5
	Seed           int64
	Acquisition    Acquisition // default EI
	CandidatePool  int         // candidates sampled per acquisition maximization; default 256
}

// DefaultBayesianConfig fills in the spec-mandated defaults for the fields
// left zero.
func DefaultBayesianConfig(cfg BayesianConfig) BayesianConfig {
	if cfg.NInitialPoints <= 0 {
		cfg.NInitialPoints = 5
	}
	if cfg.Acquisition == "" {
		cfg.Acquisition = ExpectedImprovement
	}
	if cfg.CandidatePool <= 0 {
		cfg.CandidatePool = 256
	}
	return cfg
}

type bayesObservation struct {
	x []float64
	y float64 // already in internal (minimize) space
}

// Bayesian implements the surrogate-driven optimizer: uniform random
// exploration for the first NInitialPoints proposals, then acquisition
// maximization over a GP fit on every observation received so far.
type Bayesian struct {
	space    *paramspace.Space
	cfg      BayesianConfig
	maximize bool
	rng      *rand.Rand

	proposed     int64
	pending      map[Handle]paramspace.Vector
	observations []bayesObservation
	tracker      *bestTracker
}

// NewBayesian builds a Bayesian optimizer bound to space, targeting
// maximize.
func NewBayesian(space *paramspace.Space, cfg BayesianConfig, maximize bool) *Bayesian {
	cfg = DefaultBayesianConfig(cfg)
	return &Bayesian{
		space:    space,
		cfg:      cfg,
		maximize: maximize,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		pending:  make(map[Handle]paramspace.Vector),
		tracker:  newBestTracker(maximize),
	}
}

func (b *Bayesian) Propose() (paramspace.Vector, Handle, bool) {
	if b.proposed >= int64(b.cfg.NumIterations) {
		return nil, 0, false
	}
	handle := Handle(b.proposed)
	b.proposed++

	// Wait-for-observations: never fit a surrogate with fewer than
	// NInitialPoints completed observations in, even if more than
	// NInitialPoints proposals have already gone out.
	var vec paramspace.Vector
	if len(b.observations) < b.cfg.NInitialPoints {
		vec = b.space.Sample(b.rng)
	} else if surrogateVec, ok := b.proposeSurrogate(); ok {
		vec = surrogateVec
	} else {
		vec = b.space.Sample(b.rng)
	}

	b.pending[handle] = vec
	return vec, handle, true
}

func (b *Bayesian) proposeSurrogate() (paramspace.Vector, bool) {
	x := make([][]float64, len(b.observations))
	y := make([]float64, len(b.observations))
	for i, o := range b.observations {
		x[i] = o.x
		y[i] = o.y
	}
	gp, err := fitGaussianProcess(x, y)
	if err != nil {
		return nil, false
	}

	bestY := y[0]
	for _, v := range y[1:] {
		if v < bestY {
			bestY = v
		}
	}

	var bestVec paramspace.Vector
	bestAcq := negInf
	for i := 0; i < b.cfg.CandidatePool; i++ {
		cand := b.space.Sample(b.rng)
		encoded, err := b.space.Encode(cand)
		if err != nil {
			continue
		}
		mean, std := gp.predict(encoded)
		acq := acquisitionValue(b.cfg.Acquisition, mean, std, bestY)
		if acq > bestAcq {
			bestAcq = acq
			bestVec = cand
		}
	}
	if bestVec == nil {
		return nil, false
	}
	return bestVec, true
}

const negInf = -1e308

// Observe records the objective (or a pessimistic sentinel on failure) for
// the surrogate, and updates Best for ok observations only.
func (b *Bayesian) Observe(handle Handle, objectiveValue float64, failed bool) {
	vec, ok := b.pending[handle]
	if !ok {
		return
	}
	delete(b.pending, handle)

	encoded, err := b.space.Encode(vec)
	if err != nil {
		return
	}

	if failed {
		b.observations = append(b.observations, bayesObservation{x: encoded, y: b.pessimisticInternal()})
		return
	}

	internalY := objectiveValue
	if b.maximize {
		internalY = -objectiveValue
	}
	b.observations = append(b.observations, bayesObservation{x: encoded, y: internalY})
	b.tracker.consider(int64(handle), vec, objectiveValue)
}

// pessimisticInternal returns the worst internal (minimize) objective
// observed so far plus a margin, so the surrogate learns to steer away
// from points that fail rather than treating them as missing data.
func (b *Bayesian) pessimisticInternal() float64 {
	if len(b.observations) == 0 {
		return 1.0
	}
	worst := b.observations[0].y
	for _, o := range b.observations[1:] {
		if o.y > worst {
			worst = o.y
		}
	}
	return worst + 1.0
}

func (b *Bayesian) Best() (paramspace.Vector, float64, bool) {
	return b.tracker.Best()
}

// observationCount exposes the number of recorded observations for unit
// tests verifying the wait-for-observations and pessimistic-sentinel
// invariants without reaching into optimizer internals from outside the
// package.
func (b *Bayesian) observationCount() int {
	return len(b.observations)
}
