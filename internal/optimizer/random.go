package optimizer

import (
	"math/rand"

	"github.com/rororowyourboat/psuu/internal/paramspace"
)

// RandomConfig configures the random optimizer.
type RandomConfig struct {
	NumIterations int
	Seed          int64
}

// Random samples the space uniformly and independently per dimension,
// deterministic given Seed and Propose call order (spec §4.4).
type Random struct {
	space   *paramspace.Space
	cfg     RandomConfig
	rng     *rand.Rand
	count   int
	pending map[Handle]paramspace.Vector
	tracker *bestTracker
}

// NewRandom builds a Random optimizer bound to space, targeting maximize.
func NewRandom(space *paramspace.Space, cfg RandomConfig, maximize bool) *Random {
	return &Random{
		space:   space,
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		pending: make(map[Handle]paramspace.Vector),
		tracker: newBestTracker(maximize),
	}
}

func (r *Random) Propose() (paramspace.Vector, Handle, bool) {
	if r.count >= r.cfg.NumIterations {
		return nil, 0, false
	}
	vec := r.space.Sample(r.rng)
	handle := Handle(r.count)
	r.pending[handle] = vec
	r.count++
	return vec, handle, true
}

func (r *Random) Observe(handle Handle, objectiveValue float64, failed bool) {
	vec, ok := r.pending[handle]
	if !ok {
		return
	}
	delete(r.pending, handle)
	if failed {
		return
	}
	r.tracker.consider(int64(handle), vec, objectiveValue)
}

func (r *Random) Best() (paramspace.Vector, float64, bool) {
	return r.tracker.Best()
}
