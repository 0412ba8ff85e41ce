package dispatch

import (
	"math"
	"math/rand"

	"github.com/rororowyourboat/psuu/internal/paramspace"
)

// Jitter produces a perturbed vector with up to ±1% multiplicative noise on
// numeric (continuous/integer) values, seeded deterministically by attempt
// number; categorical values pass through untouched. Used by the Controller
// on every re-attempt of a retryable failure, whatever the onError policy
// (spec §4.3/§4.5).
func Jitter(space *paramspace.Space, vec paramspace.Vector, attempt int) paramspace.Vector {
	rng := rand.New(rand.NewSource(int64(attempt)))
	out := make(paramspace.Vector, len(vec))
	for _, name := range space.Names() {
		spec, ok := space.Spec(name)
		val := vec[name]
		if !ok {
			out[name] = val
			continue
		}
		switch spec.Kind {
		case paramspace.Continuous, paramspace.Integer:
			f, isFloat := val.(float64)
			if !isFloat {
				out[name] = val
				continue
			}
			noise := 1.0 + (rng.Float64()*2-1)*0.01
			perturbed := f * noise
			if spec.Kind == paramspace.Integer {
				perturbed = math.RoundToEven(perturbed)
			}
			if perturbed < spec.Min {
				perturbed = spec.Min
			}
			if perturbed > spec.Max {
				perturbed = spec.Max
			}
			out[name] = perturbed
		default:
			out[name] = val
		}
	}
	return out
}
