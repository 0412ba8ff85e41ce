package paramspace

import "math/rand"

// Sample draws one vector uniformly at random from the space: continuous
// dimensions uniform over [min, max], integers uniform over the admissible
// integers, categoricals uniform over the category list. Grounded on the
// teacher's RandGen-driven GenerateRandomValidWeights sampling.
func (sp *Space) Sample(rng *rand.Rand) Vector {
	out := make(Vector, len(sp.order))
	for _, name := range sp.order {
		spec := sp.specs[name]
		switch spec.Kind {
		case Continuous:
			out[name] = spec.Min + rng.Float64()*(spec.Max-spec.Min)
		case Integer:
			width := spec.IntegerWidth()
			out[name] = spec.Min + float64(rng.Intn(width))
		case Categorical:
			out[name] = spec.Categories[rng.Intn(len(spec.Categories))]
		}
	}
	return out
}
