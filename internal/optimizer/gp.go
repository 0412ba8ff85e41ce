package optimizer

import "math"

// gaussianProcess is the pluggable surrogate strategy behind the Bayesian
// optimizer: a zero-mean GP with an RBF kernel, fit by direct covariance
// inversion. Kept self-contained (no external linear-algebra/GP package is
// wired — see DESIGN.md) so the acquisition loop stays swappable per spec
// §4.4/§9 without baking in a specific numerical library.
type gaussianProcess struct {
	x           [][]float64
	kInv        [][]float64
	alpha       []float64
	lengthscale float64
	signalVar   float64
	noiseVar    float64
}

const (
	defaultLengthscale = 1.0
	defaultSignalVar   = 1.0
	defaultNoiseVar    = 1e-4
)

// fitGaussianProcess returns an error if the kernel matrix is singular. An
// empty training set yields a GP whose predictions are the prior (mean 0,
// variance signalVar).
func fitGaussianProcess(x [][]float64, y []float64) (*gaussianProcess, error) {
	n := len(x)
	k := make([][]float64, n)
	for i := 0; i < n; i++ {
		k[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			k[i][j] = rbfKernel(x[i], x[j], defaultLengthscale, defaultSignalVar)
			if i == j {
				k[i][j] += defaultNoiseVar
			}
		}
	}
	kInv, err := invertMatrix(k)
	if err != nil {
		return nil, err
	}
	alpha := matVec(kInv, y)
	return &gaussianProcess{
		x:           x,
		kInv:        kInv,
		alpha:       alpha,
		lengthscale: defaultLengthscale,
		signalVar:   defaultSignalVar,
		noiseVar:    defaultNoiseVar,
	}, nil
}

// predict returns the posterior mean and standard deviation of f at x.
func (gp *gaussianProcess) predict(x []float64) (mean, std float64) {
	n := len(gp.x)
	kStar := make([]float64, n)
	for i := range gp.x {
		kStar[i] = rbfKernel(gp.x[i], x, gp.lengthscale, gp.signalVar)
	}
	mean = dot(kStar, gp.alpha)

	kInvKStar := matVec(gp.kInv, kStar)
	variance := gp.signalVar - dot(kStar, kInvKStar)
	if variance < 1e-9 {
		variance = 1e-9
	}
	std = math.Sqrt(variance)
	return mean, std
}

func rbfKernel(a, b []float64, lengthscale, signalVar float64) float64 {
	var sumSq float64
	for i := range a {
		d := a[i] - b[i]
		sumSq += d * d
	}
	return signalVar * math.Exp(-sumSq/(2*lengthscale*lengthscale))
}
