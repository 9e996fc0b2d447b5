package noise

import "gonum.org/v1/gonum/mat"

// Sampler is the common shape of this package's noise sources.
// transform.Options.Perturb takes a Sampler so the stochastic EnKF
// kernel's perturbed-observation draw (spec.md §4.5.1) can be swapped
// from the default Gaussian(0, R) to a degenerate Zero source for
// deterministic-analog testing, without the kernel depending on the
// concrete noise type.
type Sampler interface {
	Sample() mat.Vector
	Cov() mat.Symmetric
	Mean() []float64
	Reset() error
}

var (
	_ Sampler = (*Gaussian)(nil)
	_ Sampler = (*Zero)(nil)
)
