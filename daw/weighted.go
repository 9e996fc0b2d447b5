package daw

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
	"github.com/dabench/enkf/sqrtutil"
)

// scaledCov returns R scaled by factor, R*factor, for MDA tempering
// (spec.md §4.8's "R*w_l^reb"/"R*w_l^mda" scaling). A factor of 1
// returns r unchanged; any other factor goes through
// sqrtutil.Symmetric rather than preserving r's concrete shape,
// trading the Uniform/Diagonal fast path for a single implementation
// that works for any ObsCov.
func scaledCov(r enkf.ObsCov, factor float64) (enkf.ObsCov, error) {
	if factor == 1 {
		return r, nil
	}
	n := r.Dim()
	dense := r.Dense()
	scaled := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			scaled.SetSym(i, j, dense.At(i, j)*factor)
		}
	}
	return sqrtutil.NewSymmetric(scaled)
}

// validateMDAWeights checks spec.md §8's boundary condition: MDA
// weights sum to lag within tolerance, via sum(1/weights) == lag.
func validateMDAWeights(weights []float64, lag int) error {
	if len(weights) != lag {
		return enkf.NewConfigError("mda weights length must equal lag", nil)
	}
	sum := 0.0
	for _, w := range weights {
		if w <= 0 {
			return enkf.NewConfigError("mda weights must be positive", nil)
		}
		sum += 1 / w
	}
	if math.Abs(sum-float64(lag)) > 1e-6*float64(lag) {
		return enkf.NewConfigError("mda weights must satisfy sum(1/weight) == lag", nil)
	}
	return nil
}
