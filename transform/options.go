// Package transform implements the analysis-kernel engine of spec.md
// §4.5: the stochastic EnKF, deterministic ETKF, MLEF/MLES Newton and
// line-search linearization, finite-size EnKF-N dual/primal
// minimization, and the sequential IEnKS gradient/Hessian
// accumulation consumed by the smoother driver.
//
// Grounded on kalman/kf/kf.go's Predict/Update split (propagate, then
// correct from a Kalman-gain-shaped linear solve) and on
// kalman/kalman.go's filter.Noise/filter.DiscreteModel style of taking
// collaborators as interfaces rather than concrete types.
package transform

import (
	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf/noise"
	"github.com/dabench/enkf/rng"
)

// ObsOperator applies the (possibly nonlinear) observation operator to
// an ensemble-shaped matrix, returning an obs_dim x N_ens matrix. It
// matches the method value of *obsop.Alternating.Observe; kernels
// depend on this function type rather than the concrete obsop package
// so they can be exercised with synthetic linear operators in tests.
type ObsOperator func(e mat.Matrix) (*mat.Dense, error)

// Options carries the numeric knobs spec.md §6's ctx exposes to the
// analysis-kernel interface: the observation operator, the RNG source
// used for rndorth draws and stochastic perturbations, and the
// MLEF/IEnKS Newton-loop controls.
type Options struct {
	// H is the observation operator collaborator.
	H ObsOperator
	// Src is the seeded RNG source for this cycle.
	Src *rng.Source

	// Perturb is the noise source stochastic EnKF (spec.md §4.5.1)
	// draws perturbed observations from. Nil defaults to a fresh
	// zero-mean Gaussian(R) built from Src for each call; pass a
	// noise.Zero to get the deterministic-analog variant with no
	// observation perturbation.
	Perturb noise.Sampler

	// Eps is the bundle-conditioning epsilon (T = eps*I, Tinv =
	// (1/eps)*I) for MLEF/IEnKS in bundle form. Defaults to 1e-3 if
	// zero.
	Eps float64
	// Tol is the Newton/Gauss-Newton convergence tolerance on
	// ||delta w||. Defaults to 1e-3 if zero.
	Tol float64
	// MaxIter is the iteration cap before a DivergenceError is
	// returned alongside the last iterate. Defaults to 40 for MLEF and
	// the EnKF-N primal form (spec.md §4.5.3's j_max) if zero; the daw
	// Gauss-Newton smoother defaults to 5 if zero (spec.md §4.8's
	// max_iter).
	MaxIter int
}

func (o Options) eps() float64 {
	if o.Eps == 0 {
		return 1e-3
	}
	return o.Eps
}

func (o Options) tol() float64 {
	if o.Tol == 0 {
		return 1e-3
	}
	return o.Tol
}

func (o Options) maxIter(def int) int {
	if o.MaxIter == 0 {
		return def
	}
	return o.MaxIter
}

// Diagnostics reports iteration counts and non-fatal divergence from
// the iterative kernels (MLEF, EnKF-N primal, IEnKS), per spec.md §7's
// "iteration caps are reported but treated as nominal outputs".
type Diagnostics struct {
	Iterations int
	// Divergence is set (non-nil) when the kernel hit MaxIter without
	// reaching Tol. It is not returned as the function's error: spec.md
	// §7 treats this case as a nominal output carrying a diagnostic.
	Divergence error
	// Zeta is the EnKF-N dual/adaptive-inflation scalar, set only by
	// the EnKF-N dual form.
	Zeta float64
}
