// Package paramest implements the parameter-estimation extension of
// spec.md §4.9: after each analysis cycle, perturb the trailing
// parameter sub-ensemble by a random walk scaled by the parameters'
// own current mean magnitude.
//
// Grounded on noise/gaussian.go's Gaussian sampler, reused here as the
// N(0, I) source for the walk instead of a hand-rolled sampling loop.
package paramest

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
	"github.com/dabench/enkf/noise"
	"github.com/dabench/enkf/rng"
)

// Walk perturbs e's parameter rows by wlk * mean(|params|) * N(0, I),
// per spec.md §4.9. It is a no-op if e has no active parameter rows.
func Walk(e *enkf.Ensemble, wlk float64, src *rng.Source) error {
	if !e.HasParams() {
		return nil
	}

	paramDim := e.SysDim() - e.StateDim()
	mean := e.Mean()

	magnitude := 0.0
	for i := e.StateDim(); i < e.SysDim(); i++ {
		magnitude += math.Abs(mean.AtVec(i))
	}
	magnitude /= float64(paramDim)

	cov := mat.NewSymDense(paramDim, nil)
	for i := 0; i < paramDim; i++ {
		cov.SetSym(i, i, 1)
	}
	g, err := noise.NewGaussian(make([]float64, paramDim), cov, src)
	if err != nil {
		return enkf.NewNumericFailure("failed to build parameter random-walk noise", err)
	}

	raw := e.Raw()
	_, cols := raw.Dims()
	scale := wlk * magnitude
	for c := 0; c < cols; c++ {
		sample := g.Sample()
		for i := 0; i < paramDim; i++ {
			row := e.StateDim() + i
			raw.Set(row, c, raw.At(row, c)+scale*sample.AtVec(i))
		}
	}

	return nil
}
