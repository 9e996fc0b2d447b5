package daw

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
	"github.com/dabench/enkf/rng"
	"github.com/dabench/enkf/sqrtutil"
	"github.com/dabench/enkf/transform"
)

func identityObserve(e mat.Matrix) (*mat.Dense, error) {
	r, c := e.Dims()
	out := mat.NewDense(r, c, nil)
	out.Copy(e)
	return out, nil
}

func noopStep(x *mat.VecDense, t float64, ctx *enkf.Context) error { return nil }

func newTestEnsemble(t *testing.T, seed uint64, sysDim, nEns int) *enkf.Ensemble {
	t.Helper()
	src := rng.New(seed)
	cov := mat.NewSymDense(sysDim, nil)
	for i := 0; i < sysDim; i++ {
		cov.SetSym(i, i, 1)
	}
	samples, err := src.WithCovN(cov, nEns)
	assert.NoError(t, err)
	e, err := enkf.New(samples, sysDim)
	assert.NoError(t, err)
	return e
}

func TestClassicRunsShiftCyclesAndReanalyzesEarlierSlabs(t *testing.T) {
	assert := assert.New(t)
	sysDim, nEns, shift := 3, 8, 2
	e := newTestEnsemble(t, 1, sysDim, nEns)

	r, err := sqrtutil.NewUniform(1.0, sysDim)
	assert.NoError(err)
	src := rng.New(2)
	opt := transform.Options{H: identityObserve, Src: src}
	d := enkf.Descriptor{Family: enkf.FamilyETKF}
	ctx := &enkf.Context{FSteps: 1, H: 0.1, StepModel: noopStep}

	buf := NewBuffers(sysDim, nEns, shift, shift, shift+2)
	obs := mat.NewDense(sysDim, shift, []float64{
		0.1, 0.0, -0.1, 0.2, 0.0, 0.1,
	})

	driver := NewDriver(nil)
	cyc, err := driver.Classic(d, buf, e, 0, obs, r, 1.0, 1.0, ctx, opt)
	assert.NoError(err)
	assert.Equal(e, cyc.Ens)
	assert.Equal(shift, buf.PosteriorLen())
	assert.Equal(shift, buf.FilteredLen())
	assert.Equal(shift, buf.ForecastLen())
}

func TestSingleIterationResetsToReanalyzedE0AndPropagatesShift(t *testing.T) {
	assert := assert.New(t)
	sysDim, nEns, lag, shift := 2, 6, 4, 2
	e := newTestEnsemble(t, 3, sysDim, nEns)
	before := e.Clone()

	r, err := sqrtutil.NewUniform(1.0, sysDim)
	assert.NoError(err)
	src := rng.New(4)
	opt := transform.Options{H: identityObserve, Src: src}
	d := enkf.Descriptor{Family: enkf.FamilyETKF}
	ctx := &enkf.Context{FSteps: 1, H: 0.1, StepModel: noopStep}

	buf := NewBuffers(sysDim, nEns, lag, lag, shift)
	obsData := make([]float64, sysDim*lag)
	for i := range obsData {
		obsData[i] = 0.05
	}
	obs := mat.NewDense(sysDim, lag, obsData)

	driver := NewDriver(nil)
	cyc, err := driver.SingleIteration(d, buf, e, 0, obs, r, shift, 1.0, 1.0, ctx, opt)
	assert.NoError(err)
	assert.NotNil(cyc.Ens)
	assert.False(mat.Equal(before.Raw(), e.Raw()))
	assert.Equal(shift, buf.PosteriorLen())
}

func TestSingleIterationRejectsMalformedMDAWeights(t *testing.T) {
	assert := assert.New(t)
	sysDim, nEns, lag, shift := 2, 6, 3, 1
	e := newTestEnsemble(t, 5, sysDim, nEns)

	r, err := sqrtutil.NewUniform(1.0, sysDim)
	assert.NoError(err)
	src := rng.New(6)
	opt := transform.Options{H: identityObserve, Src: src}
	d := enkf.Descriptor{Family: enkf.FamilyETKF}
	ctx := &enkf.Context{
		FSteps: 1, H: 0.1, StepModel: noopStep,
		MDA:        true,
		RebWeights: []float64{1, 1, 1},
		ObsWeights: []float64{1, 1}, // wrong length
	}

	buf := NewBuffers(sysDim, nEns, lag, lag, shift)
	obs := mat.NewDense(sysDim, lag, make([]float64, sysDim*lag))

	driver := NewDriver(nil)
	_, err = driver.SingleIteration(d, buf, e, 0, obs, r, shift, 1.0, 1.0, ctx, opt)
	assert.Error(err)
}

func TestSingleIterationRunsTwoStageMDACycle(t *testing.T) {
	assert := assert.New(t)
	sysDim, nEns, lag, shift := 2, 6, 3, 1
	e := newTestEnsemble(t, 12, sysDim, nEns)

	r, err := sqrtutil.NewUniform(1.0, sysDim)
	assert.NoError(err)
	src := rng.New(13)
	opt := transform.Options{H: identityObserve, Src: src}
	d := enkf.Descriptor{Family: enkf.FamilyETKF}
	ctx := &enkf.Context{
		FSteps: 1, H: 0.1, StepModel: noopStep,
		MDA: true,
		// sum(1/weights) == lag == 3 for both passes, neither uniformly
		// 1 (so the MDA-scaled R actually differs from R each pass).
		RebWeights: []float64{2, 2, 0.5},
		ObsWeights: []float64{0.5, 2, 2},
	}

	buf := NewBuffers(sysDim, nEns, lag, lag, shift)
	obsData := make([]float64, sysDim*lag)
	for i := range obsData {
		obsData[i] = 0.05
	}
	obs := mat.NewDense(sysDim, lag, obsData)

	driver := NewDriver(nil)
	cyc, err := driver.SingleIteration(d, buf, e, 0, obs, r, shift, 1.0, 1.0, ctx, opt)
	assert.NoError(err)
	assert.NotNil(cyc.Ens)
	assert.Equal(shift, buf.PosteriorLen())
	for c := 0; c < e.NEns(); c++ {
		for rI := 0; rI < sysDim; rI++ {
			assert.False(math.IsNaN(e.Raw().At(rI, c)))
		}
	}
}

func TestGaussNewtonProducesFiniteWeightsOnLinearWindow(t *testing.T) {
	assert := assert.New(t)
	sysDim, nEns, lag, shift := 2, 8, 3, 1
	e := newTestEnsemble(t, 7, sysDim, nEns)

	r, err := sqrtutil.NewUniform(1.0, sysDim)
	assert.NoError(err)
	src := rng.New(8)
	opt := transform.Options{H: identityObserve, Src: src, MaxIter: 5, Tol: 1e-3}
	d := enkf.Descriptor{Family: enkf.FamilyIEnKS, Conditioning: enkf.Transform}
	ctx := &enkf.Context{FSteps: 1, H: 0.1, StepModel: noopStep}

	buf := NewBuffers(sysDim, nEns, lag+shift, shift, lag)
	obsData := make([]float64, sysDim*lag)
	for i := range obsData {
		obsData[i] = 0.02
	}
	obs := mat.NewDense(sysDim, lag, obsData)

	driver := NewDriver(nil)
	cyc, err := driver.GaussNewton(d, buf, e, 0, obs, r, shift, 1.0, 1.0, ctx, opt)
	assert.NoError(err)
	assert.True(cyc.Diagnostics.Iterations > 0)
	for c := 0; c < e.NEns(); c++ {
		for rI := 0; rI < sysDim; rI++ {
			assert.False(math.IsNaN(e.Raw().At(rI, c)))
		}
	}
}

func TestGaussNewtonBundleConditioningAlsoProducesValidCycle(t *testing.T) {
	assert := assert.New(t)
	sysDim, nEns, lag, shift := 2, 6, 2, 1
	e := newTestEnsemble(t, 9, sysDim, nEns)

	r, err := sqrtutil.NewUniform(1.0, sysDim)
	assert.NoError(err)
	src := rng.New(10)
	opt := transform.Options{H: identityObserve, Src: src, Eps: 1e-2}
	d := enkf.Descriptor{Family: enkf.FamilyIEnKS, Conditioning: enkf.Bundle}
	ctx := &enkf.Context{FSteps: 1, H: 0.1, StepModel: noopStep}

	buf := NewBuffers(sysDim, nEns, lag+shift, shift, lag)
	obs := mat.NewDense(sysDim, lag, []float64{0.01, 0.01, -0.01, -0.01})

	driver := NewDriver(nil)
	cyc, err := driver.GaussNewton(d, buf, e, 0, obs, r, shift, 1.0, 1.0, ctx, opt)
	assert.NoError(err)
	assert.NotNil(cyc)
}
