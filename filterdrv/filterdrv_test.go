package filterdrv

import (
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

func growStep(x *mat.VecDense, t float64, ctx *enkf.Context) error {
	for i := 0; i < x.Len(); i++ {
		x.SetVec(i, x.AtVec(i)*1.01)
	}
	return nil
}

func TestPropagateAdvancesEveryColumn(t *testing.T) {
	assert := assert.New(t)
	e, err := enkf.New(mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}), 2)
	assert.NoError(err)

	ctx := &enkf.Context{FSteps: 2, H: 0.1, StepModel: growStep}
	err = Propagate(e, 0, ctx)
	assert.NoError(err)

	assert.InDelta(1*1.01*1.01, e.Raw().At(0, 0), 1e-9)
	for i, v := range []float64{1, 2, 3, 4, 5, 6} {
		assert.InDelta(v*1.01*1.01, e.Raw().At(i/3, i%3), 1e-9)
	}
}

func TestCycleRunsFullPipeline(t *testing.T) {
	assert := assert.New(t)
	src := rng.New(13)
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	samples, err := src.WithCovN(cov, 10)
	assert.NoError(err)
	e, err := enkf.New(samples, 2)
	assert.NoError(err)

	ctx := &enkf.Context{FSteps: 1, H: 0.1, StepModel: func(x *mat.VecDense, t float64, c *enkf.Context) error { return nil }}
	r, err := sqrtutil.NewUniform(1.0, 2)
	assert.NoError(err)
	y := mat.NewVecDense(2, []float64{0.1, -0.1})
	opt := transform.Options{H: identityObserve, Src: src}
	d := enkf.Descriptor{Family: enkf.FamilyETKF}

	cycler := NewCycler(nil)
	diag, err := cycler.Cycle(d, e, 0, y, r, 1.02, 1.0, ctx, opt)
	assert.NoError(err)
	assert.Equal(0, diag.Iterations)
}
