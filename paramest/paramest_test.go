package paramest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
	"github.com/dabench/enkf/rng"
)

func TestWalkIsNoopWithoutParams(t *testing.T) {
	assert := assert.New(t)
	e, err := enkf.New(mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}), 2)
	assert.NoError(err)
	before := e.Clone()

	err = Walk(e, 0.1, rng.New(1))
	assert.NoError(err)
	assert.True(mat.Equal(before.Raw(), e.Raw()))
}

func TestWalkPerturbsOnlyParamRows(t *testing.T) {
	assert := assert.New(t)
	e, err := enkf.New(mat.NewDense(3, 4, []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
		10, 10, 10, 10,
	}), 2)
	assert.NoError(err)
	before := e.Clone()

	err = Walk(e, 0.05, rng.New(7))
	assert.NoError(err)

	// state rows untouched
	for c := 0; c < 4; c++ {
		assert.InDelta(before.Raw().At(0, c), e.Raw().At(0, c), 1e-12)
		assert.InDelta(before.Raw().At(1, c), e.Raw().At(1, c), 1e-12)
	}
	// param row perturbed (with overwhelming probability)
	changed := false
	for c := 0; c < 4; c++ {
		if math.Abs(before.Raw().At(2, c)-e.Raw().At(2, c)) > 1e-12 {
			changed = true
		}
	}
	assert.True(changed)
}
