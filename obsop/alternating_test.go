package obsop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestNewRejectsZeroObsDim(t *testing.T) {
	assert := assert.New(t)
	_, err := New(10, 0, 1)
	assert.Error(err)
}

func TestNewRejectsObsDimExceedsStateDim(t *testing.T) {
	assert := assert.New(t)
	_, err := New(10, 11, 1)
	assert.Error(err)
}

func TestIdentityWhenObsDimEqualsStateDim(t *testing.T) {
	assert := assert.New(t)
	a, err := New(5, 5, 1)
	assert.NoError(err)
	rows, err := a.Rows()
	assert.NoError(err)
	assert.Equal([]int{0, 1, 2, 3, 4}, rows)
}

func TestHalfRatioKeepsOddRows(t *testing.T) {
	assert := assert.New(t)
	a, err := New(8, 4, 1)
	assert.NoError(err)
	rows, err := a.Rows()
	assert.NoError(err)
	assert.Equal([]int{0, 2, 4, 6}, rows)
}

func TestLessThanHalfTruncatesOddRows(t *testing.T) {
	assert := assert.New(t)
	a, err := New(10, 3, 1)
	assert.NoError(err)
	rows, err := a.Rows()
	assert.NoError(err)
	assert.Equal([]int{0, 2, 4}, rows)
}

func TestMoreThanHalfKeepsPrefixThenEverySecond(t *testing.T) {
	assert := assert.New(t)
	// state_dim=10, obs_dim=8 => R=2, firstCount=6
	a, err := New(10, 8, 1)
	assert.NoError(err)
	rows, err := a.Rows()
	assert.NoError(err)
	assert.Equal([]int{0, 1, 2, 3, 4, 5, 7, 9}, rows)
}

func TestObserveAppliesGammaAndRestriction(t *testing.T) {
	assert := assert.New(t)
	a, err := New(4, 2, 1)
	assert.NoError(err)

	e := mat.NewDense(4, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
		7, 8,
	})
	obs, err := a.Observe(e)
	assert.NoError(err)
	r, c := obs.Dims()
	assert.Equal(2, r)
	assert.Equal(2, c)
	assert.Equal(1.0, obs.At(0, 0))
	assert.Equal(5.0, obs.At(1, 0))
}

func TestApplyGammaBoundaries(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(2.0, applyGamma(2.0, 1))
	assert.InDelta(0.05*4, applyGamma(2.0, 0), 1e-12)
	assert.Greater(applyGamma(2.0, 3), 0.0)
	assert.Greater(applyGamma(2.0, -1), 0.0)
}

func TestRowsFor40Table(t *testing.T) {
	assert := assert.New(t)
	for stateDim := 1; stateDim <= 40; stateDim++ {
		for obsDim := 1; obsDim <= stateDim; obsDim++ {
			rows, err := selectedRows(stateDim, obsDim)
			assert.NoError(err)
			assert.Len(rows, obsDim)
			for _, r := range rows {
				assert.GreaterOrEqual(r, 0)
				assert.Less(r, stateDim)
			}
		}
	}
}
