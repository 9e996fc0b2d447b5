package rndorth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf/rng"
)

func TestDrawIsMeanPreservingAndOrthogonal(t *testing.T) {
	assert := assert.New(t)
	src := rng.New(11)

	for _, n := range []int{2, 3, 5, 10, 21} {
		u, err := Draw(n, src)
		assert.NoError(err)

		ones := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			ones.SetVec(i, 1)
		}
		res := mat.NewVecDense(n, nil)
		res.MulVec(u, ones)
		for i := 0; i < n; i++ {
			assert.InDelta(1.0, res.AtVec(i), 1e-8, "n=%d", n)
		}

		utu := new(mat.Dense)
		utu.Mul(u.T(), u)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				want := 0.0
				if i == j {
					want = 1.0
				}
				assert.InDelta(want, utu.At(i, j), 1e-8, "n=%d i=%d j=%d", n, i, j)
			}
		}
	}
}

func TestDrawRejectsTooSmallN(t *testing.T) {
	assert := assert.New(t)
	src := rng.New(1)
	_, err := Draw(1, src)
	assert.Error(err)
}
