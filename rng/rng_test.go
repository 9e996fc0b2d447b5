package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestDeterministic(t *testing.T) {
	assert := assert.New(t)

	a := New(42)
	b := New(42)

	for i := 0; i < 10; i++ {
		assert.Equal(a.StdNormal(), b.StdNormal())
	}
}

func TestWithCovN(t *testing.T) {
	assert := assert.New(t)

	s := New(7)
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})

	_, err := s.WithCovN(cov, -1)
	assert.Error(err)

	samples, err := s.WithCovN(cov, 50)
	assert.NoError(err)
	r, c := samples.Dims()
	assert.Equal(2, r)
	assert.Equal(50, c)
}
