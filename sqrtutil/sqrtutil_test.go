package sqrtutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestUniformRoundTrip(t *testing.T) {
	assert := assert.New(t)

	u, err := NewUniform(4.0, 3)
	assert.NoError(err)

	half, err := u.Half()
	assert.NoError(err)
	assert.InDelta(2.0, half.At(0, 0), 1e-12)

	inv, err := u.Inv()
	assert.NoError(err)
	assert.InDelta(0.25, inv.At(0, 0), 1e-12)
}

func TestUniformRejectsNonPositive(t *testing.T) {
	assert := assert.New(t)
	_, err := NewUniform(0, 3)
	assert.Error(err)
	_, err = NewUniform(-1, 3)
	assert.Error(err)
}

func TestDiagonalRoundTrip(t *testing.T) {
	assert := assert.New(t)
	d, err := NewDiagonal([]float64{1, 4, 9})
	assert.NoError(err)

	half, err := d.Half()
	assert.NoError(err)
	assert.InDelta(2.0, half.At(1, 1), 1e-12)

	invHalf, err := d.InvHalf()
	assert.NoError(err)
	assert.InDelta(1.0/3.0, invHalf.At(2, 2), 1e-12)
}

func TestSymmetricRoundTripIsIdentity(t *testing.T) {
	assert := assert.New(t)

	m := mat.NewSymDense(3, []float64{
		4, 1, 0,
		1, 3, 0.5,
		0, 0.5, 2,
	})
	s, err := NewSymmetric(m)
	assert.NoError(err)

	invHalf, err := s.InvHalf()
	assert.NoError(err)

	// (M^-1/2) * M * (M^-1/2)^T ~= I
	tmp := new(mat.Dense)
	tmp.Mul(invHalf, m)
	result := new(mat.Dense)
	result.Mul(tmp, invHalf.T())

	n, _ := result.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.InDelta(want, result.At(i, j), 1e-8)
		}
	}
}

func TestSymmetricCachesFactorization(t *testing.T) {
	assert := assert.New(t)
	m := mat.NewSymDense(2, []float64{2, 0, 0, 2})
	s, err := NewSymmetric(m)
	assert.NoError(err)

	_, err = s.Half()
	assert.NoError(err)
	assert.True(s.svdDone)

	inv, err := s.Inv()
	assert.NoError(err)
	assert.InDelta(0.5, inv.At(0, 0), 1e-12)
	assert.InDelta(math.Sqrt(2), mustHalf(t, s).At(0, 0), 1e-12)
}

func mustHalf(t *testing.T, s *Symmetric) mat.Matrix {
	t.Helper()
	h, err := s.Half()
	if err != nil {
		t.Fatal(err)
	}
	return h
}
