// Package rndorth implements the mean-preserving random orthogonal
// generator of spec.md §4.3: an N_ens x N_ens orthogonal U with
// U*1 = 1, used to randomize the ensemble-space rotation in every
// deterministic transform triple (T, w, U) without disturbing the
// ensemble mean.
//
// Grounded on kalman/ukf/ukf.go's habit of building block matrices
// around a factorization (there, a block-diagonal sigma-point
// covariance; here, a block-diagonal rotation) and on rand/rand.go's
// SVD-based sampling idiom, generalized to a QR-based construction
// since the embedding needs an orthonormal complement of 1/sqrt(n),
// not a covariance square root.
package rndorth

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
	"github.com/dabench/enkf/rng"
)

// Draw generates an n x n mean-preserving random orthogonal matrix.
// It returns a ConfigError if n < 2.
func Draw(n int, src *rng.Source) (*mat.Dense, error) {
	if n < 2 {
		return nil, enkf.NewConfigError(fmt.Sprintf("rndorth.Draw requires n >= 2, got %d", n), nil)
	}

	// Q: (n-1)x(n-1) orthogonal matrix from a standard-normal QR.
	raw := src.StdNormalDense(n-1, n-1)
	var qrQ mat.QR
	qrQ.Factorize(raw)
	q := new(mat.Dense)
	qrQ.QTo(q)

	// blockQ = blockdiag(1, Q), n x n.
	blockQ := mat.NewDense(n, n, nil)
	blockQ.Set(0, 0, 1)
	for i := 0; i < n-1; i++ {
		for j := 0; j < n-1; j++ {
			blockQ.Set(i+1, j+1, q.At(i, j))
		}
	}

	// B: orthonormal basis whose first column is 1/sqrt(n)*ones(n),
	// obtained by QR-decomposing a matrix with that vector as its
	// first column and the standard basis filling out the rest.
	basis := mat.NewDense(n, n, nil)
	invSqrtN := 1 / math.Sqrt(float64(n))
	for i := 0; i < n; i++ {
		basis.Set(i, 0, invSqrtN)
	}
	for j := 1; j < n; j++ {
		basis.Set(j-1, j, 1)
	}
	var qrB mat.QR
	qrB.Factorize(basis)
	b := new(mat.Dense)
	qrB.QTo(b)

	// gonum's QR does not guarantee the sign of each column; flip the
	// first column of B back to +1/sqrt(n) if the factorization negated
	// it, so B's first column is exactly the mean direction.
	if b.At(0, 0) < 0 {
		for i := 0; i < n; i++ {
			b.Set(i, 0, -b.At(i, 0))
		}
	}

	// U = B * blockQ * B^T
	tmp := new(mat.Dense)
	tmp.Mul(b, blockQ)
	u := new(mat.Dense)
	u.Mul(tmp, b.T())

	return u, nil
}
