// Package ensemble implements the ensemble construction and analysis
// update of spec.md §4.6: draw an initial ensemble from a Gaussian
// prior, and apply a transform produced by package transform to
// replace the prior ensemble with its analysis.
//
// Grounded on kalman/kf/kf.go's update step, which this package
// generalizes from a single state vector + covariance to a full
// N_ens-member matrix, and on rng.Source.WithCovN for the initial
// draw.
package ensemble

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
	"github.com/dabench/enkf/rng"
)

// New draws an N_ens-member ensemble around mean from covariance cov,
// with the leading stateDim rows treated as dynamical state.
func New(mean *mat.VecDense, cov mat.Symmetric, nEns int, stateDim int, src *rng.Source) (*enkf.Ensemble, error) {
	samples, err := src.WithCovN(cov, nEns)
	if err != nil {
		return nil, enkf.NewNumericFailure("failed to sample initial ensemble", err)
	}
	rows, cols := samples.Dims()
	e := mat.NewDense(rows, cols, nil)
	for c := 0; c < cols; c++ {
		col := mat.NewVecDense(rows, nil)
		col.CopyVec(samples.ColView(c))
		col.AddVec(col, mean)
		e.SetCol(c, col.RawVector().Data)
	}
	return enkf.New(e, stateDim)
}

// Update replaces e's contents with its analysis under transform t, in
// place, per spec.md §4.6:
//
//	Gamma:  E <- E * M
//	Triple: E <- mean(E)*1^T + X*(w*1^T + T*U*sqrt(N_ens-1))
//
// where X is e's pre-update anomaly matrix.
func Update(e *enkf.Ensemble, t enkf.Transform) error {
	switch tr := t.(type) {
	case enkf.Gamma:
		return updateGamma(e, tr)
	case enkf.Triple:
		return updateTriple(e, tr)
	default:
		return enkf.NewConfigError(fmt.Sprintf("unsupported transform type %T", t), nil)
	}
}

func updateGamma(e *enkf.Ensemble, g enkf.Gamma) error {
	n := e.NEns()
	mr, mc := g.M.Dims()
	if mr != n || mc != n {
		return enkf.NewConfigError(fmt.Sprintf("gamma transform must be %dx%d, got %dx%d", n, n, mr, mc), nil)
	}
	out := new(mat.Dense)
	out.Mul(e.Raw(), g.M)
	e.Raw().Copy(out)
	return nil
}

func updateTriple(e *enkf.Ensemble, tr enkf.Triple) error {
	n := e.NEns()
	if tr.W.Len() != n {
		return enkf.NewConfigError(fmt.Sprintf("transform weight vector must have length %d, got %d", n, tr.W.Len()), nil)
	}
	if r, c := tr.U.Dims(); r != n || c != n {
		return enkf.NewConfigError(fmt.Sprintf("transform rotation must be %dx%d, got %dx%d", n, n, r, c), nil)
	}
	if tr.T.SymmetricDim() != n {
		return enkf.NewConfigError(fmt.Sprintf("transform matrix must be %dx%d", n, n), nil)
	}

	mean := e.Mean()
	x := e.Anomalies()

	// W = w*1^T + T*U*sqrt(N_ens-1), an n x n matrix whose columns are
	// the per-member combination weights.
	tu := new(mat.Dense)
	tu.Mul(tr.T, tr.U)
	scale := math.Sqrt(float64(n - 1))
	tu.Scale(scale, tu)

	weights := mat.NewDense(n, n, nil)
	for col := 0; col < n; col++ {
		for row := 0; row < n; row++ {
			weights.Set(row, col, tr.W.AtVec(row)+tu.At(row, col))
		}
	}

	update := new(mat.Dense)
	update.Mul(x, weights)

	rows, cols := e.Raw().Dims()
	out := mat.NewDense(rows, cols, nil)
	for c := 0; c < cols; c++ {
		col := mat.NewVecDense(rows, nil)
		col.CopyVec(update.ColView(c))
		col.AddVec(col, mean)
		out.SetCol(c, col.RawVector().Data)
	}
	e.Raw().Copy(out)
	return nil
}
