package transform

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
)

// colMean returns the column-wise (ensemble) mean of m as a row-dim
// vector.
func colMean(m *mat.Dense) *mat.VecDense {
	rows, cols := m.Dims()
	mean := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		sum := 0.0
		for c := 0; c < cols; c++ {
			sum += m.At(r, c)
		}
		mean.SetVec(r, sum/float64(cols))
	}
	return mean
}

// broadcastSub returns m with v subtracted from every column.
func broadcastSub(m *mat.Dense, v *mat.VecDense) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for c := 0; c < cols; c++ {
		col := mat.NewVecDense(rows, nil)
		col.CopyVec(m.ColView(c))
		col.SubVec(col, v)
		out.SetCol(c, col.RawVector().Data)
	}
	return out
}

// broadcastAdd returns m with v added to every column.
func broadcastAdd(m *mat.Dense, v *mat.VecDense) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for c := 0; c < cols; c++ {
		col := mat.NewVecDense(rows, nil)
		col.CopyVec(m.ColView(c))
		col.AddVec(col, v)
		out.SetCol(c, col.RawVector().Data)
	}
	return out
}

// broadcastVec replicates v across n columns.
func broadcastVec(v *mat.VecDense, n int) *mat.Dense {
	rows := v.Len()
	out := mat.NewDense(rows, n, nil)
	for c := 0; c < n; c++ {
		out.SetCol(c, v.RawVector().Data)
	}
	return out
}

// scaleDense scales every entry of m by s, returning a new matrix.
func scaleDense(m *mat.Dense, s float64) *mat.Dense {
	out := new(mat.Dense)
	out.Scale(s, m)
	return out
}

func identitySym(n int) *mat.SymDense {
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		s.SetSym(i, i, 1)
	}
	return s
}

func identityDense(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}

// symmetrize averages m[i][j] and m[j][i] into a SymDense, canceling
// asymmetric floating-point noise from repeated matrix products.
func symmetrize(m *mat.Dense, n int) *mat.SymDense {
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (m.At(i, j) + m.At(j, i)) / 2
			sym.SetSym(i, j, v)
		}
	}
	return sym
}

// sqrtAndInv factorizes the symmetric positive-definite hw via a
// single SVD and returns (hw^(-1/2), hw^-1), per spec.md §4.5.2's
// "simultaneously compute T = H_w^(-1/2) and H_w^-1 from a single
// SVD". Grounded on sqrtutil.Symmetric's synthesize, inlined here
// because hw is a per-call local matrix rather than a long-lived
// ObsCov.
func sqrtAndInv(hw *mat.SymDense) (sqrtInv *mat.SymDense, inv *mat.SymDense, err error) {
	n := hw.SymmetricDim()
	var svd mat.SVD
	if ok := svd.Factorize(hw, mat.SVDFull); !ok {
		return nil, nil, enkf.NewNumericFailure("SVD factorization of Hessian failed", nil)
	}
	u := new(mat.Dense)
	svd.UTo(u)
	vals := svd.Values(nil)

	sqrtInvVals := make([]float64, n)
	invVals := make([]float64, n)
	for i, v := range vals {
		if v <= 0 {
			return nil, nil, enkf.NewNumericFailure("Hessian is not positive-definite", nil)
		}
		sqrtInvVals[i] = 1 / math.Sqrt(v)
		invVals[i] = 1 / v
	}

	sqrtInv = synthesizeFromU(u, sqrtInvVals, n)
	inv = synthesizeFromU(u, invVals, n)
	return sqrtInv, inv, nil
}

func synthesizeFromU(u *mat.Dense, vals []float64, n int) *mat.SymDense {
	diag := mat.NewDiagDense(len(vals), vals)
	tmp := new(mat.Dense)
	tmp.Mul(u, diag)
	out := new(mat.Dense)
	out.Mul(tmp, u.T())
	return symmetrize(out, n)
}

// solveSym solves a*x = b for symmetric positive-definite a via
// Cholesky, returning a NumericFailure if a is not positive-definite.
func solveSym(a *mat.SymDense, b mat.Matrix) (*mat.Dense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, enkf.NewNumericFailure("Cholesky factorization failed", nil)
	}
	var x mat.Dense
	if err := chol.SolveTo(&x, b); err != nil {
		return nil, enkf.NewNumericFailure("Cholesky solve failed", err)
	}
	return &x, nil
}

func vecNorm(v *mat.VecDense) float64 {
	return mat.Norm(v, 2)
}

// sqrtPair factorizes hw via a single SVD and returns (hw^(1/2),
// hw^(-1/2)), used by MLEF/IEnKS transform conditioning to refresh
// (T, T^-1) from the current Hessian each iteration.
func sqrtPair(hw *mat.SymDense) (half *mat.SymDense, invHalf *mat.SymDense, err error) {
	n := hw.SymmetricDim()
	var svd mat.SVD
	if ok := svd.Factorize(hw, mat.SVDFull); !ok {
		return nil, nil, enkf.NewNumericFailure("SVD factorization of Hessian failed", nil)
	}
	u := new(mat.Dense)
	svd.UTo(u)
	vals := svd.Values(nil)

	halfVals := make([]float64, n)
	invHalfVals := make([]float64, n)
	for i, v := range vals {
		if v <= 0 {
			return nil, nil, enkf.NewNumericFailure("Hessian is not positive-definite", nil)
		}
		halfVals[i] = math.Sqrt(v)
		invHalfVals[i] = 1 / math.Sqrt(v)
	}
	half = synthesizeFromU(u, halfVals, n)
	invHalf = synthesizeFromU(u, invHalfVals, n)
	return half, invHalf, nil
}

// SqrtPair exposes sqrtPair for the daw package's Gauss-Newton
// smoother, which needs the same "refresh (T, T^-1) from the current
// Hessian" step IEnKS's transform conditioning requires (spec.md
// §4.8 step 4).
func SqrtPair(hw *mat.SymDense) (half *mat.SymDense, invHalf *mat.SymDense, err error) {
	return sqrtPair(hw)
}

// SolveSym exposes solveSym for the daw package's bundle-conditioning
// Gauss-Newton step, which solves H_w*deltaW = g via Cholesky instead
// of refreshing (T, T^-1) (spec.md §4.8 step 4, bundle branch).
func SolveSym(a *mat.SymDense, b mat.Matrix) (*mat.Dense, error) {
	return solveSym(a, b)
}

// outerProduct returns v*v^T as a SymDense.
func outerProduct(v *mat.VecDense) *mat.SymDense {
	n := v.Len()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, v.AtVec(i)*v.AtVec(j))
		}
	}
	return out
}
