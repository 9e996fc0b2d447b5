// Package sqrtutil implements the covariance square-root utilities of
// spec.md §4.2: stable M^(1/2), M^(-1/2) and M^(-1) for a covariance
// of recognized shape (uniform scaling, diagonal, or general
// symmetric), each implementing enkf.ObsCov so the transform engine
// can dispatch on R's concrete type and take the closed-form fast path
// instead of paying for a full SVD when it isn't needed.
//
// Grounded on rand/rand.go's SVD-based WithCovN (the same "factorize
// once, synthesize sqrt(values)" idiom) and matrix/matrix.go's
// ToSymDense symmetrization check.
package sqrtutil

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
)

// Uniform is a scalar-times-identity covariance, R = sigma^2 * I.
type Uniform struct {
	Sigma2 float64
	N      int
}

var _ enkf.ObsCov = (*Uniform)(nil)

// NewUniform returns a Uniform covariance of size n. It returns a
// ConfigError if sigma2 is not positive (R must be positive-definite
// per spec.md §7).
func NewUniform(sigma2 float64, n int) (*Uniform, error) {
	if sigma2 <= 0 {
		return nil, enkf.NewConfigError(fmt.Sprintf("uniform covariance sigma^2 must be positive, got %g", sigma2), nil)
	}
	if n <= 0 {
		return nil, enkf.NewConfigError(fmt.Sprintf("invalid covariance size %d", n), nil)
	}
	return &Uniform{Sigma2: sigma2, N: n}, nil
}

// Dim returns the covariance size.
func (u *Uniform) Dim() int { return u.N }

// Dense returns sigma^2*I as a dense symmetric matrix.
func (u *Uniform) Dense() mat.Symmetric {
	d := mat.NewSymDense(u.N, nil)
	for i := 0; i < u.N; i++ {
		d.SetSym(i, i, u.Sigma2)
	}
	return d
}

// Half returns sigma*I.
func (u *Uniform) Half() (mat.Matrix, error) {
	return scaledIdentity(u.N, math.Sqrt(u.Sigma2)), nil
}

// InvHalf returns (1/sigma)*I.
func (u *Uniform) InvHalf() (mat.Matrix, error) {
	return scaledIdentity(u.N, 1/math.Sqrt(u.Sigma2)), nil
}

// Inv returns (1/sigma^2)*I.
func (u *Uniform) Inv() (mat.Matrix, error) {
	return scaledIdentity(u.N, 1/u.Sigma2), nil
}

func scaledIdentity(n int, v float64) *mat.Diagonal {
	diag := make([]float64, n)
	for i := range diag {
		diag[i] = v
	}
	return mat.NewDiagonal(n, diag)
}

// Diagonal is a diagonal covariance with possibly distinct per-row
// variances.
type Diagonal struct {
	Values []float64
}

var _ enkf.ObsCov = (*Diagonal)(nil)

// NewDiagonal returns a Diagonal covariance. It returns a ConfigError
// if values is empty or any value is not positive.
func NewDiagonal(values []float64) (*Diagonal, error) {
	if len(values) == 0 {
		return nil, enkf.NewConfigError("diagonal covariance must be non-empty", nil)
	}
	for i, v := range values {
		if v <= 0 {
			return nil, enkf.NewConfigError(fmt.Sprintf("diagonal covariance entry %d must be positive, got %g", i, v), nil)
		}
	}
	return &Diagonal{Values: values}, nil
}

// Dim returns the covariance size.
func (d *Diagonal) Dim() int { return len(d.Values) }

// Dense returns diag(Values) as a dense symmetric matrix.
func (d *Diagonal) Dense() mat.Symmetric {
	s := mat.NewSymDense(len(d.Values), nil)
	for i, v := range d.Values {
		s.SetSym(i, i, v)
	}
	return s
}

// Half returns diag(sqrt(Values)).
func (d *Diagonal) Half() (mat.Matrix, error) {
	return d.elementwise(math.Sqrt), nil
}

// InvHalf returns diag(1/sqrt(Values)).
func (d *Diagonal) InvHalf() (mat.Matrix, error) {
	return d.elementwise(func(v float64) float64 { return 1 / math.Sqrt(v) }), nil
}

// Inv returns diag(1/Values).
func (d *Diagonal) Inv() (mat.Matrix, error) {
	return d.elementwise(func(v float64) float64 { return 1 / v }), nil
}

func (d *Diagonal) elementwise(f func(float64) float64) *mat.DiagDense {
	out := make([]float64, len(d.Values))
	for i, v := range d.Values {
		out[i] = f(v)
	}
	return mat.NewDiagDense(len(out), out)
}

// Symmetric is a general symmetric positive-definite covariance. Its
// square roots are synthesized from a single cached SVD factorization
// per spec.md §4.2 ("produce stably ... in a single call").
type Symmetric struct {
	m *mat.SymDense

	svdDone bool
	u       *mat.Dense
	sigma   []float64
}

var _ enkf.ObsCov = (*Symmetric)(nil)

// NewSymmetric returns a Symmetric covariance wrapping m. It does not
// factorize m eagerly; the first call to Half/InvHalf/Inv does and
// caches the result.
func NewSymmetric(m *mat.SymDense) (*Symmetric, error) {
	if m == nil || m.SymmetricDim() == 0 {
		return nil, enkf.NewConfigError("symmetric covariance must be non-empty", nil)
	}
	return &Symmetric{m: m}, nil
}

// Dim returns the covariance size.
func (s *Symmetric) Dim() int { return s.m.SymmetricDim() }

// Dense returns the underlying symmetric matrix.
func (s *Symmetric) Dense() mat.Symmetric { return s.m }

func (s *Symmetric) factorize() error {
	if s.svdDone {
		return nil
	}
	var svd mat.SVD
	if ok := svd.Factorize(s.m, mat.SVDFull); !ok {
		return enkf.NewNumericFailure("SVD factorization of symmetric covariance failed", nil)
	}
	u := new(mat.Dense)
	svd.UTo(u)
	s.u = u
	s.sigma = svd.Values(nil)
	s.svdDone = true
	return nil
}

// Half returns M^(1/2) = U*diag(sqrt(sigma))*U^T, symmetrized.
func (s *Symmetric) Half() (mat.Matrix, error) {
	return s.synthesize(math.Sqrt)
}

// InvHalf returns M^(-1/2) = U*diag(1/sqrt(sigma))*U^T, symmetrized.
func (s *Symmetric) InvHalf() (mat.Matrix, error) {
	return s.synthesize(func(v float64) float64 { return 1 / math.Sqrt(v) })
}

// Inv returns M^(-1) = U*diag(1/sigma)*U^T, symmetrized.
func (s *Symmetric) Inv() (mat.Matrix, error) {
	return s.synthesize(func(v float64) float64 { return 1 / v })
}

func (s *Symmetric) synthesize(f func(float64) float64) (mat.Matrix, error) {
	if err := s.factorize(); err != nil {
		return nil, err
	}
	n := s.Dim()
	scaled := make([]float64, len(s.sigma))
	for i, v := range s.sigma {
		scaled[i] = f(v)
	}
	diag := mat.NewDiagDense(len(scaled), scaled)

	tmp := new(mat.Dense)
	tmp.Mul(s.u, diag)
	out := new(mat.Dense)
	out.Mul(tmp, s.u.T())

	return symmetrize(out, n), nil
}

// symmetrize averages out[i][j] and out[j][i] to cancel asymmetric
// floating-point noise before handing the result back, per spec.md
// §4.2 ("symmetrize the result before returning").
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
