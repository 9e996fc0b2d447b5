// Package obsop implements the alternating observation operator of
// spec.md §4.1: a deterministic, pure, column-vectorized restriction
// of an ensemble to a p-dimensional observed subspace, optionally
// followed by a componentwise nonlinearity controlled by gamma.
//
// The row-selection rules are new domain logic (spec.md §4.1's table
// has no direct analog in the teacher), but the calling convention —
// a pure function of (state, control) returning an observed vector —
// is grounded on model/base.go's Observe method.
package obsop

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
)

// Alternating is the alternating observation operator. StateDim is the
// number of dynamical-state rows (rows beyond it, if any, are
// parameter rows and are dropped before restriction per spec.md §4.1
// rule 1). ObsDim is p, the number of retained rows.
type Alternating struct {
	StateDim int
	ObsDim   int
	// Gamma is the nonlinearity parameter of spec.md §4.1.
	Gamma float64
}

// New validates (stateDim, obsDim) and returns an Alternating operator.
// It returns a ConfigError if obsDim is 0 (undefined in the source,
// spec.md §9) or obsDim > stateDim.
func New(stateDim, obsDim int, gamma float64) (*Alternating, error) {
	if obsDim == 0 {
		return nil, enkf.NewConfigError("obs_dim = 0 is undefined", nil)
	}
	if obsDim > stateDim {
		return nil, enkf.NewConfigError(fmt.Sprintf("obs_dim %d exceeds state_dim %d", obsDim, stateDim), nil)
	}
	if stateDim <= 0 {
		return nil, enkf.NewConfigError(fmt.Sprintf("invalid state_dim %d", stateDim), nil)
	}
	return &Alternating{StateDim: stateDim, ObsDim: obsDim, Gamma: gamma}, nil
}

// Rows returns the 0-indexed dynamical-state rows retained by the
// operator, following spec.md §4.1 rules 2-5.
func (a *Alternating) Rows() ([]int, error) {
	return selectedRows(a.StateDim, a.ObsDim)
}

// Observe restricts e (sys_dim x N_ens, or already state_dim x N_ens)
// to the ObsDim observed rows and applies the Gamma nonlinearity,
// returning an ObsDim x N_ens matrix. If e has more rows than
// StateDim, the trailing parameter rows are dropped first (rule 1).
func (a *Alternating) Observe(e mat.Matrix) (*mat.Dense, error) {
	rows, err := a.Rows()
	if err != nil {
		return nil, err
	}

	_, cols := e.Dims()
	out := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		for c := 0; c < cols; c++ {
			out.Set(i, c, applyGamma(e.At(r, c), a.Gamma))
		}
	}
	return out, nil
}

// selectedRows implements spec.md §4.1 rules 2-5 and returns 0-indexed
// row numbers into a stateDim-row matrix.
func selectedRows(stateDim, p int) ([]int, error) {
	if p == 0 {
		return nil, enkf.NewConfigError("obs_dim = 0 is undefined", nil)
	}
	if p > stateDim {
		return nil, enkf.NewConfigError(fmt.Sprintf("obs_dim %d exceeds state_dim %d", p, stateDim), nil)
	}
	if p == stateDim {
		rows := make([]int, stateDim)
		for i := range rows {
			rows[i] = i
		}
		return rows, nil
	}

	ratio := float64(p) / float64(stateDim)
	var rows []int

	switch {
	case ratio > 0.5:
		r := stateDim - p
		firstCount := stateDim - 2*r
		for i := 1; i <= firstCount; i++ {
			rows = append(rows, i)
		}
		for i := firstCount + 2; i <= stateDim; i += 2 {
			rows = append(rows, i)
		}
	case ratio == 0.5:
		for i := 1; i <= stateDim; i += 2 {
			rows = append(rows, i)
		}
	default: // ratio < 0.5
		var odd []int
		for i := 1; i <= stateDim; i += 2 {
			odd = append(odd, i)
		}
		if len(odd) < p {
			return nil, enkf.NewNumericFailure(fmt.Sprintf("not enough odd rows (%d) to satisfy obs_dim %d", len(odd), p), nil)
		}
		rows = odd[:p]
	}

	if len(rows) != p {
		return nil, enkf.NewNumericFailure(fmt.Sprintf("row selection produced %d rows, want %d", len(rows), p), nil)
	}

	for i := range rows {
		rows[i]--
	}
	return rows, nil
}

// applyGamma applies the spec.md §4.1 nonlinearity to a scalar.
func applyGamma(x, gamma float64) float64 {
	switch {
	case gamma == 1:
		return x
	case gamma > 1:
		return (x / 2) * (1 + math.Pow(math.Abs(x/10), gamma-1))
	case gamma == 0:
		return 0.05 * x * x
	default: // gamma < 0
		return x * math.Exp(-gamma*x)
	}
}

// Gamma applies the spec.md §4.1 nonlinearity elementwise to m and
// returns a new matrix, exposed for kernels that need the nonlinear
// transform without row restriction (e.g. when state_dim == obs_dim).
func Gamma(m mat.Matrix, gamma float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, applyGamma(m.At(i, j), gamma))
		}
	}
	return out
}
