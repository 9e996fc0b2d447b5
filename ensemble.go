package enkf

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Ensemble is the sys_dim x N_ens ensemble matrix of spec.md §3.
// Rows 1..StateDim are dynamical state; rows StateDim+1..SysDim are
// appended parameter samples when parameter estimation is active.
type Ensemble struct {
	// e stores the ensemble, one member per column.
	e *mat.Dense
	// stateDim is the number of dynamical-state rows. stateDim ==
	// SysDim() when parameter estimation is inactive.
	stateDim int
}

// New wraps e as an Ensemble with stateDim dynamical-state rows.
// It returns a ConfigError if e has fewer than 2 columns or if
// stateDim does not fit within e's row count.
func New(e *mat.Dense, stateDim int) (*Ensemble, error) {
	rows, cols := e.Dims()
	if cols < 2 {
		return nil, NewConfigError(fmt.Sprintf("ensemble must have at least 2 members, got %d", cols), nil)
	}
	if stateDim <= 0 || stateDim > rows {
		return nil, NewConfigError(fmt.Sprintf("invalid state_dim %d for sys_dim %d", stateDim, rows), nil)
	}
	return &Ensemble{e: e, stateDim: stateDim}, nil
}

// Raw returns the underlying dense matrix. Callers that mutate it
// directly are responsible for preserving the sys_dim x N_ens shape.
func (en *Ensemble) Raw() *mat.Dense { return en.e }

// SysDim returns the total number of rows (state + parameters).
func (en *Ensemble) SysDim() int {
	r, _ := en.e.Dims()
	return r
}

// StateDim returns the number of dynamical-state rows.
func (en *Ensemble) StateDim() int { return en.stateDim }

// NEns returns the ensemble size (number of members/columns).
func (en *Ensemble) NEns() int {
	_, c := en.e.Dims()
	return c
}

// HasParams reports whether parameter estimation is active, i.e.
// whether StateDim() < SysDim().
func (en *Ensemble) HasParams() bool { return en.stateDim < en.SysDim() }

// State returns a view onto the dynamical-state rows of the ensemble.
func (en *Ensemble) State() mat.Matrix {
	return en.e.Slice(0, en.stateDim, 0, en.NEns())
}

// Params returns a view onto the trailing parameter rows of the
// ensemble. It returns nil if parameter estimation is inactive.
func (en *Ensemble) Params() mat.Matrix {
	if !en.HasParams() {
		return nil
	}
	return en.e.Slice(en.stateDim, en.SysDim(), 0, en.NEns())
}

// Mean returns the column-wise (ensemble) mean as a sys_dim vector.
func (en *Ensemble) Mean() *mat.VecDense {
	rows, cols := en.e.Dims()
	mean := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		sum := 0.0
		for c := 0; c < cols; c++ {
			sum += en.e.At(r, c)
		}
		mean.SetVec(r, sum/float64(cols))
	}
	return mean
}

// Anomalies returns X = E - mean(E)*1^T, the sys_dim x N_ens matrix of
// ensemble deviations from the mean.
func (en *Ensemble) Anomalies() *mat.Dense {
	rows, cols := en.e.Dims()
	mean := en.Mean()
	x := mat.NewDense(rows, cols, nil)
	for c := 0; c < cols; c++ {
		col := mat.NewVecDense(rows, nil)
		col.CopyVec(en.e.ColView(c))
		col.SubVec(col, mean)
		x.SetCol(c, col.RawVector().Data)
	}
	return x
}

// Clone returns a deep copy of the ensemble.
func (en *Ensemble) Clone() *Ensemble {
	cp := &mat.Dense{}
	cp.CloneFrom(en.e)
	return &Ensemble{e: cp, stateDim: en.stateDim}
}

// SetFrom overwrites the ensemble's data in place from src, which must
// have identical dimensions. Used by smoothers to reset the running
// ensemble back to a saved copy (e.g. E_0 in the single-iteration
// smoother).
func (en *Ensemble) SetFrom(src *Ensemble) error {
	if src.SysDim() != en.SysDim() || src.NEns() != en.NEns() {
		return NewConfigError("ensemble dimension mismatch in SetFrom", nil)
	}
	en.e.Copy(src.e)
	en.stateDim = src.stateDim
	return nil
}
