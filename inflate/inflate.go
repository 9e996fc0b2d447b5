// Package inflate implements the multiplicative inflation of spec.md
// §4.4: scale an ensemble's anomalies about their own mean by a factor
// alpha, applied separately to the dynamical-state rows and to the
// trailing parameter rows so a run can inflate one without the other.
//
// Grounded on kalman/kf/kf.go's in-place *mat.Dense mutation style
// (methods that write back into the caller's matrix rather than
// allocating a fresh one) and enkf.Ensemble's own Anomalies/Mean
// split, which this package reuses directly instead of re-deriving
// the anomaly decomposition.
package inflate

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
)

// State multiplies the dynamical-state anomalies of e about their mean
// by alpha, in place. alpha == 1 is a no-op (spec.md §8's inflation
// identity invariant). It returns a ConfigError if alpha is not
// positive.
func State(e *enkf.Ensemble, alpha float64) error {
	if alpha <= 0 {
		return enkf.NewConfigError(fmt.Sprintf("inflation factor must be positive, got %g", alpha), nil)
	}
	if alpha == 1 {
		return nil
	}
	scaleRows(e.Raw(), 0, e.StateDim(), alpha)
	return nil
}

// Param multiplies the parameter-row anomalies of e about their mean
// by alpha, in place. It is a no-op if e has no active parameter rows
// or if alpha == 1. It returns a ConfigError if alpha is not positive.
func Param(e *enkf.Ensemble, alpha float64) error {
	if alpha <= 0 {
		return enkf.NewConfigError(fmt.Sprintf("inflation factor must be positive, got %g", alpha), nil)
	}
	if !e.HasParams() || alpha == 1 {
		return nil
	}
	scaleRows(e.Raw(), e.StateDim(), e.SysDim(), alpha)
	return nil
}

// scaleRows rescales rows [lo, hi) of m about their own row-wise mean
// by factor, leaving the mean itself unchanged: m[r] <- mean(m[r]) +
// alpha*(m[r] - mean(m[r])).
func scaleRows(m *mat.Dense, lo, hi int, factor float64) {
	_, cols := m.Dims()
	for r := lo; r < hi; r++ {
		sum := 0.0
		for c := 0; c < cols; c++ {
			sum += m.At(r, c)
		}
		mean := sum / float64(cols)
		for c := 0; c < cols; c++ {
			v := m.At(r, c)
			m.Set(r, c, mean+factor*(v-mean))
		}
	}
}
