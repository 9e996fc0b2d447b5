package transform

import (
	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
)

// Compute dispatches to the analysis kernel named by d's family,
// implementing the "analysis-kernel interface" of spec.md §6:
// transform(A, E, y, R, options) -> Transform.
//
// IEnKS is not reachable through Compute: spec.md §4.5.5 only ever
// runs inside the smoother DAW driver's sequential accumulation loop
// (package daw), which calls IEnKSStep directly once per observation
// time rather than once per cycle.
func Compute(d enkf.Descriptor, e *enkf.Ensemble, y *mat.VecDense, r enkf.ObsCov, opt Options) (enkf.Transform, Diagnostics, error) {
	if e.NEns() < 2 {
		return nil, Diagnostics{}, enkf.NewConfigError("N_ens must be at least 2", nil)
	}
	if r.Dim() != y.Len() {
		return nil, Diagnostics{}, enkf.NewConfigError("observation vector length does not match R", nil)
	}

	switch d.Family {
	case enkf.FamilyEnKF:
		tr, err := EnKF(e, y, r, opt)
		return tr, Diagnostics{}, err
	case enkf.FamilyETKF:
		tr, err := ETKF(e, y, r, opt)
		return tr, Diagnostics{}, err
	case enkf.FamilyMLEF:
		return MLEF(d, e, y, r, opt)
	case enkf.FamilyEnKFN:
		return EnKFN(d, e, y, r, opt)
	case enkf.FamilyIEnKS:
		return nil, Diagnostics{}, enkf.NewConfigError("ienks is driven by the smoother, not transform.Compute", nil)
	default:
		return nil, Diagnostics{}, enkf.NewConfigError("unknown analysis family", nil)
	}
}
