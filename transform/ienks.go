package transform

import (
	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
)

// IEnKSStep computes the sequential gradient/Hessian contribution of
// spec.md §4.5.5 for a single observation time within a Gauss-Newton
// smoother outer iteration: propagate the ensemble to that time
// outside this function, then call IEnKSStep with the propagated
// ensemble, the observation, and the current conditioning T^-1.
//
// The smoother driver in package daw sums the contributions across
// the lag window and solves the assembled Gauss-Newton system.
func IEnKSStep(e *enkf.Ensemble, y *mat.VecDense, r enkf.ObsCov, tInv *mat.SymDense, opt Options) (grad *mat.VecDense, hess *mat.SymDense, err error) {
	nEns := e.NEns()

	obsE, err := opt.H(e.Raw())
	if err != nil {
		return nil, nil, enkf.NewNumericFailure("observation operator failed", err)
	}
	ybar := colMean(obsE)

	s := new(mat.Dense)
	s.Mul(broadcastSub(obsE, ybar), tInv)

	rInv, err := r.Inv()
	if err != nil {
		return nil, nil, err
	}

	yDiff := new(mat.VecDense)
	yDiff.SubVec(y, ybar)

	rInvYDiff := new(mat.VecDense)
	rInvYDiff.MulVec(rInv, yDiff)
	grad = new(mat.VecDense)
	grad.MulVec(s.T(), rInvYDiff)

	rInvS := new(mat.Dense)
	rInvS.Mul(rInv, s)
	hessRaw := new(mat.Dense)
	hessRaw.Mul(s.T(), rInvS)
	hess = symmetrize(hessRaw, nEns)

	return grad, hess, nil
}
