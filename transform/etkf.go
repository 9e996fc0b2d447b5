package transform

import (
	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
	"github.com/dabench/enkf/rndorth"
)

// ETKF computes the deterministic square-root ETKF/ETKS transform of
// spec.md §4.5.2.
func ETKF(e *enkf.Ensemble, y *mat.VecDense, r enkf.ObsCov, opt Options) (enkf.Transform, error) {
	nEns := e.NEns()

	obsE, err := opt.H(e.Raw())
	if err != nil {
		return nil, enkf.NewNumericFailure("observation operator failed", err)
	}
	ybar := colMean(obsE)

	rInvHalf, err := r.InvHalf()
	if err != nil {
		return nil, err
	}
	s := new(mat.Dense)
	s.Mul(rInvHalf, broadcastSub(obsE, ybar))

	delta := new(mat.VecDense)
	yDiff := new(mat.VecDense)
	yDiff.SubVec(y, ybar)
	delta.MulVec(rInvHalf, yDiff)

	sts := new(mat.Dense)
	sts.Mul(s.T(), s)
	hw := mat.NewSymDense(nEns, nil)
	for i := 0; i < nEns; i++ {
		for j := i; j < nEns; j++ {
			v := sts.At(i, j)
			if i == j {
				v += float64(nEns - 1)
			}
			hw.SetSym(i, j, v)
		}
	}

	sqrtInv, inv, err := sqrtAndInv(hw)
	if err != nil {
		return nil, err
	}

	sTDelta := new(mat.VecDense)
	sTDelta.MulVec(s.T(), delta)
	w := new(mat.VecDense)
	w.MulVec(inv, sTDelta)

	u, err := rndorth.Draw(nEns, opt.Src)
	if err != nil {
		return nil, err
	}

	// The sqrt(N_ens-1) scale factor of spec.md §4.6 is applied by
	// ensemble.Update, not here.
	return enkf.Triple{T: sqrtInv, W: w, U: u}, nil
}
