package transform

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
	"github.com/dabench/enkf/noise"
)

// EnKF computes the stochastic (perturbed-observation) EnKF/EnKS
// transform of spec.md §4.5.1.
func EnKF(e *enkf.Ensemble, y *mat.VecDense, r enkf.ObsCov, opt Options) (enkf.Transform, error) {
	nEns := e.NEns()
	obsDim := r.Dim()

	perturb := opt.Perturb
	if perturb == nil {
		g, err := noise.NewGaussian(make([]float64, obsDim), r.Dense(), opt.Src)
		if err != nil {
			return nil, enkf.NewNumericFailure("failed to build default observation-perturbation source", err)
		}
		perturb = g
	}
	perts := mat.NewDense(obsDim, nEns, nil)
	for c := 0; c < nEns; c++ {
		perts.SetCol(c, mat.VecDenseCopyOf(perturb.Sample()).RawVector().Data)
	}
	perts = broadcastSub(perts, colMean(perts))

	obsE, err := opt.H(e.Raw())
	if err != nil {
		return nil, enkf.NewNumericFailure("observation operator failed", err)
	}
	ybar := colMean(obsE)
	scale := 1 / math.Sqrt(float64(nEns-1))
	s := scaleDense(broadcastSub(obsE, ybar), scale)

	rDense := r.Dense()
	c := new(mat.Dense)
	c.Mul(s, s.T())
	for i := 0; i < obsDim; i++ {
		for j := 0; j < obsDim; j++ {
			c.Set(i, j, c.At(i, j)+rDense.At(i, j))
		}
	}
	cSym := symmetrize(c, obsDim)

	yBroadcast := broadcastVec(y, nEns)
	innov := new(mat.Dense)
	innov.Add(yBroadcast, perts)
	innov.Sub(innov, obsE)

	cInvInnov, err := solveSym(cSym, innov)
	if err != nil {
		return nil, err
	}

	gamma := new(mat.Dense)
	gamma.Mul(s.T(), cInvInnov)
	gamma.Scale(scale, gamma)
	for i := 0; i < nEns; i++ {
		gamma.Set(i, i, gamma.At(i, i)+1)
	}

	return enkf.Gamma{M: gamma}, nil
}
