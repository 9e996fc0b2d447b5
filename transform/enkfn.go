package transform

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
	"github.com/dabench/enkf/rndorth"
)

// EnKFN computes the finite-size EnKF-N/EnKS-N transform of spec.md
// §4.5.4: the observation operator is linearized once (unlike MLEF,
// it is not relinearized across iterations), and the analysis reduces
// to minimizing a scalar cost in the finite-size inflation parameter
// zeta (dual form, via Brent) or in w directly (primal form, via
// Newton, optionally wrapped in a line search).
func EnKFN(d enkf.Descriptor, e *enkf.Ensemble, y *mat.VecDense, r enkf.ObsCov, opt Options) (enkf.Transform, Diagnostics, error) {
	nEns := e.NEns()

	obsE, err := opt.H(e.Raw())
	if err != nil {
		return nil, Diagnostics{}, enkf.NewNumericFailure("observation operator failed", err)
	}
	ybar := colMean(obsE)

	rInvHalf, err := r.InvHalf()
	if err != nil {
		return nil, Diagnostics{}, err
	}
	s := new(mat.Dense)
	s.Mul(rInvHalf, broadcastSub(obsE, ybar))

	delta := new(mat.VecDense)
	yDiff := new(mat.VecDense)
	yDiff.SubVec(y, ybar)
	delta.MulVec(rInvHalf, yDiff)

	var svd mat.SVD
	if ok := svd.Factorize(s, mat.SVDFull); !ok {
		return nil, Diagnostics{}, enkf.NewNumericFailure("SVD factorization of observed anomalies failed", nil)
	}
	uS := new(mat.Dense)
	svd.UTo(uS)
	vS := new(mat.Dense)
	svd.VTo(vS)
	sigmaS := svd.Values(nil)

	epsN := 1 + 1/float64(nEns)
	nEff := float64(nEns + 1)

	uSDelta := new(mat.VecDense)
	uSDelta.MulVec(uS.T(), delta)

	switch d.Form {
	case enkf.Dual:
		return enkfNDual(d, nEns, sigmaS, uSDelta, uS, vS, delta, epsN, nEff, opt)
	default:
		return enkfNPrimal(d, nEns, s, delta, epsN, nEff, opt)
	}
}

func enkfNDualCost(zeta float64, sigmaS []float64, uSDelta *mat.VecDense, deltaNormSq float64, epsN, nEff float64) float64 {
	sum := 0.0
	for i, sv := range sigmaS {
		c := uSDelta.AtVec(i)
		sum += (sv * sv / (zeta + sv*sv)) * c * c
	}
	quad := deltaNormSq - sum
	return quad + epsN*zeta + nEff*math.Log(nEff/zeta) - nEff
}

func enkfNDual(d enkf.Descriptor, nEns int, sigmaS []float64, uSDelta *mat.VecDense, uS, vS *mat.Dense, delta *mat.VecDense, epsN, nEff float64, opt Options) (enkf.Transform, Diagnostics, error) {
	deltaNormSq := vecNorm(delta) * vecNorm(delta)
	cost := func(zeta float64) float64 {
		return enkfNDualCost(zeta, sigmaS, uSDelta, deltaNormSq, epsN, nEff)
	}

	lo, hi := 1e-6, nEff/epsN
	zetaStar, _, err := brentMinimize(cost, lo, hi, 1e-8, 200)
	if err != nil {
		return nil, Diagnostics{}, err
	}

	n := len(sigmaS)
	w := mat.NewVecDense(nEns, nil)
	wReduced := make([]float64, n)
	for i, sv := range sigmaS {
		wReduced[i] = (sv / (zetaStar + sv*sv)) * uSDelta.AtVec(i)
	}
	// w = V_S * diag(sigma/(zeta+sigma^2)) * U_S^T * delta; the full
	// SVD's V_S is N_ens x N_ens, and only its first len(sigma) columns
	// pair with a singular value, so the reduced solution is mapped back
	// through that N_ens x len(sigma) slice.
	reducedVec := mat.NewVecDense(n, wReduced)
	w.MulVec(vS.Slice(0, nEns, 0, n), reducedVec)

	// T from Sigma_S, zeta*: T = U_S * diag(1/sqrt(zeta* + sigma^2)) *
	// U_S^T * sqrt(zeta*), the explicit dual transform of spec.md
	// §4.5.4, extended to the full N_ens space with identity outside
	// the rank of S.
	tVals := make([]float64, n)
	for i, sv := range sigmaS {
		tVals[i] = math.Sqrt(zetaStar) / math.Sqrt(zetaStar+sv*sv)
	}
	diag := mat.NewDiagDense(n, tVals)
	tmp := new(mat.Dense)
	tmp.Mul(uS, diag)
	tFull := new(mat.Dense)
	tFull.Mul(tmp, uS.T())
	rows, cols := tFull.Dims()
	tOut := mat.NewSymDense(nEns, nil)
	for i := 0; i < nEns; i++ {
		for j := i; j < nEns; j++ {
			if i < rows && j < cols {
				tOut.SetSym(i, j, (tFull.At(i, j)+tFull.At(j, i))/2)
			} else if i == j {
				tOut.SetSym(i, j, 1)
			}
		}
	}

	u, err := rndorth.Draw(nEns, opt.Src)
	if err != nil {
		return nil, Diagnostics{}, err
	}

	return enkf.Triple{T: tOut, W: w, U: u}, Diagnostics{Zeta: zetaStar}, nil
}

func enkfNPrimal(d enkf.Descriptor, nEns int, s *mat.Dense, delta *mat.VecDense, epsN, nEff float64, opt Options) (enkf.Transform, Diagnostics, error) {
	w := mat.NewVecDense(nEns, nil)
	maxIter := opt.maxIter(40)
	tol := opt.tol()

	sts := new(mat.Dense)
	sts.Mul(s.T(), s)
	sTDelta := new(mat.VecDense)
	sTDelta.MulVec(s.T(), delta)

	var hw *mat.SymDense
	iterations := 0
	var divergence error

	for iter := 1; iter <= maxIter; iter++ {
		iterations = iter
		zeta := 1 / (epsN + vecNorm(w)*vecNorm(w))

		g := mat.NewVecDense(nEns, nil)
		hw = mat.NewSymDense(nEns, nil)
		for i := 0; i < nEns; i++ {
			g.SetVec(i, nEff*zeta*w.AtVec(i)-sTDelta.AtVec(i))
			for j := i; j < nEns; j++ {
				v := sts.At(i, j)
				if i == j {
					v += nEff - 1
				}
				hw.SetSym(i, j, v)
			}
		}

		_, hwInv, err := sqrtAndInv(hw)
		if err != nil {
			return nil, Diagnostics{}, err
		}

		var deltaNorm float64
		if !d.LineSearch {
			deltaW := new(mat.VecDense)
			deltaW.MulVec(hwInv, g)
			w.SubVec(w, deltaW)
			deltaNorm = vecNorm(deltaW)
		} else {
			p := new(mat.VecDense)
			p.MulVec(hwInv, g)
			p.ScaleVec(-1, p)
			phi := func(alpha float64) (float64, float64) {
				wTrial := new(mat.VecDense)
				wTrial.AddScaledVec(w, alpha, p)
				f := nEff*math.Log(epsN+vecNorm(wTrial)*vecNorm(wTrial)) + vecNorm(delta)*vecNorm(delta)
				const h = 1e-6
				wTrial2 := new(mat.VecDense)
				wTrial2.AddScaledVec(w, alpha+h, p)
				f2 := nEff*math.Log(epsN+vecNorm(wTrial2)*vecNorm(wTrial2)) + vecNorm(delta)*vecNorm(delta)
				return f, (f2 - f) / h
			}
			f0, g0 := phi(0)
			alpha, err := strongWolfeSearch(phi, f0, g0)
			if err != nil {
				return nil, Diagnostics{}, err
			}
			deltaNorm = math.Abs(alpha) * vecNorm(p)
			w.AddScaledVec(w, alpha, p)
		}

		if deltaNorm < tol {
			divergence = nil
			break
		}
		if iter == maxIter {
			divergence = &enkf.DivergenceError{Iterations: iter, Tol: tol, Norm: deltaNorm}
		}
	}

	sqrtInv, _, err := sqrtAndInv(hw)
	if err != nil {
		return nil, Diagnostics{}, err
	}

	u, err := rndorth.Draw(nEns, opt.Src)
	if err != nil {
		return nil, Diagnostics{}, err
	}

	return enkf.Triple{T: sqrtInv, W: w, U: u}, Diagnostics{Iterations: iterations, Divergence: divergence}, nil
}
