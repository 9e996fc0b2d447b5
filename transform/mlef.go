package transform

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
	"github.com/dabench/enkf/rndorth"
)

// MLEF computes the maximum-likelihood ensemble filter transform of
// spec.md §4.5.3: relinearize the observation operator around the
// current ensemble-mean estimate each iteration, solving for the
// mean-weight vector w by plain Newton or Newton with a Strong Wolfe
// line search, in bundle or transform conditioning, with an optional
// finite-size adaptive-inflation variant.
//
// Grounded on kalman/kf/kf.go's Predict/Update loop shape (propagate
// an estimate, form an innovation, apply a gain), generalized here
// from a single closed-form gain to an iterated Gauss-Newton solve
// since the observation operator is nonlinear.
func MLEF(d enkf.Descriptor, e *enkf.Ensemble, y *mat.VecDense, r enkf.ObsCov, opt Options) (enkf.Transform, Diagnostics, error) {
	nEns := e.NEns()
	mean0 := e.Mean()
	x0 := e.Anomalies()

	rInvHalf, err := r.InvHalf()
	if err != nil {
		return nil, Diagnostics{}, err
	}

	var t, tInv *mat.SymDense
	if d.Conditioning == enkf.Bundle {
		t, tInv = scaledIdentitySym(nEns, opt.eps())
	} else {
		t, tInv = identitySym(nEns), identitySym(nEns)
	}

	epsN := 1 + 1/float64(nEns)
	nEff := float64(nEns + 1)

	w := mat.NewVecDense(nEns, nil)
	maxIter := opt.maxIter(40)
	tol := opt.tol()

	var lastS *mat.Dense
	var lastHw *mat.SymDense
	iterations := 0
	var divergence error

	for iter := 1; iter <= maxIter; iter++ {
		iterations = iter

		s, delta, err := mlefLinearize(mean0, x0, w, t, tInv, opt.H, rInvHalf, y)
		if err != nil {
			return nil, Diagnostics{}, err
		}
		lastS = s

		g := mat.NewVecDense(nEns, nil)
		sTDelta := new(mat.VecDense)
		sTDelta.MulVec(s.T(), delta)

		var zeta float64
		hw := mat.NewSymDense(nEns, nil)
		sts := new(mat.Dense)
		sts.Mul(s.T(), s)

		if !d.Adaptive {
			for i := 0; i < nEns; i++ {
				g.SetVec(i, float64(nEns-1)*w.AtVec(i)-sTDelta.AtVec(i))
			}
			for i := 0; i < nEns; i++ {
				for j := i; j < nEns; j++ {
					v := sts.At(i, j)
					if i == j {
						v += float64(nEns - 1)
					}
					hw.SetSym(i, j, v)
				}
			}
		} else {
			zeta = 1 / (epsN + vecNorm(w)*vecNorm(w))
			for i := 0; i < nEns; i++ {
				g.SetVec(i, nEff*zeta*w.AtVec(i)-sTDelta.AtVec(i))
			}
			for i := 0; i < nEns; i++ {
				for j := i; j < nEns; j++ {
					v := sts.At(i, j)
					if i == j {
						v += nEff - 1
					}
					hw.SetSym(i, j, v)
				}
			}
		}
		lastHw = hw

		hwInv, err := symInv(hw)
		if err != nil {
			return nil, Diagnostics{}, err
		}

		var deltaW *mat.VecDense
		if !d.LineSearch {
			deltaW = new(mat.VecDense)
			deltaW.MulVec(hwInv, g)
			wNext := new(mat.VecDense)
			wNext.SubVec(w, deltaW)
			w = wNext
		} else {
			p := new(mat.VecDense)
			p.MulVec(hwInv, g)
			p.ScaleVec(-1, p)

			phi := func(alpha float64) (float64, float64) {
				wTrial := new(mat.VecDense)
				wTrial.AddScaledVec(w, alpha, p)
				_, deltaTrial, err := mlefLinearize(mean0, x0, wTrial, t, tInv, opt.H, rInvHalf, y)
				if err != nil {
					return math.Inf(1), 0
				}
				var f float64
				if !d.Adaptive {
					f = float64(nEns-1)*vecNorm(wTrial)*vecNorm(wTrial) + vecNorm(deltaTrial)*vecNorm(deltaTrial)
				} else {
					f = nEff*math.Log(epsN+vecNorm(wTrial)*vecNorm(wTrial)) + vecNorm(deltaTrial)*vecNorm(deltaTrial)
				}
				// finite-difference derivative: cheap and avoids
				// threading an analytic Jacobian of the relinearized
				// observation through the line search.
				const h = 1e-6
				wTrial2 := new(mat.VecDense)
				wTrial2.AddScaledVec(w, alpha+h, p)
				_, deltaTrial2, err2 := mlefLinearize(mean0, x0, wTrial2, t, tInv, opt.H, rInvHalf, y)
				if err2 != nil {
					return f, 0
				}
				var f2 float64
				if !d.Adaptive {
					f2 = float64(nEns-1)*vecNorm(wTrial2)*vecNorm(wTrial2) + vecNorm(deltaTrial2)*vecNorm(deltaTrial2)
				} else {
					f2 = nEff*math.Log(epsN+vecNorm(wTrial2)*vecNorm(wTrial2)) + vecNorm(deltaTrial2)*vecNorm(deltaTrial2)
				}
				return f, (f2 - f) / h
			}
			f0, g0 := phi(0)
			alpha, err := strongWolfeSearch(phi, f0, g0)
			if err != nil {
				return nil, Diagnostics{}, err
			}
			deltaW = new(mat.VecDense)
			deltaW.ScaleVec(-alpha, p)
			wNext := new(mat.VecDense)
			wNext.AddScaledVec(w, alpha, p)
			w = wNext
		}

		if d.Conditioning == enkf.Transform {
			half, invHalf, err := sqrtPair(hw)
			if err != nil {
				return nil, Diagnostics{}, err
			}
			t, tInv = invHalf, half
		}

		if vecNorm(deltaW) < tol {
			divergence = nil
			break
		}
		if iter == maxIter {
			divergence = &enkf.DivergenceError{Iterations: iter, Tol: tol, Norm: vecNorm(deltaW)}
		}
	}

	var finalT *mat.SymDense
	if d.Adaptive {
		zeta := 1 / (epsN + vecNorm(w)*vecNorm(w))
		sts := new(mat.Dense)
		sts.Mul(lastS.T(), lastS)
		wwT := outerProduct(w)
		hStar := mat.NewSymDense(nEns, nil)
		for i := 0; i < nEns; i++ {
			for j := i; j < nEns; j++ {
				v := sts.At(i, j) + nEff*(boolToFloat(i == j)*zeta-2*zeta*zeta*wwT.At(i, j))
				hStar.SetSym(i, j, v)
			}
		}
		sqrtInv, _, err := sqrtAndInv(hStar)
		if err != nil {
			return nil, Diagnostics{}, err
		}
		finalT = sqrtInv
	} else {
		sqrtInv, _, err := sqrtAndInv(lastHw)
		if err != nil {
			return nil, Diagnostics{}, err
		}
		finalT = sqrtInv
	}

	u, err := rndorth.Draw(nEns, opt.Src)
	if err != nil {
		return nil, Diagnostics{}, err
	}

	diag := Diagnostics{Iterations: iterations, Divergence: divergence}
	return enkf.Triple{T: finalT, W: w, U: u}, diag, nil
}

// mlefLinearize relinearizes the observation operator around
// mean0 + x0*w, returning (S, delta) per spec.md §4.5.3 step 2.
func mlefLinearize(mean0 *mat.VecDense, x0 *mat.Dense, w *mat.VecDense, t, tInv *mat.SymDense, h ObsOperator, rInvHalf mat.Matrix, y *mat.VecDense) (*mat.Dense, *mat.VecDense, error) {
	meanPrime := new(mat.VecDense)
	x0w := new(mat.VecDense)
	x0w.MulVec(x0, w)
	meanPrime.AddVec(mean0, x0w)

	x0t := new(mat.Dense)
	x0t.Mul(x0, t)

	sysDim, nEns := x0.Dims()
	ePrime := mat.NewDense(sysDim, nEns, nil)
	for c := 0; c < nEns; c++ {
		col := mat.NewVecDense(sysDim, nil)
		col.CopyVec(x0t.ColView(c))
		col.AddVec(col, meanPrime)
		ePrime.SetCol(c, col.RawVector().Data)
	}

	obsE, err := h(ePrime)
	if err != nil {
		return nil, nil, enkf.NewNumericFailure("observation operator failed", err)
	}
	ybar := colMean(obsE)

	sRaw := new(mat.Dense)
	sRaw.Mul(rInvHalf, broadcastSub(obsE, ybar))
	s := new(mat.Dense)
	s.Mul(sRaw, tInv)

	yDiff := new(mat.VecDense)
	yDiff.SubVec(y, ybar)
	delta := new(mat.VecDense)
	delta.MulVec(rInvHalf, yDiff)

	return s, delta, nil
}

func scaledIdentitySym(n int, eps float64) (*mat.SymDense, *mat.SymDense) {
	t := mat.NewSymDense(n, nil)
	tInv := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		t.SetSym(i, i, eps)
		tInv.SetSym(i, i, 1/eps)
	}
	return t, tInv
}

func symInv(hw *mat.SymDense) (*mat.SymDense, error) {
	_, inv, err := sqrtAndInv(hw)
	return inv, err
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
