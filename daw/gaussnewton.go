package daw

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
	"github.com/dabench/enkf/rndorth"
	"github.com/dabench/enkf/transform"
)

// gnState is the outer Gauss-Newton state of spec.md §4.8's IEnKS
// smoother: mean base, anomaly base, the current weight vector, and
// the conditioning pair, carried across outer iterations within one
// stage and returned to the caller to build the posterior.
type gnState struct {
	meanBase   *mat.VecDense
	xBase      *mat.Dense
	w          *mat.VecDense
	t, tInv    *mat.SymDense
	iterations int
	divergence error
}

// gaussNewtonStage runs one traversal of spec.md §4.8's outer Newton
// loop: rebuild the ensemble from (meanBase, xBase, T, w), propagate
// across the full lag window accumulating sequential gradient/Hessian
// contributions via transform.IEnKSStep, and take a Gauss-Newton step
// in w. weights, when non-nil, scales R per observation time for MDA
// tempering.
func (d *Driver) gaussNewtonStage(a enkf.Descriptor, e *enkf.Ensemble, t0 float64, obs *mat.Dense, r enkf.ObsCov, ctx *enkf.Context, opt transform.Options, weights []float64) (*gnState, error) {
	nEns := e.NEns()
	_, lag := obs.Dims()

	meanBase := e.Mean()
	xBase := e.Anomalies()

	eps := opt.Eps
	if eps == 0 {
		eps = 1e-3
	}
	var t, tInv *mat.SymDense
	if a.Conditioning == enkf.Bundle {
		t, tInv = scaledIdentityPair(nEns, eps)
	} else {
		t, tInv = identityPair(nEns), identityPair(nEns)
	}
	w := mat.NewVecDense(nEns, nil)

	maxIter := opt.MaxIter
	if maxIter == 0 {
		maxIter = 5
	}
	tol := opt.Tol
	if tol == 0 {
		tol = 1e-3
	}

	var hw *mat.SymDense
	var divergence error
	iterations := 0

	for iter := 0; iter < maxIter; iter++ {
		iterations = iter + 1

		eIter := buildIterate(meanBase, xBase, t, w)
		wrapped, err := enkf.New(eIter, e.StateDim())
		if err != nil {
			return nil, err
		}

		grad := mat.NewVecDense(nEns, nil)
		hessSum := mat.NewSymDense(nEns, nil)
		step := t0
		for ell := 0; ell < lag; ell++ {
			if err := propagate(wrapped, step, ctx); err != nil {
				return nil, err
			}
			step += ctx.H * float64(ctx.FSteps)

			y := mat.VecDenseCopyOf(obs.ColView(ell))
			rr := r
			if weights != nil {
				scaled, err := scaledCov(r, weights[ell])
				if err != nil {
					return nil, err
				}
				rr = scaled
			}

			g, h, err := transform.IEnKSStep(wrapped, y, rr, tInv, opt)
			if err != nil {
				return nil, err
			}
			grad.AddVec(grad, g)
			hessSum.AddSym(hessSum, h)
		}

		var gvec *mat.VecDense
		if a.Adaptive {
			epsN := 1 + 1/float64(nEns)
			nEff := float64(nEns + 1)
			zeta := 1 / (epsN + sqSum(w))
			gvec = mat.NewVecDense(nEns, nil)
			gvec.ScaleVec(nEff*zeta, w)
			gvec.SubVec(gvec, grad)

			wwT := outer(w, w)
			hw = mat.NewSymDense(nEns, nil)
			hw.AddSym(hessSum, scaledIdentityPair(nEns, nEff*zeta))
			wwT.ScaleSym(-2*zeta*zeta*nEff, wwT)
			hw.AddSym(hw, wwT)
		} else {
			gvec = mat.NewVecDense(nEns, nil)
			gvec.ScaleVec(float64(nEns-1), w)
			gvec.SubVec(gvec, grad)

			hw = mat.NewSymDense(nEns, nil)
			hw.AddSym(hessSum, scaledIdentityPair(nEns, float64(nEns-1)))
		}

		var deltaW *mat.VecDense
		if a.Conditioning == enkf.Transform {
			half, invHalf, err := transform.SqrtPair(hw)
			if err != nil {
				return nil, enkf.NewNumericFailure("ienks transform conditioning failed", err)
			}
			t, tInv = invHalf, half
			hwInv := new(mat.Dense)
			hwInv.Mul(invHalf, invHalf)
			deltaW = mat.NewVecDense(nEns, nil)
			deltaW.MulVec(hwInv, gvec)
		} else {
			sol, err := transform.SolveSym(hw, gvec)
			if err != nil {
				return nil, err
			}
			deltaW = mat.NewVecDense(nEns, nil)
			deltaW.CopyVec(sol.ColView(0))
		}

		w.SubVec(w, deltaW)
		norm := vecNorm(deltaW)
		if norm < tol {
			break
		}
		if iter == maxIter-1 {
			divergence = &enkf.DivergenceError{Iterations: iterations, Tol: tol, Norm: norm}
		}
	}

	half, invHalf, err := transform.SqrtPair(hw)
	if err != nil {
		return nil, enkf.NewNumericFailure("ienks final conditioning failed", err)
	}
	finalT := invHalf

	return &gnState{
		meanBase:   meanBase,
		xBase:      xBase,
		w:          w,
		t:          finalT,
		tInv:       half,
		iterations: iterations,
		divergence: divergence,
	}, nil
}

// GaussNewton runs spec.md §4.8's IEnKS Gauss-Newton smoother
// (ls_smoother_gauss_newton) over the lag columns of obs. Under MDA it
// runs the optimization twice (rebalancing, then MDA weights) and
// reports the accumulated iteration count across both stages; only
// the MDA stage's result advances the posterior.
func (d *Driver) GaussNewton(a enkf.Descriptor, buf *Buffers, e *enkf.Ensemble, t0 float64, obs *mat.Dense, r enkf.ObsCov, shift int, alphaState, alphaParam float64, ctx *enkf.Context, opt transform.Options) (*Cycle, error) {
	_, lag := obs.Dims()

	type stageSpec struct {
		weights []float64
		final   bool
	}
	stages := []stageSpec{{weights: nil, final: true}}
	if ctx.MDA {
		if err := validateMDAWeights(ctx.RebWeights, lag); err != nil {
			return nil, err
		}
		if err := validateMDAWeights(ctx.ObsWeights, lag); err != nil {
			return nil, err
		}
		stages = []stageSpec{
			{weights: ctx.RebWeights, final: false},
			{weights: ctx.ObsWeights, final: true},
		}
	}

	totalIter := 0
	var finalState *gnState
	var diag transform.Diagnostics
	for _, st := range stages {
		gs, err := d.gaussNewtonStage(a, e, t0, obs, r, ctx, opt, st.weights)
		if err != nil {
			return nil, err
		}
		totalIter += gs.iterations
		if gs.divergence != nil {
			diag.Divergence = gs.divergence
		}
		if st.final {
			finalState = gs
		}
	}
	diag.Iterations = totalIter
	d.logDivergence("daw.GaussNewton", diag)

	nEns := e.NEns()
	meanIter := mat.NewVecDense(finalState.meanBase.Len(), nil)
	meanIter.MulVec(finalState.xBase, finalState.w)
	meanIter.AddVec(meanIter, finalState.meanBase)

	u, err := rndorth.Draw(nEns, opt.Src)
	if err != nil {
		return nil, err
	}
	tu := new(mat.Dense)
	tu.Mul(finalState.t, u)
	tu.Scale(math.Sqrt(float64(nEns-1)), tu)
	anomalies := new(mat.Dense)
	anomalies.Mul(finalState.xBase, tu)

	postStart := addColumnwise(anomalies, meanIter)
	wrapped, err := enkf.New(postStart, e.StateDim())
	if err != nil {
		return nil, err
	}

	if err := inflateAndWalk(wrapped, alphaState, alphaParam, ctx, opt); err != nil {
		return nil, err
	}

	t := t0
	for l := 0; l < lag+shift; l++ {
		if err := propagate(wrapped, t, ctx); err != nil {
			return nil, err
		}
		t += ctx.H * float64(ctx.FSteps)

		switch {
		case l < shift:
			buf.PushPosterior(wrapped.Raw())
			buf.PushFiltered(wrapped.Raw())
		case l < lag:
			buf.PushPosterior(wrapped.Raw())
		default:
			buf.PushForecast(wrapped.Raw())
		}
	}

	if err := e.SetFrom(wrapped); err != nil {
		return nil, err
	}

	return &Cycle{Ens: e, Buffers: buf, Diagnostics: diag}, nil
}

func buildIterate(meanBase *mat.VecDense, xBase *mat.Dense, t *mat.SymDense, w *mat.VecDense) *mat.Dense {
	meanShift := mat.NewVecDense(meanBase.Len(), nil)
	meanShift.MulVec(xBase, w)
	meanShift.AddVec(meanShift, meanBase)

	xt := new(mat.Dense)
	xt.Mul(xBase, t)

	return addColumnwise(xt, meanShift)
}

func addColumnwise(m *mat.Dense, v *mat.VecDense) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for c := 0; c < cols; c++ {
		col := mat.NewVecDense(rows, nil)
		col.CopyVec(m.ColView(c))
		col.AddVec(col, v)
		out.SetCol(c, col.RawVector().Data)
	}
	return out
}

func scaledIdentityPair(n int, v float64) *mat.SymDense {
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		s.SetSym(i, i, v)
	}
	return s
}

func identityPair(n int) *mat.SymDense {
	return scaledIdentityPair(n, 1)
}

func sqSum(v *mat.VecDense) float64 {
	sum := 0.0
	for i := 0; i < v.Len(); i++ {
		sum += v.AtVec(i) * v.AtVec(i)
	}
	return sum
}

func outer(a, b *mat.VecDense) *mat.SymDense {
	n := a.Len()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, a.AtVec(i)*b.AtVec(j))
		}
	}
	return out
}
