package daw

import (
	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
	"github.com/dabench/enkf/ensemble"
	"github.com/dabench/enkf/transform"
)

// pass describes one traversal of the DAW window: the per-observation
// covariance-weight scaling to apply, and whether this pass's final
// reanalyzed initial condition becomes the smoother's new E_0 (only
// the MDA pass does; the rebalancing pass only produces filter
// diagnostics, per spec.md §4.8).
type pass struct {
	weights   []float64
	updatesE0 bool
}

// SingleIteration runs spec.md §4.8's single-iteration lag-shift
// smoother (ls_smoother_single_iteration): traverse the full lag
// window once (twice under MDA, rebalancing then MDA-weighted),
// re-analyzing the saved initial condition E_0 in lockstep with the
// running ensemble, then reset to E_0, inflate, random-walk the
// parameters, and propagate shift steps into the next cycle.
//
// obs must have lag columns. shift must be supplied explicitly since,
// unlike Classic, nothing else in the call carries it.
func (d *Driver) SingleIteration(a enkf.Descriptor, buf *Buffers, e *enkf.Ensemble, t0 float64, obs *mat.Dense, r enkf.ObsCov, shift int, alphaState, alphaParam float64, ctx *enkf.Context, opt transform.Options) (*Cycle, error) {
	_, lag := obs.Dims()

	passes := []pass{{weights: nil, updatesE0: true}}
	if ctx.MDA {
		if err := validateMDAWeights(ctx.RebWeights, lag); err != nil {
			return nil, err
		}
		if err := validateMDAWeights(ctx.ObsWeights, lag); err != nil {
			return nil, err
		}
		passes = []pass{
			{weights: ctx.RebWeights, updatesE0: false},
			{weights: ctx.ObsWeights, updatesE0: true},
		}
	}

	for _, p := range passes {
		e0 := e.Clone()
		running := e.Clone()
		t := t0

		for ell := 0; ell < lag; ell++ {
			if err := propagate(running, t, ctx); err != nil {
				return nil, err
			}
			t += ctx.H * float64(ctx.FSteps)

			recordNew := ctx.Spin || ell >= lag-shift
			if recordNew {
				buf.PushForecast(running.Raw())
			}

			y := mat.VecDenseCopyOf(obs.ColView(ell))
			rr := r
			if p.weights != nil {
				scaled, err := scaledCov(r, p.weights[ell])
				if err != nil {
					return nil, err
				}
				rr = scaled
			}

			tr, diag, err := transform.Compute(a, running, y, rr, opt)
			if err != nil {
				return nil, err
			}
			d.logDivergence("daw.SingleIteration", diag)

			if err := ensemble.Update(running, tr); err != nil {
				return nil, err
			}
			if err := reanalyze(e0.Raw(), e0.StateDim(), tr); err != nil {
				return nil, err
			}

			if recordNew {
				buf.PushFiltered(running.Raw())
				buf.PushPosterior(running.Raw())
			}
		}

		if p.updatesE0 {
			if err := e.SetFrom(e0); err != nil {
				return nil, err
			}
		}
	}

	if err := inflateAndWalk(e, alphaState, alphaParam, ctx, opt); err != nil {
		return nil, err
	}

	t := t0
	for i := 0; i < shift; i++ {
		if err := propagate(e, t, ctx); err != nil {
			return nil, err
		}
		t += ctx.H * float64(ctx.FSteps)
	}

	return &Cycle{Ens: e, Buffers: buf}, nil
}
