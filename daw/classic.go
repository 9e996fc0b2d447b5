package daw

import (
	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
	"github.com/dabench/enkf/ensemble"
	"github.com/dabench/enkf/transform"
)

// Classic runs spec.md §4.8's classical lag-shift smoother
// (ls_smoother_classic) for the shift new observation times in obs's
// columns: propagate, analyze, inflate, then re-apply that same
// transform to every earlier posterior slab held in buf so the whole
// window benefits from the new information.
//
// buf is caller-owned and mutated across calls: the posterior ring
// retains up to lag+shift slabs, so a sequence of Classic calls keeps
// the reanalysis window sliding forward, per spec.md §9's cyclic
// buffer note.
func (d *Driver) Classic(a enkf.Descriptor, buf *Buffers, e *enkf.Ensemble, t0 float64, obs *mat.Dense, r enkf.ObsCov, alphaState, alphaParam float64, ctx *enkf.Context, opt transform.Options) (*Cycle, error) {
	_, shift := obs.Dims()
	t := t0

	for ell := 0; ell < shift; ell++ {
		if err := propagate(e, t, ctx); err != nil {
			return nil, err
		}
		t += ctx.H * float64(ctx.FSteps)
		buf.PushForecast(e.Raw())

		y := mat.VecDenseCopyOf(obs.ColView(ell))
		tr, diag, err := transform.Compute(a, e, y, r, opt)
		if err != nil {
			return nil, err
		}
		d.logDivergence("daw.Classic", diag)

		if err := ensemble.Update(e, tr); err != nil {
			return nil, err
		}
		if err := inflateAndWalk(e, alphaState, alphaParam, ctx, opt); err != nil {
			return nil, err
		}

		buf.PushFiltered(e.Raw())
		buf.PushPosterior(e.Raw())

		var reanalErr error
		buf.ReanalyzeEarlierPosteriors(func(slab *mat.Dense) {
			if reanalErr != nil {
				return
			}
			reanalErr = reanalyze(slab, e.StateDim(), tr)
		})
		if reanalErr != nil {
			return nil, reanalErr
		}
	}

	return &Cycle{Ens: e, Buffers: buf}, nil
}
