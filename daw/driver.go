package daw

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
	"github.com/dabench/enkf/ensemble"
	"github.com/dabench/enkf/filterdrv"
	"github.com/dabench/enkf/inflate"
	"github.com/dabench/enkf/paramest"
	"github.com/dabench/enkf/transform"
)

// Driver runs the three smoother state machines of spec.md §4.8 over a
// caller-owned ensemble and Buffers. It carries a zap logger (defaults
// to a no-op logger) so kernel Divergence diagnostics surface as
// structured log events; a NumericFailure is returned to the caller,
// not logged.
type Driver struct {
	Logger *zap.Logger
}

// NewDriver returns a Driver logging through logger, or a no-op logger
// if logger is nil.
func NewDriver(logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{Logger: logger}
}

// Cycle is the result of one smoother-driver call: the ensemble ready
// for the next cycle's propagation, the buffers it populated, and any
// iterative-kernel diagnostics (left zero by the classical and
// single-iteration smoothers, which only log per-observation kernel
// divergence).
type Cycle struct {
	Ens         *enkf.Ensemble
	Buffers     *Buffers
	Diagnostics transform.Diagnostics
}

func (d *Driver) logDivergence(where string, diag transform.Diagnostics) {
	if diag.Divergence != nil {
		d.Logger.Warn("smoother kernel hit iteration cap",
			zap.String("where", where),
			zap.Int("iterations", diag.Iterations),
			zap.Error(diag.Divergence))
	}
}

// reanalyze wraps slab as an ensemble sharing stateDim and applies tr
// to it in place, mutating slab.
func reanalyze(slab *mat.Dense, stateDim int, tr enkf.Transform) error {
	wrapped, err := enkf.New(slab, stateDim)
	if err != nil {
		return err
	}
	return ensemble.Update(wrapped, tr)
}

func inflateAndWalk(e *enkf.Ensemble, alphaState, alphaParam float64, ctx *enkf.Context, opt transform.Options) error {
	if err := inflate.State(e, alphaState); err != nil {
		return err
	}
	if e.HasParams() {
		if err := inflate.Param(e, alphaParam); err != nil {
			return err
		}
		if ctx.ParamWlk > 0 {
			if err := paramest.Walk(e, ctx.ParamWlk, opt.Src); err != nil {
				return err
			}
		}
	}
	return nil
}

func propagate(e *enkf.Ensemble, t float64, ctx *enkf.Context) error {
	return filterdrv.Propagate(e, t, ctx)
}

func vecNorm(v *mat.VecDense) float64 {
	sum := 0.0
	for i := 0; i < v.Len(); i++ {
		sum += v.AtVec(i) * v.AtVec(i)
	}
	return math.Sqrt(sum)
}
