// Package diag computes the RMSE/spread diagnostics of the persisted
// artifact layout in spec.md §6: fore_rmse, filt_rmse, fore_spread,
// filt_spread, and the optional param_rmse/param_spread pair when
// parameter estimation is active.
package diag

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/dabench/enkf"
)

// Result is one configuration's accumulated diagnostics, matching the
// keyed-table fields of spec.md §6's persisted artifact layout.
type Result struct {
	ForeRMSE   float64
	FiltRMSE   float64
	ForeSpread float64
	FiltSpread float64
	// ParamRMSE/ParamSpread are populated only when the tracked
	// ensembles had active parameter rows.
	ParamRMSE   float64
	ParamSpread float64
	HasParams   bool
}

// Tracker accumulates per-cycle RMSE and spread across a run and
// reduces them to a Result on Finish.
type Tracker struct {
	n                    int
	foreRMSE, filtRMSE   float64
	foreSpread, filtSpread float64
	paramRMSE, paramSpread float64
	hasParams            bool
}

// RecordForecast accumulates RMSE/spread for the forecast ensemble e
// against the true state truth.
func (t *Tracker) RecordForecast(e *enkf.Ensemble, truth *mat.VecDense) {
	t.foreRMSE += stateRMSE(e, truth)
	t.foreSpread += stateSpread(e)
	if e.HasParams() {
		t.hasParams = true
	}
}

// RecordFiltered accumulates RMSE/spread for the filtered (post-
// analysis) ensemble e against the true state truth, and for the
// parameter sub-ensemble if active (against truthParams, which may be
// nil when parameter estimation is inactive).
func (t *Tracker) RecordFiltered(e *enkf.Ensemble, truth *mat.VecDense, truthParams *mat.VecDense) {
	t.n++
	t.filtRMSE += stateRMSE(e, truth)
	t.filtSpread += stateSpread(e)
	if e.HasParams() && truthParams != nil {
		t.hasParams = true
		t.paramRMSE += paramRMSE(e, truthParams)
		t.paramSpread += paramSpread(e)
	}
}

// Finish reduces the accumulated sums to a Result by dividing by the
// number of recorded cycles. It returns a ConfigError if no cycles
// were recorded.
func (t *Tracker) Finish() (Result, error) {
	if t.n == 0 {
		return Result{}, enkf.NewConfigError("no cycles recorded", nil)
	}
	n := float64(t.n)
	r := Result{
		ForeRMSE:   t.foreRMSE / n,
		FiltRMSE:   t.filtRMSE / n,
		ForeSpread: t.foreSpread / n,
		FiltSpread: t.filtSpread / n,
		HasParams:  t.hasParams,
	}
	if t.hasParams {
		r.ParamRMSE = t.paramRMSE / n
		r.ParamSpread = t.paramSpread / n
	}
	return r, nil
}

func stateRMSE(e *enkf.Ensemble, truth *mat.VecDense) float64 {
	mean := e.Mean()
	sum := 0.0
	for i := 0; i < e.StateDim(); i++ {
		d := mean.AtVec(i) - truth.AtVec(i)
		sum += d * d
	}
	return math.Sqrt(sum / float64(e.StateDim()))
}

func stateSpread(e *enkf.Ensemble) float64 {
	state := denseFromMatrix(e.State())
	variances := rowVariances(state)
	return math.Sqrt(meanOf(variances))
}

func paramRMSE(e *enkf.Ensemble, truthParams *mat.VecDense) float64 {
	mean := e.Mean()
	paramDim := e.SysDim() - e.StateDim()
	sum := 0.0
	for i := 0; i < paramDim; i++ {
		d := mean.AtVec(e.StateDim()+i) - truthParams.AtVec(i)
		sum += d * d
	}
	return math.Sqrt(sum / float64(paramDim))
}

func paramSpread(e *enkf.Ensemble) float64 {
	params := denseFromMatrix(e.Params())
	variances := rowVariances(params)
	return math.Sqrt(meanOf(variances))
}

func denseFromMatrix(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Copy(m)
	return out
}

// rowVariances computes the per-row sample variance across columns
// (each row is a state/parameter component, each column an ensemble
// member).
func rowVariances(m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	means := make([]float64, rows)
	for r := 0; r < rows; r++ {
		means[r] = floats.Sum(m.RawRowView(r)) / float64(cols)
	}
	variances := make([]float64, rows)
	for r := 0; r < rows; r++ {
		sum := 0.0
		for c := 0; c < cols; c++ {
			d := m.At(r, c) - means[r]
			sum += d * d
		}
		variances[r] = sum / float64(cols-1)
	}
	return variances
}

func meanOf(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
