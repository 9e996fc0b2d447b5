package transform

import (
	"math"

	"github.com/dabench/enkf"
)

// brentMinimize finds the minimizer of f on [a, b] via Brent's method,
// used by the finite-size EnKF-N dual cost of spec.md §4.5.4.
//
// gonum.org/v1/gonum/optimize has no exported standalone univariate
// Brent minimizer (its Brent-related internals back the multivariate
// Minimize driver, not a bare bracket-search routine), so this package
// carries a direct implementation of the classic golden-section /
// parabolic-interpolation hybrid (see DESIGN.md).
func brentMinimize(f func(float64) float64, a, b, tol float64, maxIter int) (float64, float64, error) {
	const goldenRatio = 0.3819660

	x := a + goldenRatio*(b-a)
	w, v := x, x
	fx := f(x)
	fw, fv := fx, fx
	d, e := 0.0, 0.0

	for i := 0; i < maxIter; i++ {
		m := 0.5 * (a + b)
		tol1 := tol*math.Abs(x) + 1e-12
		tol2 := 2 * tol1

		if math.Abs(x-m) <= tol2-0.5*(b-a) {
			return x, fx, nil
		}

		useGolden := true
		if math.Abs(e) > tol1 {
			r := (x - w) * (fx - fv)
			q := (x - v) * (fx - fw)
			p := (x-v)*q - (x-w)*r
			q = 2 * (q - r)
			if q > 0 {
				p = -p
			}
			q = math.Abs(q)
			eTmp := e
			e = d

			if math.Abs(p) < math.Abs(0.5*q*eTmp) && p > q*(a-x) && p < q*(b-x) {
				d = p / q
				u := x + d
				if u-a < tol2 || b-u < tol2 {
					d = tol1
					if m < x {
						d = -tol1
					}
				}
				useGolden = false
			}
		}

		if useGolden {
			if x < m {
				e = b - x
			} else {
				e = a - x
			}
			d = goldenRatio * e
		}

		var u float64
		if math.Abs(d) >= tol1 {
			u = x + d
		} else if d > 0 {
			u = x + tol1
		} else {
			u = x - tol1
		}
		fu := f(u)

		if fu <= fx {
			if u < x {
				b = x
			} else {
				a = x
			}
			v, fv = w, fw
			w, fw = x, fx
			x, fx = u, fu
		} else {
			if u < x {
				a = u
			} else {
				b = u
			}
			if fu <= fw || w == x {
				v, fv = w, fw
				w, fw = u, fu
			} else if fu <= fv || v == x || v == w {
				v, fv = u, fu
			}
		}
	}

	return 0, 0, enkf.NewNumericFailure("nonconvergent dual Brent minimization", nil)
}
