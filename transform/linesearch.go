package transform

import (
	"math"

	"github.com/dabench/enkf"
)

// strongWolfeSearch is a Nocedal-Wright bracket-and-zoom Strong Wolfe
// line search on a scalar cost phi(alpha), used by MLEF's line-search
// Newton variant (spec.md §4.5.3) and the EnKF-N primal "-ls" variant.
//
// gonum.org/v1/gonum/optimize exports a Wolfe Linesearcher, but its
// Init/Iterate protocol is meant to be driven by optimize.Minimize's
// own outer loop together with a NextDirectioner; reusing it here,
// standalone, for a single scalar cost inside a hand-rolled Newton
// iteration would mean reimplementing that outer-loop machinery for
// no benefit over a direct implementation, so this package carries its
// own Strong Wolfe search instead (see DESIGN.md).
//
// phi returns (value, derivative) at alpha. c1, c2 are the Armijo and
// curvature constants (0 < c1 < c2 < 1).
func strongWolfeSearch(phi func(alpha float64) (float64, float64), phi0, dPhi0 float64) (float64, error) {
	const (
		c1        = 1e-4
		c2        = 0.9
		maxIter   = 20
		alphaInit = 1.0
		alphaMax  = 10.0
	)

	prevAlpha := 0.0
	prevPhi := phi0
	alpha := alphaInit

	for i := 0; i < maxIter; i++ {
		f, g := phi(alpha)

		if f > phi0+c1*alpha*dPhi0 || (i > 0 && f >= prevPhi) {
			return zoom(phi, phi0, dPhi0, prevAlpha, alpha, c1, c2)
		}
		if math.Abs(g) <= -c2*dPhi0 {
			return alpha, nil
		}
		if g >= 0 {
			return zoom(phi, phi0, dPhi0, alpha, prevAlpha, c1, c2)
		}

		prevAlpha = alpha
		prevPhi = f
		alpha = math.Min(2*alpha, alphaMax)
		if alpha == prevAlpha {
			break
		}
	}
	return 0, enkf.NewNumericFailure("line search unable to satisfy Wolfe conditions", nil)
}

func zoom(phi func(alpha float64) (float64, float64), phi0, dPhi0, lo, hi, c1, c2 float64) (float64, error) {
	const maxIter = 30
	for i := 0; i < maxIter; i++ {
		alpha := (lo + hi) / 2
		f, g := phi(alpha)
		fLo, _ := phi(lo)

		if f > phi0+c1*alpha*dPhi0 || f >= fLo {
			hi = alpha
			continue
		}
		if math.Abs(g) <= -c2*dPhi0 {
			return alpha, nil
		}
		if g*(hi-lo) >= 0 {
			hi = lo
		}
		lo = alpha
	}
	return 0, enkf.NewNumericFailure("line search zoom phase did not converge", nil)
}
