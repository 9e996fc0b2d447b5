package enkf

import "gonum.org/v1/gonum/mat"

// Transform is the analysis-transform output of spec.md §3: either a
// single stochastic right-multiply matrix (Gamma) or the deterministic
// triple (T, w, U) consumed by ensemble.Update.
type Transform interface {
	isTransform()
}

// Gamma is the stochastic-EnKF transform: E <- E * Gamma.
type Gamma struct {
	// M is the N_ens x N_ens right-multiply matrix.
	M *mat.Dense
}

func (Gamma) isTransform() {}

// Triple is the deterministic ETKF/MLEF/EnKF-N/IEnKS transform:
// E <- mean(E)*1^T + X*(w*1^T + T*U*sqrt(N_ens-1)).
type Triple struct {
	// T is the symmetric N_ens x N_ens anomaly transform.
	T *mat.SymDense
	// W is the N_ens-vector of mean weights.
	W *mat.VecDense
	// U is the mean-preserving random orthogonal rotation.
	U *mat.Dense
}

func (Triple) isTransform() {}
