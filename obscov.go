package enkf

import "gonum.org/v1/gonum/mat"

// ObsCov is the observation error covariance R of spec.md §3, exposed
// as one of three concrete shapes (scalar-times-identity, diagonal,
// symmetric) so the analysis kernels can take a fast path to its
// square root. Implementations live in the sqrtutil package.
type ObsCov interface {
	// Dim returns obs_dim, the size of the square covariance.
	Dim() int
	// Dense returns R as a dense symmetric matrix.
	Dense() mat.Symmetric
	// Half returns a stable R^(1/2).
	Half() (mat.Matrix, error)
	// InvHalf returns a stable R^(-1/2).
	InvHalf() (mat.Matrix, error)
	// Inv returns a stable R^(-1).
	Inv() (mat.Matrix, error)
}
