// Package enkf defines the core types shared by the ensemble
// data-assimilation analysis engines: the ensemble matrix, the
// observation error covariance shapes, the transform output shapes,
// the analysis descriptor that selects a kernel variant, and the
// typed configuration and error taxonomy the rest of the module
// builds on.
//
// The analysis kernels themselves (EnKF/ETKF/MLEF/EnKF-N/IEnKS) live
// in the transform subpackage, the ensemble update and sampling live
// in the ensemble subpackage, and the lag-shift smoother state
// machines live in the daw subpackage.
package enkf
