package enkf

import "fmt"

// ConfigError marks a malformed or inconsistent input discovered at
// cycle entry: a bad analysis label, an obs_dim that does not fit
// state_dim, an ensemble too small to factorize, or MDA weights that
// do not sum to lag. It is fatal to the configuration that raised it.
type ConfigError struct {
	msg string
	err error
}

// NewConfigError builds a ConfigError wrapping err (which may be nil).
func NewConfigError(msg string, err error) *ConfigError {
	return &ConfigError{msg: msg, err: err}
}

func (e *ConfigError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("config error: %s: %v", e.msg, e.err)
	}
	return fmt.Sprintf("config error: %s", e.msg)
}

// Unwrap returns the wrapped error, if any.
func (e *ConfigError) Unwrap() error { return e.err }

// NumericFailure marks an SVD/Cholesky failure, a nonconvergent Brent
// minimization, or a line search that could not satisfy the Wolfe
// conditions. It is raised from the transform kernels and is fatal to
// the cycle: the core never retries internally.
type NumericFailure struct {
	msg string
	err error
}

// NewNumericFailure builds a NumericFailure wrapping err (which may be nil).
func NewNumericFailure(msg string, err error) *NumericFailure {
	return &NumericFailure{msg: msg, err: err}
}

func (e *NumericFailure) Error() string {
	if e.err != nil {
		return fmt.Sprintf("numeric failure: %s: %v", e.msg, e.err)
	}
	return fmt.Sprintf("numeric failure: %s", e.msg)
}

// Unwrap returns the wrapped error, if any.
func (e *NumericFailure) Unwrap() error { return e.err }

// DivergenceError marks an iterative optimizer (MLEF Newton loop,
// IEnKS Gauss-Newton loop) reaching its iteration cap without
// satisfying the convergence tolerance. It is non-fatal: the last
// iterate is still usable and is returned alongside this error so
// callers can decide whether to treat it as a nominal output or log
// it and move on, per spec.md §7.
type DivergenceError struct {
	Iterations int
	Tol        float64
	Norm       float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("hit iteration cap (%d iterations) without reaching tol=%g (last step norm %g)",
		e.Iterations, e.Tol, e.Norm)
}

// IOFailure marks a failure to load the truth time series or write the
// final result artifact. Both are external collaborators (spec.md
// §1); this type exists so the taxonomy is complete and callers can
// errors.As against it, but nothing in this module constructs one.
type IOFailure struct {
	msg string
	err error
}

// NewIOFailure builds an IOFailure wrapping err (which may be nil).
func NewIOFailure(msg string, err error) *IOFailure {
	return &IOFailure{msg: msg, err: err}
}

func (e *IOFailure) Error() string {
	if e.err != nil {
		return fmt.Sprintf("io failure: %s: %v", e.msg, e.err)
	}
	return fmt.Sprintf("io failure: %s", e.msg)
}

// Unwrap returns the wrapped error, if any.
func (e *IOFailure) Unwrap() error { return e.err }
