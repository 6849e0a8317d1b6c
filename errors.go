package goloadflow

import "fmt"

// ConfigurationError reports an input the solver refuses before iterating:
// a topology other than Slack/PV/PQ, a branch to an unknown bus, a zero
// impedance branch or an unknown solver option.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// ConvergenceError reports that the mismatch did not fall below tolerance
// within the iteration cap.
type ConvergenceError struct {
	Iterations int
	Mismatch   float64 // max |mismatch| of the state the solve stopped at, p.u.
	Method     string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("convergence error: %s did not converge after %d iterations (max mismatch %.6e p.u.)",
		e.Method, e.Iterations, e.Mismatch)
}

// SingularMatrixError reports a zero or near-zero pivot during a linear solve.
// Step is the 1-based elimination step at which it was found.
type SingularMatrixError struct {
	Step  int
	Pivot float64
}

func (e *SingularMatrixError) Error() string {
	return fmt.Sprintf("singular matrix: pivot %.3e at step %d", e.Pivot, e.Step)
}
