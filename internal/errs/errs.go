// Package errs defines the error classes shared by the planners, dispatchers
// and the reconciler. Callers wrap them with context and match with errors.Is.
package errs

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidInput covers empty rosters, cyclic or malformed graphs and
	// negative costs or delays. The run fails immediately.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInfeasible is returned when no VM can run a task.
	ErrInfeasible = errors.New("infeasible")

	// ErrUnbound marks a task that reached the Static heuristic without a VM.
	// It is logged and recovered, never returned from a run.
	ErrUnbound = errors.New("unbound task")

	// ErrConfigurationConflict is returned when the configuration asks for
	// work the planner refuses to do, such as an oversized permutation search.
	ErrConfigurationConflict = errors.New("configuration conflict")
)

// Invalid wraps ErrInvalidInput with a formatted message.
func Invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidInput, format, args...)
}

// Infeasible wraps ErrInfeasible with a formatted message.
func Infeasible(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInfeasible, format, args...)
}

// Conflict wraps ErrConfigurationConflict with a formatted message.
func Conflict(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfigurationConflict, format, args...)
}
