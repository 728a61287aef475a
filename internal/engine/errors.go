package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/combatlog/internal/event"
)

// ConfigurationError represents an invalid module graph.
//
// Configuration errors include:
//   - Cycle detection: a module transitively requires itself
//   - Unknown dependency: a declared dependency names no registered module
//   - Unknown module: a requested module is not registered
//   - Duplicate or malformed registrations
//
// Configuration errors are fatal: they are raised before any module is
// constructed and abort the entire run.
type ConfigurationError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Message is a human-readable description.
	Message string

	// Module is the module whose declaration is at fault.
	Module string

	// Dependency is the missing dependency name (UNKNOWN_DEPENDENCY).
	Dependency string

	// Cycle lists the modules in the cycle, first element repeated at the end.
	Cycle []string
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeCycleDetected indicates a dependency cycle (including self-reference).
	ErrCodeCycleDetected ConfigErrorCode = "CYCLE_DETECTED"

	// ErrCodeUnknownDependency indicates a dependency on an unregistered module.
	ErrCodeUnknownDependency ConfigErrorCode = "UNKNOWN_DEPENDENCY"

	// ErrCodeUnknownModule indicates a requested module is not registered.
	ErrCodeUnknownModule ConfigErrorCode = "UNKNOWN_MODULE"

	// ErrCodeDuplicateModule indicates a module name registered twice.
	ErrCodeDuplicateModule ConfigErrorCode = "DUPLICATE_MODULE"

	// ErrCodeInvalidSpec indicates a spec without name or factory.
	ErrCodeInvalidSpec ConfigErrorCode = "INVALID_SPEC"
)

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, strings.Join(e.Cycle, " -> "))
	}
	if e.Module != "" {
		return fmt.Sprintf("%s: %s (module=%s)", e.Code, e.Message, e.Module)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigurationError returns true if err is a ConfigurationError.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsCycleError returns true if err is a cycle detection error.
func IsCycleError(err error) bool {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeCycleDetected
	}
	return false
}

func newCycleError(cycle []string) *ConfigurationError {
	return &ConfigurationError{
		Code:    ErrCodeCycleDetected,
		Message: "module dependency cycle",
		Module:  cycle[0],
		Cycle:   cycle,
	}
}

// ErrDependencyUnavailable marks modules skipped because a dependency
// failed to construct.
var ErrDependencyUnavailable = errors.New("dependency unavailable")

// ErrConstructionClosed is the panic value of InitContext methods called
// after the factory returned. Subscriptions are fixed once construction
// ends.
var ErrConstructionClosed = errors.New("init context used after construction")

// ConstructionError records a module that could not be constructed.
// It is fatal for that module and its transitive dependents only.
type ConstructionError struct {
	Module string

	// Dependency is set when construction was skipped because this
	// dependency was unavailable.
	Dependency string

	Err error
}

func (e *ConstructionError) Error() string {
	if e.Dependency != "" {
		return fmt.Sprintf("construct %s: dependency %s: %v", e.Module, e.Dependency, e.Err)
	}
	return fmt.Sprintf("construct %s: %v", e.Module, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// HandlerError records a failed event delivery.
// The module is marked degraded; replay continues for all other modules.
//
// Seq is zero for failures after replay, such as a panicking Active.
type HandlerError struct {
	Module    string
	Seq       int64
	Timestamp int64
	Kind      event.Kind
	Err       error
}

func (e *HandlerError) Error() string {
	if e.Seq == 0 {
		return fmt.Sprintf("module %s failed after replay: %v", e.Module, e.Err)
	}
	return fmt.Sprintf("module %s failed on event #%d@%d (%s): %v",
		e.Module, e.Seq, e.Timestamp, e.Kind, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking factory or handler.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the recovered value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
