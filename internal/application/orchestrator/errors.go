package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the orchestrator. Typed errors below unwrap to these so
// callers can use errors.Is.
var (
	ErrDuplicateID          = errors.New("duplicate model id")
	ErrUnresolvedDependency = errors.New("unresolved dependency")
	ErrCyclicDependency     = errors.New("cyclic dependency")
	ErrInitialization       = errors.New("model initialization failed")
	ErrStep                 = errors.New("model step failed")
	ErrInvalidState         = errors.New("invalid orchestrator state")
	ErrDisposed             = fmt.Errorf("orchestrator disposed: %w", ErrInvalidState)
	ErrRoundAborted         = errors.New("round aborted")
	ErrInvalidArgument      = errors.New("invalid argument")
)

// RegistrationError reports a model whose resolved identity is already
// registered.
type RegistrationError struct {
	ModelID string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("%s: %q", ErrDuplicateID, e.ModelID)
}

func (e *RegistrationError) Unwrap() error { return ErrDuplicateID }

// UnresolvedDependencyError reports a dependency identity that names no
// registered model.
type UnresolvedDependencyError struct {
	ModelID    string
	Dependency string
}

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("%s: model %q depends on unknown model %q", ErrUnresolvedDependency, e.ModelID, e.Dependency)
}

func (e *UnresolvedDependencyError) Unwrap() error { return ErrUnresolvedDependency }

// CyclicDependencyError names every model that could not be placed in a
// level.
type CyclicDependencyError struct {
	ModelIDs []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("%s among models: %s", ErrCyclicDependency, strings.Join(e.ModelIDs, ", "))
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// InitializationError wraps the failure of a model's Initialize call.
type InitializationError struct {
	ModelID string
	Err     error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("%s: model %q: %v", ErrInitialization, e.ModelID, e.Err)
}

func (e *InitializationError) Unwrap() []error { return []error{ErrInitialization, e.Err} }

// StepError wraps the failure of a model's Step call.
type StepError struct {
	ModelID string
	Step    int64
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: model %q at step %d: %v", ErrStep, e.ModelID, e.Step, e.Err)
}

func (e *StepError) Unwrap() []error { return []error{ErrStep, e.Err} }

// InvalidStateError reports a control call made in an incompatible state.
type InvalidStateError struct {
	Op    string
	State RunState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %s not allowed in state %s", ErrInvalidState, e.Op, e.State)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// panicError carries a recovered panic from model code.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
