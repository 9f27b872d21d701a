package dynamo

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for kernel operations.
var (
	// ErrInvalidState indicates a continuous state holding NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched array sizes.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrHandleRange indicates a variable handle outside the declared dimensions.
	ErrHandleRange = errors.New("dynamo: variable handle out of range")

	// ErrMissingCapability indicates a model lacking a capability it declared or that was required.
	ErrMissingCapability = errors.New("dynamo: model does not implement capability")

	// ErrAssertion matches failures of kind AssertionFailure.
	ErrAssertion = errors.New("dynamo: assertion failed")

	// ErrTerminated matches failures of kind Termination.
	ErrTerminated = errors.New("dynamo: termination requested")

	// ErrEventNonConvergence matches failures of kind EventNonConvergence.
	ErrEventNonConvergence = errors.New("dynamo: event iteration did not converge")

	// ErrSingularSystem matches failures of kind SingularSystem.
	ErrSingularSystem = errors.New("dynamo: singular or ill-conditioned linear system")

	// ErrInconsistentState matches failures of kind InconsistentState.
	ErrInconsistentState = errors.New("dynamo: inconsistent state")
)

// FailureKind classifies a Failure.
type FailureKind int

const (
	AssertionFailure FailureKind = iota + 1
	Termination
	EventNonConvergence
	SingularSystem
	InconsistentState
)

func (k FailureKind) String() string {
	switch k {
	case AssertionFailure:
		return "assertion"
	case Termination:
		return "termination"
	case EventNonConvergence:
		return "event non-convergence"
	case SingularSystem:
		return "singular system"
	case InconsistentState:
		return "inconsistent state"
	default:
		return "unknown"
	}
}

func (k FailureKind) sentinel() error {
	switch k {
	case AssertionFailure:
		return ErrAssertion
	case Termination:
		return ErrTerminated
	case EventNonConvergence:
		return ErrEventNonConvergence
	case SingularSystem:
		return ErrSingularSystem
	case InconsistentState:
		return ErrInconsistentState
	default:
		return nil
	}
}

// Severity grades an assertion failure.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// NoHandle marks a Failure that is not tied to a variable.
const NoHandle Handle = -1

// Failure is the structured error returned by the kernel. Kind says what
// went wrong; the remaining fields locate it.
type Failure struct {
	Kind     FailureKind
	Severity Severity
	Time     float64

	// Handle of the offending variable, or NoHandle.
	Handle Handle

	// System index and backend name for SingularSystem.
	System  int
	Backend string

	// Iterations performed and conditions still flipping for EventNonConvergence.
	Iterations int
	Conditions []int

	Msg     string
	Wrapped error
}

func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at t=%.6g", f.Kind, f.Time)
	switch f.Kind {
	case AssertionFailure:
		fmt.Fprintf(&b, " [%s]", f.Severity)
	case EventNonConvergence:
		fmt.Fprintf(&b, " after %d iterations (conditions %v)", f.Iterations, f.Conditions)
	case SingularSystem:
		fmt.Fprintf(&b, " in system %d (%s)", f.System, f.Backend)
	case InconsistentState:
		fmt.Fprintf(&b, " in state %d", f.Handle)
	}
	if f.Msg != "" {
		b.WriteString(": ")
		b.WriteString(f.Msg)
	}
	if f.Wrapped != nil {
		b.WriteString(": ")
		b.WriteString(f.Wrapped.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Wrapped
}

// Is reports whether target is the sentinel for f's kind.
func (f *Failure) Is(target error) bool {
	s := f.Kind.sentinel()
	return s != nil && s == target
}

// Fatal reports whether the failure must stop the current step.
func (f *Failure) Fatal() bool {
	switch f.Kind {
	case AssertionFailure:
		return f.Severity == SeverityFatal
	case Termination:
		return false
	default:
		return true
	}
}

// AsFailure unwraps err into a *Failure.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// SimulationError wraps an error with the step it happened in.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
