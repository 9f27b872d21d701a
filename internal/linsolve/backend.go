// Package linsolve solves the linear subsystems that algebraic loops in a
// model produce.
//
// A model fills a [System] element by element. A [Solver] hands it to the
// configured primary [Backend] and, when that fails, to any explicitly
// requested fallbacks in order:
//
//	sys := linsolve.NewSystem(0, 2)
//	sys.SetElement(0, 0, 2, 0)
//	sys.SetElement(1, 1, 2, 1)
//	sys.SetRHS(0, 4)
//	sys.SetRHS(1, 6)
//	x, err := solver.Solve(sys)
//
// CheckLinearSolutions recomputes the residual of every solved system and
// reports the ones exceeding the tolerance. It never aborts; deciding what
// a failing system means for the run is left to the caller.
package linsolve

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownBackend = errors.New("linsolve: unknown backend")
	ErrNoBackend      = errors.New("linsolve: no backend selected")
	ErrEmptySystem    = errors.New("linsolve: system has no unknowns")
	ErrNotConverged   = errors.New("linsolve: iteration did not converge")
)

type Backend interface {
	Kind() Kind
	Name() string
	Description() string
	Available() bool
	Solve(sys *System) ([]float64, error)
}

// NewBackend returns the backend for k.
func NewBackend(k Kind) (Backend, error) {
	switch k {
	case None:
		return noneBackend{}, nil
	case DenseDirect:
		return NewDenseBackend(), nil
	case IterativeSparse:
		return NewIterativeBackend(), nil
	case TotalPivotDirect:
		return NewTotalPivotBackend(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, k)
	}
}

// Backends returns one instance of every backend in Kind order.
func Backends() []Backend {
	out := make([]Backend, 0, len(infos))
	for _, info := range infos {
		b, _ := NewBackend(info.Kind)
		out = append(out, b)
	}
	return out
}

type noneBackend struct{}

func (noneBackend) Kind() Kind          { return None }
func (noneBackend) Name() string        { return None.String() }
func (noneBackend) Description() string { return None.Description() }
func (noneBackend) Available() bool     { return false }

func (noneBackend) Solve(sys *System) ([]float64, error) {
	return nil, fmt.Errorf("%w for system %d", ErrNoBackend, sys.Index())
}
