package linsolve

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

// Result is the outcome of the last solve of one system.
type Result struct {
	System   int
	Backend  string
	Time     float64
	X        []float64
	Residual float64
	Err      error

	sys *System
}

// Solver dispatches systems to a primary backend and its fallbacks.
type Solver struct {
	primary   Backend
	fallbacks []Backend
	tolerance float64
	time      float64
	results   map[int]*Result
}

// New builds a solver from the backend names in settings.
func New(settings dynamo.Settings) (*Solver, error) {
	name := settings.LinearSolver
	if name == "" {
		name = dynamo.DefaultLinearSolver
	}
	primary, err := backendByName(name)
	if err != nil {
		return nil, err
	}
	var fallbacks []Backend
	for _, fb := range settings.LinearFallbacks {
		b, err := backendByName(fb)
		if err != nil {
			return nil, err
		}
		if b.Kind() == primary.Kind() {
			continue
		}
		fallbacks = append(fallbacks, b)
	}
	tol := settings.LinearTolerance
	if tol <= 0 {
		tol = dynamo.DefaultLinearTolerance
	}
	return NewSolver(tol, primary, fallbacks...), nil
}

func NewSolver(tolerance float64, primary Backend, fallbacks ...Backend) *Solver {
	return &Solver{
		primary:   primary,
		fallbacks: fallbacks,
		tolerance: tolerance,
		results:   make(map[int]*Result),
	}
}

func backendByName(name string) (Backend, error) {
	k, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	return NewBackend(k)
}

func (s *Solver) Primary() Backend     { return s.primary }
func (s *Solver) Fallbacks() []Backend { return s.fallbacks }
func (s *Solver) Tolerance() float64   { return s.tolerance }

// SetTime stamps failures from subsequent solves with t.
func (s *Solver) SetTime(t float64) { s.time = t }

// Solve tries the primary backend, then each fallback in order, and
// records the outcome. The returned error is the last backend's.
func (s *Solver) Solve(sys *System) ([]float64, error) {
	res := &Result{System: sys.Index(), Time: s.time, sys: sys}
	s.results[sys.Index()] = res

	if err := sys.Err(); err != nil {
		res.Err = err
		return nil, err
	}

	chain := append([]Backend{s.primary}, s.fallbacks...)
	for i, b := range chain {
		x, err := b.Solve(sys)
		res.Backend = b.Name()
		if err == nil {
			res.X = x
			res.Err = nil
			res.Residual, _ = sys.Residual(x)
			if i > 0 {
				logrus.Debugf("linsolve: system %d solved by fallback %s", sys.Index(), b.Name())
			}
			return x, nil
		}
		if f, ok := dynamo.AsFailure(err); ok {
			f.Time = s.time
		}
		res.Err = err
		if i+1 < len(chain) {
			logrus.Debugf("linsolve: system %d: %s failed (%v), trying %s", sys.Index(), b.Name(), err, chain[i+1].Name())
		}
	}
	return nil, res.Err
}

// Result returns the recorded outcome for system index.
func (s *Solver) Result(index int) (*Result, bool) {
	r, ok := s.results[index]
	return r, ok
}

// CheckLinearSolutions recomputes ‖A·x − b‖∞ for every solved system and
// returns a failure for each one that did not solve or exceeds the
// tolerance. With printFailing set, each failure is logged.
func (s *Solver) CheckLinearSolutions(printFailing bool) []*dynamo.Failure {
	idx := make([]int, 0, len(s.results))
	for i := range s.results {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	var failures []*dynamo.Failure
	for _, i := range idx {
		f := s.check(s.results[i])
		if f == nil {
			continue
		}
		failures = append(failures, f)
		if printFailing {
			logrus.WithFields(logrus.Fields{
				"system":  f.System,
				"backend": f.Backend,
				"time":    f.Time,
			}).Warnf("linear system failed: %s", f.Msg)
		}
	}
	return failures
}

func (s *Solver) check(r *Result) *dynamo.Failure {
	if r.Err != nil {
		if f, ok := dynamo.AsFailure(r.Err); ok {
			return f
		}
		return &dynamo.Failure{
			Kind:    dynamo.SingularSystem,
			Time:    r.Time,
			Handle:  dynamo.NoHandle,
			System:  r.System,
			Backend: r.Backend,
			Msg:     r.Err.Error(),
			Wrapped: r.Err,
		}
	}
	res, err := r.sys.Residual(r.X)
	r.Residual = res
	if err == nil && res <= s.tolerance {
		return nil
	}
	msg := fmt.Sprintf("residual %.3g exceeds tolerance %.3g", res, s.tolerance)
	if err != nil {
		msg = err.Error()
	}
	return &dynamo.Failure{
		Kind:    dynamo.SingularSystem,
		Time:    r.Time,
		Handle:  dynamo.NoHandle,
		System:  r.System,
		Backend: r.Backend,
		Msg:     msg,
		Wrapped: err,
	}
}

// Reset forgets every recorded result.
func (s *Solver) Reset() {
	clear(s.results)
}

// IsSingular reports whether err is a singular-system failure.
func IsSingular(err error) bool {
	return errors.Is(err, dynamo.ErrSingularSystem)
}
