package linsolve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultIterativeTolerance = 1e-12
	DefaultIterativeMaxIter   = 1000
)

// IterativeBackend runs BiCGSTAB over A in compressed sparse rows.
// Systems whose condition number exceeds MaxCondition are rejected
// before iterating.
type IterativeBackend struct {
	Tolerance    float64
	MaxIter      int
	MaxCondition float64
}

func NewIterativeBackend() *IterativeBackend {
	return &IterativeBackend{
		Tolerance:    DefaultIterativeTolerance,
		MaxIter:      DefaultIterativeMaxIter,
		MaxCondition: DefaultMaxCondition,
	}
}

func (b *IterativeBackend) Kind() Kind          { return IterativeSparse }
func (b *IterativeBackend) Name() string        { return IterativeSparse.String() }
func (b *IterativeBackend) Description() string { return IterativeSparse.Description() }
func (b *IterativeBackend) Available() bool     { return true }

// Solve starts from x = 0 and stops once ‖r‖₂ ≤ Tolerance·‖b‖₂.
func (b *IterativeBackend) Solve(sys *System) ([]float64, error) {
	n := sys.Size()
	if n <= 0 {
		return nil, ErrEmptySystem
	}
	if err := b.checkRank(sys); err != nil {
		return nil, err
	}
	a := sys.compress()
	rhs := sys.RHS()

	x := make([]float64, n)
	bnorm := floats.Norm(rhs, 2)
	if bnorm == 0 {
		return x, nil
	}
	tol := b.Tolerance * bnorm

	r := make([]float64, n)
	copy(r, rhs)
	rhat := make([]float64, n)
	copy(rhat, r)

	p := make([]float64, n)
	v := make([]float64, n)
	s := make([]float64, n)
	t := make([]float64, n)

	rho, alpha, omega := 1.0, 1.0, 1.0
	for it := 1; it <= b.MaxIter; it++ {
		rhoNext := floats.Dot(rhat, r)
		if rhoNext == 0 {
			return nil, singular(sys, b.Name(), fmt.Sprintf("breakdown (rho=0) at iteration %d", it))
		}
		if it == 1 {
			copy(p, r)
		} else {
			beta := (rhoNext / rho) * (alpha / omega)
			// p = r + beta*(p - omega*v)
			floats.AddScaled(p, -omega, v)
			floats.Scale(beta, p)
			floats.Add(p, r)
		}
		rho = rhoNext

		a.mulVec(v, p)
		den := floats.Dot(rhat, v)
		if den == 0 {
			return nil, singular(sys, b.Name(), fmt.Sprintf("breakdown (rhat·v=0) at iteration %d", it))
		}
		alpha = rho / den

		floats.AddScaledTo(s, r, -alpha, v)
		if floats.Norm(s, 2) <= tol {
			floats.AddScaled(x, alpha, p)
			return x, nil
		}

		a.mulVec(t, s)
		tt := floats.Dot(t, t)
		if tt == 0 {
			return nil, singular(sys, b.Name(), fmt.Sprintf("breakdown (t=0) at iteration %d", it))
		}
		omega = floats.Dot(t, s) / tt

		floats.AddScaled(x, alpha, p)
		floats.AddScaled(x, omega, s)
		floats.AddScaledTo(r, s, -omega, t)

		if math.IsNaN(omega) || !finite(x) {
			return nil, singular(sys, b.Name(), "non-finite iterate")
		}
		if floats.Norm(r, 2) <= tol {
			return x, nil
		}
		if omega == 0 {
			return nil, singular(sys, b.Name(), fmt.Sprintf("breakdown (omega=0) at iteration %d", it))
		}
	}
	return nil, fmt.Errorf("%w: %d iterations in system %d: %w",
		ErrNotConverged, b.MaxIter, sys.Index(), singular(sys, b.Name(), "iteration limit"))
}

// checkRank rejects rank-deficient A. BiCGSTAB can converge on a
// consistent singular system and would return one of many solutions.
func (b *IterativeBackend) checkRank(sys *System) error {
	var svd mat.SVD
	if !svd.Factorize(sys.Dense(), mat.SVDNone) {
		return singular(sys, b.Name(), "singular value decomposition failed")
	}
	limit := b.MaxCondition
	if limit <= 0 {
		limit = DefaultMaxCondition
	}
	cond := svd.Cond()
	if math.IsNaN(cond) || math.IsInf(cond, 1) || cond > limit {
		return singular(sys, b.Name(), fmt.Sprintf("rank deficient, condition number %.3g", cond))
	}
	return nil
}
