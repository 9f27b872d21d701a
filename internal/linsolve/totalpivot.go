package linsolve

import (
	"fmt"
	"math"
)

// DefaultPivotTolerance is the relative pivot magnitude below which the
// total-pivot backend treats A as singular.
const DefaultPivotTolerance = 1e-13

// TotalPivotBackend is Gaussian elimination choosing the largest
// remaining element as pivot, swapping both rows and columns.
type TotalPivotBackend struct {
	PivotTolerance float64
}

func NewTotalPivotBackend() *TotalPivotBackend {
	return &TotalPivotBackend{PivotTolerance: DefaultPivotTolerance}
}

func (b *TotalPivotBackend) Kind() Kind          { return TotalPivotDirect }
func (b *TotalPivotBackend) Name() string        { return TotalPivotDirect.String() }
func (b *TotalPivotBackend) Description() string { return TotalPivotDirect.Description() }
func (b *TotalPivotBackend) Available() bool     { return true }

func (b *TotalPivotBackend) Solve(sys *System) ([]float64, error) {
	n := sys.Size()
	if n <= 0 {
		return nil, ErrEmptySystem
	}

	// Augmented copy [A | b], row-major.
	w := n + 1
	m := make([]float64, n*w)
	dense := sys.Dense()
	scale := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m[i*w+j] = dense.At(i, j)
			scale = math.Max(scale, math.Abs(m[i*w+j]))
		}
	}
	for i, v := range sys.RHS() {
		m[i*w+n] = v
	}
	if scale == 0 {
		return nil, singular(sys, b.Name(), "zero matrix")
	}

	// perm[j] is the unknown held in column j.
	perm := make([]int, n)
	for j := range perm {
		perm[j] = j
	}

	for k := 0; k < n; k++ {
		pr, pc, pv := k, k, 0.0
		for i := k; i < n; i++ {
			for j := k; j < n; j++ {
				if v := math.Abs(m[i*w+j]); v > pv {
					pr, pc, pv = i, j, v
				}
			}
		}
		if pv <= b.PivotTolerance*scale {
			return nil, singular(sys, b.Name(), fmt.Sprintf("rank %d of %d", k, n))
		}
		if pr != k {
			for j := 0; j < w; j++ {
				m[k*w+j], m[pr*w+j] = m[pr*w+j], m[k*w+j]
			}
		}
		if pc != k {
			for i := 0; i < n; i++ {
				m[i*w+k], m[i*w+pc] = m[i*w+pc], m[i*w+k]
			}
			perm[k], perm[pc] = perm[pc], perm[k]
		}

		piv := m[k*w+k]
		for i := k + 1; i < n; i++ {
			f := m[i*w+k] / piv
			if f == 0 {
				continue
			}
			for j := k; j < w; j++ {
				m[i*w+j] -= f * m[k*w+j]
			}
		}
	}

	y := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := m[i*w+n]
		for j := i + 1; j < n; j++ {
			sum -= m[i*w+j] * y[j]
		}
		y[i] = sum / m[i*w+i]
	}

	x := make([]float64, n)
	for j, v := range y {
		x[perm[j]] = v
	}
	if !finite(x) {
		return nil, singular(sys, b.Name(), "non-finite solution")
	}
	return x, nil
}
