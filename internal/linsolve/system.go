package linsolve

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

type element struct {
	row, col int
	value    float64
	set      bool
}

// System is one linear subsystem A·x = b. The model fills it through
// SetElement and SetRHS; it lives for a single solve.
type System struct {
	index int
	n     int

	// elements are kept in nth order.
	elements []element
	rhs      []float64
	err      error
}

var _ dynamo.SystemBuilder = (*System)(nil)

func NewSystem(index, n int) *System {
	return &System{index: index, n: n, rhs: make([]float64, max(n, 0))}
}

func (s *System) Index() int { return s.index }
func (s *System) Size() int  { return s.n }

// SetElement writes value at (row, col) as the nth nonzero. Writing the
// same nth twice overwrites; distinct nth at the same position add up.
func (s *System) SetElement(row, col int, value float64, nth int) {
	if row < 0 || row >= s.n || col < 0 || col >= s.n || nth < 0 {
		if s.err == nil {
			s.err = fmt.Errorf("%w: element (%d,%d) #%d in %dx%d system %d",
				dynamo.ErrDimensionMismatch, row, col, nth, s.n, s.n, s.index)
		}
		return
	}
	if nth >= len(s.elements) {
		s.elements = append(s.elements, make([]element, nth+1-len(s.elements))...)
	}
	s.elements[nth] = element{row: row, col: col, value: value, set: true}
}

func (s *System) SetRHS(row int, value float64) {
	if row < 0 || row >= s.n {
		if s.err == nil {
			s.err = fmt.Errorf("%w: rhs row %d in system %d of size %d",
				dynamo.ErrDimensionMismatch, row, s.index, s.n)
		}
		return
	}
	s.rhs[row] = value
}

// Assemble clears the system and lets fn fill it.
func (s *System) Assemble(fn func(*System)) error {
	s.Reset()
	fn(s)
	return s.err
}

func (s *System) Reset() {
	s.elements = s.elements[:0]
	clear(s.rhs)
	s.err = nil
}

// Err returns the first assembly error.
func (s *System) Err() error { return s.err }

// RHS returns a copy of b.
func (s *System) RHS() []float64 {
	out := make([]float64, len(s.rhs))
	copy(out, s.rhs)
	return out
}

// NonZeros returns the number of assembled elements.
func (s *System) NonZeros() int {
	n := 0
	for _, e := range s.elements {
		if e.set {
			n++
		}
	}
	return n
}

// Dense returns A as a dense matrix.
func (s *System) Dense() *mat.Dense {
	a := mat.NewDense(s.n, s.n, nil)
	for _, e := range s.elements {
		if e.set {
			a.Set(e.row, e.col, a.At(e.row, e.col)+e.value)
		}
	}
	return a
}

// csrMatrix is A in compressed sparse row form.
type csrMatrix struct {
	n      int
	rowPtr []int
	cols   []int
	vals   []float64
}

// compress sums duplicate positions into compressed sparse rows.
func (s *System) compress() csrMatrix {
	var es []element
	for _, e := range s.elements {
		if e.set {
			es = append(es, e)
		}
	}
	sort.SliceStable(es, func(i, j int) bool {
		if es[i].row != es[j].row {
			return es[i].row < es[j].row
		}
		return es[i].col < es[j].col
	})

	m := csrMatrix{n: s.n, rowPtr: make([]int, s.n+1)}
	for i, e := range es {
		last := len(m.cols) - 1
		if i > 0 && last >= 0 && es[i-1].row == e.row && m.cols[last] == e.col {
			m.vals[last] += e.value
			continue
		}
		m.cols = append(m.cols, e.col)
		m.vals = append(m.vals, e.value)
		m.rowPtr[e.row+1] = len(m.cols)
	}
	for i := 1; i <= s.n; i++ {
		if m.rowPtr[i] < m.rowPtr[i-1] {
			m.rowPtr[i] = m.rowPtr[i-1]
		}
	}
	return m
}

// mulVec computes dst = A·x.
func (m csrMatrix) mulVec(dst, x []float64) {
	for i := 0; i < m.n; i++ {
		var sum float64
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			sum += m.vals[k] * x[m.cols[k]]
		}
		dst[i] = sum
	}
}

// Residual returns ‖A·x − b‖∞.
func (s *System) Residual(x []float64) (float64, error) {
	if len(x) != s.n {
		return math.Inf(1), fmt.Errorf("%w: solution of length %d for system of size %d",
			dynamo.ErrDimensionMismatch, len(x), s.n)
	}
	if s.n == 0 {
		return 0, nil
	}
	var r mat.VecDense
	r.MulVec(s.Dense(), mat.NewVecDense(s.n, append([]float64(nil), x...)))
	r.SubVec(&r, mat.NewVecDense(s.n, s.RHS()))
	return mat.Norm(&r, math.Inf(1)), nil
}
