package linsolve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

// DefaultMaxCondition is the largest condition number the dense backend
// accepts before reporting the system as ill-conditioned.
const DefaultMaxCondition = 1e14

// DenseBackend factorizes A with LU and partial pivoting.
type DenseBackend struct {
	MaxCondition float64
}

func NewDenseBackend() *DenseBackend {
	return &DenseBackend{MaxCondition: DefaultMaxCondition}
}

func (b *DenseBackend) Kind() Kind          { return DenseDirect }
func (b *DenseBackend) Name() string        { return DenseDirect.String() }
func (b *DenseBackend) Description() string { return DenseDirect.Description() }
func (b *DenseBackend) Available() bool     { return true }

func (b *DenseBackend) Solve(sys *System) ([]float64, error) {
	n := sys.Size()
	if n <= 0 {
		return nil, ErrEmptySystem
	}

	var lu mat.LU
	lu.Factorize(sys.Dense())

	cond := lu.Cond()
	if lu.Det() == 0 || math.IsNaN(cond) || math.IsInf(cond, 1) || cond > b.MaxCondition {
		return nil, singular(sys, b.Name(), fmt.Sprintf("condition number %.3g", cond))
	}

	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, mat.NewVecDense(n, sys.RHS())); err != nil {
		return nil, singular(sys, b.Name(), err.Error())
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	if !finite(out) {
		return nil, singular(sys, b.Name(), "non-finite solution")
	}
	return out, nil
}

func singular(sys *System, backend, msg string) *dynamo.Failure {
	return &dynamo.Failure{
		Kind:    dynamo.SingularSystem,
		Handle:  dynamo.NoHandle,
		System:  sys.Index(),
		Backend: backend,
		Msg:     msg,
	}
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
