// Package state owns the runtime state arrays of a simulated model.
//
// A [Vector] holds the continuous states and their derivatives, the
// discrete reals, integers, booleans and strings, the current
// zero-crossing condition values, and the delay history. Arrays are sized
// once from the compiler-declared [dynamo.Dimensions] and never resized.
// Typed accessors index by [dynamo.Handle]; like slice indexing, an
// out-of-range handle panics. Use [Vector.CheckHandle] for handles from
// untrusted sources.
package state

import (
	"fmt"

	"github.com/san-kum/hybridsim/internal/delay"
	"github.com/san-kum/hybridsim/internal/dynamo"
)

var _ dynamo.Variables = (*Vector)(nil)

type Vector struct {
	dims     dynamo.Dimensions
	settings dynamo.Settings
	time     float64

	reals []float64
	ints  []int
	bools []bool
	strs  []string

	x     dynamo.State
	dx    dynamo.State
	conds []bool

	delays *delay.Table

	assertions    []*dynamo.Failure
	terminated    bool
	terminateMsg  string
	terminateTime float64
	badState      dynamo.Handle
}

// New allocates and initializes a Vector for dims.
func New(dims dynamo.Dimensions, settings dynamo.Settings) (*Vector, error) {
	v := &Vector{dims: dims, settings: settings}
	if err := v.Initialize(); err != nil {
		return nil, err
	}
	return v, nil
}

// Initialize validates the dimensions and zero-fills every array. It also
// clears the delay history, recorded assertions and the terminal flag.
func (v *Vector) Initialize() error {
	if err := v.dims.Validate(); err != nil {
		return err
	}
	if v.dims.Delays > 0 && v.settings.DelayMax <= 0 {
		return fmt.Errorf("state: %d delay expressions need a positive delay horizon", v.dims.Delays)
	}

	v.time = 0
	v.reals = make([]float64, v.dims.Reals)
	v.ints = make([]int, v.dims.Ints)
	v.bools = make([]bool, v.dims.Bools)
	v.strs = make([]string, v.dims.Strings)
	v.x = make(dynamo.State, v.dims.States)
	v.dx = make(dynamo.State, v.dims.States)
	v.conds = make([]bool, v.dims.Conditions)
	v.delays = delay.NewTable(v.dims.Delays, v.settings.DelayMax)

	v.assertions = nil
	v.terminated = false
	v.terminateMsg = ""
	v.terminateTime = 0
	v.badState = dynamo.NoHandle
	return nil
}

func (v *Vector) Dimensions() dynamo.Dimensions { return v.dims }
func (v *Vector) Settings() dynamo.Settings     { return v.settings }

func (v *Vector) SetTime(t float64) { v.time = t }
func (v *Vector) Time() float64     { return v.time }

// CheckHandle reports whether h addresses a declared variable of kind k.
func (v *Vector) CheckHandle(k dynamo.VarKind, h dynamo.Handle) error {
	if n := v.dims.Size(k); h < 0 || int(h) >= n {
		return fmt.Errorf("%w: %s handle %d (have %d)", dynamo.ErrHandleRange, k, h, n)
	}
	return nil
}

func (v *Vector) Real(h dynamo.Handle) float64        { return v.reals[h] }
func (v *Vector) SetReal(h dynamo.Handle, x float64)  { v.reals[h] = x }
func (v *Vector) Int(h dynamo.Handle) int             { return v.ints[h] }
func (v *Vector) SetInt(h dynamo.Handle, x int)       { v.ints[h] = x }
func (v *Vector) Bool(h dynamo.Handle) bool           { return v.bools[h] }
func (v *Vector) SetBool(h dynamo.Handle, x bool)     { v.bools[h] = x }
func (v *Vector) String(h dynamo.Handle) string       { return v.strs[h] }
func (v *Vector) SetString(h dynamo.Handle, x string) { v.strs[h] = x }

// Reals returns a copy of the discrete reals.
func (v *Vector) Reals() []float64 {
	out := make([]float64, len(v.reals))
	copy(out, v.reals)
	return out
}

func (v *Vector) Ints() []int {
	out := make([]int, len(v.ints))
	copy(out, v.ints)
	return out
}

func (v *Vector) Bools() []bool {
	out := make([]bool, len(v.bools))
	copy(out, v.bools)
	return out
}

func (v *Vector) Strings() []string {
	out := make([]string, len(v.strs))
	copy(out, v.strs)
	return out
}

func (v *Vector) ContinuousState(i int) float64       { return v.x[i] }
func (v *Vector) SetContinuousState(i int, x float64) { v.x[i] = x }

// ContinuousStates returns a copy of the continuous states.
func (v *Vector) ContinuousStates() dynamo.State {
	return v.x.Clone()
}

func (v *Vector) SetContinuousStates(x dynamo.State) error {
	if len(x) != len(v.x) {
		return fmt.Errorf("%w: %d states, got %d", dynamo.ErrDimensionMismatch, len(v.x), len(x))
	}
	copy(v.x, x)
	return nil
}

func (v *Vector) Derivative(i int) float64       { return v.dx[i] }
func (v *Vector) SetDerivative(i int, x float64) { v.dx[i] = x }

// RHS returns a copy of the right-hand side.
func (v *Vector) RHS() dynamo.State {
	return v.dx.Clone()
}

func (v *Vector) SetRHS(dx dynamo.State) error {
	if len(dx) != len(v.dx) {
		return fmt.Errorf("%w: %d derivatives, got %d", dynamo.ErrDimensionMismatch, len(v.dx), len(dx))
	}
	copy(v.dx, dx)
	return nil
}

func (v *Vector) Condition(i int) bool { return v.conds[i] }

// Conditions returns a copy of the current zero-crossing condition values.
func (v *Vector) Conditions() []bool {
	out := make([]bool, len(v.conds))
	copy(out, v.conds)
	return out
}

func (v *Vector) SetConditions(c []bool) error {
	if len(c) != len(v.conds) {
		return fmt.Errorf("%w: %d conditions, got %d", dynamo.ErrDimensionMismatch, len(v.conds), len(c))
	}
	copy(v.conds, c)
	return nil
}

// ApplyStartValues copies handle-indexed start values into the arrays.
func (v *Vector) ApplyStartValues(sv dynamo.StartValues) error {
	if len(sv.States) > len(v.x) || len(sv.Reals) > len(v.reals) || len(sv.Ints) > len(v.ints) ||
		len(sv.Bools) > len(v.bools) || len(sv.Strings) > len(v.strs) {
		return fmt.Errorf("%w: start values exceed declared dimensions", dynamo.ErrDimensionMismatch)
	}
	copy(v.x, sv.States)
	copy(v.reals, sv.Reals)
	copy(v.ints, sv.Ints)
	copy(v.bools, sv.Bools)
	copy(v.strs, sv.Strings)
	return nil
}
