package dynamo

import (
	"fmt"
	"math"
)

// State is a vector of continuous states or their derivatives.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	return s.FirstInvalid() < 0
}

// FirstInvalid returns the index of the first NaN or Inf entry, or -1.
func (s State) FirstInvalid() int {
	for i, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Handle is the dense index the model compiler assigns to a variable.
// Handles are per variable class: real handle 0 and integer handle 0 are
// different variables.
type Handle int

// VarKind names a discrete variable class.
type VarKind int

const (
	KindReal VarKind = iota
	KindInt
	KindBool
	KindString
)

func (k VarKind) String() string {
	switch k {
	case KindReal:
		return "real"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Dimensions are the compiler-declared array sizes of a model.
type Dimensions struct {
	States     int
	Reals      int
	Ints       int
	Bools      int
	Strings    int
	Conditions int
	Delays     int
}

// Validate rejects negative sizes.
func (d Dimensions) Validate() error {
	fields := []struct {
		name string
		n    int
	}{
		{"states", d.States},
		{"reals", d.Reals},
		{"ints", d.Ints},
		{"bools", d.Bools},
		{"strings", d.Strings},
		{"conditions", d.Conditions},
		{"delays", d.Delays},
	}
	for _, f := range fields {
		if f.n < 0 {
			return fmt.Errorf("%w: %s dimension is %d", ErrDimensionMismatch, f.name, f.n)
		}
	}
	return nil
}

// Size returns the declared size for a discrete variable class.
func (d Dimensions) Size(k VarKind) int {
	switch k {
	case KindReal:
		return d.Reals
	case KindInt:
		return d.Ints
	case KindBool:
		return d.Bools
	case KindString:
		return d.Strings
	default:
		return 0
	}
}

// StartValues holds handle-indexed start values. Shorter slices leave the
// remaining variables zero.
type StartValues struct {
	States  []float64
	Reals   []float64
	Ints    []int
	Bools   []bool
	Strings []string
}

// TimeEvent schedules a discontinuity at Start and then every Interval.
// Interval 0 fires once. Limit caps the number of activations; 0 means no cap.
type TimeEvent struct {
	Start    float64
	Interval float64
	Limit    int
}

// Settings are the numeric bounds the kernel reads from the global
// settings collaborator.
type Settings struct {
	// DelayMax is the longest delay any expression may request.
	DelayMax float64

	// MaxEventIterations bounds the event fixed-point loop.
	MaxEventIterations int

	// LinearTolerance is the residual bound for CheckLinearSolutions.
	LinearTolerance float64

	// LinearSolver names the primary backend; LinearFallbacks are tried in order.
	LinearSolver    string
	LinearFallbacks []string

	// TimeEventEpsilon is the window within which a time event counts as due.
	TimeEventEpsilon float64

	// StrictPre makes pre() of a never-saved variable an error.
	StrictPre bool
}

const (
	DefaultDelayMax           = 10.0
	DefaultMaxEventIterations = 20
	DefaultLinearTolerance    = 1e-8
	DefaultLinearSolver       = "dense"
	DefaultTimeEventEpsilon   = 1e-10
)

func DefaultSettings() Settings {
	return Settings{
		DelayMax:           DefaultDelayMax,
		MaxEventIterations: DefaultMaxEventIterations,
		LinearTolerance:    DefaultLinearTolerance,
		LinearSolver:       DefaultLinearSolver,
		LinearFallbacks:    []string{"total_pivot"},
		TimeEventEpsilon:   DefaultTimeEventEpsilon,
	}
}

// System is the right-hand side an integrator advances.
type System interface {
	Derive(x State, t float64) (State, error)
	StateDim() int
}

// Integrator advances a System by one step of size dt.
type Integrator interface {
	Step(dyn System, x State, t, dt float64) (State, error)
}

// Variables is the model's view of the kernel state arrays.
type Variables interface {
	Time() float64

	Real(h Handle) float64
	SetReal(h Handle, v float64)
	Int(h Handle) int
	SetInt(h Handle, v int)
	Bool(h Handle) bool
	SetBool(h Handle, v bool)
	String(h Handle) string
	SetString(h Handle, v string)

	ContinuousState(i int) float64
	SetContinuousState(i int, v float64)
	SetDerivative(i int, v float64)

	// Delay returns expression exprID's value delayTime ago.
	Delay(exprID int, current, delayTime, delayMax float64) (float64, error)

	// Assert records a failure when cond is false. Only SeverityFatal
	// returns a non-nil error.
	Assert(cond bool, msg string, sev Severity) error

	// Terminate requests a graceful stop at the current time.
	Terminate(msg string)
}

// EventContext extends Variables with the discrete-event operators a
// model uses while its discrete equations are recomputed.
type EventContext interface {
	Variables

	PreReal(h Handle) float64
	PreInt(h Handle) int
	PreBool(h Handle) bool
	PreString(h Handle) string

	Edge(h Handle) bool

	ChangeReal(h Handle) bool
	ChangeInt(h Handle) bool
	ChangeBool(h Handle) bool
	ChangeString(h Handle) bool

	// Condition returns zero-crossing condition i as of the latest evaluation.
	Condition(i int) bool
	// ConditionEdge reports condition i switching from false to true.
	ConditionEdge(i int) bool
	// TimeEventActive reports whether time event i fired at the current time.
	TimeEventActive(i int) bool
	// Initial reports whether the kernel is resolving the initial event.
	Initial() bool
}

// SystemBuilder is the element-assembly entry point for linear subsystems.
type SystemBuilder interface {
	SetElement(row, col int, value float64, nth int)
	SetRHS(row int, value float64)
}
