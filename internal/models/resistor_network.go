package models

import (
	"fmt"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

const (
	netNodeVoltage dynamo.Handle = 0 // real: v1
	netCurrent     dynamo.Handle = 1 // real: current through R3 into C
	netSourceOn    dynamo.Handle = 0 // bool
)

// ResistorNetwork charges a capacitor from a switched source:
//
//	Vs --R1-- v1 --R3-- C -- gnd
//	          |
//	          R2
//	          |
//	         gnd
//
// v1 and the branch current i3 form a 2x2 algebraic loop solved every
// derivative evaluation:
//
//	(1/R1 + 1/R2)·v1 + i3 = Vs/R1
//	v1 - R3·i3            = vC
//
// The source toggles every HalfPeriod.
type ResistorNetwork struct {
	Source     float64
	R1, R2, R3 float64
	C          float64
	HalfPeriod float64
}

func NewResistorNetwork() *ResistorNetwork {
	return &ResistorNetwork{
		Source:     10,
		R1:         100,
		R2:         200,
		R3:         50,
		C:          1e-3,
		HalfPeriod: 0.5,
	}
}

func (r *ResistorNetwork) Name() string { return "resistor_network" }

func (r *ResistorNetwork) Dimensions() dynamo.Dimensions {
	return dynamo.Dimensions{States: 1, Reals: 2, Bools: 1}
}

func (r *ResistorNetwork) Capabilities() dynamo.Capabilities {
	return dynamo.CapMixed | dynamo.CapAlgebraic
}

func (r *ResistorNetwork) Initialize(v dynamo.Variables) error {
	if r.R1 <= 0 || r.R2 <= 0 || r.R3 <= 0 || r.C <= 0 {
		return fmt.Errorf("resistor_network: components must be positive")
	}
	v.SetContinuousState(0, 0)
	return nil
}

func (r *ResistorNetwork) Systems() []int { return []int{2} }

func (r *ResistorNetwork) Assemble(index int, v dynamo.Variables, b dynamo.SystemBuilder) error {
	if index != 0 {
		return fmt.Errorf("resistor_network: no system %d", index)
	}
	vs := 0.0
	if v.Bool(netSourceOn) {
		vs = r.Source
	}
	b.SetElement(0, 0, 1/r.R1+1/r.R2, 0)
	b.SetElement(0, 1, 1, 1)
	b.SetElement(1, 0, 1, 2)
	b.SetElement(1, 1, -r.R3, 3)
	b.SetRHS(0, vs/r.R1)
	b.SetRHS(1, v.ContinuousState(0))
	return nil
}

func (r *ResistorNetwork) ApplySolution(index int, v dynamo.Variables, x []float64) error {
	if index != 0 || len(x) != 2 {
		return fmt.Errorf("resistor_network: bad solution for system %d", index)
	}
	v.SetReal(netNodeVoltage, x[0])
	v.SetReal(netCurrent, x[1])
	return nil
}

func (r *ResistorNetwork) Derivatives(v dynamo.Variables) error {
	v.SetDerivative(0, v.Real(netCurrent)/r.C)
	return nil
}

func (r *ResistorNetwork) EvaluateConditions(v dynamo.Variables, out []bool) {}

func (r *ResistorNetwork) UpdateDiscrete(ctx dynamo.EventContext) (bool, error) {
	switch {
	case ctx.Initial():
		ctx.SetBool(netSourceOn, true)
	case ctx.TimeEventActive(0):
		ctx.SetBool(netSourceOn, !ctx.PreBool(netSourceOn))
	}
	return false, nil
}

func (r *ResistorNetwork) TimeEvents() []dynamo.TimeEvent {
	return []dynamo.TimeEvent{{Start: r.HalfPeriod, Interval: r.HalfPeriod}}
}

// SteadyVoltage is the capacitor voltage the network settles to with
// the source on.
func (r *ResistorNetwork) SteadyVoltage() float64 {
	return r.Source * r.R2 / (r.R1 + r.R2)
}
