package models

import "github.com/san-kum/hybridsim/internal/dynamo"

const (
	thermoSampled  dynamo.Handle = 0 // real: temperature held at the last sample
	thermoSwitches dynamo.Handle = 0 // int
	thermoHeater   dynamo.Handle = 0 // bool
	thermoMode     dynamo.Handle = 0 // string
)

const (
	thermoModeHeating = "heating"
	thermoModeIdle    = "idle"
)

// Thermostat is a room losing heat to the ambient with a bang-bang
// heater. The heater switches on below Low and off above High. A periodic
// time event samples the temperature.
type Thermostat struct {
	Low          float64
	High         float64
	Ambient      float64
	Initial      float64
	Loss         float64
	Power        float64
	SamplePeriod float64
}

func NewThermostat() *Thermostat {
	return &Thermostat{
		Low:          19,
		High:         21,
		Ambient:      10,
		Initial:      15,
		Loss:         0.1,
		Power:        2,
		SamplePeriod: 1,
	}
}

func (th *Thermostat) Name() string { return "thermostat" }

func (th *Thermostat) Dimensions() dynamo.Dimensions {
	return dynamo.Dimensions{States: 1, Reals: 1, Ints: 1, Bools: 1, Strings: 1, Conditions: 2}
}

func (th *Thermostat) Capabilities() dynamo.Capabilities { return dynamo.CapMixed }

func (th *Thermostat) Initialize(v dynamo.Variables) error {
	v.SetContinuousState(0, th.Initial)
	v.SetReal(thermoSampled, th.Initial)
	v.SetString(thermoMode, thermoModeIdle)
	return nil
}

func (th *Thermostat) Derivatives(v dynamo.Variables) error {
	temp := v.ContinuousState(0)
	dT := -th.Loss * (temp - th.Ambient)
	if v.Bool(thermoHeater) {
		dT += th.Power
	}
	v.SetDerivative(0, dT)
	return nil
}

func (th *Thermostat) EvaluateConditions(v dynamo.Variables, out []bool) {
	temp := v.ContinuousState(0)
	out[0] = temp < th.Low
	out[1] = temp > th.High
}

func (th *Thermostat) UpdateDiscrete(ctx dynamo.EventContext) (bool, error) {
	temp := ctx.ContinuousState(0)

	switch {
	case ctx.Initial():
		ctx.SetBool(thermoHeater, temp < (th.Low+th.High)/2)
	case ctx.ConditionEdge(0):
		ctx.SetBool(thermoHeater, true)
	case ctx.ConditionEdge(1):
		ctx.SetBool(thermoHeater, false)
	}

	if ctx.ChangeBool(thermoHeater) && !ctx.Initial() {
		ctx.SetInt(thermoSwitches, ctx.PreInt(thermoSwitches)+1)
	}
	if ctx.Bool(thermoHeater) {
		ctx.SetString(thermoMode, thermoModeHeating)
	} else {
		ctx.SetString(thermoMode, thermoModeIdle)
	}

	if ctx.TimeEventActive(0) {
		ctx.SetReal(thermoSampled, temp)
	}

	if err := ctx.Assert(temp < th.High+5, "room overheating", dynamo.SeverityError); err != nil {
		return false, err
	}
	return false, nil
}

func (th *Thermostat) TimeEvents() []dynamo.TimeEvent {
	if th.SamplePeriod <= 0 {
		return nil
	}
	return []dynamo.TimeEvent{{Start: th.SamplePeriod, Interval: th.SamplePeriod}}
}
