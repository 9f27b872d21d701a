package models

import (
	"fmt"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

const feedbackDelayed dynamo.Handle = 0 // real: x(t-τ) as last evaluated

// DelayedFeedback is the linear delay equation dx/dt = -k·x(t-τ). It
// decays for k·τ < π/2 and oscillates with growing amplitude beyond.
type DelayedFeedback struct {
	Gain    float64
	Delay   float64
	Initial float64
}

func NewDelayedFeedback() *DelayedFeedback {
	return &DelayedFeedback{Gain: 1, Delay: 1, Initial: 1}
}

func (d *DelayedFeedback) Name() string { return "delayed_feedback" }

func (d *DelayedFeedback) Dimensions() dynamo.Dimensions {
	return dynamo.Dimensions{States: 1, Reals: 1, Delays: 1}
}

func (d *DelayedFeedback) Capabilities() dynamo.Capabilities {
	return dynamo.CapDerivatives | dynamo.CapDelays
}

func (d *DelayedFeedback) Initialize(v dynamo.Variables) error {
	if d.Delay < 0 {
		return fmt.Errorf("delayed_feedback: negative delay %g", d.Delay)
	}
	v.SetContinuousState(0, d.Initial)
	v.SetReal(feedbackDelayed, d.Initial)
	return nil
}

func (d *DelayedFeedback) Derivatives(v dynamo.Variables) error {
	x := v.ContinuousState(0)
	xd, err := v.Delay(0, x, d.Delay, d.Delay)
	if err != nil {
		return err
	}
	v.SetReal(feedbackDelayed, xd)
	v.SetDerivative(0, -d.Gain*xd)
	return nil
}

func (d *DelayedFeedback) DelayValues(v dynamo.Variables, out []float64) {
	out[0] = v.ContinuousState(0)
}
