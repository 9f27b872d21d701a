package models

import (
	"fmt"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

// Continuous states.
const (
	ballHeight = iota
	ballVelocity
)

// Discrete handles.
const (
	ballRestitution dynamo.Handle = 0 // real
	ballBounces     dynamo.Handle = 0 // int
	ballResting     dynamo.Handle = 0 // bool
)

// BouncingBall drops a ball onto the floor at height 0. Each impact
// reinitializes the velocity to -e·v; once the rebound speed falls below
// RestVelocity the ball comes to rest and the run terminates.
type BouncingBall struct {
	Height       float64
	Restitution  float64
	Gravity      float64
	RestVelocity float64
	MaxBounces   int
}

func NewBouncingBall() *BouncingBall {
	return &BouncingBall{
		Height:       10.0,
		Restitution:  0.8,
		Gravity:      9.81,
		RestVelocity: 0.1,
		MaxBounces:   100,
	}
}

func (b *BouncingBall) Name() string { return "bouncing_ball" }

func (b *BouncingBall) Dimensions() dynamo.Dimensions {
	return dynamo.Dimensions{States: 2, Reals: 1, Ints: 1, Bools: 1, Conditions: 1}
}

func (b *BouncingBall) Capabilities() dynamo.Capabilities { return dynamo.CapMixed }

func (b *BouncingBall) Initialize(v dynamo.Variables) error {
	if b.Restitution < 0 || b.Restitution > 1 {
		return fmt.Errorf("bouncing_ball: restitution %g outside [0, 1]", b.Restitution)
	}
	v.SetContinuousState(ballHeight, b.Height)
	v.SetContinuousState(ballVelocity, 0)
	v.SetReal(ballRestitution, b.Restitution)
	v.SetInt(ballBounces, 0)
	v.SetBool(ballResting, false)
	return nil
}

func (b *BouncingBall) Derivatives(v dynamo.Variables) error {
	if v.Bool(ballResting) {
		v.SetDerivative(ballHeight, 0)
		v.SetDerivative(ballVelocity, 0)
		return nil
	}
	v.SetDerivative(ballHeight, v.ContinuousState(ballVelocity))
	v.SetDerivative(ballVelocity, -b.Gravity)
	return nil
}

func (b *BouncingBall) EvaluateConditions(v dynamo.Variables, out []bool) {
	out[0] = v.ContinuousState(ballHeight) <= 0 && v.ContinuousState(ballVelocity) < 0
}

func (b *BouncingBall) UpdateDiscrete(ctx dynamo.EventContext) (bool, error) {
	reinit := false
	if ctx.ConditionEdge(0) {
		bounces := ctx.PreInt(ballBounces) + 1
		ctx.SetInt(ballBounces, bounces)

		vel := -ctx.Real(ballRestitution) * ctx.ContinuousState(ballVelocity)
		if vel < b.RestVelocity {
			vel = 0
			ctx.SetBool(ballResting, true)
		}
		ctx.SetContinuousState(ballHeight, 0)
		ctx.SetContinuousState(ballVelocity, vel)
		reinit = true

		if err := ctx.Assert(bounces <= b.MaxBounces, "bounce limit exceeded", dynamo.SeverityFatal); err != nil {
			return reinit, err
		}
	}
	if ctx.Edge(ballResting) {
		ctx.Terminate(fmt.Sprintf("ball at rest after %d bounces", ctx.Int(ballBounces)))
	}
	return reinit, nil
}

func (b *BouncingBall) TimeEvents() []dynamo.TimeEvent { return nil }

// Energy is the mechanical energy per unit mass.
func (b *BouncingBall) Energy(x dynamo.State) float64 {
	return b.Gravity*x[ballHeight] + 0.5*x[ballVelocity]*x[ballVelocity]
}
