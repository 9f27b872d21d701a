package sim

import (
	"fmt"

	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/events"
	"github.com/san-kum/hybridsim/internal/linsolve"
	"github.com/san-kum/hybridsim/internal/state"
)

// kernel wires one model to its state vector, event handler and linear
// solver for the length of a run. It is the dynamo.System the integrator
// advances.
type kernel struct {
	model   dynamo.Model
	vec     *state.Vector
	handler *events.Handler
	solver  *linsolve.Solver
	systems []*linsolve.System

	deriv    dynamo.DerivativeEvaluator
	alg      dynamo.AlgebraicEvaluator
	delays   dynamo.DelaySampler
	delayOut []float64
}

func newKernel(model dynamo.Model, settings dynamo.Settings) (*kernel, error) {
	set, err := dynamo.Bind(model)
	if err != nil {
		return nil, err
	}
	dims := model.Dimensions()
	if dims.States > 0 {
		if err := set.Require(dynamo.CapDerivatives); err != nil {
			return nil, err
		}
	}
	if dims.Delays > 0 {
		if err := set.Require(dynamo.CapDelays); err != nil {
			return nil, err
		}
	}

	vec, err := state.New(dims, settings)
	if err != nil {
		return nil, err
	}
	solver, err := linsolve.New(settings)
	if err != nil {
		return nil, err
	}

	k := &kernel{model: model, vec: vec, solver: solver}
	k.deriv, _ = set.Derivatives()
	k.delays, _ = set.Delays()
	if k.delays != nil {
		k.delayOut = make([]float64, dims.Delays)
	}
	if alg, ok := set.Algebraic(); ok {
		k.alg = alg
		for i, n := range alg.Systems() {
			k.systems = append(k.systems, linsolve.NewSystem(i, n))
		}
	}
	if ev, ok := set.Events(); ok {
		k.handler, err = events.NewHandler(vec, ev, settings)
		if err != nil {
			return nil, err
		}
	}
	return k, nil
}

// initialize runs the model's start equations and the initial event,
// then seeds the delay history at t=0.
func (k *kernel) initialize() error {
	if err := k.vec.Initialize(); err != nil {
		return err
	}
	k.vec.SetTime(0)
	if err := k.model.Initialize(k.vec); err != nil {
		return fmt.Errorf("initialize %s: %w", k.model.Name(), err)
	}
	if err := k.solveAlgebraic(); err != nil {
		return err
	}
	if k.handler != nil {
		if err := k.handler.Initialize(); err != nil {
			return err
		}
		if err := k.solveAlgebraic(); err != nil {
			return err
		}
	}
	if k.deriv != nil {
		if err := k.deriv.Derivatives(k.vec); err != nil {
			return err
		}
	}
	return k.storeDelays()
}

func (k *kernel) StateDim() int { return k.vec.Dimensions().States }

// Derive loads a trial state, solves the algebraic loops at it and
// returns the model's right-hand side.
func (k *kernel) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	k.vec.SetTime(t)
	if err := k.vec.SetContinuousStates(x); err != nil {
		return nil, err
	}
	if err := k.solveAlgebraic(); err != nil {
		return nil, err
	}
	if k.deriv == nil {
		return k.vec.RHS(), nil
	}
	if err := k.deriv.Derivatives(k.vec); err != nil {
		return nil, err
	}
	return k.vec.RHS(), nil
}

func (k *kernel) solveAlgebraic() error {
	if k.alg == nil {
		return nil
	}
	k.solver.SetTime(k.vec.Time())
	for i, sys := range k.systems {
		sys.Reset()
		if err := k.alg.Assemble(i, k.vec, sys); err != nil {
			return fmt.Errorf("assemble system %d: %w", i, err)
		}
		x, err := k.solver.Solve(sys)
		if err != nil {
			return err
		}
		if err := k.alg.ApplySolution(i, k.vec, x); err != nil {
			return fmt.Errorf("apply system %d: %w", i, err)
		}
	}
	return nil
}

// handleEvents resolves time and state events at the current time. It
// returns the number of discrete recomputes the resolution took.
func (k *kernel) handleEvents() (bool, int, error) {
	if k.handler == nil {
		return false, 0, nil
	}
	before := k.handler.Recomputes()
	occurred, err := k.handler.Handle()
	n := k.handler.Recomputes() - before
	if err != nil {
		return occurred, n, err
	}
	if occurred {
		if err := k.solveAlgebraic(); err != nil {
			return occurred, n, err
		}
	}
	return occurred, n, nil
}

func (k *kernel) storeDelays() error {
	if k.delays == nil {
		return nil
	}
	if err := k.vec.StoreTime(k.vec.Time()); err != nil {
		return err
	}
	k.delays.DelayValues(k.vec, k.delayOut)
	for i, v := range k.delayOut {
		if err := k.vec.StoreDelay(i, v); err != nil {
			return err
		}
	}
	return nil
}

// nextTimeEvent returns the earliest pending time event.
func (k *kernel) nextTimeEvent() (float64, bool) {
	if k.handler == nil {
		return 0, false
	}
	return k.handler.TimeEvents().Next()
}

func (k *kernel) reinitialized() bool {
	return k.handler != nil && k.handler.Reinitialized()
}
