package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

type Simulator struct {
	model      dynamo.Model
	integrator dynamo.Integrator
	metrics    []Metric
	observers  []Observer
}

func New(model dynamo.Model, integrator dynamo.Integrator) *Simulator {
	return &Simulator{
		model:      model,
		integrator: integrator,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) Model() dynamo.Model { return s.model }

// Run integrates the model from t=0 to cfg.Duration with fixed steps of
// cfg.Dt, shortened to land exactly on time events and the end time.
// After every accepted step it checks state consistency, resolves
// events, samples delays and verifies the linear solutions.
//
// A fatal kernel failure stops the run and is returned wrapped in a
// *dynamo.SimulationError along with the partial result.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	k, err := newKernel(s.model, cfg.Settings)
	if err != nil {
		return nil, err
	}

	records := recordCapacity(cfg)
	result := &Result{
		Model:   s.model.Name(),
		Times:   make([]float64, 0, records),
		States:  make([]dynamo.State, 0, records),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	if err := k.initialize(); err != nil {
		return nil, &dynamo.SimulationError{Step: 0, Time: 0, Wrapped: err}
	}
	s.record(result, k)
	s.observe(k.vec.ContinuousStates(), 0)
	if k.vec.Terminated() {
		result.Termination = k.vec.Termination()
		result.Assertions = k.vec.Assertions()
		return result, nil
	}

	eps := 1e-9 * cfg.Dt
	t := 0.0
	every := recordStride(cfg)
	recorded := true

	for step := 1; t < cfg.Duration-eps; step++ {
		select {
		case <-ctx.Done():
			result.Assertions = k.vec.Assertions()
			return result, ctx.Err()
		default:
		}

		h := math.Min(cfg.Dt, cfg.Duration-t)
		next, hasNext := k.nextTimeEvent()
		if hasNext && next > t+eps && next < t+h {
			h = next - t
		}

		x := k.vec.ContinuousStates()
		newX, err := s.integrator.Step(k, x, t, h)
		if err != nil {
			return s.fail(result, k, step, t, x, err)
		}

		t += h
		switch {
		case hasNext && math.Abs(t-next) < eps:
			t = next
		case math.Abs(cfg.Duration-t) < eps:
			t = cfg.Duration
		}
		k.vec.SetTime(t)
		if err := k.vec.SetContinuousStates(newX); err != nil {
			return s.fail(result, k, step, t, newX, err)
		}
		if err := k.vec.CheckConsistency(); err != nil {
			return s.fail(result, k, step, t, newX, err)
		}
		if err := k.solveAlgebraic(); err != nil {
			return s.fail(result, k, step, t, newX, err)
		}

		occurred, recomputes, err := k.handleEvents()
		if err != nil {
			return s.fail(result, k, step, t, k.vec.ContinuousStates(), err)
		}
		if occurred {
			ev := EventRecord{Time: t, Step: step, Recomputes: recomputes, Reinit: k.reinitialized()}
			result.Events = append(result.Events, ev)
			s.notifyEvent(ev)
			logrus.Debugf("event at t=%.6g resolved in %d recomputes", t, recomputes)
		}

		if err := k.storeDelays(); err != nil {
			return s.fail(result, k, step, t, k.vec.ContinuousStates(), err)
		}
		if failures := k.solver.CheckLinearSolutions(cfg.PrintLinearFailures); len(failures) > 0 {
			result.LinearFailures = append(result.LinearFailures, failures...)
		}
		result.StepsTaken++

		xs := k.vec.ContinuousStates()
		s.observe(xs, t)

		recorded = false
		if occurred || step%every == 0 || k.vec.Terminated() {
			s.record(result, k)
			recorded = true
		}

		if k.vec.Terminated() {
			result.Termination = k.vec.Termination()
			logrus.Infof("%s terminated at t=%.6g: %s", s.model.Name(), t, result.Termination.Msg)
			break
		}
	}

	if !recorded {
		s.record(result, k)
	}
	result.Assertions = k.vec.Assertions()
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

func (s *Simulator) fail(result *Result, k *kernel, step int, t float64, x dynamo.State, err error) (*Result, error) {
	result.Assertions = k.vec.Assertions()
	logrus.WithFields(logrus.Fields{
		"model": s.model.Name(),
		"step":  step,
		"time":  t,
	}).Errorf("simulation stopped: %v", err)
	return result, &dynamo.SimulationError{Step: step, Time: t, State: x.Clone(), Wrapped: err}
}

// maxRecordCapacity bounds the preallocation for very long runs; the
// slices still grow past it.
const maxRecordCapacity = 1 << 16

func recordStride(cfg Config) int {
	return max(cfg.RecordEvery, 1)
}

// recordCapacity estimates the stored records: every stride-th step plus
// the initial and final ones. Event steps grow the slices as needed.
func recordCapacity(cfg Config) int {
	steps := int(cfg.Duration / cfg.Dt)
	return min(steps/recordStride(cfg)+2, maxRecordCapacity)
}

func (s *Simulator) record(result *Result, k *kernel) {
	result.Times = append(result.Times, k.vec.Time())
	result.States = append(result.States, k.vec.ContinuousStates())
	result.Reals = append(result.Reals, k.vec.Reals())
	result.Ints = append(result.Ints, k.vec.Ints())
	result.Bools = append(result.Bools, k.vec.Bools())
	result.Strings = append(result.Strings, k.vec.Strings())
}

func (s *Simulator) observe(x dynamo.State, t float64) {
	for _, m := range s.metrics {
		m.Observe(x, t)
	}
	for _, obs := range s.observers {
		obs.OnStep(x, t)
	}
}

func (s *Simulator) notifyEvent(ev EventRecord) {
	for _, m := range s.metrics {
		if eo, ok := m.(EventObserver); ok {
			eo.OnEvent(ev)
		}
	}
	for _, obs := range s.observers {
		if eo, ok := obs.(EventObserver); ok {
			eo.OnEvent(ev)
		}
	}
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if cfg.RecordEvery < 0 {
		return fmt.Errorf("record every must not be negative, got %d", cfg.RecordEvery)
	}
	if s.model == nil || s.integrator == nil {
		return fmt.Errorf("simulator needs a model and an integrator")
	}
	return nil
}
