package sim

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/integrators"
	"github.com/san-kum/hybridsim/internal/models"
)

type decayModel struct{}

func (d *decayModel) Name() string                      { return "decay" }
func (d *decayModel) Dimensions() dynamo.Dimensions     { return dynamo.Dimensions{States: 1} }
func (d *decayModel) Capabilities() dynamo.Capabilities { return dynamo.CapDerivatives }

func (d *decayModel) Initialize(v dynamo.Variables) error {
	v.SetContinuousState(0, 1)
	return nil
}

func (d *decayModel) Derivatives(v dynamo.Variables) error {
	v.SetDerivative(0, -v.ContinuousState(0))
	return nil
}

// liar declares derivatives without implementing them.
type liar struct{}

func (l *liar) Name() string                        { return "liar" }
func (l *liar) Dimensions() dynamo.Dimensions       { return dynamo.Dimensions{States: 1} }
func (l *liar) Capabilities() dynamo.Capabilities   { return dynamo.CapDerivatives }
func (l *liar) Initialize(v dynamo.Variables) error { return nil }

func defaultConfig(dt, duration float64) Config {
	return Config{Dt: dt, Duration: duration, Settings: dynamo.DefaultSettings()}
}

func TestSimulatorRun(t *testing.T) {
	sim := New(&decayModel{}, integrators.NewEuler())

	result, err := sim.Run(context.Background(), defaultConfig(0.1, 1.0))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.States) != 11 {
		t.Errorf("expected 11 states, got %d", len(result.States))
	}
	if len(result.Times) != 11 {
		t.Errorf("expected 11 times, got %d", len(result.Times))
	}
	if result.StepsTaken != 10 {
		t.Errorf("expected 10 steps, got %d", result.StepsTaken)
	}
	if last := result.Times[len(result.Times)-1]; last != 1.0 {
		t.Errorf("expected run to end at 1.0, got %v", last)
	}

	finalState := result.Final()[0]
	expected := math.Exp(-1.0)
	if math.Abs(finalState-expected) > 0.2 {
		t.Errorf("expected final state ~%.4f, got %.4f", expected, finalState)
	}
}

func TestSimulatorRecordEvery(t *testing.T) {
	sim := New(&decayModel{}, integrators.NewEuler())
	cfg := defaultConfig(0.1, 1.0)
	cfg.RecordEvery = 3

	result, err := sim.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// t=0, steps 3, 6, 9 and the final step 10.
	if len(result.Times) != 5 {
		t.Fatalf("expected 5 records, got %d: %v", len(result.Times), result.Times)
	}
	if result.Times[len(result.Times)-1] != 1.0 {
		t.Errorf("final step not recorded: %v", result.Times)
	}
}

func TestRecordCapacity(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		limit int
	}{
		{"every step", Config{Dt: 0.1, Duration: 1.0}, 12},
		{"thinned", Config{Dt: 0.1, Duration: 1.0, RecordEvery: 5}, 4},
		{"long thinned run", Config{Dt: 1e-3, Duration: 1e3, RecordEvery: 1000}, 1002},
		{"very long run", Config{Dt: 1e-6, Duration: 1e4}, maxRecordCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := recordCapacity(tt.cfg); got > tt.limit || got < 1 {
				t.Errorf("recordCapacity() = %d, want 1..%d", got, tt.limit)
			}
		})
	}
}

func TestSimulatorRecordEveryCapacity(t *testing.T) {
	sim := New(&decayModel{}, integrators.NewEuler())
	cfg := defaultConfig(0.0625, 10.0)
	cfg.RecordEvery = 16

	result, err := sim.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.Times) != 11 {
		t.Fatalf("expected 11 records, got %d", len(result.Times))
	}
	if c := cap(result.Times); c > 12 {
		t.Errorf("record capacity %d sized for every step", c)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	sim := New(&decayModel{}, integrators.NewEuler())

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1.0}},
		{"negative dt", Config{Dt: -0.1, Duration: 1.0}},
		{"zero duration", Config{Dt: 0.1, Duration: 0}},
		{"negative duration", Config{Dt: 0.1, Duration: -1.0}},
		{"negative record every", Config{Dt: 0.1, Duration: 1.0, RecordEvery: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.Run(context.Background(), tt.cfg)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSimulatorMissingCapability(t *testing.T) {
	sim := New(&liar{}, integrators.NewEuler())
	_, err := sim.Run(context.Background(), defaultConfig(0.1, 1.0))
	if !errors.Is(err, dynamo.ErrMissingCapability) {
		t.Fatalf("expected ErrMissingCapability, got %v", err)
	}
}

type testMetric struct {
	count int
	sum   float64
}

func (t *testMetric) Name() string { return "test" }
func (t *testMetric) Observe(x dynamo.State, time float64) {
	t.count++
	t.sum += x[0]
}
func (t *testMetric) Value() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}
func (t *testMetric) Reset() {
	t.count = 0
	t.sum = 0
}

func TestSimulatorMetrics(t *testing.T) {
	sim := New(&decayModel{}, integrators.NewEuler())

	metric := &testMetric{}
	sim.AddMetric(metric)

	result, err := sim.Run(context.Background(), defaultConfig(0.1, 1.0))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, ok := result.Metrics["test"]; !ok {
		t.Error("metric not found in result")
	}

	// The initial state is observed along with every step.
	if metric.count != 11 {
		t.Errorf("expected 11 observations, got %d", metric.count)
	}
}

type eventCounter struct {
	events []EventRecord
	steps  int
}

func (e *eventCounter) OnStep(x dynamo.State, t float64) { e.steps++ }
func (e *eventCounter) OnEvent(ev EventRecord)           { e.events = append(e.events, ev) }

func bouncyBall() *models.BouncingBall {
	ball := models.NewBouncingBall()
	ball.Height = 1
	ball.Restitution = 0.5
	ball.RestVelocity = 0.5
	return ball
}

func TestBouncingBallTerminates(t *testing.T) {
	sim := New(bouncyBall(), integrators.NewRK4())
	obs := &eventCounter{}
	sim.AddObserver(obs)

	result, err := sim.Run(context.Background(), defaultConfig(0.001, 5))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !result.Terminated() {
		t.Fatal("expected the ball to come to rest")
	}
	if !strings.Contains(result.Termination.Msg, "4 bounces") {
		t.Errorf("unexpected termination message: %q", result.Termination.Msg)
	}
	if result.Termination.Time > 2 {
		t.Errorf("ball should rest near t=1.24, terminated at %v", result.Termination.Time)
	}

	if len(result.Events) != 4 {
		t.Fatalf("expected 4 bounce events, got %d", len(result.Events))
	}
	for i, ev := range result.Events {
		if !ev.Reinit {
			t.Errorf("event %d did not reinitialize the velocity", i)
		}
		// the bounce, then the recompute triggered by the counter changing
		if ev.Recomputes != 2 {
			t.Errorf("event %d took %d recomputes, want 2", i, ev.Recomputes)
		}
	}
	if len(obs.events) != 4 {
		t.Errorf("observer saw %d events, want 4", len(obs.events))
	}

	last := len(result.Ints) - 1
	if result.Ints[last][0] != 4 {
		t.Errorf("expected 4 bounces, got %d", result.Ints[last][0])
	}
	if !result.Bools[last][0] {
		t.Error("resting flag not set")
	}
	if v := result.Final()[1]; v != 0 {
		t.Errorf("resting ball should have zero velocity, got %v", v)
	}
}

func TestBouncingBallFatalAssertion(t *testing.T) {
	ball := bouncyBall()
	ball.MaxBounces = 2
	sim := New(ball, integrators.NewRK4())

	result, err := sim.Run(context.Background(), defaultConfig(0.001, 5))
	if err == nil {
		t.Fatal("expected the bounce limit to stop the run")
	}
	if !errors.Is(err, dynamo.ErrAssertion) {
		t.Errorf("expected an assertion failure, got %v", err)
	}

	var simErr *dynamo.SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected *SimulationError, got %T", err)
	}
	if simErr.Step == 0 {
		t.Error("failure should carry the step it happened in")
	}
	if result == nil || len(result.Assertions) != 1 {
		t.Fatalf("expected one recorded assertion, got %+v", result)
	}
	if result.Assertions[0].Severity != dynamo.SeverityFatal {
		t.Errorf("expected a fatal assertion, got %s", result.Assertions[0].Severity)
	}
}

func TestResistorNetworkSettles(t *testing.T) {
	for _, solver := range []string{"dense", "iterative", "total_pivot"} {
		t.Run(solver, func(t *testing.T) {
			net := models.NewResistorNetwork()
			net.HalfPeriod = 100

			cfg := defaultConfig(0.001, 2)
			cfg.Settings.LinearSolver = solver

			result, err := New(net, integrators.NewRK4()).Run(context.Background(), cfg)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}

			if got, want := result.Final()[0], net.SteadyVoltage(); math.Abs(got-want) > 1e-3 {
				t.Errorf("capacitor voltage %v, want %v", got, want)
			}
			last := result.Reals[len(result.Reals)-1]
			if math.Abs(last[0]-net.SteadyVoltage()) > 1e-3 {
				t.Errorf("node voltage %v, want %v", last[0], net.SteadyVoltage())
			}
			if math.Abs(last[1]) > 1e-4 {
				t.Errorf("branch current should vanish, got %v", last[1])
			}
			if len(result.LinearFailures) != 0 {
				t.Errorf("unexpected linear failures: %v", result.LinearFailures)
			}
		})
	}
}

func TestTimeEventsLandExactly(t *testing.T) {
	net := models.NewResistorNetwork()
	net.HalfPeriod = 0.25

	result, err := New(net, integrators.NewRK4()).Run(context.Background(), defaultConfig(0.1, 1))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := []float64{0.25, 0.5, 0.75, 1.0}
	if len(result.Events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(result.Events))
	}
	for i, ev := range result.Events {
		if ev.Time != want[i] {
			t.Errorf("event %d at %v, want %v", i, ev.Time, want[i])
		}
	}

	sourceAt := make(map[float64]bool)
	for i, tm := range result.Times {
		sourceAt[tm] = result.Bools[i][0]
	}
	expected := map[float64]bool{0: true, 0.25: false, 0.5: true, 0.75: false, 1.0: true}
	for tm, on := range expected {
		got, ok := sourceAt[tm]
		if !ok {
			t.Errorf("no record at t=%v", tm)
			continue
		}
		if got != on {
			t.Errorf("source at t=%v is %v, want %v", tm, got, on)
		}
	}
}

func TestThermostatSwitches(t *testing.T) {
	th := models.NewThermostat()
	result, err := New(th, integrators.NewRK4()).Run(context.Background(), defaultConfig(0.01, 30))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	last := len(result.Times) - 1
	if switches := result.Ints[last][0]; switches < 4 {
		t.Errorf("expected at least 4 heater switches, got %d", switches)
	}

	heating := result.Bools[last][0]
	mode := result.Strings[last][0]
	if heating && mode != "heating" || !heating && mode != "idle" {
		t.Errorf("mode %q does not match heater %v", mode, heating)
	}

	// the sample event fires at the end time
	if result.Reals[last][0] != result.Final()[0] {
		t.Errorf("sampled %v, state %v", result.Reals[last][0], result.Final()[0])
	}

	for i, tm := range result.Times {
		if tm < 10 {
			continue
		}
		if temp := result.States[i][0]; temp < th.Low-0.1 || temp > th.High+0.1 {
			t.Errorf("temperature %v left the band at t=%v", temp, tm)
			break
		}
	}
	if len(result.Assertions) != 0 {
		t.Errorf("unexpected assertions: %v", result.Assertions)
	}
}

func TestDelayedFeedback(t *testing.T) {
	model := models.NewDelayedFeedback()
	result, err := New(model, integrators.NewRK4()).Run(context.Background(), defaultConfig(0.01, 20))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	minX := math.Inf(1)
	for i, tm := range result.Times {
		x := result.States[i][0]
		// no history yet: the delay reads the current value
		if math.Abs(tm-0.5) < 1e-9 && math.Abs(x-math.Exp(-0.5)) > 1e-6 {
			t.Errorf("x(0.5) = %v, want %v", x, math.Exp(-0.5))
		}
		minX = math.Min(minX, x)
	}

	if minX >= 0 {
		t.Error("expected the delayed feedback to overshoot below zero")
	}
	if final := math.Abs(result.Final()[0]); final > 0.05 {
		t.Errorf("expected decay for gain*delay < pi/2, got |x(20)| = %v", final)
	}
}

func TestSimulatorContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(&decayModel{}, integrators.NewEuler()).Run(ctx, defaultConfig(0.1, 1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result == nil || len(result.Times) != 1 {
		t.Errorf("expected only the initial record, got %+v", result)
	}
}

func TestSweep(t *testing.T) {
	r2 := []float64{100, 200, 300}
	factory := func(i int) (*Simulator, error) {
		net := models.NewResistorNetwork()
		net.HalfPeriod = 100
		net.R2 = r2[i]
		return New(net, integrators.NewRK4()), nil
	}

	results, err := NewSweep(factory, len(r2)).Run(context.Background(), defaultConfig(0.001, 2))
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(results) != len(r2) {
		t.Fatalf("expected %d results, got %d", len(r2), len(results))
	}

	for i, res := range results {
		want := 10 * r2[i] / (100 + r2[i])
		if got := res.Final()[0]; math.Abs(got-want) > 1e-3 {
			t.Errorf("run %d: voltage %v, want %v", i, got, want)
		}
	}
}

func TestSweepFactoryError(t *testing.T) {
	factory := func(i int) (*Simulator, error) {
		if i == 1 {
			return nil, errors.New("no model")
		}
		return New(&decayModel{}, integrators.NewEuler()), nil
	}

	results, err := NewSweep(factory, 3).Run(context.Background(), defaultConfig(0.1, 1))
	if err == nil || !strings.Contains(err.Error(), "run 1") {
		t.Fatalf("expected run 1 to fail, got %v", err)
	}
	if results[0] == nil || results[2] == nil {
		t.Error("successful runs should keep their results")
	}
}
