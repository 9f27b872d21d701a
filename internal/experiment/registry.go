package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/hybridsim/internal/config"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/integrators"
	"github.com/san-kum/hybridsim/internal/metrics"
	"github.com/san-kum/hybridsim/internal/models"
	"github.com/san-kum/hybridsim/internal/sim"
)

// ModelFactory builds a model from the parameters of cfg.
type ModelFactory func(cfg *config.Config) dynamo.Model

type Registry struct {
	models map[string]ModelFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		models: make(map[string]ModelFactory),
	}

	r.models["bouncing_ball"] = func(cfg *config.Config) dynamo.Model {
		b := models.NewBouncingBall()
		b.Height = cfg.Param("height", b.Height)
		b.Restitution = cfg.Param("restitution", b.Restitution)
		b.Gravity = cfg.Param("gravity", b.Gravity)
		b.RestVelocity = cfg.Param("rest_velocity", b.RestVelocity)
		b.MaxBounces = int(cfg.Param("max_bounces", float64(b.MaxBounces)))
		return b
	}
	r.models["thermostat"] = func(cfg *config.Config) dynamo.Model {
		th := models.NewThermostat()
		th.Low = cfg.Param("low", th.Low)
		th.High = cfg.Param("high", th.High)
		th.Ambient = cfg.Param("ambient", th.Ambient)
		th.Initial = cfg.Param("initial", th.Initial)
		th.Loss = cfg.Param("loss", th.Loss)
		th.Power = cfg.Param("power", th.Power)
		th.SamplePeriod = cfg.Param("sample_period", th.SamplePeriod)
		return th
	}
	r.models["delayed_feedback"] = func(cfg *config.Config) dynamo.Model {
		d := models.NewDelayedFeedback()
		d.Gain = cfg.Param("gain", d.Gain)
		d.Delay = cfg.Param("delay", d.Delay)
		d.Initial = cfg.Param("initial", d.Initial)
		return d
	}
	r.models["resistor_network"] = func(cfg *config.Config) dynamo.Model {
		n := models.NewResistorNetwork()
		n.Source = cfg.Param("source", n.Source)
		n.R1 = cfg.Param("r1", n.R1)
		n.R2 = cfg.Param("r2", n.R2)
		n.R3 = cfg.Param("r3", n.R3)
		n.C = cfg.Param("c", n.C)
		n.HalfPeriod = cfg.Param("half_period", n.HalfPeriod)
		return n
	}

	return r
}

// Register adds or replaces a model factory.
func (r *Registry) Register(name string, fn ModelFactory) {
	r.models[name] = fn
}

func (r *Registry) GetModel(cfg *config.Config) (dynamo.Model, error) {
	fn, ok := r.models[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", cfg.Model)
	}
	return fn(cfg), nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	return integrators.New(name)
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns fresh metrics for model. Energy metrics read
// nothing unless the model reports its energy.
func (r *Registry) DefaultMetrics(model dynamo.Model) []sim.Metric {
	return []sim.Metric{
		metrics.NewEnergy(model),
		metrics.NewEnergyDrift(model),
		metrics.NewStability(1e6),
		metrics.NewEventCount(),
		metrics.NewRecomputes(),
	}
}
