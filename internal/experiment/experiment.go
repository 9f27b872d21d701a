package experiment

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/hybridsim/internal/config"
	"github.com/san-kum/hybridsim/internal/sim"
)

type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	simulator *sim.Simulator
}

func New(cfg *config.Config, registry *Registry) *Experiment {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Experiment{
		cfg:      cfg,
		registry: registry,
	}
}

// Setup validates the configuration and builds the simulator with the
// default metrics.
func (e *Experiment) Setup() error {
	sim, err := e.build(e.cfg)
	if err != nil {
		return err
	}
	e.simulator = sim
	return nil
}

func (e *Experiment) build(cfg *config.Config) (*sim.Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := e.registry.GetModel(cfg)
	if err != nil {
		return nil, err
	}
	integrator, err := e.registry.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	s := sim.New(model, integrator)
	for _, m := range e.registry.DefaultMetrics(model) {
		s.AddMetric(m)
	}
	return s, nil
}

func simConfig(cfg *config.Config) sim.Config {
	return sim.Config{
		Dt:          cfg.Dt,
		Duration:    cfg.Duration,
		RecordEvery: cfg.RecordEvery,
		Settings:    cfg.Settings(),
	}
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	logrus.WithFields(logrus.Fields{
		"model":      e.cfg.Model,
		"integrator": e.cfg.Integrator,
		"dt":         e.cfg.Dt,
		"duration":   e.cfg.Duration,
		"solver":     e.cfg.Settings().LinearSolver,
	}).Info("starting run")

	return e.simulator.Run(ctx, simConfig(e.cfg))
}

// Sweep runs the experiment once per value of the named parameter, in
// parallel.
func (e *Experiment) Sweep(ctx context.Context, param string, values []float64) ([]*sim.Result, error) {
	factory := func(i int) (*sim.Simulator, error) {
		cfg := e.cfg.Clone()
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64)
		}
		cfg.Params[param] = values[i]
		return e.build(cfg)
	}
	logrus.Infof("sweeping %s over %d values", param, len(values))
	return sim.NewSweep(factory, len(values)).Run(ctx, simConfig(e.cfg))
}

// SimConfig returns the run settings derived from the configuration.
func (e *Experiment) SimConfig() sim.Config {
	return simConfig(e.cfg)
}

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}

func (e *Experiment) Config() *config.Config {
	return e.cfg
}
