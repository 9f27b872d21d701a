// Package automation runs scripted sequences of simulations described in
// YAML.
package automation

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/hybridsim/internal/config"
	"github.com/san-kum/hybridsim/internal/experiment"
	"github.com/san-kum/hybridsim/internal/sim"
	"github.com/san-kum/hybridsim/internal/storage"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single run. It starts from Preset ("model/name") when
// set, else from the defaults, and applies the remaining non-zero fields
// on top.
type ScenarioStep struct {
	Name         string             `yaml:"name"`
	Preset       string             `yaml:"preset"`
	Model        string             `yaml:"model"`
	Integrator   string             `yaml:"integrator"`
	Duration     float64            `yaml:"duration"`
	Dt           float64            `yaml:"dt"`
	RecordEvery  int                `yaml:"record_every"`
	LinearSolver string             `yaml:"linear_solver"`
	Params       map[string]float64 `yaml:"params"`
	Save         bool               `yaml:"save"`

	// ContinueOnError keeps the scenario going when this step fails.
	ContinueOnError bool `yaml:"continue_on_error"`
}

// StepResult is the outcome of one step. RunID is set when the step was
// saved.
type StepResult struct {
	Name   string
	Config *config.Config
	Result *sim.Result
	RunID  string
	Err    error
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", scenario.Name)
	}
	for i := range scenario.Steps {
		if _, err := scenario.Steps[i].Config(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &scenario, nil
}

// Config resolves the step into a validated run configuration.
func (s ScenarioStep) Config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		model, name, ok := strings.Cut(s.Preset, "/")
		if !ok {
			return nil, fmt.Errorf("preset %q must be model/name", s.Preset)
		}
		cfg = config.GetPreset(model, name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q", s.Preset)
		}
	}

	if s.Model != "" {
		cfg.Model = s.Model
	}
	if s.Integrator != "" {
		cfg.Integrator = s.Integrator
	}
	if s.Duration != 0 {
		cfg.Duration = s.Duration
	}
	if s.Dt != 0 {
		cfg.Dt = s.Dt
	}
	if s.RecordEvery != 0 {
		cfg.RecordEvery = s.RecordEvery
	}
	if s.LinearSolver != "" {
		cfg.Kernel.LinearSolver = s.LinearSolver
	}
	if len(s.Params) > 0 && cfg.Params == nil {
		cfg.Params = make(map[string]float64, len(s.Params))
	}
	for k, v := range s.Params {
		cfg.Params[k] = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s ScenarioStep) label(i int) string {
	if s.Name != "" {
		return s.Name
	}
	if s.Preset != "" {
		return s.Preset
	}
	return fmt.Sprintf("step-%d", i+1)
}

// RunScenario executes all steps in order. Steps marked save are written
// to store when it is not nil. The first failing step stops the scenario
// unless it is marked continue_on_error.
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry, store *storage.Store) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		name := step.label(i)
		logrus.Infof("running step %d/%d: %s", i+1, len(scenario.Steps), name)

		sr := runStep(ctx, step, registry, store)
		sr.Name = name
		results = append(results, sr)

		if sr.Err != nil {
			if ctx.Err() != nil || !step.ContinueOnError {
				return results, fmt.Errorf("step %d (%s): %w", i+1, name, sr.Err)
			}
			logrus.Warnf("step %d (%s) failed, continuing: %v", i+1, name, sr.Err)
		}
	}

	return results, nil
}

func runStep(ctx context.Context, step ScenarioStep, registry *experiment.Registry, store *storage.Store) StepResult {
	cfg, err := step.Config()
	if err != nil {
		return StepResult{Err: err}
	}
	sr := StepResult{Config: cfg}

	exp := experiment.New(cfg, registry)
	if err := exp.Setup(); err != nil {
		sr.Err = err
		return sr
	}
	sr.Result, sr.Err = exp.Run(ctx)
	if sr.Err != nil || !step.Save || store == nil {
		return sr
	}
	sr.RunID, sr.Err = store.Save(cfg, sr.Result)
	return sr
}
