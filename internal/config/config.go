package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

const (
	DefaultDt          = 0.01
	DefaultDuration    = 10.0
	DefaultRecordEvery = 1
)

type Config struct {
	Model       string             `yaml:"model"`
	Integrator  string             `yaml:"integrator"`
	Dt          float64            `yaml:"dt"`
	Duration    float64            `yaml:"duration"`
	RecordEvery int                `yaml:"record_every"`
	Params      map[string]float64 `yaml:"params,omitempty"`
	Kernel      KernelConfig       `yaml:"kernel"`
}

// KernelConfig holds the numeric bounds handed to the kernel.
type KernelConfig struct {
	DelayMax           float64  `yaml:"delay_max"`
	MaxEventIterations int      `yaml:"max_event_iterations"`
	LinearTolerance    float64  `yaml:"linear_tolerance"`
	LinearSolver       string   `yaml:"linear_solver"`
	LinearFallbacks    []string `yaml:"linear_fallbacks,omitempty"`
	TimeEventEpsilon   float64  `yaml:"time_event_epsilon"`
	StrictPre          bool     `yaml:"strict_pre"`
}

func DefaultKernel() KernelConfig {
	s := dynamo.DefaultSettings()
	return KernelConfig{
		DelayMax:           s.DelayMax,
		MaxEventIterations: s.MaxEventIterations,
		LinearTolerance:    s.LinearTolerance,
		LinearSolver:       s.LinearSolver,
		LinearFallbacks:    s.LinearFallbacks,
		TimeEventEpsilon:   s.TimeEventEpsilon,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Model:       "bouncing_ball",
		Integrator:  "rk4",
		Dt:          DefaultDt,
		Duration:    DefaultDuration,
		RecordEvery: DefaultRecordEvery,
		Kernel:      DefaultKernel(),
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the ranges the simulator relies on.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %g", c.Duration)
	}
	if c.RecordEvery < 0 {
		return fmt.Errorf("record_every must not be negative, got %d", c.RecordEvery)
	}
	if c.Kernel.DelayMax < 0 {
		return fmt.Errorf("kernel.delay_max must not be negative, got %g", c.Kernel.DelayMax)
	}
	if c.Kernel.MaxEventIterations < 0 {
		return fmt.Errorf("kernel.max_event_iterations must not be negative, got %d", c.Kernel.MaxEventIterations)
	}
	return nil
}

// Settings converts the kernel section, filling zero fields with defaults.
func (c *Config) Settings() dynamo.Settings {
	s := dynamo.DefaultSettings()
	k := c.Kernel
	if k.DelayMax > 0 {
		s.DelayMax = k.DelayMax
	}
	if k.MaxEventIterations > 0 {
		s.MaxEventIterations = k.MaxEventIterations
	}
	if k.LinearTolerance > 0 {
		s.LinearTolerance = k.LinearTolerance
	}
	if k.LinearSolver != "" {
		s.LinearSolver = k.LinearSolver
	}
	if k.LinearFallbacks != nil {
		s.LinearFallbacks = append([]string(nil), k.LinearFallbacks...)
	}
	if k.TimeEventEpsilon > 0 {
		s.TimeEventEpsilon = k.TimeEventEpsilon
	}
	s.StrictPre = k.StrictPre
	return s
}

// Param returns the named model parameter, or def when unset.
func (c *Config) Param(name string, def float64) float64 {
	if v, ok := c.Params[name]; ok {
		return v
	}
	return def
}

// Clone returns a deep copy, so presets can be tweaked by callers.
func (c *Config) Clone() *Config {
	out := *c
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	if c.Kernel.LinearFallbacks != nil {
		out.Kernel.LinearFallbacks = append([]string{}, c.Kernel.LinearFallbacks...)
	}
	return &out
}
