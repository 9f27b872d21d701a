package config

import "sort"

func preset(model string, duration float64, params map[string]float64, edits ...func(*Config)) *Config {
	cfg := DefaultConfig()
	cfg.Model = model
	cfg.Duration = duration
	cfg.Params = params
	for _, edit := range edits {
		edit(cfg)
	}
	return cfg
}

func withDt(dt float64) func(*Config) {
	return func(c *Config) { c.Dt = dt }
}

func withDelayMax(d float64) func(*Config) {
	return func(c *Config) { c.Kernel.DelayMax = d }
}

func withSolver(primary string, fallbacks ...string) func(*Config) {
	return func(c *Config) {
		c.Kernel.LinearSolver = primary
		c.Kernel.LinearFallbacks = append([]string{}, fallbacks...)
	}
}

var Presets = map[string]map[string]*Config{
	"bouncing_ball": {
		"default": preset("bouncing_ball", 10, map[string]float64{"height": 10, "restitution": 0.8}),
		"elastic": preset("bouncing_ball", 10, map[string]float64{"height": 5, "restitution": 1}),
		"dead":    preset("bouncing_ball", 5, map[string]float64{"height": 2, "restitution": 0.3}, withDt(0.001)),
	},
	"thermostat": {
		"default": preset("thermostat", 60, map[string]float64{"low": 19, "high": 21, "initial": 15}),
		"narrow":  preset("thermostat", 60, map[string]float64{"low": 19.8, "high": 20.2, "initial": 20}, withDt(0.005)),
	},
	"delayed_feedback": {
		"stable":      preset("delayed_feedback", 30, map[string]float64{"gain": 1, "delay": 1}),
		"oscillating": preset("delayed_feedback", 60, map[string]float64{"gain": 1, "delay": 1.5}, withDelayMax(5)),
	},
	"resistor_network": {
		"dense":       preset("resistor_network", 5, nil),
		"iterative":   preset("resistor_network", 5, nil, withSolver("iterative", "dense")),
		"total_pivot": preset("resistor_network", 5, nil, withSolver("total_pivot")),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, name string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

// ListPresets returns the preset names for model in sorted order.
func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
