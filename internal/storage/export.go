package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/hybridsim/internal/config"
	"github.com/san-kum/hybridsim/internal/sim"
)

type ExportData struct {
	Model      string             `json:"model"`
	Integrator string             `json:"integrator"`
	Solver     string             `json:"solver"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Steps      int                `json:"steps"`
	Times      []float64          `json:"times"`
	States     [][]float64        `json:"states"`
	Reals      [][]float64        `json:"reals,omitempty"`
	Ints       [][]int            `json:"ints,omitempty"`
	Bools      [][]bool           `json:"bools,omitempty"`
	Strings    [][]string         `json:"strings,omitempty"`
	Events     []sim.EventRecord  `json:"events,omitempty"`
	Terminated bool               `json:"terminated"`
	Metrics    map[string]float64 `json:"metrics"`
}

func exportData(cfg *config.Config, result *sim.Result) ExportData {
	data := ExportData{
		Model:      cfg.Model,
		Integrator: cfg.Integrator,
		Solver:     cfg.Settings().LinearSolver,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Steps:      len(result.Times),
		Times:      result.Times,
		States:     make([][]float64, len(result.States)),
		Reals:      result.Reals,
		Ints:       result.Ints,
		Bools:      result.Bools,
		Strings:    result.Strings,
		Events:     result.Events,
		Terminated: result.Terminated(),
		Metrics:    result.Metrics,
	}
	for i, s := range result.States {
		data.States[i] = s
	}
	return data
}

// WriteJSON encodes the full trajectory of a run to w.
func WriteJSON(w io.Writer, cfg *config.Config, result *sim.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exportData(cfg, result))
}

func ExportJSON(path string, cfg *config.Config, result *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteJSON(file, cfg, result)
}
