package sim

import (
	"github.com/san-kum/hybridsim/internal/dynamo"
)

// Metric summarizes a run from the accepted continuous states.
type Metric interface {
	Name() string
	Observe(x dynamo.State, t float64)
	Value() float64
	Reset()
}

// EventObserver is implemented by metrics and observers that want to
// hear about resolved events.
type EventObserver interface {
	OnEvent(e EventRecord)
}

type Observer interface {
	OnStep(x dynamo.State, t float64)
}

type Config struct {
	Dt       float64
	Duration float64

	// RecordEvery keeps every nth accepted step; event steps and the
	// final step are always kept. 0 records every step.
	RecordEvery int

	// PrintLinearFailures logs failing linear systems after each step.
	PrintLinearFailures bool

	Settings dynamo.Settings
}

// EventRecord describes one resolved event.
type EventRecord struct {
	Time       float64 `json:"time"`
	Step       int     `json:"step"`
	Recomputes int     `json:"recomputes"`
	Reinit     bool    `json:"reinit"`
}

type Result struct {
	Model string

	Times   []float64
	States  []dynamo.State
	Reals   [][]float64
	Ints    [][]int
	Bools   [][]bool
	Strings [][]string

	Events         []EventRecord
	Assertions     []*dynamo.Failure
	LinearFailures []*dynamo.Failure
	Termination    *dynamo.Failure

	StepsTaken int
	Metrics    map[string]float64
}

// Final returns the last recorded continuous state.
func (r *Result) Final() dynamo.State {
	if len(r.States) == 0 {
		return nil
	}
	return r.States[len(r.States)-1]
}

// Terminated reports whether the model requested a stop.
func (r *Result) Terminated() bool {
	return r.Termination != nil
}
