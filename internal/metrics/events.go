package metrics

import (
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/sim"
)

// EventCount counts resolved events. It ignores the continuous states.
type EventCount struct {
	name   string
	events int
}

func NewEventCount() *EventCount {
	return &EventCount{name: "events"}
}

func (e *EventCount) Name() string                      { return e.name }
func (e *EventCount) Observe(x dynamo.State, t float64) {}
func (e *EventCount) OnEvent(ev sim.EventRecord)        { e.events++ }
func (e *EventCount) Value() float64                    { return float64(e.events) }
func (e *EventCount) Reset()                            { e.events = 0 }

// Recomputes is the mean number of discrete recomputes per event.
type Recomputes struct {
	name   string
	total  int
	events int
}

func NewRecomputes() *Recomputes {
	return &Recomputes{name: "recomputes_per_event"}
}

func (r *Recomputes) Name() string                      { return r.name }
func (r *Recomputes) Observe(x dynamo.State, t float64) {}

func (r *Recomputes) OnEvent(ev sim.EventRecord) {
	r.total += ev.Recomputes
	r.events++
}

func (r *Recomputes) Value() float64 {
	if r.events == 0 {
		return 0
	}
	return float64(r.total) / float64(r.events)
}

func (r *Recomputes) Reset() {
	r.total = 0
	r.events = 0
}
