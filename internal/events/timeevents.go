package events

import (
	"math"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

// TimeEvents schedules a model's time events. Each source keeps its next
// activation time and how many times it has fired.
type TimeEvents struct {
	descs  []dynamo.TimeEvent
	next   []float64
	count  []int
	active []bool
	eps    float64
}

func NewTimeEvents(descs []dynamo.TimeEvent, eps float64) *TimeEvents {
	te := &TimeEvents{
		descs:  descs,
		next:   make([]float64, len(descs)),
		count:  make([]int, len(descs)),
		active: make([]bool, len(descs)),
		eps:    eps,
	}
	te.Reset()
	return te
}

func (te *TimeEvents) Len() int { return len(te.descs) }

func (te *TimeEvents) Reset() {
	for i, d := range te.descs {
		te.next[i] = d.Start
		te.count[i] = 0
		te.active[i] = false
	}
}

func (te *TimeEvents) exhausted(i int) bool {
	d := te.descs[i]
	if d.Interval <= 0 && te.count[i] > 0 {
		return true
	}
	return d.Limit > 0 && te.count[i] >= d.Limit
}

// Next returns the earliest pending activation time.
func (te *TimeEvents) Next() (float64, bool) {
	best, ok := math.Inf(1), false
	for i := range te.descs {
		if te.exhausted(i) {
			continue
		}
		if te.next[i] < best {
			best, ok = te.next[i], true
		}
	}
	return best, ok
}

// Fire activates every source due at t and advances it. It returns the
// indices activated.
func (te *TimeEvents) Fire(t float64) []int {
	var fired []int
	for i, d := range te.descs {
		if te.exhausted(i) || te.next[i] > t+te.eps {
			continue
		}
		te.active[i] = true
		te.count[i]++
		fired = append(fired, i)
		if d.Interval > 0 {
			te.next[i] = d.Start + float64(te.count[i])*d.Interval
		}
	}
	return fired
}

func (te *TimeEvents) Active(i int) bool {
	return i >= 0 && i < len(te.active) && te.active[i]
}

// Count returns how many times source i has fired.
func (te *TimeEvents) Count(i int) int {
	return te.count[i]
}

// Clear deactivates every source. The handler clears after each
// recompute, so a source reads active in exactly one discrete update.
func (te *TimeEvents) Clear() {
	clear(te.active)
}
