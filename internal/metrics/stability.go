package metrics

import (
	"math"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

// Stability is the fraction of observed states that are finite and
// bounded by threshold in every component.
type Stability struct {
	threshold float64
	bad       int
	total     int
	breachAt  float64
	breached  bool
}

func NewStability(threshold float64) *Stability {
	return &Stability{threshold: threshold}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) bounded(x dynamo.State) bool {
	if x.FirstInvalid() >= 0 {
		return false
	}
	for _, v := range x {
		if math.Abs(v) > s.threshold {
			return false
		}
	}
	return true
}

func (s *Stability) Observe(x dynamo.State, t float64) {
	s.total++
	if s.bounded(x) {
		return
	}
	s.bad++
	if !s.breached {
		s.breached, s.breachAt = true, t
	}
}

// FirstBreach returns the time of the first unbounded state.
func (s *Stability) FirstBreach() (float64, bool) {
	return s.breachAt, s.breached
}

func (s *Stability) Value() float64 {
	if s.total == 0 {
		return 1
	}
	return 1 - float64(s.bad)/float64(s.total)
}

func (s *Stability) Reset() {
	*s = Stability{threshold: s.threshold}
}
