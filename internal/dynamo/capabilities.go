package dynamo

import (
	"fmt"
	"strings"
)

// Capabilities is the set of evaluation capabilities a model declares.
type Capabilities uint8

const (
	CapEvents Capabilities = 1 << iota
	CapDerivatives
	CapDelays
	CapAlgebraic
)

// CapMixed is the combined event and derivative capability.
const CapMixed = CapEvents | CapDerivatives

func (c Capabilities) Has(other Capabilities) bool {
	return c&other == other
}

func (c Capabilities) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	names := []struct {
		cap  Capabilities
		name string
	}{
		{CapEvents, "events"},
		{CapDerivatives, "derivatives"},
		{CapDelays, "delays"},
		{CapAlgebraic, "algebraic"},
	}
	for _, n := range names {
		if c.Has(n.cap) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Model is a compiled model.
type Model interface {
	Name() string
	Dimensions() Dimensions
	Capabilities() Capabilities

	// Initialize writes start values and parameters.
	Initialize(v Variables) error
}

// EventEvaluator evaluates zero-crossing conditions and discrete equations.
type EventEvaluator interface {
	// EvaluateConditions writes one entry per zero-crossing condition into out.
	EvaluateConditions(v Variables, out []bool)

	// UpdateDiscrete recomputes discrete-valued equations. It reports
	// whether continuous states were reinitialized.
	UpdateDiscrete(ctx EventContext) (reinit bool, err error)

	TimeEvents() []TimeEvent
}

// DerivativeEvaluator computes the right-hand side from the current
// continuous state.
type DerivativeEvaluator interface {
	Derivatives(v Variables) error
}

// DelaySampler reports the current value of every delay expression.
type DelaySampler interface {
	DelayValues(v Variables, out []float64)
}

// AlgebraicEvaluator assembles the linear subsystems of a model's
// algebraic loops and consumes their solutions.
type AlgebraicEvaluator interface {
	// Systems returns the dimension of each linear subsystem.
	Systems() []int
	Assemble(index int, v Variables, b SystemBuilder) error
	ApplySolution(index int, v Variables, x []float64) error
}

// Hamiltonian is implemented by models that can report their total
// energy for a continuous state.
type Hamiltonian interface {
	Energy(x State) float64
}

// CapabilitySet is a model bound to the capabilities it declared.
type CapabilitySet struct {
	model     Model
	caps      Capabilities
	events    EventEvaluator
	deriv     DerivativeEvaluator
	delays    DelaySampler
	algebraic AlgebraicEvaluator
}

// Bind checks that m implements every capability it declares.
func Bind(m Model) (*CapabilitySet, error) {
	caps := m.Capabilities()
	set := &CapabilitySet{model: m, caps: caps}

	if caps.Has(CapEvents) {
		ev, ok := m.(EventEvaluator)
		if !ok {
			return nil, fmt.Errorf("%w: %s declares events", ErrMissingCapability, m.Name())
		}
		set.events = ev
	}
	if caps.Has(CapDerivatives) {
		d, ok := m.(DerivativeEvaluator)
		if !ok {
			return nil, fmt.Errorf("%w: %s declares derivatives", ErrMissingCapability, m.Name())
		}
		set.deriv = d
	}
	if caps.Has(CapDelays) {
		d, ok := m.(DelaySampler)
		if !ok {
			return nil, fmt.Errorf("%w: %s declares delays", ErrMissingCapability, m.Name())
		}
		set.delays = d
	}
	if caps.Has(CapAlgebraic) {
		a, ok := m.(AlgebraicEvaluator)
		if !ok {
			return nil, fmt.Errorf("%w: %s declares algebraic systems", ErrMissingCapability, m.Name())
		}
		set.algebraic = a
	}
	return set, nil
}

func (s *CapabilitySet) Model() Model               { return s.model }
func (s *CapabilitySet) Capabilities() Capabilities { return s.caps }

func (s *CapabilitySet) Events() (EventEvaluator, bool) {
	return s.events, s.events != nil
}

func (s *CapabilitySet) Derivatives() (DerivativeEvaluator, bool) {
	return s.deriv, s.deriv != nil
}

func (s *CapabilitySet) Delays() (DelaySampler, bool) {
	return s.delays, s.delays != nil
}

func (s *CapabilitySet) Algebraic() (AlgebraicEvaluator, bool) {
	return s.algebraic, s.algebraic != nil
}

// Require fails unless every capability in need was declared.
func (s *CapabilitySet) Require(need Capabilities) error {
	if !s.caps.Has(need) {
		return fmt.Errorf("%w: %s has %s, need %s", ErrMissingCapability, s.model.Name(), s.caps, need)
	}
	return nil
}
