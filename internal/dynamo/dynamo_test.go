package dynamo

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestStateHelpers(t *testing.T) {
	s := State{3, 4}
	c := s.Clone()
	c[0] = 0
	if s[0] != 3 {
		t.Error("clone shares storage")
	}
	if s.Norm() != 5 {
		t.Errorf("expected norm 5, got %f", s.Norm())
	}
	if !s.IsValid() {
		t.Error("finite state reported invalid")
	}

	bad := State{1, math.Inf(-1), math.NaN()}
	if bad.IsValid() {
		t.Error("non-finite state reported valid")
	}
	if i := bad.FirstInvalid(); i != 1 {
		t.Errorf("expected first invalid 1, got %d", i)
	}
}

func TestDimensionsValidate(t *testing.T) {
	if err := (Dimensions{States: 2, Bools: 1}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := Dimensions{Ints: -1}.Validate()
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "ints") {
		t.Errorf("error should name the class: %v", err)
	}

	d := Dimensions{Reals: 1, Ints: 2, Bools: 3, Strings: 4}
	for k, want := range map[VarKind]int{KindReal: 1, KindInt: 2, KindBool: 3, KindString: 4, VarKind(9): 0} {
		if got := d.Size(k); got != want {
			t.Errorf("Size(%s) = %d, want %d", k, got, want)
		}
	}
}

func TestFailureMatchesSentinel(t *testing.T) {
	tests := []struct {
		kind     FailureKind
		sentinel error
		fatal    bool
	}{
		{Termination, ErrTerminated, false},
		{EventNonConvergence, ErrEventNonConvergence, true},
		{SingularSystem, ErrSingularSystem, true},
		{InconsistentState, ErrInconsistentState, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			f := &Failure{Kind: tt.kind, Handle: NoHandle}
			wrapped := fmt.Errorf("step: %w", f)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("expected %v to match %v", wrapped, tt.sentinel)
			}
			if errors.Is(wrapped, ErrAssertion) {
				t.Error("matched the wrong sentinel")
			}
			if f.Fatal() != tt.fatal {
				t.Errorf("Fatal() = %v, want %v", f.Fatal(), tt.fatal)
			}
			got, ok := AsFailure(wrapped)
			if !ok || got != f {
				t.Error("AsFailure did not unwrap")
			}
		})
	}
}

func TestAssertionSeverity(t *testing.T) {
	for sev, fatal := range map[Severity]bool{SeverityWarning: false, SeverityError: false, SeverityFatal: true} {
		f := &Failure{Kind: AssertionFailure, Severity: sev, Msg: "bounds"}
		if f.Fatal() != fatal {
			t.Errorf("%s: Fatal() = %v", sev, f.Fatal())
		}
		if !errors.Is(f, ErrAssertion) {
			t.Errorf("%s: should match ErrAssertion", sev)
		}
		if !strings.Contains(f.Error(), "["+sev.String()+"]") {
			t.Errorf("%s: message %q lacks severity", sev, f.Error())
		}
	}
}

func TestFailureError(t *testing.T) {
	f := &Failure{Kind: EventNonConvergence, Time: 1.5, Iterations: 20, Conditions: []int{0, 2}}
	if got := f.Error(); got != "event non-convergence at t=1.5 after 20 iterations (conditions [0 2])" {
		t.Errorf("unexpected message %q", got)
	}

	f = &Failure{Kind: SingularSystem, Time: 0, System: 3, Backend: "dense", Msg: "zero pivot"}
	if got := f.Error(); got != "singular system at t=0 in system 3 (dense): zero pivot" {
		t.Errorf("unexpected message %q", got)
	}

	f = &Failure{Kind: InconsistentState, Time: 2, Handle: 1, Wrapped: ErrInvalidState}
	if !errors.Is(f, ErrInvalidState) {
		t.Error("wrapped error lost")
	}
	if !strings.Contains(f.Error(), "in state 1") {
		t.Errorf("message should name the state: %q", f.Error())
	}

	if _, ok := AsFailure(errors.New("plain")); ok {
		t.Error("plain error is not a failure")
	}
}

func TestSimulationError(t *testing.T) {
	inner := &Failure{Kind: SingularSystem, Handle: NoHandle}
	err := &SimulationError{Step: 7, Time: 0.07, Wrapped: inner}
	if !errors.Is(err, ErrSingularSystem) {
		t.Error("simulation error should unwrap to the failure")
	}
	if !strings.HasPrefix(err.Error(), "step 7 (t=0.0700)") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

type eventsOnly struct{}

func (eventsOnly) Name() string                         { return "events_only" }
func (eventsOnly) Dimensions() Dimensions               { return Dimensions{Conditions: 1} }
func (eventsOnly) Capabilities() Capabilities           { return CapEvents }
func (eventsOnly) Initialize(v Variables) error         { return nil }
func (eventsOnly) EvaluateConditions(Variables, []bool) {}
func (eventsOnly) TimeEvents() []TimeEvent              { return nil }

func (eventsOnly) UpdateDiscrete(ctx EventContext) (bool, error) { return false, nil }

type declaresDelays struct{ eventsOnly }

func (declaresDelays) Capabilities() Capabilities { return CapEvents | CapDelays }

func TestBind(t *testing.T) {
	set, err := Bind(eventsOnly{})
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if _, ok := set.Events(); !ok {
		t.Error("events capability not bound")
	}
	if _, ok := set.Derivatives(); ok {
		t.Error("undeclared derivatives bound")
	}
	if err := set.Require(CapEvents); err != nil {
		t.Errorf("require declared capability: %v", err)
	}
	if err := set.Require(CapMixed); !errors.Is(err, ErrMissingCapability) {
		t.Errorf("expected ErrMissingCapability, got %v", err)
	}

	if _, err := Bind(declaresDelays{}); !errors.Is(err, ErrMissingCapability) {
		t.Errorf("expected ErrMissingCapability for undeclared implementation, got %v", err)
	}
}

func TestCapabilitiesString(t *testing.T) {
	tests := map[Capabilities]string{
		0:                          "none",
		CapEvents:                  "events",
		CapMixed:                   "events|derivatives",
		CapMixed | CapAlgebraic:    "events|derivatives|algebraic",
		CapDerivatives | CapDelays: "derivatives|delays",
	}
	for c, want := range tests {
		if got := c.String(); got != want {
			t.Errorf("%d: got %q, want %q", c, got, want)
		}
	}
}
