// Package events implements discrete-event handling for the hybrid kernel.
//
// A [PreStore] keeps the pre-values behind the pre, edge and change
// operators. [Conditions] double-buffers zero-crossing condition values
// before and after a candidate event. [Handler] runs the fixed-point
// event iteration:
//
//	STABLE --conditions evaluated--> CHECK --any flip--> ITERATE
//	   ^                               |                    |
//	   +------------no flip------------+<---recompute-------+
//
// Each ITERATE pass saves the discrete variables, asks the model to
// recompute its discrete equations, copies after into before and
// re-evaluates the conditions. The loop is bounded by
// [dynamo.Settings.MaxEventIterations]; exceeding it yields an
// EventNonConvergence failure naming the conditions still flipping.
package events

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/state"
)

// Phase is the event iteration state.
type Phase int

const (
	Stable Phase = iota
	Check
	Iterate
)

func (p Phase) String() string {
	switch p {
	case Stable:
		return "STABLE"
	case Check:
		return "CHECK"
	case Iterate:
		return "ITERATE"
	default:
		return "UNKNOWN"
	}
}

type Handler struct {
	vec    *state.Vector
	model  dynamo.EventEvaluator
	pre    *PreStore
	conds  *Conditions
	timers *TimeEvents

	maxIter    int
	phase      Phase
	iterations int
	recomputes int

	// pending forces another recompute without a condition flip: a
	// discrete variable changed or a time event fired.
	pending bool
	// changed holds the discrete variables the last recompute changed.
	changed []string
	reinit  bool
	initial bool
	err     error
}

// NewHandler sizes the pre-value store and condition buffers from vec.
func NewHandler(vec *state.Vector, model dynamo.EventEvaluator, settings dynamo.Settings) (*Handler, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: event evaluation", dynamo.ErrMissingCapability)
	}
	maxIter := settings.MaxEventIterations
	if maxIter <= 0 {
		maxIter = dynamo.DefaultMaxEventIterations
	}
	dims := vec.Dimensions()
	return &Handler{
		vec:     vec,
		model:   model,
		pre:     NewPreStore(dims, settings.StrictPre),
		conds:   NewConditions(dims.Conditions),
		timers:  NewTimeEvents(model.TimeEvents(), settings.TimeEventEpsilon),
		maxIter: maxIter,
	}, nil
}

func (h *Handler) Phase() Phase            { return h.phase }
func (h *Handler) Iterations() int         { return h.iterations }
func (h *Handler) Recomputes() int         { return h.recomputes }
func (h *Handler) MaxIterations() int      { return h.maxIter }
func (h *Handler) Pre() *PreStore          { return h.pre }
func (h *Handler) Conditions() *Conditions { return h.conds }
func (h *Handler) TimeEvents() *TimeEvents { return h.timers }

// Context returns the view handed to the model's discrete update.
func (h *Handler) Context() dynamo.EventContext {
	return &eventContext{Vector: h.vec, h: h}
}

// Reinitialized reports whether the model reinitialized continuous
// states since the last call to Handle or Initialize.
func (h *Handler) Reinitialized() bool { return h.reinit }

// Initialize evaluates the conditions into both snapshots, saves every
// discrete variable and resolves the initial event.
func (h *Handler) Initialize() error {
	h.phase = Stable
	h.iterations = 0
	h.reinit = false
	h.err = nil
	h.pre.Reset()
	h.timers.Reset()

	h.evaluate()
	h.conds.Commit()
	h.pre.SaveAll(h.vec)

	h.initial = true
	defer func() { h.initial = false }()

	fired := h.timers.Fire(h.vec.Time())
	h.pending = true
	if err := h.Resolve(); err != nil {
		return err
	}
	if len(fired) > 0 {
		logrus.Debugf("initial time events %v at t=%.6g", fired, h.vec.Time())
	}
	return nil
}

// SaveAll advances the pre-value snapshot to the current discrete values.
func (h *Handler) SaveAll() {
	h.pre.SaveAll(h.vec)
}

// Save writes the current value of one variable into the pre-value store.
func (h *Handler) Save(k dynamo.VarKind, hd dynamo.Handle) error {
	if err := h.vec.CheckHandle(k, hd); err != nil {
		return err
	}
	switch k {
	case dynamo.KindReal:
		h.pre.SaveReal(hd, h.vec.Real(hd))
	case dynamo.KindInt:
		h.pre.SaveInt(hd, h.vec.Int(hd))
	case dynamo.KindBool:
		h.pre.SaveBool(hd, h.vec.Bool(hd))
	case dynamo.KindString:
		h.pre.SaveString(hd, h.vec.String(hd))
	}
	return nil
}

func (h *Handler) evaluate() {
	h.conds.Evaluate(func(out []bool) {
		h.model.EvaluateConditions(h.vec, out)
	})
}

// CheckConditions re-evaluates the conditions into the after snapshot
// and reports whether any flipped.
func (h *Handler) CheckConditions() bool {
	h.evaluate()
	h.phase = Check
	return !h.conds.Equal()
}

// IterateEventQueue performs one transition of the event iteration. If
// stateReinitialized is set, continuous states changed since the after
// snapshot was taken and the conditions are evaluated again first.
//
// It returns true when a recompute ran and another call is needed, and
// false once before and after agree.
func (h *Handler) IterateEventQueue(stateReinitialized bool) (bool, error) {
	if stateReinitialized {
		h.evaluate()
	}
	h.phase = Check

	flipped := h.conds.Flipped()
	if len(flipped) == 0 && !h.pending {
		h.settle()
		return false, nil
	}

	h.iterations++
	if h.iterations > h.maxIter {
		f := &dynamo.Failure{
			Kind:       dynamo.EventNonConvergence,
			Time:       h.vec.Time(),
			Handle:     dynamo.NoHandle,
			Iterations: h.maxIter,
			Conditions: flipped,
		}
		if len(flipped) == 0 && len(h.changed) > 0 {
			f.Msg = "discrete variables still changing: " + strings.Join(h.changed, ", ")
		}
		logrus.Warnf("event iteration at t=%.6g did not converge after %d iterations, conditions %v still flipping, discrete %v changed",
			h.vec.Time(), h.maxIter, flipped, h.changed)
		h.phase = Stable
		h.iterations = 0
		h.pending = false
		h.changed = nil
		return false, f
	}

	h.phase = Iterate
	h.pending = false
	h.changed = nil
	logrus.Debugf("event iteration %d at t=%.6g, flipped %v", h.iterations, h.vec.Time(), flipped)

	h.pre.SaveAll(h.vec)
	if err := h.vec.SetConditions(h.conds.After()); err != nil {
		return false, err
	}

	reinit, err := h.model.UpdateDiscrete(h.Context())
	h.recomputes++
	h.timers.Clear()
	if err == nil {
		err = h.err
	}
	h.err = nil
	if err != nil {
		h.phase = Stable
		h.iterations = 0
		return false, fmt.Errorf("events: discrete update at t=%.6g: %w", h.vec.Time(), err)
	}
	if reinit {
		h.reinit = true
	}
	if h.changed = h.pre.Changed(h.vec); len(h.changed) > 0 {
		h.pending = true
	}

	h.conds.Commit()
	h.evaluate()
	h.phase = Check
	return true, nil
}

func (h *Handler) settle() {
	h.phase = Stable
	h.iterations = 0
	h.changed = nil
	_ = h.vec.SetConditions(h.conds.After())
}

// Resolve iterates the event queue until it is stable.
func (h *Handler) Resolve() error {
	for {
		again, err := h.IterateEventQueue(false)
		if err != nil {
			return err
		}
		if !again {
			return nil
		}
	}
}

// Handle checks for time and state events at the current time and
// resolves them. It reports whether an event occurred.
func (h *Handler) Handle() (bool, error) {
	h.reinit = false

	fired := h.timers.Fire(h.vec.Time())
	if len(fired) > 0 {
		h.pending = true
	}
	flipped := h.CheckConditions()
	if !flipped && !h.pending {
		h.settle()
		return false, nil
	}

	return true, h.Resolve()
}

func (h *Handler) latch(err error) {
	if err != nil && h.err == nil {
		h.err = err
	}
}

// eventContext is the view a model sees while its discrete equations
// are recomputed.
type eventContext struct {
	*state.Vector
	h *Handler
}

func (c *eventContext) PreReal(hd dynamo.Handle) float64 {
	v, err := c.h.pre.PreReal(hd)
	c.h.latch(err)
	return v
}

func (c *eventContext) PreInt(hd dynamo.Handle) int {
	v, err := c.h.pre.PreInt(hd)
	c.h.latch(err)
	return v
}

func (c *eventContext) PreBool(hd dynamo.Handle) bool {
	v, err := c.h.pre.PreBool(hd)
	c.h.latch(err)
	return v
}

func (c *eventContext) PreString(hd dynamo.Handle) string {
	v, err := c.h.pre.PreString(hd)
	c.h.latch(err)
	return v
}

func (c *eventContext) Edge(hd dynamo.Handle) bool {
	v, err := c.h.pre.Edge(hd, c.Bool(hd))
	c.h.latch(err)
	return v
}

func (c *eventContext) ChangeReal(hd dynamo.Handle) bool {
	v, err := c.h.pre.ChangeReal(hd, c.Real(hd))
	c.h.latch(err)
	return v
}

func (c *eventContext) ChangeInt(hd dynamo.Handle) bool {
	v, err := c.h.pre.ChangeInt(hd, c.Int(hd))
	c.h.latch(err)
	return v
}

func (c *eventContext) ChangeBool(hd dynamo.Handle) bool {
	v, err := c.h.pre.ChangeBool(hd, c.Bool(hd))
	c.h.latch(err)
	return v
}

func (c *eventContext) ChangeString(hd dynamo.Handle) bool {
	v, err := c.h.pre.ChangeString(hd, c.String(hd))
	c.h.latch(err)
	return v
}

func (c *eventContext) Condition(i int) bool       { return c.h.conds.Current(i) }
func (c *eventContext) ConditionEdge(i int) bool   { return c.h.conds.Rising(i) }
func (c *eventContext) TimeEventActive(i int) bool { return c.h.timers.Active(i) }
func (c *eventContext) Initial() bool              { return c.h.initial }
