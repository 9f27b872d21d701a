package events_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/events"
	"github.com/san-kum/hybridsim/internal/state"
)

// scriptedModel evaluates conditions through cond and runs update on
// every discrete recompute.
type scriptedModel struct {
	cond   func(v dynamo.Variables, out []bool)
	update func(ctx dynamo.EventContext) (bool, error)
	timed  []dynamo.TimeEvent
	calls  int
}

func (m *scriptedModel) EvaluateConditions(v dynamo.Variables, out []bool) {
	if m.cond != nil {
		m.cond(v, out)
	}
}

func (m *scriptedModel) UpdateDiscrete(ctx dynamo.EventContext) (bool, error) {
	m.calls++
	if m.update == nil {
		return false, nil
	}
	return m.update(ctx)
}

func (m *scriptedModel) TimeEvents() []dynamo.TimeEvent { return m.timed }

func newVector(dims dynamo.Dimensions) *state.Vector {
	vec, err := state.New(dims, dynamo.DefaultSettings())
	Expect(err).NotTo(HaveOccurred())
	Expect(vec.Initialize()).To(Succeed())
	return vec
}

var _ = Describe("Handler", func() {
	var (
		vec      *state.Vector
		model    *scriptedModel
		settings dynamo.Settings
	)

	BeforeEach(func() {
		vec = newVector(dynamo.Dimensions{States: 1, Ints: 1, Bools: 1, Conditions: 3})
		model = &scriptedModel{
			cond: func(v dynamo.Variables, out []bool) {
				out[0] = false
				out[1] = v.Time() >= 1
				out[2] = false
			},
		}
		settings = dynamo.DefaultSettings()
	})

	newHandler := func() *events.Handler {
		h, err := events.NewHandler(vec, model, settings)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Initialize()).To(Succeed())
		return h
	}

	It("requires an event evaluator", func() {
		_, err := events.NewHandler(vec, nil, settings)
		Expect(err).To(MatchError(dynamo.ErrMissingCapability))
	})

	It("falls back to the default iteration bound", func() {
		settings.MaxEventIterations = 0
		h := newHandler()
		Expect(h.MaxIterations()).To(Equal(dynamo.DefaultMaxEventIterations))
	})

	It("sees the initial event during Initialize only", func() {
		var sawInitial []bool
		model.update = func(ctx dynamo.EventContext) (bool, error) {
			sawInitial = append(sawInitial, ctx.Initial())
			return false, nil
		}
		h := newHandler()
		Expect(sawInitial).To(Equal([]bool{true}))
		Expect(h.Phase()).To(Equal(events.Stable))

		vec.SetTime(1)
		occurred, err := h.Handle()
		Expect(err).NotTo(HaveOccurred())
		Expect(occurred).To(BeTrue())
		Expect(sawInitial).To(Equal([]bool{true, false}))
	})

	It("returns stable without recomputing when nothing flipped", func() {
		h := newHandler()
		before := model.calls

		again, err := h.IterateEventQueue(false)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(BeFalse())
		Expect(h.Phase()).To(Equal(events.Stable))
		Expect(model.calls).To(Equal(before))
		Expect(h.Recomputes()).To(Equal(before))
	})

	It("resolves a single flipped condition", func() {
		h := newHandler()
		Expect(h.Conditions().Before()).To(Equal([]bool{false, false, false}))
		before := model.calls

		var edges []bool
		model.update = func(ctx dynamo.EventContext) (bool, error) {
			edges = append(edges, ctx.ConditionEdge(1))
			return false, nil
		}

		vec.SetTime(1)
		Expect(h.CheckConditions()).To(BeTrue())
		Expect(h.Phase()).To(Equal(events.Check))
		Expect(h.Conditions().Flipped()).To(Equal([]int{1}))

		again, err := h.IterateEventQueue(false)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(BeTrue())
		Expect(model.calls).To(Equal(before + 1))
		Expect(edges).To(Equal([]bool{true}))
		Expect(h.Conditions().Before()).To(Equal([]bool{false, true, false}))
		Expect(vec.Conditions()).To(Equal([]bool{false, true, false}))

		again, err = h.IterateEventQueue(false)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(BeFalse())
		Expect(h.Phase()).To(Equal(events.Stable))
		Expect(model.calls).To(Equal(before + 1))
	})

	It("stops an oscillating condition at the iteration bound", func() {
		settings.MaxEventIterations = 5
		h := newHandler()
		before := model.calls

		model.cond = func(v dynamo.Variables, out []bool) {
			out[0] = v.Int(0)%2 == 1
		}
		model.update = func(ctx dynamo.EventContext) (bool, error) {
			ctx.SetInt(0, ctx.Int(0)+1)
			return false, nil
		}

		vec.SetInt(0, 1)
		Expect(h.CheckConditions()).To(BeTrue())

		err := h.Resolve()
		Expect(err).To(MatchError(dynamo.ErrEventNonConvergence))

		f, ok := dynamo.AsFailure(err)
		Expect(ok).To(BeTrue())
		Expect(f.Kind).To(Equal(dynamo.EventNonConvergence))
		Expect(f.Iterations).To(Equal(5))
		Expect(f.Conditions).To(Equal([]int{0}))
		Expect(f.Fatal()).To(BeTrue())

		Expect(model.calls - before).To(Equal(5))
		Expect(h.Phase()).To(Equal(events.Stable))
	})

	It("names the discrete variables that keep a recompute pending", func() {
		settings.MaxEventIterations = 5
		h := newHandler()
		before := model.calls

		model.update = func(ctx dynamo.EventContext) (bool, error) {
			ctx.SetBool(0, !ctx.Bool(0))
			return false, nil
		}

		vec.SetTime(1)
		Expect(h.CheckConditions()).To(BeTrue())

		err := h.Resolve()
		Expect(err).To(MatchError(dynamo.ErrEventNonConvergence))

		f, ok := dynamo.AsFailure(err)
		Expect(ok).To(BeTrue())
		Expect(f.Conditions).To(BeEmpty())
		Expect(f.Msg).To(ContainSubstring("bool 0"))
		Expect(f.Error()).To(ContainSubstring("discrete variables still changing"))
		Expect(model.calls - before).To(Equal(5))
	})

	It("settles with a discrete real holding NaN", func() {
		vec = newVector(dynamo.Dimensions{States: 1, Reals: 1, Conditions: 3})
		vec.SetReal(0, math.NaN())

		h := newHandler()
		Expect(model.calls).To(BeNumerically("<", settings.MaxEventIterations))
		Expect(h.Phase()).To(Equal(events.Stable))

		vec.SetTime(1)
		occurred, err := h.Handle()
		Expect(err).NotTo(HaveOccurred())
		Expect(occurred).To(BeTrue())
		Expect(math.IsNaN(vec.Real(0))).To(BeTrue())
	})

	It("recomputes again after a discrete variable changed", func() {
		h := newHandler()
		before := model.calls

		model.update = func(ctx dynamo.EventContext) (bool, error) {
			if ctx.ConditionEdge(1) {
				ctx.SetInt(0, ctx.PreInt(0)+1)
			}
			return false, nil
		}

		vec.SetTime(1)
		occurred, err := h.Handle()
		Expect(err).NotTo(HaveOccurred())
		Expect(occurred).To(BeTrue())
		Expect(vec.Int(0)).To(Equal(1))
		Expect(model.calls - before).To(Equal(2))
	})

	It("fires time events through Handle", func() {
		model.timed = []dynamo.TimeEvent{{Start: 0.5, Interval: 0.5}}
		var active []bool
		model.update = func(ctx dynamo.EventContext) (bool, error) {
			active = append(active, ctx.TimeEventActive(0))
			if ctx.TimeEventActive(0) {
				ctx.SetBool(0, true)
			}
			return false, nil
		}
		h := newHandler()
		active = nil

		vec.SetTime(0.25)
		occurred, err := h.Handle()
		Expect(err).NotTo(HaveOccurred())
		Expect(occurred).To(BeFalse())

		vec.SetTime(0.5)
		occurred, err = h.Handle()
		Expect(err).NotTo(HaveOccurred())
		Expect(occurred).To(BeTrue())
		Expect(vec.Bool(0)).To(BeTrue())
		Expect(active[0]).To(BeTrue())
		Expect(h.TimeEvents().Active(0)).To(BeFalse())
		Expect(h.TimeEvents().Count(0)).To(Equal(1))
	})

	It("reports reinitialized states", func() {
		h := newHandler()
		model.update = func(ctx dynamo.EventContext) (bool, error) {
			if ctx.ConditionEdge(1) {
				ctx.SetContinuousState(0, -ctx.ContinuousState(0))
				return true, nil
			}
			return false, nil
		}
		vec.SetContinuousState(0, 3)
		vec.SetTime(1)

		_, err := h.Handle()
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Reinitialized()).To(BeTrue())
		Expect(vec.ContinuousState(0)).To(Equal(-3.0))
	})

	It("propagates model errors", func() {
		h := newHandler()
		boom := errors.New("boom")
		model.update = func(ctx dynamo.EventContext) (bool, error) { return false, boom }

		vec.SetTime(1)
		_, err := h.Handle()
		Expect(err).To(MatchError(boom))
		Expect(h.Phase()).To(Equal(events.Stable))
	})

	It("saves every discrete variable before recomputing in strict mode", func() {
		settings.StrictPre = true
		h, err := events.NewHandler(vec, model, settings)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Initialize()).To(Succeed())

		h.Pre().Reset()
		var edges []bool
		model.update = func(ctx dynamo.EventContext) (bool, error) {
			edges = append(edges, ctx.Edge(0))
			return false, nil
		}
		vec.SetTime(1)
		_, err = h.Handle()
		Expect(err).NotTo(HaveOccurred())
		Expect(edges).To(Equal([]bool{false}))
		Expect(h.Pre().Saved(dynamo.KindBool, 0)).To(BeTrue())
	})

	It("saves individual variables", func() {
		h := newHandler()
		vec.SetInt(0, 9)
		Expect(h.Save(dynamo.KindInt, 0)).To(Succeed())
		Expect(h.Pre().PreInt(0)).To(Equal(9))
		Expect(h.Save(dynamo.KindInt, 4)).To(MatchError(dynamo.ErrHandleRange))
	})
})
