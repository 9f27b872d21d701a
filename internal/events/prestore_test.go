package events_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/events"
	"github.com/san-kum/hybridsim/internal/state"
)

var _ = Describe("PreStore", func() {
	var pre *events.PreStore

	BeforeEach(func() {
		pre = events.NewPreStore(dynamo.Dimensions{Reals: 2, Ints: 1, Bools: 2, Strings: 1}, false)
	})

	Describe("pre", func() {
		It("returns the value as of the last save", func() {
			pre.SaveReal(1, 2.5)
			pre.SaveInt(0, 4)
			pre.SaveString(0, "idle")

			Expect(pre.PreReal(1)).To(Equal(2.5))
			Expect(pre.PreInt(0)).To(Equal(4))
			Expect(pre.PreString(0)).To(Equal("idle"))

			pre.SaveReal(1, 3.5)
			Expect(pre.PreReal(1)).To(Equal(3.5))
		})

		It("defaults unsaved entries to the zero value", func() {
			Expect(pre.Saved(dynamo.KindBool, 0)).To(BeFalse())
			Expect(pre.PreBool(0)).To(BeFalse())
			Expect(pre.PreReal(0)).To(Equal(0.0))
			Expect(pre.PreString(0)).To(Equal(""))
		})

		It("grows past the declared dimensions", func() {
			pre.SaveReal(7, 1.5)
			Expect(pre.Saved(dynamo.KindReal, 7)).To(BeTrue())
			Expect(pre.Saved(dynamo.KindReal, 6)).To(BeFalse())
			Expect(pre.PreReal(7)).To(Equal(1.5))
		})

		It("fails for unsaved entries in strict mode", func() {
			strict := events.NewPreStore(dynamo.Dimensions{Bools: 1}, true)
			_, err := strict.PreBool(0)
			Expect(err).To(MatchError(events.ErrNotSaved))

			_, err = strict.Edge(0, true)
			Expect(err).To(MatchError(events.ErrNotSaved))

			strict.SaveBool(0, false)
			Expect(strict.Edge(0, true)).To(BeTrue())
		})

		It("forgets everything on reset", func() {
			pre.SaveBool(1, true)
			pre.Reset()
			Expect(pre.Saved(dynamo.KindBool, 1)).To(BeFalse())
			Expect(pre.PreBool(1)).To(BeFalse())
		})
	})

	DescribeTable("edge",
		func(saved, current, want bool) {
			pre.SaveBool(0, saved)
			Expect(pre.Edge(0, current)).To(Equal(want))
		},
		Entry("false to true", false, true, true),
		Entry("true to true", true, true, false),
		Entry("true to false", true, false, false),
		Entry("false to false", false, false, false),
	)

	It("treats an unsaved boolean as false for edge", func() {
		Expect(pre.Edge(1, true)).To(BeTrue())
		Expect(pre.Edge(1, false)).To(BeFalse())
	})

	Describe("change", func() {
		It("uses exact equality for reals", func() {
			a, b := 0.1, 0.2
			pre.SaveReal(0, a+b)
			Expect(pre.ChangeReal(0, 0.3)).To(BeTrue())
			Expect(pre.ChangeReal(0, math.Nextafter(a+b, 1))).To(BeTrue())
			Expect(pre.ChangeReal(0, a+b)).To(BeFalse())
		})

		It("compares every class", func() {
			pre.SaveInt(0, 3)
			pre.SaveBool(0, true)
			pre.SaveString(0, "on")

			Expect(pre.ChangeInt(0, 3)).To(BeFalse())
			Expect(pre.ChangeInt(0, 4)).To(BeTrue())
			Expect(pre.ChangeBool(0, true)).To(BeFalse())
			Expect(pre.ChangeBool(0, false)).To(BeTrue())
			Expect(pre.ChangeString(0, "on")).To(BeFalse())
			Expect(pre.ChangeString(0, "off")).To(BeTrue())
		})

		It("saves while comparing for discrete updates", func() {
			pre.SaveInt(0, 1)

			Expect(pre.ChangeDiscreteInt(0, 2)).To(BeTrue())
			Expect(pre.PreInt(0)).To(Equal(2))
			Expect(pre.ChangeDiscreteInt(0, 2)).To(BeFalse())

			Expect(pre.ChangeDiscreteReal(1, 0.5)).To(BeTrue())
			Expect(pre.Saved(dynamo.KindReal, 1)).To(BeTrue())
			Expect(pre.ChangeDiscreteBool(0, true)).To(BeTrue())
			Expect(pre.ChangeDiscreteString(0, "")).To(BeFalse())
		})
	})

	Describe("Changed", func() {
		var vec *state.Vector

		BeforeEach(func() {
			var err error
			vec, err = state.New(dynamo.Dimensions{Reals: 2, Ints: 1, Bools: 2, Strings: 1}, dynamo.DefaultSettings())
			Expect(err).NotTo(HaveOccurred())
			Expect(vec.Initialize()).To(Succeed())
		})

		It("is empty right after a full save", func() {
			vec.SetReal(1, 4)
			pre.SaveAll(vec)
			Expect(pre.Changed(vec)).To(BeEmpty())
		})

		It("names every changed variable by kind and handle", func() {
			pre.SaveAll(vec)
			vec.SetReal(1, 4)
			vec.SetBool(0, true)

			Expect(pre.Changed(vec)).To(Equal([]string{"real 1", "bool 0"}))
		})

		It("treats a NaN real that stays NaN as unchanged", func() {
			vec.SetReal(0, math.NaN())
			pre.SaveAll(vec)
			Expect(pre.Changed(vec)).To(BeEmpty())

			vec.SetReal(0, 1)
			Expect(pre.Changed(vec)).To(Equal([]string{"real 0"}))
		})
	})
})

var _ = Describe("Conditions", func() {
	It("double-buffers before and after", func() {
		c := events.NewConditions(3)
		Expect(c.Equal()).To(BeTrue())

		Expect(c.Load([]bool{false, true, false})).To(Succeed())
		Expect(c.Before()).To(Equal([]bool{false, false, false}))
		Expect(c.After()).To(Equal([]bool{false, true, false}))
		Expect(c.Flipped()).To(Equal([]int{1}))
		Expect(c.Rising(1)).To(BeTrue())

		c.Commit()
		Expect(c.Before()).To(Equal([]bool{false, true, false}))
		Expect(c.After()).To(Equal([]bool{false, true, false}))
		Expect(c.Equal()).To(BeTrue())
		Expect(c.Rising(1)).To(BeFalse())
	})

	It("returns copies", func() {
		c := events.NewConditions(1)
		after := c.After()
		after[0] = true
		Expect(c.Current(0)).To(BeFalse())
	})

	It("rejects a snapshot of the wrong length", func() {
		c := events.NewConditions(2)
		Expect(c.Load([]bool{true})).To(MatchError(dynamo.ErrDimensionMismatch))
	})
})

var _ = Describe("TimeEvents", func() {
	It("fires periodic sources until the limit", func() {
		te := events.NewTimeEvents([]dynamo.TimeEvent{{Start: 1, Interval: 0.5, Limit: 3}}, 1e-9)

		next, ok := te.Next()
		Expect(ok).To(BeTrue())
		Expect(next).To(Equal(1.0))

		Expect(te.Fire(0.9)).To(BeEmpty())
		Expect(te.Fire(1)).To(Equal([]int{0}))
		Expect(te.Active(0)).To(BeTrue())
		te.Clear()
		Expect(te.Active(0)).To(BeFalse())

		Expect(te.Fire(1.5)).To(Equal([]int{0}))
		Expect(te.Fire(2)).To(Equal([]int{0}))
		Expect(te.Fire(2.5)).To(BeEmpty())
		Expect(te.Count(0)).To(Equal(3))

		_, ok = te.Next()
		Expect(ok).To(BeFalse())
	})

	It("fires one-shot sources once", func() {
		te := events.NewTimeEvents([]dynamo.TimeEvent{{Start: 2}, {Start: 1, Interval: 1}}, 1e-9)

		next, _ := te.Next()
		Expect(next).To(Equal(1.0))
		Expect(te.Fire(2)).To(ConsistOf(0, 1))
		Expect(te.Fire(3)).To(Equal([]int{1}))
	})
})
