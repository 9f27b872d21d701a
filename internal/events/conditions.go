package events

import (
	"fmt"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

// Conditions is the before/after double buffer of zero-crossing
// condition values. Both halves are owned and always the same length.
type Conditions struct {
	buf    [2][]bool
	before int
}

func NewConditions(n int) *Conditions {
	return &Conditions{buf: [2][]bool{make([]bool, n), make([]bool, n)}}
}

func (c *Conditions) Len() int { return len(c.buf[0]) }

func (c *Conditions) beforeBuf() []bool { return c.buf[c.before] }
func (c *Conditions) afterBuf() []bool  { return c.buf[1-c.before] }

// Before returns a copy of the snapshot preceding the candidate event.
func (c *Conditions) Before() []bool {
	return clone(c.beforeBuf())
}

// After returns a copy of the snapshot following the candidate event.
func (c *Conditions) After() []bool {
	return clone(c.afterBuf())
}

// Load overwrites the after snapshot.
func (c *Conditions) Load(after []bool) error {
	if len(after) != c.Len() {
		return fmt.Errorf("%w: %d conditions, got %d", dynamo.ErrDimensionMismatch, c.Len(), len(after))
	}
	copy(c.afterBuf(), after)
	return nil
}

// Evaluate fills the after snapshot through fn.
func (c *Conditions) Evaluate(fn func(out []bool)) {
	fn(c.afterBuf())
}

// Flipped returns the indices where before and after differ.
func (c *Conditions) Flipped() []int {
	var idx []int
	b, a := c.beforeBuf(), c.afterBuf()
	for i := range b {
		if b[i] != a[i] {
			idx = append(idx, i)
		}
	}
	return idx
}

// Equal reports whether before and after agree element-wise.
func (c *Conditions) Equal() bool {
	b, a := c.beforeBuf(), c.afterBuf()
	for i := range b {
		if b[i] != a[i] {
			return false
		}
	}
	return true
}

// Rising reports condition i switching from false to true.
func (c *Conditions) Rising(i int) bool {
	return !c.beforeBuf()[i] && c.afterBuf()[i]
}

func (c *Conditions) Current(i int) bool {
	return c.afterBuf()[i]
}

// Commit makes after the new before. The halves swap roles and the new
// after starts as a copy, ready for the next evaluation.
func (c *Conditions) Commit() {
	c.before = 1 - c.before
	copy(c.afterBuf(), c.beforeBuf())
}

// Reset sets both snapshots to vals.
func (c *Conditions) Reset(vals []bool) error {
	if err := c.Load(vals); err != nil {
		return err
	}
	c.Commit()
	return nil
}

func clone(b []bool) []bool {
	out := make([]bool, len(b))
	copy(out, b)
	return out
}
