// Package delay keeps the time/value history behind the delay operator.
//
// Every delay expression owns a [Buffer] of samples with strictly
// increasing times. [Buffer.Value] interpolates linearly between the two
// samples bracketing t − delayTime. When t − delayTime lies before the
// oldest retained sample (the start of a run) the caller's current value
// is returned instead: there is not enough history yet.
package delay

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNonMonotonic    = errors.New("delay: sample times must be strictly increasing")
	ErrDelayExceedsMax = errors.New("delay: delay time exceeds maximum delay")
	ErrUnknownExpr     = errors.New("delay: unknown delay expression")
	ErrNoTime          = errors.New("delay: value stored before any time")
)

type sample struct {
	t, v float64
}

// Buffer is the history of one delay expression. Samples older than the
// newest time minus delayMax are dropped lazily, keeping the one sample
// needed to interpolate right at the horizon.
type Buffer struct {
	samples  []sample
	head     int
	delayMax float64
}

func NewBuffer(delayMax float64) *Buffer {
	return &Buffer{delayMax: delayMax}
}

func (b *Buffer) Len() int {
	return len(b.samples) - b.head
}

// Oldest returns the oldest retained sample time.
func (b *Buffer) Oldest() (float64, bool) {
	if b.Len() == 0 {
		return 0, false
	}
	return b.samples[b.head].t, true
}

// Newest returns the newest sample time.
func (b *Buffer) Newest() (float64, bool) {
	if b.Len() == 0 {
		return 0, false
	}
	return b.samples[len(b.samples)-1].t, true
}

// Append adds a sample. t must be greater than the newest sample time.
func (b *Buffer) Append(t, v float64) error {
	if n := len(b.samples); n > b.head && t <= b.samples[n-1].t {
		return fmt.Errorf("%w: %.9g after %.9g", ErrNonMonotonic, t, b.samples[n-1].t)
	}
	b.samples = append(b.samples, sample{t, v})
	b.trim(t)
	return nil
}

func (b *Buffer) trim(now float64) {
	horizon := now - b.delayMax
	live := b.samples[b.head:]
	// keep the last sample at or before the horizon
	drop := sort.Search(len(live), func(i int) bool { return live[i].t > horizon }) - 1
	if drop > 0 {
		b.head += drop
	}
	if b.head > 64 && b.head > len(b.samples)/2 {
		n := copy(b.samples, b.samples[b.head:])
		b.samples = b.samples[:n]
		b.head = 0
	}
}

// Value returns the expression's value at now − delayTime.
//
// delayTime <= 0 and an empty buffer return current. A query before the
// oldest retained sample returns current. A query after the newest sample
// interpolates between the newest sample and (now, current).
func (b *Buffer) Value(now, current, delayTime float64) (float64, error) {
	if delayTime > b.delayMax {
		return 0, fmt.Errorf("%w: %.6g > %.6g", ErrDelayExceedsMax, delayTime, b.delayMax)
	}
	if delayTime <= 0 || b.Len() == 0 {
		return current, nil
	}

	live := b.samples[b.head:]
	target := now - delayTime

	if target < live[0].t {
		return current, nil
	}

	last := live[len(live)-1]
	if target >= last.t {
		if now <= last.t || target == last.t {
			return last.v, nil
		}
		return lerp(last.t, last.v, now, current, target), nil
	}

	i := sort.Search(len(live), func(i int) bool { return live[i].t > target })
	lo, hi := live[i-1], live[i]
	if target == lo.t {
		return lo.v, nil
	}
	return lerp(lo.t, lo.v, hi.t, hi.v, target), nil
}

func lerp(t0, v0, t1, v1, t float64) float64 {
	return v0 + (v1-v0)*(t-t0)/(t1-t0)
}
