package events

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

// ErrNotSaved is returned in strict mode by pre() of a variable that was
// never saved.
var ErrNotSaved = errors.New("events: pre-value read before save")

// PreStore maps variable handles to their values as of the last save.
// There is one flat array per variable class, indexed by handle, and a
// saved flag per entry. Arrays grow to the highest handle ever saved.
//
// A never-saved entry reads as the class zero value (false, 0, 0.0, "")
// unless the store is strict, in which case the read fails with
// ErrNotSaved.
type PreStore struct {
	reals []float64
	ints  []int
	bools []bool
	strs  []string
	saved [4][]bool

	strict bool
}

// NewPreStore preallocates one entry per declared variable.
func NewPreStore(dims dynamo.Dimensions, strict bool) *PreStore {
	p := &PreStore{
		reals:  make([]float64, dims.Reals),
		ints:   make([]int, dims.Ints),
		bools:  make([]bool, dims.Bools),
		strs:   make([]string, dims.Strings),
		strict: strict,
	}
	p.saved[dynamo.KindReal] = make([]bool, dims.Reals)
	p.saved[dynamo.KindInt] = make([]bool, dims.Ints)
	p.saved[dynamo.KindBool] = make([]bool, dims.Bools)
	p.saved[dynamo.KindString] = make([]bool, dims.Strings)
	return p
}

func (p *PreStore) Strict() bool { return p.strict }

// Saved reports whether handle h of kind k has been saved.
func (p *PreStore) Saved(k dynamo.VarKind, h dynamo.Handle) bool {
	s := p.saved[k]
	return h >= 0 && int(h) < len(s) && s[h]
}

// Reset forgets every saved value.
func (p *PreStore) Reset() {
	for k := range p.saved {
		clear(p.saved[k])
	}
	clear(p.reals)
	clear(p.ints)
	clear(p.bools)
	clear(p.strs)
}

func (p *PreStore) mark(k dynamo.VarKind, h dynamo.Handle) {
	if h < 0 {
		panic(fmt.Sprintf("events: negative %s handle %d", k, h))
	}
	n := int(h) + 1
	if len(p.saved[k]) < n {
		p.saved[k] = append(p.saved[k], make([]bool, n-len(p.saved[k]))...)
	}
	p.saved[k][h] = true
}

func (p *PreStore) SaveReal(h dynamo.Handle, v float64) {
	p.mark(dynamo.KindReal, h)
	p.reals = grow(p.reals, h)
	p.reals[h] = v
}

func (p *PreStore) SaveInt(h dynamo.Handle, v int) {
	p.mark(dynamo.KindInt, h)
	p.ints = grow(p.ints, h)
	p.ints[h] = v
}

func (p *PreStore) SaveBool(h dynamo.Handle, v bool) {
	p.mark(dynamo.KindBool, h)
	p.bools = grow(p.bools, h)
	p.bools[h] = v
}

func (p *PreStore) SaveString(h dynamo.Handle, v string) {
	p.mark(dynamo.KindString, h)
	p.strs = grow(p.strs, h)
	p.strs[h] = v
}

func (p *PreStore) check(k dynamo.VarKind, h dynamo.Handle) error {
	if p.strict && !p.Saved(k, h) {
		return fmt.Errorf("%w: %s handle %d", ErrNotSaved, k, h)
	}
	return nil
}

func (p *PreStore) PreReal(h dynamo.Handle) (float64, error) {
	if err := p.check(dynamo.KindReal, h); err != nil {
		return 0, err
	}
	return at(p.reals, h), nil
}

func (p *PreStore) PreInt(h dynamo.Handle) (int, error) {
	if err := p.check(dynamo.KindInt, h); err != nil {
		return 0, err
	}
	return at(p.ints, h), nil
}

func (p *PreStore) PreBool(h dynamo.Handle) (bool, error) {
	if err := p.check(dynamo.KindBool, h); err != nil {
		return false, err
	}
	return at(p.bools, h), nil
}

func (p *PreStore) PreString(h dynamo.Handle) (string, error) {
	if err := p.check(dynamo.KindString, h); err != nil {
		return "", err
	}
	return at(p.strs, h), nil
}

// Edge is true iff pre(h) is false and current is true.
func (p *PreStore) Edge(h dynamo.Handle, current bool) (bool, error) {
	pre, err := p.PreBool(h)
	if err != nil {
		return false, err
	}
	return current && !pre, nil
}

// ChangeReal compares with exact equality; there is no tolerance.
func (p *PreStore) ChangeReal(h dynamo.Handle, current float64) (bool, error) {
	pre, err := p.PreReal(h)
	return err == nil && current != pre, err
}

func (p *PreStore) ChangeInt(h dynamo.Handle, current int) (bool, error) {
	pre, err := p.PreInt(h)
	return err == nil && current != pre, err
}

func (p *PreStore) ChangeBool(h dynamo.Handle, current bool) (bool, error) {
	pre, err := p.PreBool(h)
	return err == nil && current != pre, err
}

func (p *PreStore) ChangeString(h dynamo.Handle, current string) (bool, error) {
	pre, err := p.PreString(h)
	return err == nil && current != pre, err
}

// ChangeDiscreteReal computes change and then saves current, for a
// discrete variable updated in place.
func (p *PreStore) ChangeDiscreteReal(h dynamo.Handle, current float64) (bool, error) {
	changed, err := p.ChangeReal(h, current)
	p.SaveReal(h, current)
	return changed, err
}

func (p *PreStore) ChangeDiscreteInt(h dynamo.Handle, current int) (bool, error) {
	changed, err := p.ChangeInt(h, current)
	p.SaveInt(h, current)
	return changed, err
}

func (p *PreStore) ChangeDiscreteBool(h dynamo.Handle, current bool) (bool, error) {
	changed, err := p.ChangeBool(h, current)
	p.SaveBool(h, current)
	return changed, err
}

func (p *PreStore) ChangeDiscreteString(h dynamo.Handle, current string) (bool, error) {
	changed, err := p.ChangeString(h, current)
	p.SaveString(h, current)
	return changed, err
}

// Snapshot is the subset of a state vector the store can save from.
type Snapshot interface {
	Reals() []float64
	Ints() []int
	Bools() []bool
	Strings() []string
}

// SaveAll saves every discrete variable of s.
func (p *PreStore) SaveAll(s Snapshot) {
	for h, v := range s.Reals() {
		p.SaveReal(dynamo.Handle(h), v)
	}
	for h, v := range s.Ints() {
		p.SaveInt(dynamo.Handle(h), v)
	}
	for h, v := range s.Bools() {
		p.SaveBool(dynamo.Handle(h), v)
	}
	for h, v := range s.Strings() {
		p.SaveString(dynamo.Handle(h), v)
	}
}

// Changed lists the discrete variables of s that differ from their
// saved values, as "kind handle". Two NaN reals count as unchanged.
func (p *PreStore) Changed(s Snapshot) []string {
	var out []string
	for h, v := range s.Reals() {
		if !sameReal(at(p.reals, dynamo.Handle(h)), v) {
			out = append(out, fmt.Sprintf("%s %d", dynamo.KindReal, h))
		}
	}
	out = changed(out, dynamo.KindInt, p.ints, s.Ints())
	out = changed(out, dynamo.KindBool, p.bools, s.Bools())
	out = changed(out, dynamo.KindString, p.strs, s.Strings())
	return out
}

func changed[T comparable](out []string, kind dynamo.VarKind, saved, cur []T) []string {
	for h, v := range cur {
		if at(saved, dynamo.Handle(h)) != v {
			out = append(out, fmt.Sprintf("%s %d", kind, h))
		}
	}
	return out
}

func sameReal(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func grow[T any](s []T, h dynamo.Handle) []T {
	if n := int(h) + 1; len(s) < n {
		s = append(s, make([]T, n-len(s))...)
	}
	return s
}

func at[T any](s []T, h dynamo.Handle) T {
	var zero T
	if h < 0 || int(h) >= len(s) {
		return zero
	}
	return s[h]
}
