package delay

import "fmt"

// Table holds one Buffer per delay expression id. All expressions share
// the time axis set by StoreTime.
type Table struct {
	buffers  []*Buffer
	delayMax float64
	now      float64
	hasTime  bool
}

func NewTable(n int, delayMax float64) *Table {
	t := &Table{
		buffers:  make([]*Buffer, n),
		delayMax: delayMax,
	}
	for i := range t.buffers {
		t.buffers[i] = NewBuffer(delayMax)
	}
	return t
}

func (t *Table) Len() int {
	return len(t.buffers)
}

func (t *Table) DelayMax() float64 {
	return t.delayMax
}

// StoreTime opens a new sample time. Times must strictly increase.
func (t *Table) StoreTime(now float64) error {
	if t.hasTime && now <= t.now {
		return fmt.Errorf("%w: %.9g after %.9g", ErrNonMonotonic, now, t.now)
	}
	t.now = now
	t.hasTime = true
	return nil
}

// StoreValue records expression id's value at the last stored time.
func (t *Table) StoreValue(id int, v float64) error {
	b, err := t.buffer(id)
	if err != nil {
		return err
	}
	if !t.hasTime {
		return ErrNoTime
	}
	return b.Append(t.now, v)
}

// Value evaluates expression id delayTime before now. delayMax is the
// per-expression bound declared by the model; it may not exceed the
// table's horizon.
func (t *Table) Value(id int, now, current, delayTime, delayMax float64) (float64, error) {
	b, err := t.buffer(id)
	if err != nil {
		return 0, err
	}
	if delayMax > t.delayMax {
		return 0, fmt.Errorf("%w: expression %d declares %.6g, horizon is %.6g", ErrDelayExceedsMax, id, delayMax, t.delayMax)
	}
	if delayTime > delayMax {
		return 0, fmt.Errorf("%w: expression %d asks %.6g > %.6g", ErrDelayExceedsMax, id, delayTime, delayMax)
	}
	return b.Value(now, current, delayTime)
}

// Buffer returns the history of expression id.
func (t *Table) Buffer(id int) (*Buffer, error) {
	return t.buffer(id)
}

func (t *Table) buffer(id int) (*Buffer, error) {
	if id < 0 || id >= len(t.buffers) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrUnknownExpr, id, len(t.buffers))
	}
	return t.buffers[id], nil
}
