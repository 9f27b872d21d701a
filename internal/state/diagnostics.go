package state

import (
	"github.com/sirupsen/logrus"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

// IsConsistent scans the continuous states and returns false on the first
// NaN or Inf. The offending handle is kept for CheckConsistency.
func (v *Vector) IsConsistent() bool {
	if i := v.x.FirstInvalid(); i >= 0 {
		v.badState = dynamo.Handle(i)
		return false
	}
	v.badState = dynamo.NoHandle
	return true
}

// CheckConsistency is IsConsistent returning an InconsistentState failure
// that names the offending state.
func (v *Vector) CheckConsistency() error {
	if v.IsConsistent() {
		return nil
	}
	return &dynamo.Failure{
		Kind:    dynamo.InconsistentState,
		Time:    v.time,
		Handle:  v.badState,
		Msg:     "non-finite continuous state",
		Wrapped: dynamo.ErrInvalidState,
	}
}

// Delay returns expression exprID's value delayTime before the current
// time. Without enough history it returns current.
func (v *Vector) Delay(exprID int, current, delayTime, delayMax float64) (float64, error) {
	return v.delays.Value(exprID, v.time, current, delayTime, delayMax)
}

// StoreTime opens a new delay sample at t. Calls must be strictly
// time-increasing.
func (v *Vector) StoreTime(t float64) error {
	return v.delays.StoreTime(t)
}

// StoreDelay records exprID's value at the last stored time.
func (v *Vector) StoreDelay(exprID int, value float64) error {
	return v.delays.StoreValue(exprID, value)
}

// Assert records a failure when cond is false. Warnings and errors are
// logged and kept; execution continues. A fatal assertion is returned.
func (v *Vector) Assert(cond bool, msg string, sev dynamo.Severity) error {
	if cond {
		return nil
	}
	f := &dynamo.Failure{
		Kind:     dynamo.AssertionFailure,
		Severity: sev,
		Time:     v.time,
		Handle:   dynamo.NoHandle,
		Msg:      msg,
	}
	v.assertions = append(v.assertions, f)

	entry := logrus.WithFields(logrus.Fields{"t": v.time, "severity": sev.String()})
	switch sev {
	case dynamo.SeverityWarning:
		entry.Warnf("assertion: %s", msg)
	default:
		entry.Errorf("assertion: %s", msg)
	}

	if sev == dynamo.SeverityFatal {
		return f
	}
	return nil
}

// Assertions returns every recorded assertion failure.
func (v *Vector) Assertions() []*dynamo.Failure {
	out := make([]*dynamo.Failure, len(v.assertions))
	copy(out, v.assertions)
	return out
}

// Terminate requests a graceful stop at the current time. The first
// request wins; the integrator checks Terminated between steps.
func (v *Vector) Terminate(msg string) {
	if v.terminated {
		return
	}
	v.terminated = true
	v.terminateMsg = msg
	v.terminateTime = v.time
	logrus.Infof("terminate requested at t=%.6g: %s", v.time, msg)
}

func (v *Vector) Terminated() bool {
	return v.terminated
}

// Termination describes the pending termination request, or nil.
func (v *Vector) Termination() *dynamo.Failure {
	if !v.terminated {
		return nil
	}
	return &dynamo.Failure{
		Kind:   dynamo.Termination,
		Time:   v.terminateTime,
		Handle: dynamo.NoHandle,
		Msg:    v.terminateMsg,
	}
}
