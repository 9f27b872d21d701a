package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

// Report summarizes one continuous state component of a run. The periods
// are zero when the trajectory does not oscillate.
type Report struct {
	Component      int     `json:"component"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	Mean           float64 `json:"mean"`
	StdDev         float64 `json:"std_dev"`
	DominantPeriod float64 `json:"dominant_period"`
	CrossingPeriod float64 `json:"crossing_period"`
}

// Component extracts column i from a recorded state history.
func Component(states []dynamo.State, i int) ([]float64, error) {
	out := make([]float64, len(states))
	for j, x := range states {
		if i < 0 || i >= len(x) {
			return nil, fmt.Errorf("analysis: component %d out of range for state of size %d", i, len(x))
		}
		out[j] = x[i]
	}
	return out, nil
}

// Describe fills the distribution fields of a report.
func Describe(values []float64) Report {
	if len(values) == 0 {
		return Report{}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		std = 0
	}
	return Report{
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		StdDev: std,
	}
}

// Analyze describes component i of a recorded run and estimates its
// period both spectrally and from crossings of its mean.
func Analyze(times []float64, states []dynamo.State, i int) (Report, error) {
	values, err := Component(states, i)
	if err != nil {
		return Report{}, err
	}
	if len(values) < 2 {
		return Report{}, ErrTooShort
	}
	r := Describe(values)
	r.Component = i
	if r.StdDev == 0 {
		return r, nil
	}
	if p, err := DominantPeriod(times, values); err == nil {
		r.DominantPeriod = p
	}
	if p, err := CrossingPeriod(times, values, r.Mean); err == nil {
		r.CrossingPeriod = p
	}
	return r, nil
}
