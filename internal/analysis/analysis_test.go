package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

func sine(period, duration, dt float64) ([]float64, []float64) {
	var times, values []float64
	for t := 0.0; t <= duration+dt/2; t += dt {
		times = append(times, t)
		values = append(values, math.Sin(2*math.Pi*t/period))
	}
	return times, values
}

func TestPowerSpectrumPeak(t *testing.T) {
	data := make([]float64, 64)
	for i := range data {
		data[i] = math.Cos(2 * math.Pi * 4 * float64(i) / 64)
	}
	ps := PowerSpectrum(data)
	require.Len(t, ps, 33)
	assert.InDelta(t, 32, ps[4], 1e-9)
	assert.InDelta(t, 0, ps[3], 1e-9)
	assert.Nil(t, PowerSpectrum(nil))
}

func TestResample(t *testing.T) {
	grid, dt, err := Resample([]float64{0, 1, 4}, []float64{0, 1, 4}, 5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, dt)
	assert.InDeltaSlice(t, []float64{0, 1, 2, 3, 4}, grid, 1e-12)

	_, _, err = Resample([]float64{0}, []float64{0}, 5)
	assert.ErrorIs(t, err, ErrTooShort)
	_, _, err = Resample([]float64{0, 1}, []float64{0}, 5)
	assert.Error(t, err)
	_, _, err = Resample([]float64{1, 1}, []float64{0, 1}, 5)
	assert.Error(t, err)
}

func TestDominantPeriod(t *testing.T) {
	times, values := sine(2, 40, 0.01)
	p, err := DominantPeriod(times, values)
	require.NoError(t, err)
	assert.InDelta(t, 2, p, 0.05)

	_, err = DominantPeriod([]float64{0, 1, 2}, []float64{1, 1, 1})
	assert.Error(t, err)
}

func TestCrossingPeriod(t *testing.T) {
	times, values := sine(2, 20, 0.01)
	p, err := CrossingPeriod(times, values, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2, p, 1e-3)

	_, err = CrossingPeriod([]float64{0, 1}, []float64{-1, 1}, 0)
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestAnalyze(t *testing.T) {
	times, values := sine(4, 40, 0.01)
	states := make([]dynamo.State, len(values))
	for i, v := range values {
		states[i] = dynamo.State{v, 1}
	}

	r, err := Analyze(times, states, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1, r.Max, 1e-6)
	assert.InDelta(t, -1, r.Min, 1e-6)
	assert.InDelta(t, 0, r.Mean, 0.01)
	assert.InDelta(t, 4, r.DominantPeriod, 0.1)
	assert.InDelta(t, 4, r.CrossingPeriod, 0.01)

	flat, err := Analyze(times, states, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, flat.StdDev)
	assert.Equal(t, 0.0, flat.DominantPeriod)

	_, err = Analyze(times, states, 2)
	assert.Error(t, err)
}
