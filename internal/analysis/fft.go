package analysis

import (
	"errors"
	"fmt"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
)

var ErrTooShort = errors.New("analysis: not enough samples")

// PowerSpectrum returns the magnitudes of the non-negative frequency
// coefficients of data.
func PowerSpectrum(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	fft := fourier.NewFFT(len(data))
	coeff := fft.Coefficients(nil, data)
	ps := make([]float64, len(coeff))
	for i, c := range coeff {
		ps[i] = cmplx.Abs(c)
	}
	return ps
}

// Resample linearly interpolates (times, values) onto n evenly spaced
// points spanning the recorded interval.
func Resample(times, values []float64, n int) ([]float64, float64, error) {
	if len(times) != len(values) {
		return nil, 0, fmt.Errorf("analysis: %d times for %d values", len(times), len(values))
	}
	if len(times) < 2 || n < 2 {
		return nil, 0, ErrTooShort
	}
	t0, t1 := times[0], times[len(times)-1]
	if t1 <= t0 {
		return nil, 0, fmt.Errorf("analysis: empty time span [%g, %g]", t0, t1)
	}
	dt := (t1 - t0) / float64(n-1)
	out := make([]float64, n)
	j := 0
	for i := range out {
		t := t0 + float64(i)*dt
		for j < len(times)-2 && times[j+1] < t {
			j++
		}
		span := times[j+1] - times[j]
		if span <= 0 {
			out[i] = values[j+1]
			continue
		}
		frac := (t - times[j]) / span
		frac = min(max(frac, 0), 1)
		out[i] = values[j] + frac*(values[j+1]-values[j])
	}
	return out, dt, nil
}

// DominantPeriod resamples the trajectory, removes its mean and returns
// the period of the largest non-DC spectral peak.
func DominantPeriod(times, values []float64) (float64, error) {
	n := max(len(times), 64)
	grid, dt, err := Resample(times, values, n)
	if err != nil {
		return 0, err
	}
	mean := 0.0
	for _, v := range grid {
		mean += v
	}
	mean /= float64(n)
	for i := range grid {
		grid[i] -= mean
	}

	ps := PowerSpectrum(grid)
	peak := 0
	for i := 1; i < len(ps); i++ {
		if ps[i] > ps[peak] || peak == 0 {
			peak = i
		}
	}
	if peak == 0 || ps[peak] == 0 {
		return 0, fmt.Errorf("analysis: no oscillation in %d samples", n)
	}
	fft := fourier.NewFFT(n)
	return dt / fft.Freq(peak), nil
}

// CrossingPeriod returns the mean spacing of upward crossings of level,
// with crossing times interpolated between samples. At least two
// crossings are needed.
func CrossingPeriod(times, values []float64, level float64) (float64, error) {
	var crossings []float64
	for i := 1; i < len(values) && i < len(times); i++ {
		a, b := values[i-1]-level, values[i]-level
		if a < 0 && b >= 0 {
			frac := a / (a - b)
			crossings = append(crossings, times[i-1]+frac*(times[i]-times[i-1]))
		}
	}
	if len(crossings) < 2 {
		return 0, fmt.Errorf("analysis: %d crossings of %g: %w", len(crossings), level, ErrTooShort)
	}
	sort.Float64s(crossings)
	return (crossings[len(crossings)-1] - crossings[0]) / float64(len(crossings)-1), nil
}
