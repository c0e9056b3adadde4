package pipeline

import "fmt"

// Power writes |z|^2 of each channel into dst, growing it if needed.
func Power(step []complex64, dst []float32) []float32 {
	if cap(dst) < len(step) {
		dst = make([]float32, len(step))
	}
	dst = dst[:len(step)]
	for i, z := range step {
		re, im := real(z), imag(z)
		dst[i] = re*re + im*im
	}
	return dst
}

// Center returns p rotated so the upper half of the channels comes first.
// Channel 0 of the result is the lowest frequency and the tuned frequency
// sits at len(p)/2.
func Center(p []float32) []float32 {
	half := len(p) / 2
	out := make([]float32, 0, len(p))
	out = append(out, p[half:]...)
	return append(out, p[:half]...)
}

// AllPositive reports whether every component is strictly positive. NaN
// fails the check.
func AllPositive(s []float32) bool {
	for _, v := range s {
		if !(v > 0) {
			return false
		}
	}
	return true
}

// Averager accumulates a fixed number of equal-length spectra and yields
// their elementwise mean.
type Averager struct {
	n     int
	count int
	sum   []float64
}

// NewAverager averages n spectra of nch channels each.
func NewAverager(n, nch int) *Averager {
	return &Averager{n: n, sum: make([]float64, nch)}
}

// Add accumulates s. When the n-th spectrum arrives it returns the mean and
// true, and starts a new cycle.
func (a *Averager) Add(s []float32) ([]float32, bool, error) {
	if len(s) != len(a.sum) {
		return nil, false, fmt.Errorf("spectrum has %d channels, want %d", len(s), len(a.sum))
	}

	for i, v := range s {
		a.sum[i] += float64(v)
	}
	a.count++
	if a.count < a.n {
		return nil, false, nil
	}

	mean := make([]float32, len(a.sum))
	for i, v := range a.sum {
		mean[i] = float32(v / float64(a.n))
	}
	a.Reset()
	return mean, true, nil
}

// Pending returns how many spectra are in the current cycle.
func (a *Averager) Pending() int {
	return a.count
}

// Reset discards the current cycle.
func (a *Averager) Reset() {
	clear(a.sum)
	a.count = 0
}
