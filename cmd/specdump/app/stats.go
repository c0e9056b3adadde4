package app

import (
	"math"
)

const minimumSampleCount = 20

// Stats summarises one spectrum. Levels are in dB relative to unit power.
type Stats struct {
	Min, Max, Mean float64
	Peak           int // channel of Max
}

// Summarize computes Stats over s. Non-positive channels are ignored for
// the dB levels.
func Summarize(s []float32) Stats {
	st := Stats{Min: math.Inf(1), Max: math.Inf(-1), Peak: -1}

	var sum float64
	var n int
	for i, v := range s {
		if v <= 0 {
			continue
		}
		db := toDB(v)
		if db < st.Min {
			st.Min = db
		}
		if db > st.Max {
			st.Max = db
			st.Peak = i
		}
		sum += float64(v)
		n++
	}

	if n == 0 {
		return Stats{Min: math.NaN(), Max: math.NaN(), Mean: math.NaN(), Peak: -1}
	}
	st.Mean = 10 * math.Log10(sum/float64(n))
	return st
}

func toDB(v float32) float64 {
	return 10 * math.Log10(float64(v))
}

// PowerBounds represents the percentile levels of everything seen
type PowerBounds struct {
	P5   float64 // 5th percentile power level in dB
	P95  float64 // 95th percentile power level in dB
	Mean float64 // Mean power level in dB
}

// PowerHistogram maintains a histogram of power values with 1dB bins
type PowerHistogram struct {
	bins       map[int]uint32 // Map of bin index to count
	totalCount uint64         // Total number of samples
	minBin     int            // Cache for min bin
	maxBin     int            // Cache for max bin
}

// NewPowerHistogram creates a new histogram
func NewPowerHistogram() *PowerHistogram {
	return &PowerHistogram{
		bins:   make(map[int]uint32),
		minBin: math.MaxInt32,
		maxBin: math.MinInt32,
	}
}

// scaleDown halves all bin counts, keeping the shape of the distribution
func (h *PowerHistogram) scaleDown() {
	h.minBin = math.MaxInt32
	h.maxBin = math.MinInt32

	for bin := range h.bins {
		h.bins[bin] /= 2
		if h.bins[bin] == 0 {
			delete(h.bins, bin)
			continue
		}

		h.minBin = min(h.minBin, bin)
		h.maxBin = max(h.maxBin, bin)
	}
	h.totalCount /= 2
}

// Add folds every positive channel of s into the histogram.
func (h *PowerHistogram) Add(s []float32) {
	for _, v := range s {
		if v <= 0 {
			continue
		}

		bin := int(math.Floor(toDB(v)))
		if h.bins[bin] == math.MaxUint32 || h.totalCount == math.MaxUint64 {
			h.scaleDown()
		}

		h.bins[bin]++
		h.totalCount++

		h.minBin = min(h.minBin, bin)
		h.maxBin = max(h.maxBin, bin)
	}
}

// Count returns the number of samples in the histogram.
func (h *PowerHistogram) Count() uint64 {
	return h.totalCount
}

// Bounds returns the percentile levels, or false when there are too few
// samples to tell.
func (h *PowerHistogram) Bounds() (PowerBounds, bool) {
	if h.totalCount < minimumSampleCount {
		return PowerBounds{}, false
	}

	target := h.totalCount * 5 / 100

	var b PowerBounds
	var count uint64
	for bin := h.minBin; bin <= h.maxBin; bin++ {
		count += uint64(h.bins[bin])
		if count >= target {
			b.P5 = float64(bin)
			break
		}
	}

	count = 0
	for bin := h.maxBin; bin >= h.minBin; bin-- {
		count += uint64(h.bins[bin])
		if count >= target {
			b.P95 = float64(bin)
			break
		}
	}

	var sumProduct float64
	for bin, n := range h.bins {
		sumProduct += float64(bin) * float64(n)
	}
	b.Mean = sumProduct / float64(h.totalCount)

	return b, true
}
