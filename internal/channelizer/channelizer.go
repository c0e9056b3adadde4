// Package channelizer splits a complex baseband stream into equally spaced
// frequency channels with a 2x oversampled polyphase FFT filterbank.
package channelizer

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// DefaultBandwidth widens each channel's passband slightly past the channel
// spacing so neighbouring channels overlap.
const DefaultBandwidth = 1.1

// PFB is a polyphase filterbank analyzer. It keeps the samples that did not
// fill a whole frame between calls to Analyze. It is not safe for
// concurrent use.
type PFB struct {
	nch   int
	taps  int
	coeff []float64

	pending []complex64
	frame   []complex128
}

// New builds an analyzer with nch channels and taps filter taps per channel.
func New(nch, taps int) (*PFB, error) {
	return NewWithBandwidth(nch, taps, DefaultBandwidth)
}

// NewWithBandwidth is New with an explicit passband scale, relative to the
// channel spacing.
func NewWithBandwidth(nch, taps int, bandwidth float64) (*PFB, error) {
	if nch < 2 || nch&(nch-1) != 0 {
		return nil, fmt.Errorf("channelizer: channel count must be a power of two >= 2: %d given", nch)
	}
	if taps < 1 {
		return nil, fmt.Errorf("channelizer: taps per channel must be positive: %d given", taps)
	}
	if bandwidth <= 0 {
		return nil, fmt.Errorf("channelizer: bandwidth must be positive: %g given", bandwidth)
	}

	return &PFB{
		nch:   nch,
		taps:  taps,
		coeff: Prototype(nch, taps, bandwidth),
		frame: make([]complex128, nch),
	}, nil
}

// Prototype returns the windowed-sinc (Hann) low-pass filter shared by all
// channels, normalised to unit DC gain.
func Prototype(nch, taps int, bandwidth float64) []float64 {
	n := nch * taps
	coeff := make([]float64, n)
	centre := float64(n-1) / 2

	var sum float64
	for i := range coeff {
		x := (float64(i) - centre) * bandwidth / float64(nch)
		sinc := 1.0
		if x != 0 {
			sinc = math.Sin(math.Pi*x) / (math.Pi * x)
		}
		window := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i+1)/float64(n+1))
		coeff[i] = sinc * window
		sum += coeff[i]
	}
	for i := range coeff {
		coeff[i] /= sum
	}
	return coeff
}

// Channels returns the number of output channels.
func (p *PFB) Channels() int {
	return p.nch
}

// Hop returns how many input samples separate consecutive time steps.
func (p *PFB) Hop() int {
	return p.nch / 2
}

// Analyze feeds block into the filterbank and returns one channel vector per
// completed time step, indexed (time step, channel). Channel m holds the
// component at m*fs/nch, so the upper half are negative frequencies.
func (p *PFB) Analyze(block []complex64) [][]complex64 {
	p.pending = append(p.pending, block...)

	length := len(p.coeff)
	hop := p.Hop()

	var out [][]complex64
	start := 0
	for ; start+length <= len(p.pending); start += hop {
		window := p.pending[start : start+length]

		clear(p.frame)
		for i, c := range p.coeff {
			p.frame[i%p.nch] += complex128(window[i]) * complex(c, 0)
		}

		spectrum := fft.FFT(p.frame)
		step := make([]complex64, p.nch)
		for i, v := range spectrum {
			step[i] = complex64(v)
		}
		out = append(out, step)
	}

	// Keep the unconsumed tail for the next block.
	p.pending = append(p.pending[:0], p.pending[start:]...)

	return out
}

// Reset discards buffered samples.
func (p *PFB) Reset() {
	p.pending = p.pending[:0]
}
