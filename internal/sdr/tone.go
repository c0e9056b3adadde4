package sdr

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// ToneConfig describes a synthetic source: one complex tone over
// Gaussian noise.
type ToneConfig struct {
	CenterFrequency float64 `yaml:"centerFrequency" json:"centerFrequency"` // Hz, reported only
	SampleRate      float64 `yaml:"sampleRate" json:"sampleRate"`           // samples per second
	Offset          float64 `yaml:"offset" json:"offset"`                   // tone offset from centre, Hz
	Amplitude       float64 `yaml:"amplitude" json:"amplitude"`
	Noise           float64 `yaml:"noise" json:"noise"` // noise standard deviation per component
	Paced           bool    `yaml:"paced" json:"paced"` // deliver blocks in real time
	Seed            uint64  `yaml:"seed" json:"seed"`
}

// ToneSource generates blocks of a complex exponential plus noise. The tone
// sits at the absolute frequency CenterFrequency+Offset, so retuning moves it
// within the band.
type ToneSource struct {
	mu     sync.Mutex
	config ToneConfig
	mtu    int
	rng    *rand.Rand
	phase  float64
	next   time.Time
}

// NewToneSource returns a source producing mtu samples per block.
func NewToneSource(config ToneConfig, mtu int) *ToneSource {
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	return &ToneSource{
		config: config,
		mtu:    mtu,
		rng:    rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)),
	}
}

// Read returns the next block. When pacing is enabled it waits until the
// block would have been produced by real hardware.
func (s *ToneSource) Read(ctx context.Context, timeout time.Duration) ([]complex64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.config.Paced && s.config.SampleRate > 0 {
		now := time.Now()
		if s.next.IsZero() {
			s.next = now
		}
		if wait := s.next.Sub(now); wait > 0 {
			if wait > timeout {
				timer := time.NewTimer(timeout)
				defer timer.Stop()
				select {
				case <-timer.C:
					return nil, ErrReadTimeout
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}

			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		s.next = s.next.Add(time.Duration(float64(s.mtu) / s.config.SampleRate * float64(time.Second)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	step := 0.0
	if s.config.SampleRate > 0 {
		step = 2 * math.Pi * s.config.Offset / s.config.SampleRate
	}

	block := make([]complex64, s.mtu)
	for i := range block {
		re := s.config.Amplitude*math.Cos(s.phase) + s.config.Noise*s.rng.NormFloat64()
		im := s.config.Amplitude*math.Sin(s.phase) + s.config.Noise*s.rng.NormFloat64()
		block[i] = complex(float32(re), float32(im))

		s.phase = math.Mod(s.phase+step, 2*math.Pi)
	}
	return block, nil
}

// MaxTransferUnit returns the block size in samples.
func (s *ToneSource) MaxTransferUnit() int {
	return s.mtu
}

// Tuning returns the configured centre frequency and sample rate.
func (s *ToneSource) Tuning() Tuning {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Tuning{
		CenterFrequency: s.config.CenterFrequency,
		SampleRate:      s.config.SampleRate,
	}
}

// Retune moves the centre frequency, keeping the tone at its absolute
// frequency.
func (s *ToneSource) Retune(centerFrequency float64) (Tuning, error) {
	if centerFrequency <= 0 {
		return Tuning{}, fmt.Errorf("retune: invalid centre frequency %v", centerFrequency)
	}

	s.mu.Lock()
	s.config.Offset -= centerFrequency - s.config.CenterFrequency
	s.config.CenterFrequency = centerFrequency
	s.mu.Unlock()

	return s.Tuning(), nil
}
