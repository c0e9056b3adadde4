package pipeline

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultTaps          = 4
	DefaultHistoryDepth  = 100
	DefaultRawQueue      = 64
	DefaultAveragedQueue = 16
	DefaultSinkQueue     = 16
	DefaultReadTimeout   = time.Second
	DefaultReportEvery   = 100
)

// ErrInvalidConfig is wrapped by every Config validation failure.
var ErrInvalidConfig = errors.New("invalid pipeline configuration")

// ResetPolicy selects which long-lived state is cleared on a retune.
type ResetPolicy struct {
	Filter  bool `yaml:"filter" json:"filter"`   // smoothed spectrum back to zeros
	History bool `yaml:"history" json:"history"` // waterfall back to zeros
	Floor   bool `yaml:"floor" json:"floor"`     // per-channel noise floor forgotten
}

// Config holds the semantic parameters of the pipeline.
type Config struct {
	Channels     int     `yaml:"channels" json:"channels"`         // nch, a power of two
	Taps         int     `yaml:"taps" json:"taps"`                 // per channel, passed to the channelizer
	HistoryDepth int     `yaml:"historyDepth" json:"historyDepth"` // waterfall rows (ntime)
	Smoothing    float64 `yaml:"smoothing" json:"smoothing"`       // EMA coefficient k in [0, 1)
	Average      int     `yaml:"average" json:"average"`           // spectra per averaged spectrum (n_average)

	RawQueue      int `yaml:"rawQueue" json:"rawQueue"`
	SpectrumQueue int `yaml:"spectrumQueue" json:"spectrumQueue"` // defaults to 2 * Average
	AveragedQueue int `yaml:"averagedQueue" json:"averagedQueue"`
	SinkQueue     int `yaml:"sinkQueue" json:"sinkQueue"`

	ReadTimeout time.Duration `yaml:"readTimeout" json:"readTimeout"`
	ReportEvery int           `yaml:"reportEvery" json:"reportEvery"` // blocks between throughput reports

	Retune ResetPolicy `yaml:"retune" json:"retune"`
}

// WithDefaults returns a copy of c with unset tuning knobs filled in.
func (c Config) WithDefaults() Config {
	if c.Taps == 0 {
		c.Taps = DefaultTaps
	}
	if c.HistoryDepth == 0 {
		c.HistoryDepth = DefaultHistoryDepth
	}
	if c.Average == 0 {
		c.Average = 1
	}
	if c.RawQueue == 0 {
		c.RawQueue = DefaultRawQueue
	}
	if c.SpectrumQueue == 0 {
		c.SpectrumQueue = 2 * c.Average
	}
	if c.AveragedQueue == 0 {
		c.AveragedQueue = DefaultAveragedQueue
	}
	if c.SinkQueue == 0 {
		c.SinkQueue = DefaultSinkQueue
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.ReportEvery == 0 {
		c.ReportEvery = DefaultReportEvery
	}
	return c
}

func (c *Config) Validate() error {
	if c.Channels < 2 || c.Channels&(c.Channels-1) != 0 {
		return fmt.Errorf("%w: channel count must be a power of two >= 2: %d given", ErrInvalidConfig, c.Channels)
	}
	if c.Taps < 1 {
		return fmt.Errorf("%w: taps per channel must be positive: %d given", ErrInvalidConfig, c.Taps)
	}
	if c.HistoryDepth < 1 {
		return fmt.Errorf("%w: history depth must be positive: %d given", ErrInvalidConfig, c.HistoryDepth)
	}
	if c.Smoothing < 0 || c.Smoothing >= 1 {
		return fmt.Errorf("%w: smoothing must be in [0, 1): %g given", ErrInvalidConfig, c.Smoothing)
	}
	if c.Average < 1 {
		return fmt.Errorf("%w: average must be positive: %d given", ErrInvalidConfig, c.Average)
	}
	if c.RawQueue < 1 || c.SpectrumQueue < 1 || c.AveragedQueue < 1 || c.SinkQueue < 1 {
		return fmt.Errorf("%w: queue capacities must be positive", ErrInvalidConfig)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: read timeout must be positive: %s given", ErrInvalidConfig, c.ReadTimeout)
	}
	if c.ReportEvery < 1 {
		return fmt.Errorf("%w: report interval must be positive: %d given", ErrInvalidConfig, c.ReportEvery)
	}
	return nil
}
