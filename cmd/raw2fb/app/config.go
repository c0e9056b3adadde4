package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

const (
	DefaultSampleRate = 6     // MHz
	DefaultTStart     = 51544 // MJD of 2000-01-01
)

type Config struct {
	Frequency  float64 // centre frequency, Hz
	Channels   int
	Average    int
	SampleRate float64 // MHz
	TStart     float64 // MJD
	Input      string
	Output     string
}

func NewConfig() *Config {
	return &Config{
		Average:    1,
		SampleRate: DefaultSampleRate,
		TStart:     DefaultTStart,
	}
}

// NewConfigFromCLI parses the command line into a validated Config.
func NewConfigFromCLI() (*Config, error) {
	return newConfigFromArgs(flag.CommandLine, os.Args[1:])
}

func newConfigFromArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	fs.Float64Var(&c.Frequency, "f", 0, "Central frequency in Hz")
	fs.IntVar(&c.Channels, "n", 0, "Number of channels")
	fs.IntVar(&c.Average, "a", c.Average, "Number of time points averaged into each spectrum")
	fs.Float64Var(&c.SampleRate, "s", c.SampleRate, "Sampling rate in MHz")
	fs.Float64Var(&c.TStart, "tstart", c.TStart, "Start time (MJD) written to the header")
	fs.StringVar(&c.Input, "i", "", "Path to the input raw file")
	fs.StringVar(&c.Output, "o", "", "Path to the output filterbank file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		fs.Usage()
		return nil, err
	}

	return c, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Frequency <= 0:
		return errors.New("central frequency is required")
	case c.Channels <= 0:
		return fmt.Errorf("invalid number of channels: %d", c.Channels)
	case c.Average <= 0:
		return fmt.Errorf("invalid number of averaged time points: %d", c.Average)
	case c.SampleRate <= 0:
		return fmt.Errorf("invalid sampling rate: %v MHz", c.SampleRate)
	case c.Input == "":
		return errors.New("input file is required")
	case c.Output == "":
		return errors.New("output file is required")
	}
	return nil
}
