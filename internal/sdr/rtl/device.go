package rtl

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/roman-kulish/spectral-accumulator/internal/sdr"
	"github.com/roman-kulish/spectral-accumulator/internal/sdr/driver"
)

const (
	Runtime = "rtl_sdr"
	Device  = "RTL-SDR"
)

// handler struct represents an RTL-SDR handler
type handler struct {
	binPath string
	args    []string
	tuning  sdr.Tuning
}

// New creates a new RTL-SDR handler
func New(config *Config) (sdr.Handler, error) {
	args, err := config.Args()
	if err != nil {
		return nil, driver.NewConfigError(Device, err)
	}

	binPath, err := driver.FindRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("error finding runtime: %w", err)
	}

	return &handler{
		binPath: binPath,
		args:    args,
		tuning: sdr.Tuning{
			CenterFrequency: float64(config.CenterFrequency),
			SampleRate:      float64(config.Rate()),
		},
	}, nil
}

// Cmd returns an exec.Cmd for the RTL-SDR handler
func (h handler) Cmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, h.binPath, h.args...)
}

// Format returns the wire format of rtl_sdr output: offset-binary u8 pairs.
func (h handler) Format() sdr.SampleFormat {
	return sdr.FormatU8
}

func (h handler) Tuning() sdr.Tuning {
	return h.tuning
}

func (h handler) Device() string {
	return Device
}
