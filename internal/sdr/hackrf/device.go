package hackrf

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/roman-kulish/spectral-accumulator/internal/sdr"
	"github.com/roman-kulish/spectral-accumulator/internal/sdr/driver"
)

const (
	Runtime = "hackrf_transfer"
	Device  = "HackRF"
)

// handler struct represents a HackRF handler
type handler struct {
	binPath string
	args    []string
	tuning  sdr.Tuning
}

// New creates a new HackRF handler
func New(serialNumber string, config *Config) (sdr.Handler, error) {
	args, err := config.Args(serialNumber)
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

// Cmd returns an exec.Cmd for the HackRF handler
func (h handler) Cmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, h.binPath, h.args...)
}

// Format returns the wire format of hackrf_transfer output: signed 8-bit pairs.
func (h handler) Format() sdr.SampleFormat {
	return sdr.FormatS8
}

func (h handler) Tuning() sdr.Tuning {
	return h.tuning
}

// Device returns the device type
func (h handler) Device() string {
	return Device
}
