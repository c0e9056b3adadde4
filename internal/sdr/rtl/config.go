package rtl

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	FrequencyMin = 24_000_000
	FrequencyMax = 1_766_000_000

	// The RTL2832U resamples cleanly only inside these two windows.
	SampleRateLowMin  = 225_001
	SampleRateLowMax  = 300_000
	SampleRateHighMin = 900_001
	SampleRateHighMax = 3_200_000

	DefaultSampleRate = 2_048_000

	// BlockSizeMultiple is the USB transfer granularity required by librtlsdr.
	BlockSizeMultiple = 512
)

// Usage examples from man page:
// https://manpages.debian.org/bookworm/rtl-sdr/rtl_sdr.1.en.html

/*
Example: stream the FM band centre to stdout
    rtlConfig := rtl.Config{
        CenterFrequency: 98_000_000,  // 98 MHz
        SampleRate:      2_048_000,   // 2.048 MS/s
        Gain:            40,
    }
    // Executes: rtl_sdr -f 98000000 -s 2048000 -d 0 -g 40 -
*/

// Config is the `rtl_sdr` tool configuration
type Config struct {
	// Required
	CenterFrequency int64 `yaml:"centerFrequency" json:"centerFrequency"` // -f frequency to tune to (Hz)

	// Common Optional Parameters
	SampleRate  int64 `yaml:"sampleRate" json:"sampleRate"`   // -s samplerate (default: 2048000 Hz)
	DeviceIndex int   `yaml:"deviceIndex" json:"deviceIndex"` // -d device_index (default: 0)
	Gain        int   `yaml:"gain" json:"gain"`               // -g gain (default: 0 for auto)
	PPMError    int   `yaml:"ppmError" json:"ppmError"`       // -p ppm_error (default: 0)

	// Advanced Options
	BlockSize int  `yaml:"blockSize" json:"blockSize"` // -b output_block_size (default: 16 * 16384)
	SyncMode  bool `yaml:"syncMode" json:"syncMode"`   // -S force sync output (default: async)
}

// Rate returns the configured sample rate or the default one.
func (c *Config) Rate() int64 {
	if c.SampleRate == 0 {
		return DefaultSampleRate
	}
	return c.SampleRate
}

func (c *Config) Validate() error {
	if c.CenterFrequency < FrequencyMin || c.CenterFrequency > FrequencyMax {
		return fmt.Errorf("rtl.Config: center frequency must be between %d and %d Hz: %d given",
			FrequencyMin, FrequencyMax, c.CenterFrequency)
	}

	rate := c.Rate()
	if !(rate >= SampleRateLowMin && rate <= SampleRateLowMax) &&
		!(rate >= SampleRateHighMin && rate <= SampleRateHighMax) {
		return fmt.Errorf("rtl.Config: invalid sample rate: %d, must be %d-%d or %d-%d Hz",
			rate, SampleRateLowMin, SampleRateLowMax, SampleRateHighMin, SampleRateHighMax)
	}

	if c.DeviceIndex < 0 {
		return fmt.Errorf("rtl.Config: device index cannot be negative: %d given", c.DeviceIndex)
	}

	if c.Gain < 0 {
		return fmt.Errorf("rtl.Config: gain cannot be negative: %d given", c.Gain)
	}

	if c.BlockSize < 0 || c.BlockSize%BlockSizeMultiple != 0 {
		return fmt.Errorf("rtl.Config: block size must be a multiple of %d: %d given", BlockSizeMultiple, c.BlockSize)
	}

	return nil
}

// Args returns the command line arguments for `rtl_sdr`
// See `man rtl_sdr` for more information:
// https://manpages.debian.org/bookworm/rtl-sdr/rtl_sdr.1.en.html
func (c *Config) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-f", strconv.FormatInt(c.CenterFrequency, 10),
		"-s", strconv.FormatInt(c.Rate(), 10),
	}

	args = append(args, "-d", strconv.Itoa(c.DeviceIndex)) // 0 is the default device index

	if c.Gain > 0 {
		args = append(args, "-g", strconv.Itoa(c.Gain))
	}

	if c.PPMError != 0 {
		args = append(args, "-p", strconv.Itoa(c.PPMError))
	}

	if c.BlockSize > 0 {
		args = append(args, "-b", strconv.Itoa(c.BlockSize))
	}

	if c.SyncMode {
		args = append(args, "-S")
	}

	args = append(args, "-") // Always dump to stdout

	return args, nil
}

func (c *Config) String() string {
	args, err := c.Args()
	if err != nil {
		return fmt.Sprintf("rtl.Config: failed to build args: %s", err)
	}
	return fmt.Sprintf("%s %s", Runtime, strings.Join(args, " "))
}
